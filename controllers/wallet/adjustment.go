package wallet

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"nexus/ledger"
	"nexus/models"
)

// Adjustment applies a signed correction to the balance. Adjustment
// references live in their own ledger so they cannot collide with round
// references; a negative adjustment past the balance is rejected.
func (h *Handler) Adjustment(c *fiber.Ctx) error {
	params, code, desc := h.form(c, "providerId", "userId", "gameId", "roundId",
		"amount", "reference", "hash", "timestamp")
	if code != CodeOK {
		return h.send(c, "adjustment", failMap("USD", code, desc))
	}

	adjAmt, err := parseAmount(params["amount"])
	if err != nil {
		return h.send(c, "adjustment", failMap("USD", CodeInvalidAmount, "Invalid amount"))
	}
	reference := params["reference"]

	replay, err := h.adjustmentReplay(reference)
	if err != nil {
		return h.send(c, "adjustment", failMap("USD", CodeInternalError, "DB error"))
	}
	if replay != nil {
		return h.send(c, "adjustment", replay)
	}

	var resp fiber.Map
	txErr := ledger.Atomic(h.db, func(tx *gorm.DB) error {
		user, err := ledger.LockUser(tx, params["userId"])
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				resp = failMap("USD", CodeUserNotFound, "User not found")
				return errRolledBack
			}
			return err
		}
		if !user.IsActive {
			resp = failMap(user.Currency, CodeUserInactive, "User inactive")
			return errRolledBack
		}

		var before = user.Balance
		if adjAmt.IsNegative() {
			before, err = ledger.DebitUser(tx, user, adjAmt.Neg())
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				m := failMap(user.Currency, CodeInsufficientFunds, "Insufficient balance")
				m["cash"] = cash(user.Balance)
				resp = m
				return errRolledBack
			}
		} else {
			before, err = ledger.CreditUser(tx, user, adjAmt)
		}
		if err != nil {
			return err
		}

		adj := models.Adjustment{
			UserCode:      user.UserCode,
			Reference:     reference,
			Amount:        ledger.Round(adjAmt),
			BalanceBefore: before,
			BalanceAfter:  user.Balance,
			Note:          "Adjustment " + params["gameId"] + " round " + params["roundId"],
		}
		if err := tx.Create(&adj).Error; err != nil {
			return err
		}

		// Keep the round audit in step when the adjustment corrects an
		// existing round transaction.
		var gtx models.GameTransaction
		switch err := tx.Where("reference = ?", reference).First(&gtx).Error; {
		case err == nil:
			gtx.Status = models.StatusAdjusted
			gtx.BalanceAfter = user.Balance
			if err := tx.Save(&gtx).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		resp = fiber.Map{
			"transactionId": adj.ID,
			"currency":      user.Currency,
			"cash":          cash(user.Balance),
			"bonus":         0.0,
			"error":         CodeOK,
			"description":   "Adjustment Success",
		}
		return nil
	})
	if txErr != nil && !errors.Is(txErr, errRolledBack) {
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			if replay, err := h.adjustmentReplay(reference); err == nil && replay != nil {
				return h.send(c, "adjustment", replay)
			}
		}
		h.log.WithError(txErr).Error("adjustment transaction failed")
		return h.send(c, "adjustment", failMap("USD", CodeInternalError, "Transaction failed"))
	}
	return h.send(c, "adjustment", resp)
}

func (h *Handler) adjustmentReplay(reference string) (fiber.Map, error) {
	var existed models.Adjustment
	err := h.db.Where("reference = ?", reference).First(&existed).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var user models.User
	_ = h.db.Where("user_code = ?", existed.UserCode).First(&user).Error
	return fiber.Map{
		"transactionId": existed.ID,
		"currency":      user.Currency,
		"cash":          cash(existed.BalanceAfter),
		"bonus":         0.0,
		"error":         CodeOK,
		"description":   "Success (already processed)",
	}, nil
}
