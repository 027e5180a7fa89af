package wallet

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"nexus/ledger"
	"nexus/models"
)

// Refund returns the original stake of a bet. A missing original bet is not
// an error to the provider: the response is informational with error 0. An
// already refunded bet replays the stored outcome without a second credit.
func (h *Handler) Refund(c *fiber.Ctx) error {
	params, code, desc := h.form(c, "providerId", "userId", "reference", "hash")
	if code != CodeOK {
		return h.send(c, "refund", failMap("USD", code, desc))
	}
	reference := params["reference"]

	var existed models.GameTransaction
	if err := h.db.Where("reference = ? AND status = ?", reference, models.StatusRefunded).
		First(&existed).Error; err == nil {
		return h.send(c, "refund", fiber.Map{
			"transactionId": existed.ID,
			"currency":      existed.Currency,
			"cash":          cash(existed.BalanceAfter),
			"bonus":         0.0,
			"error":         CodeOK,
			"description":   "Already refunded",
		})
	}

	var bet models.GameTransaction
	if err := h.db.Where("reference = ?", reference).First(&bet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return h.send(c, "refund", fiber.Map{
				"transactionId": "",
				"currency":      "USD",
				"cash":          0.0,
				"bonus":         0.0,
				"error":         CodeOK,
				"description":   "Success (no bet found)",
			})
		}
		return h.send(c, "refund", failMap("USD", CodeInternalError, "DB error"))
	}

	var resp fiber.Map
	txErr := ledger.Atomic(h.db, func(tx *gorm.DB) error {
		user, err := ledger.LockUser(tx, params["userId"])
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				resp = failMap(bet.Currency, CodeUserNotFound, "User not found")
				return errRolledBack
			}
			return err
		}
		if user.ID != bet.UserID {
			resp = failMap(bet.Currency, CodeNotFound, "Bet does not belong to user")
			return errRolledBack
		}
		if !user.IsActive {
			resp = failMap(user.Currency, CodeUserInactive, "User inactive")
			return errRolledBack
		}

		if _, err := ledger.CreditUser(tx, user, bet.BetAmount); err != nil {
			return err
		}

		bet.Status = models.StatusRefunded
		bet.WinAmount = decimal.Zero
		bet.BonusAmount = decimal.Zero
		bet.BalanceAfter = user.Balance
		if err := tx.Save(&bet).Error; err != nil {
			return err
		}

		var wtx models.WalletTransaction
		switch err := tx.Where("reference = ?", reference).First(&wtx).Error; {
		case err == nil:
			wtx.Cash = user.Balance
			wtx.TotalBalance = user.Balance
			wtx.Amount = bet.BetAmount
			wtx.Description = "Refund Success"
			if err := tx.Save(&wtx).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		resp = fiber.Map{
			"transactionId": bet.ID,
			"currency":      user.Currency,
			"cash":          cash(user.Balance),
			"bonus":         0.0,
			"error":         CodeOK,
			"description":   "Refund Success",
		}
		return nil
	})
	if txErr != nil && !errors.Is(txErr, errRolledBack) {
		h.log.WithError(txErr).Error("refund transaction failed")
		return h.send(c, "refund", failMap("USD", CodeInternalError, "Transaction failed"))
	}
	return h.send(c, "refund", resp)
}
