package wallet

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"nexus/ledger"
	"nexus/models"
)

// PromoWin credits a promotional campaign payout, idempotent by reference.
func (h *Handler) PromoWin(c *fiber.Ctx) error {
	params, code, desc := h.form(c, "providerId", "userId", "campaignId",
		"campaignType", "amount", "currency", "reference", "hash", "timestamp")
	if code != CodeOK {
		return h.send(c, "promowin", failMap("USD", code, desc))
	}

	winAmt, err := parseAmount(params["amount"])
	if err != nil || winAmt.IsNegative() {
		return h.send(c, "promowin", failMap("USD", CodeInvalidAmount, "Invalid amount"))
	}
	reference := params["reference"]

	replay, err := h.promoReplay(reference)
	if err != nil {
		return h.send(c, "promowin", failMap("USD", CodeInternalError, "DB error"))
	}
	if replay != nil {
		return h.send(c, "promowin", replay)
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

		before, err := ledger.CreditUser(tx, user, winAmt)
		if err != nil {
			return err
		}

		gtx := models.GameTransaction{
			UserID:        user.ID,
			UserCode:      user.UserCode,
			AgentCode:     user.AgentCode,
			Reference:     reference,
			BonusAmount:   ledger.Round(winAmt),
			Currency:      user.Currency,
			BalanceBefore: before,
			BalanceAfter:  user.Balance,
			Status:        models.StatusSettled,
			Note:          "PromoWin " + params["campaignType"] + " " + params["campaignId"],
		}
		if err := tx.Create(&gtx).Error; err != nil {
			return err
		}

		wtx := models.WalletTransaction{
			UserCode:      user.UserCode,
			Currency:      user.Currency,
			Cash:          user.Balance,
			Amount:        ledger.Round(winAmt),
			TotalBalance:  user.Balance,
			Reference:     reference,
			TransactionID: reference,
			CampaignID:    params["campaignId"],
			CampaignType:  params["campaignType"],
			IPAddress:     c.IP(),
			ErrorCode:     CodeOK,
			Description:   "PromoWin Success",
		}
		if err := tx.Create(&wtx).Error; err != nil {
			return err
		}

		resp = fiber.Map{
			"transactionId": gtx.ID,
			"currency":      user.Currency,
			"cash":          cash(user.Balance),
			"bonus":         0.0,
			"error":         CodeOK,
			"description":   "Success",
		}
		return nil
	})
	if txErr != nil && !errors.Is(txErr, errRolledBack) {
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			if replay, err := h.promoReplay(reference); err == nil && replay != nil {
				return h.send(c, "promowin", replay)
			}
		}
		h.log.WithError(txErr).Error("promowin transaction failed")
		return h.send(c, "promowin", failMap("USD", CodeInternalError, "Transaction failed"))
	}
	return h.send(c, "promowin", resp)
}

func (h *Handler) promoReplay(reference string) (fiber.Map, error) {
	var existed models.GameTransaction
	err := h.db.Where("reference = ?", reference).First(&existed).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var user models.User
	_ = h.db.First(&user, existed.UserID).Error
	return fiber.Map{
		"transactionId": existed.ID,
		"currency":      user.Currency,
		"cash":          cash(user.Balance),
		"bonus":         0.0,
		"error":         CodeOK,
		"description":   "Success (already processed)",
	}, nil
}
