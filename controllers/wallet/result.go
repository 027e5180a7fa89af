package wallet

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"nexus/ledger"
	"nexus/models"
)

// Result credits a win. When the promo fields are present they must appear
// as a complete set; the promo amount is credited on top of the win. The
// original bet of the same reference is settled when it exists, otherwise a
// standalone settled record is written.
func (h *Handler) Result(c *fiber.Ctx) error {
	params, code, desc := h.form(c, "providerId", "userId", "gameId", "roundId",
		"amount", "reference", "hash")
	if code != CodeOK {
		return h.send(c, "result", failMap("USD", code, desc))
	}

	winAmt, err := parseAmount(params["amount"])
	if err != nil || winAmt.IsNegative() {
		return h.send(c, "result", failMap("USD", CodeInvalidAmount, "Invalid amount"))
	}

	promoAmt := decimal.Zero
	promoFields := []string{"promoWinAmount", "promoWinReference", "promoCampaignID", "promoCampaignType"}
	promoPresent := 0
	for _, f := range promoFields {
		if params[f] != "" {
			promoPresent++
		}
	}
	if promoPresent > 0 {
		if promoPresent != len(promoFields) {
			return h.send(c, "result", failMap("USD", CodeMissingParameters, "Incomplete promo parameters"))
		}
		promoAmt, err = parseAmount(params["promoWinAmount"])
		if err != nil || promoAmt.IsNegative() {
			return h.send(c, "result", failMap("USD", CodeInvalidAmount, "Invalid promoWinAmount"))
		}
	}
	total := winAmt.Add(promoAmt)
	reference := params["reference"]

	// Idempotency: a settled record under this reference means the credit
	// already happened.
	replay, err := h.resultReplay(reference)
	if err != nil {
		return h.send(c, "result", failMap("USD", CodeInternalError, "DB error"))
	}
	if replay != nil {
		return h.send(c, "result", replay)
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

		before, err := ledger.CreditUser(tx, user, total)
		if err != nil {
			return err
		}

		var gtx models.GameTransaction
		err = tx.Where("reference = ? AND status = ?", reference, models.StatusRunning).
			First(&gtx).Error
		switch {
		case err == nil:
			gtx.Status = models.StatusSettled
			gtx.WinAmount = ledger.Round(winAmt)
			gtx.BonusAmount = ledger.Round(promoAmt)
			gtx.BonusCode = params["bonusCode"]
			gtx.BalanceAfter = user.Balance
			if err := tx.Save(&gtx).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			gtx = models.GameTransaction{
				UserID:        user.ID,
				UserCode:      user.UserCode,
				AgentCode:     user.AgentCode,
				GameID:        params["gameId"],
				RoundID:       params["roundId"],
				Reference:     reference,
				WinAmount:     ledger.Round(winAmt),
				BonusAmount:   ledger.Round(promoAmt),
				BonusCode:     params["bonusCode"],
				Currency:      user.Currency,
				BalanceBefore: before,
				BalanceAfter:  user.Balance,
				Status:        models.StatusSettled,
				Note:          "Result round " + params["roundId"],
			}
			if err := tx.Create(&gtx).Error; err != nil {
				return err
			}
		default:
			return err
		}

		// Keep the provider ledger row in step with the settlement.
		var wtx models.WalletTransaction
		if err := tx.Where("reference = ?", reference).First(&wtx).Error; err == nil {
			wtx.Cash = user.Balance
			wtx.TotalBalance = user.Balance
			wtx.Amount = ledger.Round(total)
			wtx.PromoWinAmount = ledger.Round(promoAmt)
			wtx.PromoWinReference = params["promoWinReference"]
			wtx.CampaignID = params["promoCampaignID"]
			wtx.CampaignType = params["promoCampaignType"]
			wtx.Description = "Result Success"
			if err := tx.Save(&wtx).Error; err != nil {
				return err
			}
		} else if errors.Is(err, gorm.ErrRecordNotFound) {
			wtx = models.WalletTransaction{
				UserCode:          user.UserCode,
				Currency:          user.Currency,
				Cash:              user.Balance,
				Amount:            ledger.Round(total),
				TotalBalance:      user.Balance,
				GameID:            params["gameId"],
				RoundID:           params["roundId"],
				Reference:         reference,
				TransactionID:     reference,
				PromoWinAmount:    ledger.Round(promoAmt),
				PromoWinReference: params["promoWinReference"],
				CampaignID:        params["promoCampaignID"],
				CampaignType:      params["promoCampaignType"],
				IPAddress:         c.IP(),
				ErrorCode:         CodeOK,
				Description:       "Result Success",
			}
			if err := tx.Create(&wtx).Error; err != nil {
				return err
			}
		} else {
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
			if replay, err := h.resultReplay(reference); err == nil && replay != nil {
				return h.send(c, "result", replay)
			}
		}
		h.log.WithError(txErr).Error("result transaction failed")
		return h.send(c, "result", failMap("USD", CodeInternalError, "Transaction failed"))
	}
	return h.send(c, "result", resp)
}

func (h *Handler) resultReplay(reference string) (fiber.Map, error) {
	var existed models.GameTransaction
	err := h.db.Where("reference = ? AND status = ?", reference, models.StatusSettled).
		First(&existed).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fiber.Map{
		"transactionId": existed.ID,
		"currency":      existed.Currency,
		"cash":          cash(existed.BalanceAfter),
		"bonus":         0.0,
		"error":         CodeOK,
		"description":   "Success (already processed)",
	}, nil
}
