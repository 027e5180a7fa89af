package wallet

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"nexus/ledger"
	"nexus/models"
)

// JackpotWin credits a jackpot payout. Replays are detected by reference or
// by the provider transactionId: the provider resends jackpot events under
// fresh references, so the transactionId is the stable key.
func (h *Handler) JackpotWin(c *fiber.Ctx) error {
	params, code, desc := h.form(c, "providerId", "userId", "gameId", "roundId",
		"jackpotId", "amount", "reference", "hash", "timestamp")
	if code != CodeOK {
		return h.send(c, "jackpotwin", failMap("USD", code, desc))
	}

	winAmt, err := parseAmount(params["amount"])
	if err != nil || winAmt.IsNegative() {
		return h.send(c, "jackpotwin", failMap("USD", CodeInvalidAmount, "Invalid amount"))
	}
	reference := params["reference"]
	transactionID := params["transactionId"]
	if transactionID == "" {
		transactionID = reference
	}

	replay, err := h.jackpotReplay(reference, transactionID)
	if err != nil {
		return h.send(c, "jackpotwin", failMap("USD", CodeInternalError, "DB error"))
	}
	if replay != nil {
		return h.send(c, "jackpotwin", replay)
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
			GameID:        params["gameId"],
			RoundID:       params["roundId"],
			Reference:     reference,
			WinAmount:     ledger.Round(winAmt),
			Currency:      user.Currency,
			BalanceBefore: before,
			BalanceAfter:  user.Balance,
			Status:        models.StatusSettled,
			Note:          "JackpotWin round " + params["roundId"] + " jackpot " + params["jackpotId"],
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
			GameID:        params["gameId"],
			RoundID:       params["roundId"],
			JackpotID:     params["jackpotId"],
			Reference:     reference,
			TransactionID: transactionID,
			IPAddress:     c.IP(),
			ErrorCode:     CodeOK,
			Description:   "JackpotWin Success",
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
			if replay, err := h.jackpotReplay(reference, transactionID); err == nil && replay != nil {
				return h.send(c, "jackpotwin", replay)
			}
		}
		h.log.WithError(txErr).Error("jackpotwin transaction failed")
		return h.send(c, "jackpotwin", failMap("USD", CodeInternalError, "Transaction failed"))
	}
	return h.send(c, "jackpotwin", resp)
}

func (h *Handler) jackpotReplay(reference, transactionID string) (fiber.Map, error) {
	var existed models.WalletTransaction
	err := h.db.Where("reference = ? OR transaction_id = ?", reference, transactionID).
		First(&existed).Error
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
		"cash":          cash(user.Balance),
		"bonus":         0.0,
		"error":         CodeOK,
		"description":   "Success (already processed)",
	}, nil
}
