package wallet

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"nexus/ledger"
	"nexus/models"
)

// Bet debits the stake from the player. Replays with a known reference
// return the stored transaction id and the current balance without touching
// it again.
func (h *Handler) Bet(c *fiber.Ctx) error {
	params, code, desc := h.form(c, "providerId", "userId", "gameId", "roundId",
		"amount", "reference", "hash", "timestamp")
	if code != CodeOK {
		return h.send(c, "bet", failMap("USD", code, desc))
	}

	amount, err := parseAmount(params["amount"])
	if err != nil || !amount.IsPositive() {
		return h.send(c, "bet", failMap("USD", CodeInvalidAmount, "Invalid amount"))
	}
	reference := params["reference"]

	// Idempotency check before any mutation.
	replay, err := h.betReplay(reference)
	if err != nil {
		return h.send(c, "bet", failMap("USD", CodeInternalError, "DB error"))
	}
	if replay != nil {
		return h.send(c, "bet", replay)
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

		before, err := ledger.DebitUser(tx, user, amount)
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			m := failMap(user.Currency, CodeInsufficientFunds, "Insufficient funds")
			m["cash"] = cash(user.Balance)
			resp = m
			return errRolledBack
		}
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
			BetAmount:     ledger.Round(amount),
			Currency:      user.Currency,
			BalanceBefore: before,
			BalanceAfter:  user.Balance,
			Status:        models.StatusRunning,
			Note:          "Bet round " + params["roundId"],
		}
		if err := tx.Create(&gtx).Error; err != nil {
			return err
		}

		wtx := models.WalletTransaction{
			UserCode:      user.UserCode,
			Currency:      user.Currency,
			Cash:          user.Balance,
			Amount:        ledger.Round(amount),
			TotalBalance:  user.Balance,
			GameID:        params["gameId"],
			RoundID:       params["roundId"],
			Reference:     reference,
			TransactionID: reference,
			IPAddress:     c.IP(),
			ErrorCode:     CodeOK,
			Description:   "Success",
		}
		if details := params["roundDetails"]; details != "" && json.Valid([]byte(details)) {
			wtx.RoundDetails = datatypes.JSON(details)
		}
		if err := tx.Create(&wtx).Error; err != nil {
			return err
		}

		resp = fiber.Map{
			"transactionId": gtx.ID,
			"currency":      user.Currency,
			"cash":          cash(user.Balance),
			"bonus":         0.0,
			"usedPromo":     0,
			"error":         CodeOK,
			"description":   "Success",
		}
		return nil
	})
	if txErr != nil && !errors.Is(txErr, errRolledBack) {
		// A unique-index hit means a concurrent request with the same
		// reference won the race; answer as a replay.
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			if replay, err := h.betReplay(reference); err == nil && replay != nil {
				return h.send(c, "bet", replay)
			}
		}
		h.log.WithError(txErr).Error("bet transaction failed")
		return h.send(c, "bet", failMap("USD", CodeInternalError, "Transaction failed"))
	}
	return h.send(c, "bet", resp)
}

// betReplay loads the stored outcome for a reference that was already
// processed. A nil map with nil error means the reference is new.
func (h *Handler) betReplay(reference string) (fiber.Map, error) {
	var existing models.GameTransaction
	err := h.db.Where("reference = ?", reference).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var user models.User
	_ = h.db.First(&user, existing.UserID).Error
	return fiber.Map{
		"transactionId": existing.ID,
		"currency":      user.Currency,
		"cash":          cash(user.Balance),
		"bonus":         0.0,
		"usedPromo":     0,
		"error":         CodeOK,
		"description":   "Success (already processed)",
	}, nil
}
