package wallet

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"nexus/ledger"
	"nexus/models"
)

// EndRound closes a round without moving money. Running records flip to
// Ended; calling again returns the same response. The current cash is
// reported either way.
func (h *Handler) EndRound(c *fiber.Ctx) error {
	params, code, desc := h.form(c, "providerId", "userId", "gameId", "roundId", "hash")
	if code != CodeOK {
		return h.send(c, "endround", failMap("USD", code, desc))
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

		var count int64
		if err := tx.Model(&models.GameTransaction{}).
			Where("user_code = ? AND round_id = ? AND game_id = ?",
				user.UserCode, params["roundId"], params["gameId"]).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			m := failMap(user.Currency, CodeNotFound, "Round not found")
			m["cash"] = cash(user.Balance)
			resp = m
			return errRolledBack
		}

		// Zero rows updated means the round was already ended; the response
		// is identical either way, which is what makes the call idempotent.
		if err := tx.Model(&models.GameTransaction{}).
			Where("user_code = ? AND round_id = ? AND game_id = ? AND status = ?",
				user.UserCode, params["roundId"], params["gameId"], models.StatusRunning).
			Update("status", models.StatusEnded).Error; err != nil {
			return err
		}

		resp = fiber.Map{
			"currency":    user.Currency,
			"cash":        cash(user.Balance),
			"bonus":       0.0,
			"error":       CodeOK,
			"description": "Success",
		}
		return nil
	})
	if txErr != nil && !errors.Is(txErr, errRolledBack) {
		h.log.WithError(txErr).Error("endround transaction failed")
		return h.send(c, "endround", failMap("USD", CodeInternalError, "Transaction failed"))
	}
	return h.send(c, "endround", resp)
}
