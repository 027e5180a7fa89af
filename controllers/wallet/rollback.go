package wallet

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"nexus/ledger"
	"nexus/models"
)

// Rollback reverses a whole round: every transaction recorded for
// (user, round, game) is unwound in one credit and the records are removed,
// so a later replay of the round starts from a clean slate. The reversal may
// drive the balance below the pre-round level when wins exceeded bets; that
// is the provider's contract, not an error.
func (h *Handler) Rollback(c *fiber.Ctx) error {
	params, code, desc := h.form(c, "providerId", "userId", "roundId", "gameId", "hash")
	if code != CodeOK {
		return h.send(c, "rollback", failMap("USD", code, desc))
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

		var rows []models.GameTransaction
		if err := tx.Where("user_code = ? AND round_id = ? AND game_id = ?",
			user.UserCode, params["roundId"], params["gameId"]).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			m := failMap(user.Currency, CodeNotFound, "No transactions for round")
			m["cash"] = cash(user.Balance)
			resp = m
			return errRolledBack
		}

		// Net effect of the round so far: stakes out, wins and bonuses in.
		// The reversal credit is the mirror image.
		delta := decimal.Zero
		refs := make([]string, 0, len(rows))
		for _, r := range rows {
			delta = delta.Add(r.BetAmount).Sub(r.WinAmount).Sub(r.BonusAmount)
			refs = append(refs, r.Reference)
		}

		user.Balance = ledger.Round(user.Balance.Add(ledger.Round(delta)))
		if err := tx.Model(user).Update("balance", user.Balance).Error; err != nil {
			return err
		}

		if err := tx.Where("user_code = ? AND round_id = ? AND game_id = ?",
			user.UserCode, params["roundId"], params["gameId"]).
			Delete(&models.GameTransaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("reference IN ?", refs).
			Delete(&models.WalletTransaction{}).Error; err != nil {
			return err
		}

		resp = fiber.Map{
			"currency":    user.Currency,
			"cash":        cash(user.Balance),
			"bonus":       0.0,
			"error":       CodeOK,
			"description": "Rollback Success",
		}
		return nil
	})
	if txErr != nil && !errors.Is(txErr, errRolledBack) {
		h.log.WithError(txErr).Error("rollback transaction failed")
		return h.send(c, "rollback", failMap("USD", CodeInternalError, "Transaction failed"))
	}
	return h.send(c, "rollback", resp)
}
