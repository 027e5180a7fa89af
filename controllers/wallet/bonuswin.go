package wallet

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"nexus/models"
)

// BonusWin is a cross-check, not a credit: the provider claims a total for a
// bonus code and we verify it against the sum of bonus amounts already
// credited under that code. A mismatch is reported, never repaired.
func (h *Handler) BonusWin(c *fiber.Ctx) error {
	params, code, desc := h.form(c, "providerId", "userId", "bonusCode", "amount", "hash")
	if code != CodeOK {
		return h.send(c, "bonuswin", failMap("USD", code, desc))
	}

	claimed, err := parseAmount(params["amount"])
	if err != nil || claimed.IsNegative() {
		return h.send(c, "bonuswin", failMap("USD", CodeInvalidAmount, "Invalid amount"))
	}

	user, code, desc := h.findUser(params["userId"])
	if code != CodeOK {
		return h.send(c, "bonuswin", failMap("USD", code, desc))
	}

	var credited decimal.Decimal
	if err := h.db.Model(&models.GameTransaction{}).
		Where("user_code = ? AND bonus_code = ?", user.UserCode, params["bonusCode"]).
		Select("COALESCE(SUM(bonus_amount), 0)").
		Scan(&credited).Error; err != nil {
		return h.send(c, "bonuswin", failMap(user.Currency, CodeInternalError, "DB error"))
	}

	if !credited.Round(2).Equal(claimed.Round(2)) {
		m := failMap(user.Currency, CodeChecksumMismatch, "Bonus amount mismatch")
		m["cash"] = cash(user.Balance)
		return h.send(c, "bonuswin", m)
	}

	return h.send(c, "bonuswin", fiber.Map{
		"currency":    user.Currency,
		"cash":        cash(user.Balance),
		"bonus":       0.0,
		"error":       CodeOK,
		"description": "Success",
	})
}
