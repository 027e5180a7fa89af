package wallet

import (
	"github.com/gofiber/fiber/v2"
)

// Balance returns the current cash snapshot. Read-only.
func (h *Handler) Balance(c *fiber.Ctx) error {
	params, code, desc := h.form(c, "providerId", "userId", "hash")
	if code != CodeOK {
		return h.send(c, "balance", failMap("USD", code, desc))
	}

	user, code, desc := h.findUser(params["userId"])
	if code != CodeOK {
		return h.send(c, "balance", failMap("USD", code, desc))
	}

	return h.send(c, "balance", fiber.Map{
		"currency":    user.Currency,
		"cash":        cash(user.Balance),
		"bonus":       0.0,
		"error":       CodeOK,
		"description": "Success",
	})
}
