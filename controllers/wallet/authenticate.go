package wallet

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Authenticate resolves a session token to a player. Read-only.
func (h *Handler) Authenticate(c *fiber.Ctx) error {
	params, code, desc := h.form(c, "providerId", "token", "hash")
	if code != CodeOK {
		return h.send(c, "authenticate", failMap("USD", code, desc))
	}

	user, code, desc := h.findUser(params["token"])
	if code != CodeOK {
		return h.send(c, "authenticate", failMap("USD", code, desc))
	}

	return h.send(c, "authenticate", fiber.Map{
		"userId":      user.UserCode,
		"currency":    strings.ToUpper(user.Currency),
		"cash":        cash(user.Balance),
		"bonus":       0.0,
		"country":     user.Country,
		"token":       params["token"],
		"error":       CodeOK,
		"description": "Success",
	})
}
