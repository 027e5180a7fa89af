package wallet

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"nexus/metrics"
)

// Wallet result codes. Zero is success, including idempotent replays.
const (
	CodeOK                 = 0
	CodeInvalidContentType = 1000
	CodeMissingParameters  = 1001
	CodeInvalidProvider    = 1002
	CodeInvalidHash        = 1003
	CodeUserNotFound       = 2001
	CodeUserInactive       = 2002
	CodeNotFound           = 2003
	CodeInsufficientFunds  = 3001
	CodeInvalidAmount      = 3002
	CodeChecksumMismatch   = 3003
	CodeInternalError      = 5001
)

// cash renders a decimal balance as the plain JSON number providers expect.
func cash(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func failMap(currency string, code int, desc string) fiber.Map {
	return fiber.Map{
		"transactionId": "",
		"currency":      currency,
		"cash":          0.0,
		"bonus":         0.0,
		"error":         code,
		"description":   desc,
	}
}

// send is the single exit point for wallet responses; it also feeds the
// per-endpoint result counter. Providers expect HTTP 200 on every outcome.
func (h *Handler) send(c *fiber.Ctx, endpoint string, body fiber.Map) error {
	code, _ := body["error"].(int)
	metrics.WalletOps.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	if code != CodeOK {
		h.log.WithFields(logrus.Fields{
			"endpoint":    endpoint,
			"code":        code,
			"description": body["description"],
		}).Warn("wallet request rejected")
	}
	return c.Status(fiber.StatusOK).JSON(body)
}
