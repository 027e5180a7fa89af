// Package wallet implements the seamless-wallet callback surface the game
// provider calls to settle bets against player balances. Every mutating
// endpoint is idempotent on the caller-supplied reference and runs inside a
// single locked database transaction.
package wallet

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"nexus/config"
	"nexus/helpers"
	"nexus/models"
)

// errRolledBack marks a business failure discovered after the transaction
// opened: the unit of work must roll back, but the handler already has a
// response prepared.
var errRolledBack = errors.New("wallet: rolled back")

type Handler struct {
	db  *gorm.DB
	cfg *config.Config
	log *logrus.Logger
}

func New(db *gorm.DB, cfg *config.Config, log *logrus.Logger) *Handler {
	return &Handler{db: db, cfg: cfg, log: log}
}

// form validates the callback envelope shared by every endpoint: content
// type, required fields, provider id and request hash. It returns the full
// parameter map so the hash covers optional fields too.
func (h *Handler) form(c *fiber.Ctx, required ...string) (map[string]string, int, string) {
	ct := strings.ToLower(c.Get("Content-Type"))
	if ct != "" && !strings.Contains(ct, "application/x-www-form-urlencoded") {
		return nil, CodeInvalidContentType, "Invalid content type"
	}

	params := make(map[string]string)
	c.Request().PostArgs().VisitAll(func(k, v []byte) {
		params[string(k)] = string(v)
	})

	for _, k := range required {
		if params[k] == "" {
			return nil, CodeMissingParameters, "Missing required parameters"
		}
	}
	if params["providerId"] != h.cfg.ProviderID {
		return nil, CodeInvalidProvider, "Invalid providerId"
	}
	if !helpers.VerifyProviderHash(params, h.cfg.ProviderSecret, params["hash"]) {
		return nil, CodeInvalidHash, "Invalid hash"
	}
	return params, CodeOK, ""
}

// parseAmount parses a monetary field strictly: malformed input is rejected
// at the boundary, never coerced to zero.
func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

func (h *Handler) findUser(userCode string) (*models.User, int, string) {
	var user models.User
	if err := h.db.Where("user_code = ?", userCode).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodeUserNotFound, "User not found"
		}
		return nil, CodeInternalError, "DB error"
	}
	if !user.IsActive {
		return nil, CodeUserInactive, "User inactive"
	}
	return &user, CodeOK, ""
}
