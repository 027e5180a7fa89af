package user

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"nexus/helpers"
	"nexus/ledger"
	"nexus/models"
)

type RegisterRequest struct {
	UserCode string          `json:"user_code"`
	Password string          `json:"password"`
	Country  string          `json:"country"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

var allowedCountryCurrencies = map[string][]string{
	"ID": {"IDR", "USD"},
	"MY": {"MYR", "USD"},
	"TH": {"THB", "USD"},
	"VN": {"VND", "USD"},
	"KH": {"KHR", "USD"},
	"US": {"USD"},
}

var errUserExists = errors.New("user: code already exists")

// Register creates a user under the logged-in agent, funded atomically from
// that agent. An agent-role referral pays the starting balance; an admin
// referral funds for free; the referral's downline balance grows either way.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	if req.UserCode == "" || req.Password == "" {
		return helpers.JSONError(c, "USER_CODE_AND_PASSWORD_REQUIRED")
	}
	if req.Balance.IsNegative() {
		return helpers.JSONError(c, "INVALID_STARTING_BALANCE")
	}

	agent, ok := c.Locals("agent").(models.Agent)
	if !ok {
		return helpers.JSONError(c, "INVALID_AGENT_SESSION")
	}

	countryKey := strings.ToUpper(strings.TrimSpace(req.Country))
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))

	allowed, ok := allowedCountryCurrencies[countryKey]
	if !ok {
		return helpers.JSONError(c, "UNSUPPORTED_COUNTRY")
	}
	valid := false
	for _, ccy := range allowed {
		if ccy == currency {
			valid = true
			break
		}
	}
	if !valid {
		return helpers.JSONError(c, "INVALID_CURRENCY_FOR_COUNTRY")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return helpers.JSONError(c, "FAILED_TO_REGISTER_USER")
	}

	finalUserCode := strings.ToLower(agent.AgentCode) + "_" + strings.ToLower(req.UserCode)

	var created models.User
	txErr := ledger.Atomic(h.db, func(tx *gorm.DB) error {
		var existing models.User
		if err := tx.Where("user_code = ?", finalUserCode).First(&existing).Error; err == nil {
			return errUserExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		parent, err := ledger.LockAgent(tx, agent.AgentCode)
		if err != nil {
			return err
		}

		start := ledger.Round(req.Balance)
		if !parent.IsAdmin() && start.IsPositive() {
			if _, err := ledger.DebitAgent(tx, parent, start); err != nil {
				return err
			}
		}
		if err := ledger.CreditDownline(tx, parent, start); err != nil {
			return err
		}

		created = models.User{
			UserCode:     finalUserCode,
			AgentCode:    parent.AgentCode,
			PasswordHash: string(hash),
			Balance:      start,
			Country:      countryKey,
			Currency:     currency,
			IsActive:     true,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}

		trx := models.TransferTransaction{
			SenderCode:    parent.AgentCode,
			UserCode:      created.UserCode,
			Amount:        start,
			BeforeAmount:  decimal.Zero,
			DepositAmount: start,
			TrxType:       models.TrxDeposit,
			Currency:      currency,
			Note:          "Initial funding on registration",
			RefID:         uuid.New().String(),
			IPAddress:     c.IP(),
		}
		return tx.Create(&trx).Error
	})
	switch {
	case errors.Is(txErr, errUserExists):
		return helpers.JSONError(c, "USER_ALREADY_EXISTS")
	case errors.Is(txErr, ledger.ErrInsufficientFunds):
		return helpers.JSONError(c, "INSUFFICIENT_REFERRAL_BALANCE")
	case txErr != nil:
		h.log.WithError(txErr).Error("user registration failed")
		return helpers.JSONError(c, "FAILED_TO_REGISTER_USER")
	}

	return helpers.JSONSuccess(c, "User registered successfully", fiber.Map{
		"user_code":  created.UserCode,
		"agent_code": created.AgentCode,
		"country":    created.Country,
		"currency":   created.Currency,
		"balance":    created.Balance,
	})
}
