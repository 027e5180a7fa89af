package agent

import (
	"errors"

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
	Username string          `json:"username"`
	Password string          `json:"password"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

// Register creates a subordinate agent funded by the logged-in agent. The
// whole operation is one transaction: an agent-role referral pays the
// starting balance out of its own funds, an admin referral funds for free,
// and either way the referral's downline balance grows by the same amount.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	if req.Username == "" || req.Password == "" {
		return helpers.JSONError(c, "USERNAME_AND_PASSWORD_REQUIRED")
	}
	if req.Balance.IsNegative() {
		return helpers.JSONError(c, "INVALID_STARTING_BALANCE")
	}

	referral, ok := c.Locals("agent").(models.Agent)
	if !ok {
		return helpers.JSONError(c, "INVALID_AGENT_SESSION")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return helpers.JSONError(c, "FAILED_TO_REGISTER_AGENT")
	}

	currency := req.Currency
	if currency == "" {
		currency = referral.Currency
	}

	var created models.Agent
	txErr := ledger.Atomic(h.db, func(tx *gorm.DB) error {
		var existing models.Agent
		if err := tx.Where("username = ?", req.Username).First(&existing).Error; err == nil {
			return errAgentExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		parent, err := ledger.LockAgent(tx, referral.AgentCode)
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

		created = models.Agent{
			AgentCode:    helpers.GenerateAgentCode(),
			Username:     req.Username,
			PasswordHash: string(hash),
			SecretKey:    uuid.New().String(),
			Role:         models.RoleAgent,
			Balance:      start,
			Referral:     parent.AgentCode,
			Currency:     currency,
			IsActive:     true,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}

		trx := models.TransferTransaction{
			SenderCode:    parent.AgentCode,
			AgentCode:     created.AgentCode,
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
	case errors.Is(txErr, errAgentExists):
		return helpers.JSONError(c, "USERNAME_ALREADY_EXISTS")
	case errors.Is(txErr, ledger.ErrInsufficientFunds):
		return helpers.JSONError(c, "INSUFFICIENT_REFERRAL_BALANCE")
	case txErr != nil:
		h.log.WithError(txErr).Error("agent registration failed")
		return helpers.JSONError(c, "FAILED_TO_REGISTER_AGENT")
	}

	return helpers.JSONSuccess(c, "Agent registered successfully", fiber.Map{
		"agent_code": created.AgentCode,
		"username":   created.Username,
		"secret_key": created.SecretKey,
		"referral":   created.Referral,
		"currency":   created.Currency,
		"balance":    created.Balance,
	})
}

var errAgentExists = errors.New("agent: username already exists")
