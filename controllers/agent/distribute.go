package agent

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"nexus/helpers"
	"nexus/ledger"
	"nexus/metrics"
	"nexus/models"
)

type DistributeRequest struct {
	UserCode  string          `json:"user_code"`
	AgentCode string          `json:"agent_code"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note"`
}

// Distribute pushes funds from the logged-in agent down to a user or a
// subordinate agent in its own downline. An admin sender is debited like
// everyone else and then immediately replenished by the same amount: the
// root of the tree is an infinite supply, never net-negative.
func (h *Handler) Distribute(c *fiber.Ctx) error {
	var req DistributeRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	if !req.Amount.IsPositive() {
		return helpers.JSONError(c, "AMOUNT_MUST_BE_POSITIVE")
	}
	if (req.UserCode == "") == (req.AgentCode == "") {
		return helpers.JSONError(c, "EXACTLY_ONE_RECIPIENT_REQUIRED")
	}

	sender, ok := c.Locals("agent").(models.Agent)
	if !ok {
		return helpers.JSONError(c, "INVALID_AGENT_SESSION")
	}
	if req.AgentCode == sender.AgentCode {
		return helpers.JSONError(c, "CANNOT_DISTRIBUTE_TO_SELF")
	}

	amount := ledger.Round(req.Amount)
	refID := uuid.New().String()
	var newBalance decimal.Decimal

	txErr := ledger.Atomic(h.db, func(tx *gorm.DB) error {
		src, err := ledger.LockAgent(tx, sender.AgentCode)
		if err != nil {
			return err
		}

		if !src.IsAdmin() && src.Balance.Sub(amount).IsNegative() {
			return ledger.ErrInsufficientFunds
		}
		before := src.Balance
		src.Balance = ledger.Round(src.Balance.Sub(amount))
		if err := tx.Model(src).Update("balance", src.Balance).Error; err != nil {
			return err
		}
		// Admin replenishment: second delta, not a skipped debit.
		if src.IsAdmin() {
			if _, err := ledger.CreditAgent(tx, src, amount); err != nil {
				return err
			}
		}

		trx := models.TransferTransaction{
			SenderCode:    src.AgentCode,
			Amount:        amount,
			BeforeAmount:  before,
			DepositAmount: amount,
			TrxType:       models.TrxDeposit,
			Currency:      src.Currency,
			Note:          req.Note,
			RefID:         refID,
			IPAddress:     c.IP(),
		}

		if req.UserCode != "" {
			user, err := ledger.LockAgentUser(tx, req.UserCode, src.AgentCode)
			if err != nil {
				return err
			}
			if _, err := ledger.CreditUser(tx, user, amount); err != nil {
				return err
			}
			newBalance = user.Balance
			trx.UserCode = user.UserCode
		} else {
			dst, err := ledger.LockDownline(tx, req.AgentCode, src.AgentCode)
			if err != nil {
				return err
			}
			if _, err := ledger.CreditAgent(tx, dst, amount); err != nil {
				return err
			}
			newBalance = dst.Balance
			trx.AgentCode = dst.AgentCode
		}
		return tx.Create(&trx).Error
	})
	switch {
	case errors.Is(txErr, ledger.ErrInsufficientFunds):
		metrics.Transfers.WithLabelValues("distribute", "insufficient_funds").Inc()
		return helpers.JSONError(c, "INSUFFICIENT_AGENT_BALANCE")
	case errors.Is(txErr, ledger.ErrNotFound):
		metrics.Transfers.WithLabelValues("distribute", "not_found").Inc()
		return helpers.JSONError(c, "RECIPIENT_NOT_FOUND")
	case txErr != nil:
		metrics.Transfers.WithLabelValues("distribute", "error").Inc()
		h.log.WithError(txErr).Error("distribute failed")
		return helpers.JSONError(c, "FAILED_TO_DISTRIBUTE")
	}

	metrics.Transfers.WithLabelValues("distribute", "ok").Inc()
	return helpers.JSONSuccess(c, "Distribution successful", fiber.Map{
		"ref_id":            refID,
		"recipient_balance": newBalance,
	})
}
