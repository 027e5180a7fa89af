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

type WithdrawRequest struct {
	UserCode  string          `json:"user_code"`
	AgentCode string          `json:"agent_code"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note"`
}

// Withdraw pulls funds back up the line: the named user or subordinate
// agent is debited and the logged-in agent is credited. The source must
// belong to the caller's own downline and cover the amount; no admin
// replenishment applies here.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req WithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	if !req.Amount.IsPositive() {
		return helpers.JSONError(c, "AMOUNT_MUST_BE_POSITIVE")
	}
	if (req.UserCode == "") == (req.AgentCode == "") {
		return helpers.JSONError(c, "EXACTLY_ONE_SOURCE_REQUIRED")
	}

	sender, ok := c.Locals("agent").(models.Agent)
	if !ok {
		return helpers.JSONError(c, "INVALID_AGENT_SESSION")
	}
	if req.AgentCode == sender.AgentCode {
		return helpers.JSONError(c, "CANNOT_WITHDRAW_FROM_SELF")
	}

	amount := ledger.Round(req.Amount)
	refID := uuid.New().String()
	var agentBalance decimal.Decimal

	txErr := ledger.Atomic(h.db, func(tx *gorm.DB) error {
		dst, err := ledger.LockAgent(tx, sender.AgentCode)
		if err != nil {
			return err
		}

		trx := models.TransferTransaction{
			SenderCode:     dst.AgentCode,
			Amount:         amount,
			WithdrawAmount: amount,
			TrxType:        models.TrxWithdraw,
			Currency:       dst.Currency,
			Note:           req.Note,
			RefID:          refID,
			IPAddress:      c.IP(),
		}

		if req.UserCode != "" {
			user, err := ledger.LockAgentUser(tx, req.UserCode, dst.AgentCode)
			if err != nil {
				return err
			}
			before, err := ledger.DebitUser(tx, user, amount)
			if err != nil {
				return err
			}
			trx.UserCode = user.UserCode
			trx.BeforeAmount = before
		} else {
			src, err := ledger.LockDownline(tx, req.AgentCode, dst.AgentCode)
			if err != nil {
				return err
			}
			before, err := ledger.DebitAgent(tx, src, amount)
			if err != nil {
				return err
			}
			trx.AgentCode = src.AgentCode
			trx.BeforeAmount = before
		}

		if _, err := ledger.CreditAgent(tx, dst, amount); err != nil {
			return err
		}
		agentBalance = dst.Balance
		return tx.Create(&trx).Error
	})
	switch {
	case errors.Is(txErr, ledger.ErrInsufficientFunds):
		metrics.Transfers.WithLabelValues("withdraw", "insufficient_funds").Inc()
		return helpers.JSONError(c, "INSUFFICIENT_SOURCE_BALANCE")
	case errors.Is(txErr, ledger.ErrNotFound):
		metrics.Transfers.WithLabelValues("withdraw", "not_found").Inc()
		return helpers.JSONError(c, "SOURCE_NOT_FOUND")
	case txErr != nil:
		metrics.Transfers.WithLabelValues("withdraw", "error").Inc()
		h.log.WithError(txErr).Error("withdraw failed")
		return helpers.JSONError(c, "FAILED_TO_WITHDRAW")
	}

	metrics.Transfers.WithLabelValues("withdraw", "ok").Inc()
	return helpers.JSONSuccess(c, "Withdrawal successful", fiber.Map{
		"ref_id":        refID,
		"agent_balance": agentBalance,
	})
}
