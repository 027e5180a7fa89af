package agent

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"nexus/helpers"
	"nexus/models"
)

// Info reports the agent's own balance, its downline shadow balance and the
// aggregate balance of its direct users.
func (h *Handler) Info(c *fiber.Ctx) error {
	agent, ok := c.Locals("agent").(models.Agent)
	if !ok {
		return helpers.JSONError(c, "INVALID_AGENT_SESSION")
	}

	var totalUserBalance decimal.Decimal
	if err := h.db.Model(&models.User{}).
		Where("agent_code = ?", agent.AgentCode).
		Select("COALESCE(SUM(balance), 0)").
		Scan(&totalUserBalance).Error; err != nil {
		return helpers.JSONError(c, "FAILED_TO_FETCH_USER_BALANCE")
	}

	return helpers.JSONSuccess(c, "Agent info retrieved successfully", fiber.Map{
		"username":           agent.Username,
		"agent_code":         agent.AgentCode,
		"role":               agent.Role,
		"balance":            agent.Balance,
		"dbalance":           agent.DBalance,
		"total_user_balance": totalUserBalance,
		"currency":           agent.Currency,
	})
}
