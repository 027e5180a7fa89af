package agent

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"nexus/helpers"
	"nexus/models"
)

type LoginRequest struct {
	AgentCode string `json:"agent_code"`
	Password  string `json:"password"`
}

// Login checks the agent credential and issues a bearer token for the
// internal API.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	if req.AgentCode == "" || req.Password == "" {
		return helpers.JSONError(c, "AGENT_CODE_AND_PASSWORD_REQUIRED")
	}

	var agent models.Agent
	if err := h.db.Where("agent_code = ? AND is_active = true", req.AgentCode).
		First(&agent).Error; err != nil {
		return helpers.JSONError(c, "INVALID_AGENT_CREDENTIALS")
	}
	if bcrypt.CompareHashAndPassword([]byte(agent.PasswordHash), []byte(req.Password)) != nil {
		return helpers.JSONError(c, "INVALID_AGENT_CREDENTIALS")
	}

	claims := jwt.MapClaims{
		"sub":  agent.AgentCode,
		"role": agent.Role,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(h.cfg.JWTSecret))
	if err != nil {
		return helpers.JSONError(c, "FAILED_TO_ISSUE_TOKEN")
	}

	return helpers.JSONSuccess(c, "Login successful", fiber.Map{
		"agent_code": agent.AgentCode,
		"role":       agent.Role,
		"token":      token,
	})
}
