package middlewares

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"nexus/config"
	"nexus/helpers"
	"nexus/models"
)

// AgentAuth validates the bearer token issued at login and loads the agent
// into the request context.
func AgentAuth(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			return helpers.JSONError(c, "BEARER_TOKEN_REQUIRED")
		}

		token, err := jwt.Parse(strings.TrimPrefix(auth, "Bearer "),
			func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(cfg.JWTSecret), nil
			})
		if err != nil || !token.Valid {
			return helpers.JSONError(c, "INVALID_TOKEN")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return helpers.JSONError(c, "INVALID_TOKEN")
		}
		agentCode, _ := claims["sub"].(string)

		var agent models.Agent
		if err := db.Where("agent_code = ? AND is_active = true", agentCode).
			First(&agent).Error; err != nil {
			return helpers.JSONError(c, "INVALID_AGENT_CREDENTIALS")
		}

		c.Locals("agent", agent)
		return c.Next()
	}
}
