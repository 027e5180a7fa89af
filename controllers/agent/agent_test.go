package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nexus/config"
	"nexus/middlewares"
	"nexus/models"
)

func newTestHandler(t *testing.T) (*Handler, *gorm.DB, *config.Config) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Agent{}, &models.User{},
		&models.TransferTransaction{}, &models.GameTransaction{},
		&models.WalletTransaction{}, &models.Adjustment{},
	))

	cfg := &config.Config{
		ProviderID:     "pragmaticplay",
		ProviderSecret: "s3cret",
		JWTSecret:      "jwt-test-secret",
	}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return New(db, cfg, log), db, cfg
}

func seedAgent(t *testing.T, db *gorm.DB, code, role, balance string) *models.Agent {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	agent := &models.Agent{
		AgentCode:    code,
		Username:     "agent-" + code,
		PasswordHash: string(hash),
		Role:         role,
		Balance:      decimal.RequireFromString(balance),
		Currency:     "USD",
		IsActive:     true,
	}
	require.NoError(t, db.Create(agent).Error)
	return agent
}

func seedDownline(t *testing.T, db *gorm.DB, code, referral, balance string) *models.Agent {
	t.Helper()
	agent := seedAgent(t, db, code, models.RoleAgent, balance)
	require.NoError(t, db.Model(agent).Update("referral", referral).Error)
	agent.Referral = referral
	return agent
}

func seedUser(t *testing.T, db *gorm.DB, code, agentCode, balance string) *models.User {
	t.Helper()
	user := &models.User{
		UserCode:  code,
		AgentCode: agentCode,
		Balance:   decimal.RequireFromString(balance),
		Currency:  "USD",
		IsActive:  true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// asAgent mounts a handler behind a stub that injects the acting agent, the
// way the auth middleware does in production.
func asAgent(db *gorm.DB, agentCode string, handler fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		var agent models.Agent
		if err := db.Where("agent_code = ?", agentCode).First(&agent).Error; err != nil {
			return err
		}
		c.Locals("agent", agent)
		return handler(c)
	})
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) (int, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	return res.StatusCode, decoded
}

func agentBalance(t *testing.T, db *gorm.DB, code string) *models.Agent {
	t.Helper()
	var agent models.Agent
	require.NoError(t, db.Where("agent_code = ?", code).First(&agent).Error)
	return &agent
}

func TestDistributeConservesFunds(t *testing.T) {
	h, db, _ := newTestHandler(t)
	seedAgent(t, db, "a1", models.RoleAgent, "1000")
	seedUser(t, db, "u1", "a1", "0")

	app := asAgent(db, "a1", h.Distribute)
	status, _ := postJSON(t, app, "/", map[string]any{
		"user_code": "u1",
		"amount":    "400",
	})
	require.Equal(t, http.StatusOK, status)

	sender := agentBalance(t, db, "a1")
	assert.True(t, sender.Balance.Equal(decimal.RequireFromString("600")))

	var user models.User
	require.NoError(t, db.Where("user_code = ?", "u1").First(&user).Error)
	assert.True(t, user.Balance.Equal(decimal.RequireFromString("400")))

	var trx models.TransferTransaction
	require.NoError(t, db.Where("user_code = ?", "u1").First(&trx).Error)
	assert.Equal(t, models.TrxDeposit, trx.TrxType)
	assert.True(t, trx.Amount.Equal(decimal.RequireFromString("400")))
}

func TestDistributeAdminReplenishment(t *testing.T) {
	h, db, _ := newTestHandler(t)
	seedAgent(t, db, "root", models.RoleAdmin, "100")
	seedUser(t, db, "u1", "root", "0")

	app := asAgent(db, "root", h.Distribute)
	status, _ := postJSON(t, app, "/", map[string]any{
		"user_code": "u1",
		"amount":    "5000",
	})
	require.Equal(t, http.StatusOK, status)

	// Admin is debited then immediately re-credited: unchanged on disk.
	admin := agentBalance(t, db, "root")
	assert.True(t, admin.Balance.Equal(decimal.RequireFromString("100")))

	var user models.User
	require.NoError(t, db.Where("user_code = ?", "u1").First(&user).Error)
	assert.True(t, user.Balance.Equal(decimal.RequireFromString("5000")))
}

func TestDistributeInsufficientFunds(t *testing.T) {
	h, db, _ := newTestHandler(t)
	seedAgent(t, db, "a1", models.RoleAgent, "10")
	seedUser(t, db, "u1", "a1", "0")

	app := asAgent(db, "a1", h.Distribute)
	status, body := postJSON(t, app, "/", map[string]any{
		"user_code": "u1",
		"amount":    "11",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INSUFFICIENT_AGENT_BALANCE", body["message"])

	assert.True(t, agentBalance(t, db, "a1").Balance.Equal(decimal.RequireFromString("10")))
}

func TestDistributeAgentToAgent(t *testing.T) {
	h, db, _ := newTestHandler(t)
	seedAgent(t, db, "a1", models.RoleAgent, "300")
	seedDownline(t, db, "a2", "a1", "0")

	app := asAgent(db, "a1", h.Distribute)
	status, _ := postJSON(t, app, "/", map[string]any{
		"agent_code": "a2",
		"amount":     "120.55",
	})
	require.Equal(t, http.StatusOK, status)

	assert.True(t, agentBalance(t, db, "a1").Balance.Equal(decimal.RequireFromString("179.45")))
	assert.True(t, agentBalance(t, db, "a2").Balance.Equal(decimal.RequireFromString("120.55")))
}

func TestDistributeRejectsRecipientsOutsideDownline(t *testing.T) {
	h, db, _ := newTestHandler(t)
	seedAgent(t, db, "a1", models.RoleAgent, "300")
	seedAgent(t, db, "a2", models.RoleAgent, "300")
	seedUser(t, db, "u1", "a1", "0")
	seedDownline(t, db, "a3", "a1", "0")

	app := asAgent(db, "a2", h.Distribute)

	// a2 owns neither u1 nor a3.
	status, body := postJSON(t, app, "/", map[string]any{
		"user_code": "u1",
		"amount":    "100",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "RECIPIENT_NOT_FOUND", body["message"])

	status, body = postJSON(t, app, "/", map[string]any{
		"agent_code": "a3",
		"amount":     "100",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "RECIPIENT_NOT_FOUND", body["message"])

	var user models.User
	require.NoError(t, db.Where("user_code = ?", "u1").First(&user).Error)
	assert.True(t, user.Balance.IsZero())
	assert.True(t, agentBalance(t, db, "a2").Balance.Equal(decimal.RequireFromString("300")))
	assert.True(t, agentBalance(t, db, "a3").Balance.IsZero())
}

func TestDistributeToSelfRejected(t *testing.T) {
	h, db, _ := newTestHandler(t)
	seedAgent(t, db, "a1", models.RoleAgent, "100")

	app := asAgent(db, "a1", h.Distribute)
	status, body := postJSON(t, app, "/", map[string]any{
		"agent_code": "a1",
		"amount":     "50",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "CANNOT_DISTRIBUTE_TO_SELF", body["message"])
	assert.True(t, agentBalance(t, db, "a1").Balance.Equal(decimal.RequireFromString("100")))
}

func TestWithdrawFromUser(t *testing.T) {
	h, db, _ := newTestHandler(t)
	seedAgent(t, db, "a1", models.RoleAgent, "0")
	seedUser(t, db, "u1", "a1", "80")

	app := asAgent(db, "a1", h.Withdraw)
	status, _ := postJSON(t, app, "/", map[string]any{
		"user_code": "u1",
		"amount":    "50",
	})
	require.Equal(t, http.StatusOK, status)

	var user models.User
	require.NoError(t, db.Where("user_code = ?", "u1").First(&user).Error)
	assert.True(t, user.Balance.Equal(decimal.RequireFromString("30")))
	assert.True(t, agentBalance(t, db, "a1").Balance.Equal(decimal.RequireFromString("50")))
}

func TestWithdrawFromDownlineAgent(t *testing.T) {
	h, db, _ := newTestHandler(t)
	seedAgent(t, db, "a1", models.RoleAgent, "0")
	seedDownline(t, db, "a2", "a1", "80")

	app := asAgent(db, "a1", h.Withdraw)
	status, _ := postJSON(t, app, "/", map[string]any{
		"agent_code": "a2",
		"amount":     "50",
	})
	require.Equal(t, http.StatusOK, status)

	assert.True(t, agentBalance(t, db, "a2").Balance.Equal(decimal.RequireFromString("30")))
	assert.True(t, agentBalance(t, db, "a1").Balance.Equal(decimal.RequireFromString("50")))

	var trx models.TransferTransaction
	require.NoError(t, db.Where("agent_code = ?", "a2").First(&trx).Error)
	assert.Equal(t, models.TrxWithdraw, trx.TrxType)
}

func TestWithdrawRejectsSourcesOutsideDownline(t *testing.T) {
	h, db, _ := newTestHandler(t)
	seedAgent(t, db, "a1", models.RoleAgent, "0")
	seedAgent(t, db, "a2", models.RoleAgent, "0")
	seedUser(t, db, "u1", "a1", "100")
	seedDownline(t, db, "a3", "a1", "100")

	// a2 owns neither u1 nor a3; both pulls must fail with nothing moved.
	app := asAgent(db, "a2", h.Withdraw)
	status, body := postJSON(t, app, "/", map[string]any{
		"user_code": "u1",
		"amount":    "100",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "SOURCE_NOT_FOUND", body["message"])

	status, body = postJSON(t, app, "/", map[string]any{
		"agent_code": "a3",
		"amount":     "100",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "SOURCE_NOT_FOUND", body["message"])

	var user models.User
	require.NoError(t, db.Where("user_code = ?", "u1").First(&user).Error)
	assert.True(t, user.Balance.Equal(decimal.RequireFromString("100")))
	assert.True(t, agentBalance(t, db, "a3").Balance.Equal(decimal.RequireFromString("100")))
	assert.True(t, agentBalance(t, db, "a2").Balance.IsZero())
}

func TestWithdrawFromSelfRejected(t *testing.T) {
	h, db, _ := newTestHandler(t)
	seedAgent(t, db, "a1", models.RoleAgent, "100")

	app := asAgent(db, "a1", h.Withdraw)
	status, body := postJSON(t, app, "/", map[string]any{
		"agent_code": "a1",
		"amount":     "50",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "CANNOT_WITHDRAW_FROM_SELF", body["message"])

	// Funds must not grow: the two writes would otherwise alias one row.
	assert.True(t, agentBalance(t, db, "a1").Balance.Equal(decimal.RequireFromString("100")))

	var count int64
	require.NoError(t, db.Model(&models.TransferTransaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestWithdrawInsufficientUserBalance(t *testing.T) {
	h, db, _ := newTestHandler(t)
	seedAgent(t, db, "a1", models.RoleAgent, "0")
	seedUser(t, db, "u1", "a1", "30")

	app := asAgent(db, "a1", h.Withdraw)
	status, body := postJSON(t, app, "/", map[string]any{
		"user_code": "u1",
		"amount":    "50",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INSUFFICIENT_SOURCE_BALANCE", body["message"])

	// Both sides untouched.
	var user models.User
	require.NoError(t, db.Where("user_code = ?", "u1").First(&user).Error)
	assert.True(t, user.Balance.Equal(decimal.RequireFromString("30")))
	assert.True(t, agentBalance(t, db, "a1").Balance.IsZero())
}

func TestRegisterDebitsAgentReferral(t *testing.T) {
	h, db, _ := newTestHandler(t)
	seedAgent(t, db, "a1", models.RoleAgent, "500")

	app := asAgent(db, "a1", h.Register)
	status, body := postJSON(t, app, "/", map[string]any{
		"username": "downline1",
		"password": "secret123",
		"balance":  "200",
	})
	require.Equal(t, http.StatusOK, status)

	parent := agentBalance(t, db, "a1")
	assert.True(t, parent.Balance.Equal(decimal.RequireFromString("300")))
	assert.True(t, parent.DBalance.Equal(decimal.RequireFromString("200")))

	data := body["data"].(map[string]any)
	var created models.Agent
	require.NoError(t, db.Where("agent_code = ?", data["agent_code"]).First(&created).Error)
	assert.Equal(t, "a1", created.Referral)
	assert.True(t, created.Balance.Equal(decimal.RequireFromString("200")))

	var trx models.TransferTransaction
	require.NoError(t, db.Where("agent_code = ?", created.AgentCode).First(&trx).Error)
	assert.Equal(t, models.TrxDeposit, trx.TrxType)
}

func TestRegisterAdminReferralSkipsDebit(t *testing.T) {
	h, db, _ := newTestHandler(t)
	seedAgent(t, db, "root", models.RoleAdmin, "0")

	app := asAgent(db, "root", h.Register)
	status, _ := postJSON(t, app, "/", map[string]any{
		"username": "downline1",
		"password": "secret123",
		"balance":  "9000",
	})
	require.Equal(t, http.StatusOK, status)

	// Admin funds for free but the downline balance still tracks it.
	admin := agentBalance(t, db, "root")
	assert.True(t, admin.Balance.IsZero())
	assert.True(t, admin.DBalance.Equal(decimal.RequireFromString("9000")))
}

func TestRegisterInsufficientReferralBalanceAborts(t *testing.T) {
	h, db, _ := newTestHandler(t)
	seedAgent(t, db, "a1", models.RoleAgent, "100")

	app := asAgent(db, "a1", h.Register)
	status, body := postJSON(t, app, "/", map[string]any{
		"username": "downline1",
		"password": "secret123",
		"balance":  "200",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INSUFFICIENT_REFERRAL_BALANCE", body["message"])

	// The whole registration rolled back: no account, no dbalance.
	parent := agentBalance(t, db, "a1")
	assert.True(t, parent.Balance.Equal(decimal.RequireFromString("100")))
	assert.True(t, parent.DBalance.IsZero())

	var count int64
	require.NoError(t, db.Model(&models.Agent{}).
		Where("username = ?", "downline1").Count(&count).Error)
	assert.Zero(t, count)
}

func TestLoginAndBearerAuth(t *testing.T) {
	h, db, cfg := newTestHandler(t)
	seedAgent(t, db, "a1", models.RoleAgent, "42")

	app := fiber.New()
	app.Post("/agent/login", h.Login)
	protected := app.Group("/agent", middlewares.AgentAuth(db, cfg))
	protected.Get("/info", h.Info)

	status, body := postJSON(t, app, "/agent/login", map[string]any{
		"agent_code": "a1",
		"password":   "password",
	})
	require.Equal(t, http.StatusOK, status)
	token := body["data"].(map[string]any)["token"].(string)
	require.NotEmpty(t, token)

	req := httptest.NewRequest(http.MethodGet, "/agent/info", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	// Bad token is rejected.
	req = httptest.NewRequest(http.MethodGet, "/agent/info", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	res, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	// Wrong password never issues a token.
	status, body = postJSON(t, app, "/agent/login", map[string]any{
		"agent_code": "a1",
		"password":   "wrong",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_AGENT_CREDENTIALS", body["message"])
}
