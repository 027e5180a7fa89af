package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"nexus/config"
	"nexus/controllers/agent"
	"nexus/controllers/user"
	"nexus/controllers/wallet"
	"nexus/middlewares"
)

func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config, log *logrus.Logger) {
	agentHandler := agent.New(db, cfg, log)
	userHandler := user.New(db, cfg, log)
	walletHandler := wallet.New(db, cfg, log)

	app.Post("/agent/login", agentHandler.Login)

	agentroutes := app.Group("/agent", middlewares.AgentAuth(db, cfg))
	agentroutes.Post("/register", agentHandler.Register)
	agentroutes.Post("/distribute", agentHandler.Distribute)
	agentroutes.Post("/withdraw", agentHandler.Withdraw)
	agentroutes.Get("/info", agentHandler.Info)

	userroutes := app.Group("/user", middlewares.AgentAuth(db, cfg))
	userroutes.Post("/register", userHandler.Register)
	userroutes.Post("/balance", userHandler.CheckBalance)

	// Seamless provider callbacks. Hash verification happens inside the
	// handlers because the digest covers the full parameter set.
	seamless := app.Group("/seamless/wallet")
	seamless.Post("/authenticate", walletHandler.Authenticate)
	seamless.Post("/balance", walletHandler.Balance)
	seamless.Post("/bet", walletHandler.Bet)
	seamless.Post("/result", walletHandler.Result)
	seamless.Post("/refund", walletHandler.Refund)
	seamless.Post("/rollback", walletHandler.Rollback)
	seamless.Post("/bonuswin", walletHandler.BonusWin)
	seamless.Post("/jackpotwin", walletHandler.JackpotWin)
	seamless.Post("/promowin", walletHandler.PromoWin)
	seamless.Post("/adjustment", walletHandler.Adjustment)
	seamless.Post("/endround", walletHandler.EndRound)
}
