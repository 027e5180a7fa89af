package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"nexus/config"
	"nexus/database"
	"nexus/metrics"
	"nexus/routes"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	db, err := database.Connect(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	app := fiber.New()
	routes.Setup(app, db, cfg, log)
	metrics.Serve(cfg.MetricsAddr, log)

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	log.WithField("addr", addr).Info("server running")

	go func() {
		if err := app.Listen(addr); err != nil {
			log.WithError(err).Panic("failed to start server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Info("gracefully shutting down")
	if err := app.Shutdown(); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}
	log.Info("server exited cleanly")
}
