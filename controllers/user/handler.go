// Package user implements the agent-scoped user API: registration with
// referral funding and balance checks.
package user

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"nexus/config"
)

type Handler struct {
	db  *gorm.DB
	cfg *config.Config
	log *logrus.Logger
}

func New(db *gorm.DB, cfg *config.Config, log *logrus.Logger) *Handler {
	return &Handler{db: db, cfg: cfg, log: log}
}
