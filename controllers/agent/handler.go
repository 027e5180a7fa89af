// Package agent implements the internal agent API: registration with
// referral funding, the hierarchical distribution engine, and account info.
package agent

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
