package database

import (
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"nexus/config"
	"nexus/models"
)

// Connect opens the Postgres connection described by cfg and optionally
// migrates the schema. The handle is returned, not stored in a package
// global, so callers decide where it flows.
func Connect(cfg *config.Config, log *logrus.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	log.WithField("db", cfg.DBName).Info("connected to database")

	if cfg.DBMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
		log.Info("auto migration completed")
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Agent{},
		&models.User{},
		&models.TransferTransaction{},
		&models.GameTransaction{},
		&models.WalletTransaction{},
		&models.Adjustment{},
	)
}
