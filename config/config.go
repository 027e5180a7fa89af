package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config carries everything the handlers need so nothing reads the
// environment at call time. Loaded once in main and injected down.
type Config struct {
	Host        string
	Port        string
	MetricsAddr string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBMigrate  bool

	// Seamless provider contract.
	ProviderID     string
	ProviderSecret string

	JWTSecret string
}

func Load() (*Config, error) {
	// Missing .env is fine in container deployments, env comes from the runtime.
	_ = godotenv.Load()

	cfg := &Config{
		Host:        getenv("HOST", "127.0.0.1"),
		Port:        getenv("PORT", "3000"),
		MetricsAddr: getenv("METRICS_ADDR", ""),

		DBHost:     getenv("DB_HOST", "127.0.0.1"),
		DBPort:     getenv("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  getenv("DB_SSLMODE", "disable"),
		DBMigrate:  os.Getenv("DB_AUTO_MIGRATE") == "true",

		ProviderID:     getenv("PROVIDER_ID", "pragmaticplay"),
		ProviderSecret: os.Getenv("PROVIDER_SECRET"),

		JWTSecret: os.Getenv("JWT_SECRET"),
	}

	if cfg.ProviderSecret == "" {
		return nil, fmt.Errorf("config: PROVIDER_SECRET is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET is required")
	}
	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
