// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Backend selector values.
const (
	BackendPostgres = "postgres"
	BackendSheet    = "sheet"
)

// Config holds all service settings.
type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	Backend string `env:"STORAGE_BACKEND" envDefault:"postgres"`

	DB DBConfig

	// WorkbookPath is the xlsx file used by the sheet backend.
	WorkbookPath string `env:"WORKBOOK_PATH" envDefault:"data/portfolio.xlsx"`
	ImagesDir    string `env:"IMAGES_DIR" envDefault:"images"`

	JWTSecret     string `env:"JWT_SECRET,required"`
	TokenTTLHours int    `env:"TOKEN_TTL_HOURS" envDefault:"12"`
	AdminHash     string `env:"ADMIN_PASSWORD_HASH,required"`
	LibraryHash   string `env:"LIBRARY_PASSWORD_HASH,required"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME" envDefault:"training_portfolio"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// DSN builds a libpq-compatible connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Load reads .env when present, then parses the environment.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Backend != BackendPostgres && cfg.Backend != BackendSheet {
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Backend)
	}
	return &cfg, nil
}
