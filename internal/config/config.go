package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// Хранилища расписания
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Environment   string        `env:"ENV" envDefault:"development"`
	LogLevel      string        `env:"LOG_LEVEL"`
	HTTPAddr      string        `env:"HTTP_ADDR" envDefault:":8080"`
	Storage       string        `env:"STORAGE" envDefault:"postgres"`
	DBDSN         string        `env:"DB_DSN"`
	MigrationsDir string        `env:"MIGRATIONS_DIR"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	TelegramToken string        `env:"TELEGRAM_TOKEN"`
	MaxSlot       int           `env:"TIMETABLE_MAX_SLOT" envDefault:"14"`
	AuditInterval time.Duration `env:"AUDIT_INTERVAL" envDefault:"6h"`
}

func Load() (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Config loaded (env=%s, storage=%s)\n", cfg.Environment, cfg.Storage)

	return &cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required for %s storage", StoragePostgres)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}

	if c.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
	}

	if c.MaxSlot < 0 {
		return fmt.Errorf("TIMETABLE_MAX_SLOT must not be negative")
	}
	return nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}
