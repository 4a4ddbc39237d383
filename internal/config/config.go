// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port      string `env:"VECTOR_PORT" envDefault:"8080"`
	DBPath    string `env:"VECTOR_DB_PATH" envDefault:"vector.db"`
	BaseURL   string `env:"VECTOR_BASE_URL" envDefault:"http://localhost:8080"`
	LogLevel  string `env:"VECTOR_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"VECTOR_LOG_FORMAT" envDefault:"text"`

	Billing BillingConfig
	Quota   QuotaConfig
	Backup  BackupConfig
}

// BillingConfig configures the payment processor client and webhook
// verification. Production selects the live API host; everything else runs
// against the sandbox.
type BillingConfig struct {
	ClientID      string `env:"CASHFREE_APP_ID"`
	ClientSecret  string `env:"CASHFREE_SECRET_KEY"`
	APIVersion    string `env:"CASHFREE_API_VERSION" envDefault:"2025-01-01"`
	Production    bool   `env:"CASHFREE_PRODUCTION" envDefault:"false"`
	WebhookSecret string `env:"CASHFREE_WEBHOOK_SECRET"`
	// WebhookSchema selects the event payload field layout; must match the
	// API version the webhooks are configured for.
	WebhookSchema string `env:"CASHFREE_WEBHOOK_SCHEMA" envDefault:"2025-01-01"`
}

type QuotaConfig struct {
	FreePerDay int `env:"VECTOR_FREE_REQUESTS_PER_DAY" envDefault:"5"`
	ProPerDay  int `env:"VECTOR_PRO_REQUESTS_PER_DAY" envDefault:"100"`
}

// BackupConfig configures the nightly encrypted database backup. Backups are
// disabled unless bucket, credentials, and passphrase are all present.
type BackupConfig struct {
	S3Endpoint string `env:"VECTOR_BACKUP_S3_ENDPOINT"`
	S3Bucket   string `env:"VECTOR_BACKUP_S3_BUCKET"`
	S3Region   string `env:"VECTOR_BACKUP_S3_REGION" envDefault:"auto"`
	AccessKey  string `env:"VECTOR_BACKUP_ACCESS_KEY"`
	SecretKey  string `env:"VECTOR_BACKUP_SECRET_KEY"`
	Passphrase string `env:"VECTOR_BACKUP_PASSPHRASE"`
	Hour       int    `env:"VECTOR_BACKUP_HOUR" envDefault:"3"`
}

// Load reads the environment into a Config. A missing .env file is fine.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}
