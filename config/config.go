package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting the service reads from the environment.
type Config struct {
	Port                string `env:"PORT" envDefault:"5200"`
	DatabaseURL         string `env:"DATABASE_URL"`
	JWTSecret           string `env:"JWT_SECRET"`
	GatewayServiceToken string `env:"GATEWAY_SERVICE_TOKEN"`
	AdminToken          string `env:"ADMIN_TOKEN"`
	AllowedOrigins      string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`

	// Economy
	AccrualInterval           time.Duration `env:"ACCRUAL_INTERVAL" envDefault:"5m"`
	MinWithdrawal             float64       `env:"MIN_WITHDRAWAL" envDefault:"50"`
	WithdrawalFeeRate         float64       `env:"WITHDRAWAL_FEE_RATE" envDefault:"0.4"`
	RefundRejectedWithdrawals bool          `env:"REFUND_REJECTED_WITHDRAWALS" envDefault:"false"`
	TaskCatalogPath           string        `env:"TASK_CATALOG_PATH"`

	// AI search
	AIAPIURL    string        `env:"AI_API_URL" envDefault:"https://api.openai.com/v1/chat/completions"`
	AIAPIKey    string        `env:"AI_API_KEY"`
	AIModel     string        `env:"AI_MODEL" envDefault:"gpt-4o-mini"`
	AITimeout   time.Duration `env:"AI_TIMEOUT" envDefault:"30s"`
	AICacheSize int           `env:"AI_CACHE_SIZE" envDefault:"256"`

	// Payout status sync
	PayoutServiceURL   string        `env:"PAYOUT_SERVICE_URL"`
	PayoutServiceToken string        `env:"PAYOUT_SERVICE_TOKEN"`
	PayoutPollInterval time.Duration `env:"PAYOUT_POLL_INTERVAL" envDefault:"30s"`

	// Cloudflare R2 avatar storage
	CloudflareAccountID string `env:"CLOUDFLARE_ACCOUNT_ID"`
	R2AccessKeyID       string `env:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret   string `env:"R2_ACCESS_KEY_SECRET"`
	R2BucketName        string `env:"R2_BUCKET_NAME"`
	CDNBaseURL          string `env:"CDN_BASE_URL"`

	SentryDSN string `env:"SENTRY_DSN"`
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile   string `env:"LOG_FILE"`
}

// Load reads .env when present, then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, reading environment variables directly")
	}
	return Parse()
}

// Parse reads the environment without touching .env.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings needed to serve. Without a database the
// service can only run against the in-memory store.
func (c *Config) Validate(requireDatabase bool) error {
	var errs []error
	if requireDatabase && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.JWTSecret == "" && c.GatewayServiceToken == "" {
		errs = append(errs, errors.New("one of JWT_SECRET or GATEWAY_SERVICE_TOKEN is required"))
	}
	if c.AccrualInterval <= 0 {
		errs = append(errs, errors.New("ACCRUAL_INTERVAL must be positive"))
	}
	if c.MinWithdrawal <= 0 {
		errs = append(errs, errors.New("MIN_WITHDRAWAL must be positive"))
	}
	if c.WithdrawalFeeRate < 0 || c.WithdrawalFeeRate >= 1 {
		errs = append(errs, errors.New("WITHDRAWAL_FEE_RATE must be in [0, 1)"))
	}
	if c.PayoutServiceURL != "" && c.PayoutServiceToken == "" {
		errs = append(errs, errors.New("PAYOUT_SERVICE_TOKEN is required with PAYOUT_SERVICE_URL"))
	}
	return errors.Join(errs...)
}

// Origins returns ALLOWED_ORIGINS normalised for fiber's CORS config.
func (c *Config) Origins() string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

// R2Enabled reports whether avatar uploads go to object storage.
func (c *Config) R2Enabled() bool {
	return c.CloudflareAccountID != "" && c.R2AccessKeyID != "" && c.R2AccessKeySecret != "" && c.R2BucketName != ""
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
