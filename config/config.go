package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Admin    AdminConfig
	Store    StoreConfig
	Voltxt   VoltxtConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

// AdminConfig is the single merchant-admin credential; PasswordHash is a
// bcrypt hash.
type AdminConfig struct {
	Email        string
	PasswordHash string
}

type StoreConfig struct {
	Name    string
	StoreID int
	// BaseURL is the public URL Voltxt calls back to (webhook + redirects).
	BaseURL string
	// ExternalIDPrefix leads every idempotency token: <prefix>_<order_id>_<unix>.
	ExternalIDPrefix string
}

// VoltxtConfig seeds the merchant gateway settings on first start; after that
// the settings table is authoritative (editable via the admin API).
type VoltxtConfig struct {
	APIKey            string
	Network           string
	ExpiryHours       int
	CompletedStatusID int
	PendingStatusID   int
	CancelledStatusID int
	FailedStatusID    int
	WebhookSecret     string
	Debug             bool
	RequestTimeout    time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         envOr("PORT", "8099"),
			Env:          envOr("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             envOr("DATABASE_DSN", "voltxt:voltxt@tcp(localhost:3306)/voltxt?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			Secret: envOr("JWT_SECRET", "change-me-in-production"),
			Expiry: 12 * time.Hour,
			Issuer: "voltxt",
		},
		Admin: AdminConfig{
			Email: envOr("ADMIN_EMAIL", "admin@example.com"),
			// bcrypt hash, replace in production
			PasswordHash: envOr("ADMIN_PASSWORD_HASH", "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"),
		},
		Store: StoreConfig{
			Name:             envOr("STORE_NAME", "Go Store"),
			StoreID:          envInt("STORE_ID", 0),
			BaseURL:          envOr("STORE_BASE_URL", "https://store.example.com"),
			ExternalIDPrefix: envOr("EXTERNAL_ID_PREFIX", "store"),
		},
		Voltxt: VoltxtConfig{
			APIKey:            os.Getenv("VOLTXT_API_KEY"),
			Network:           envOr("VOLTXT_NETWORK", "testnet"),
			ExpiryHours:       envInt("VOLTXT_EXPIRY_HOURS", 24),
			CompletedStatusID: envInt("VOLTXT_COMPLETED_STATUS_ID", 2),
			PendingStatusID:   envInt("VOLTXT_PENDING_STATUS_ID", 1),
			CancelledStatusID: envInt("VOLTXT_CANCELLED_STATUS_ID", 7),
			FailedStatusID:    envInt("VOLTXT_FAILED_STATUS_ID", 10),
			WebhookSecret:     os.Getenv("VOLTXT_WEBHOOK_SECRET"),
			Debug:             os.Getenv("VOLTXT_DEBUG") == "1",
			RequestTimeout:    30 * time.Second,
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
