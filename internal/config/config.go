package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "dev-secret-change-me"

type Config struct {
	// Application
	AppName string
	AppEnv  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret string
	JWTExpiry time.Duration

	// HTTP
	CORSAllowOrigin string
	RateLimitBuy    int
	RateLimitWindow time.Duration

	// Observability (optional)
	SentryDSN string

	// Attachments (S3-compatible: MinIO, AWS S3, Cloudflare R2, DigitalOcean Spaces, etc.)
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3Endpoint     string        // Optional: for S3-compatible services (MinIO, DO Spaces, R2, etc.)
	S3PathStyle    bool          // Required for MinIO and some S3-compatible services
	S3UploadExpiry time.Duration // Lifetime of pre-signed upload URLs
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		AppName: envString("APP_NAME", "Marketplace"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		Port:    envString("PORT", "8090"),

		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/marketplace.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"),

		JWTSecret: envRequired("JWT_SECRET"),
		JWTExpiry: envDuration("JWT_EXPIRY", 168*time.Hour), // 7 days

		CORSAllowOrigin: envString("CORS_ALLOW_ORIGIN", "*"),
		RateLimitBuy:    envInt("RATE_LIMIT_BUY", 10),
		RateLimitWindow: envDuration("RATE_LIMIT_WINDOW", time.Minute),

		SentryDSN: envString("SENTRY_DSN", ""),

		S3Region:       envRequired("S3_REGION"),
		S3Bucket:       envRequired("S3_BUCKET"),
		S3AccessKey:    envRequired("S3_ACCESS_KEY"),
		S3SecretKey:    envRequired("S3_SECRET_KEY"),
		S3Endpoint:     envString("S3_ENDPOINT", ""),
		S3PathStyle:    envBool("S3_PATH_STYLE", os.Getenv("S3_ENDPOINT") != ""),
		S3UploadExpiry: envDuration("S3_UPLOAD_EXPIRY", 5*time.Minute),
	}

	if cfg.IsProduction() {
		err = cfg.validateProduction()
		if err != nil {
			slog.Error("invalid production config", "error", err)
			os.Exit(1)
		}
	}

	return cfg
}

// validateProduction rejects settings that are only acceptable for local testing.
func (c *Config) validateProduction() error {
	if c.JWTSecret == devJWTSecret || len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be a random value of at least 32 characters")
	}
	if c.DBDriver == "sqlite" {
		slog.Warn("running production on sqlite", "hint", "set DB_DRIVER=pgx for multi-instance deployments")
	}
	return nil
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return i
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
