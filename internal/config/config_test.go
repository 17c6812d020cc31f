package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("S3_BUCKET", "items")
	t.Setenv("S3_ACCESS_KEY", "minio")
	t.Setenv("S3_SECRET_KEY", "minio123")
	t.Setenv("S3_ENDPOINT", "")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg := Load()

	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 5*time.Minute, cfg.S3UploadExpiry)
	assert.Equal(t, 168*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, "*", cfg.CORSAllowOrigin)
	assert.Equal(t, 10, cfg.RateLimitBuy)
	assert.False(t, cfg.S3PathStyle)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("S3_UPLOAD_EXPIRY", "90s")
	t.Setenv("RATE_LIMIT_BUY", "3")
	t.Setenv("DB_DRIVER", "pgx")

	cfg := Load()

	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.True(t, cfg.S3PathStyle)
	assert.Equal(t, 90*time.Second, cfg.S3UploadExpiry)
	assert.Equal(t, 3, cfg.RateLimitBuy)
	assert.Equal(t, "pgx", cfg.DBDriver)
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("X_DURATION", "soon")
	t.Setenv("X_INT", "-4")
	t.Setenv("X_BOOL", "maybe")

	assert.Equal(t, time.Hour, envDuration("X_DURATION", time.Hour))
	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.True(t, envBool("X_BOOL", true))
}

func TestValidateProduction(t *testing.T) {
	cfg := &Config{AppEnv: "production", JWTSecret: devJWTSecret}
	require.Error(t, cfg.validateProduction())

	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.DBDriver = "pgx"
	require.NoError(t, cfg.validateProduction())
}
