package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, "diagnostic-service", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "uploads", cfg.Upload.Dir)
	assert.Equal(t, int64(10*1024*1024), cfg.Upload.MaxFileSize)
	assert.Equal(t, 5, cfg.Upload.MaxFilesPerReq)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, "auth-service", cfg.JWT.Issuer)
	assert.Equal(t, float64(100), cfg.RateLimit.RequestsPerSecond)
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "8080")
	t.Setenv("UPLOAD_MAX_FILES", "3")
	t.Setenv("UPLOAD_MAX_FILE_SIZE", "1048576")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Upload.MaxFilesPerReq)
	assert.Equal(t, int64(1<<20), cfg.Upload.MaxFileSize)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestLoadMalformedIntFallsBackToDefault(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadProductionRules(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("DB_SSLMODE", "disable")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET must be at least 32 characters in production")
	assert.Contains(t, err.Error(), "DB_PASSWORD is required in non-development environments")
	assert.Contains(t, err.Error(), "DB_SSLMODE=disable is not allowed in production")
}

func TestLoadRejectsNonPositiveMaxFileSize(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("UPLOAD_MAX_FILE_SIZE", "0")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "UPLOAD_MAX_FILE_SIZE must be positive")
}
