package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "test")

	cfg := LoadConfig()

	assert.Equal(t, 5000, cfg.ServerPort)
	assert.Equal(t, "token", cfg.Session.CookieName)
	assert.Equal(t, 24*time.Hour, cfg.Session.TokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.Session.CookieMaxAge)
	assert.Equal(t, "https://restcountries.com/v3.1", cfg.Countries.BaseURL)
	assert.Equal(t, 15*time.Minute, cfg.Countries.CacheTTL)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("ENV", EnvProduction)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("JWT_SECRET", "  s3cret  ")
	t.Setenv("JWT_EXPIRE", "7d")
	t.Setenv("SESSION_COOKIE_MAX_AGE", "90m")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("COUNTRIES_API_URL", "http://upstream.local/v3.1/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("CACHE_BACKEND", "REDIS")
	t.Setenv("REDIS_PORT", "6380")

	cfg := LoadConfig()

	require.True(t, cfg.IsProduction())
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "s3cret", cfg.Session.Secret)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.TokenTTL)
	assert.Equal(t, 90*time.Minute, cfg.Session.CookieMaxAge)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, "http://upstream.local/v3.1", cfg.Countries.BaseURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "localhost:6380", cfg.Cache.Redis.Addr())
}

func TestInvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	t.Setenv("JWT_EXPIRE", "soon")
	t.Setenv("DB_USE_SSL", "maybe")

	cfg := LoadConfig()

	assert.Equal(t, 5000, cfg.ServerPort)
	assert.Equal(t, 24*time.Hour, cfg.Session.TokenTTL)
	assert.False(t, cfg.Database.UseSSL)
}
