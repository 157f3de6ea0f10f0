package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setRequired(t *testing.T) {
	for k, v := range map[string]string{
		"APP_ENV":           "production",
		"APP_PORT":          "8080",
		"DB_USER":           "tickets",
		"DB_HOST":           "db",
		"DB_PORT":           "3306",
		"DB_NAME":           "tickets",
		"JWT_SECRET":        "jwt",
		"QR_SIGNING_SECRET": "qr",
	} {
		t.Setenv(k, v)
	}
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_URL", "https://tickets.example/")
	t.Setenv("PENDING_ORDER_TTL", "30m")
	t.Setenv("TX_ATTEMPTS", "not-a-number")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://broker:5672/")

	cfg := Load()
	assert.Equal(t, "https://tickets.example", cfg.AppURL)
	assert.Equal(t, 30*time.Minute, cfg.PendingOrderTTL)
	assert.Equal(t, 30*time.Minute, cfg.ExpiryGrace)
	assert.Equal(t, 3, cfg.TxAttempts)
	assert.Equal(t, 12*time.Hour, cfg.ReplayMemoTTL)
	assert.Equal(t, "amqp://broker:5672/", cfg.RabbitURL)
	assert.True(t, cfg.IsProduction())

	cfg.Env = "dev"
	assert.False(t, cfg.IsProduction())
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_ENABLED", "off")

	cfg := LoadRateLimitConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 10*time.Second, cfg.TTL)

	t.Setenv("RATE_LIMIT_BURST", "50")
	assert.Equal(t, 50, LoadRateLimitConfig().Capacity)
}

func TestLoadLoginGuardConfig(t *testing.T) {
	cfg := LoadLoginGuardConfig()
	assert.Equal(t, LoginGuardConfig{MaxFailures: 5, Window: 10 * time.Minute, Block: 15 * time.Minute, Prefix: "login"}, cfg)

	t.Setenv("LOGIN_MAX_FAILURES", "-2")
	assert.Equal(t, 1, LoadLoginGuardConfig().MaxFailures)
}

func TestLoadCacheConfig_Methods(t *testing.T) {
	t.Setenv("CACHE_METHODS", " get, head ,,")
	cfg := LoadCacheConfig()
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
	assert.Equal(t, 5*time.Second, cfg.TTL)
}
