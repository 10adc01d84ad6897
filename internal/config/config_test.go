package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_MemoryStoreSkipsDatabase(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("TICKET_SECRET", "0123456789abcdef")
	t.Setenv("STORE", "Memory")
	t.Setenv("TICKET_TTL", "30s")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://broker/")
	t.Setenv("SEED_EVENTS", "evt-1, ,evt-2")

	cfg := Load()
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 30*time.Second, cfg.TicketTTL)
	assert.Equal(t, time.Hour, cfg.TicketRetention)
	assert.Equal(t, "amqp://broker/", cfg.RabbitURL)
	assert.Empty(t, cfg.DBHost)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"evt-1", "evt-2"}, cfg.SeedEvents)
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 10*time.Second, cfg.TTL)
}

func TestLoadCacheConfig_Defaults(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")

	cfg := LoadCacheConfig()
	assert.True(t, cfg.Methods["GET"])
	assert.True(t, cfg.Methods["HEAD"])
	assert.Equal(t, 5*time.Second, cfg.TTL)
}
