package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 500, cfg.AddressFeed.PageSize)
	assert.Equal(t, 10*time.Minute, cfg.AddressFeed.Interval)
	assert.False(t, cfg.AddressFeed.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PROFIL_ADDR", ":9090")
	t.Setenv("PROFIL_ADDRESS_FEED_URL", "https://registry.example/feed")
	t.Setenv("PROFIL_ADDRESS_FEED_PAGE_SIZE", "50")
	t.Setenv("PROFIL_PERSON_FEED_INTERVAL", "1m")
	t.Setenv("PROFIL_KAFKA_BROKERS", "broker-1:9092, broker-2:9092")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.True(t, cfg.AddressFeed.Enabled())
	assert.Equal(t, 50, cfg.AddressFeed.PageSize)
	assert.Equal(t, time.Minute, cfg.PersonFeed.Interval)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
}

func TestFromEnv_IgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("PROFIL_ADDRESS_FEED_PAGE_SIZE", "not-a-number")
	t.Setenv("PROFIL_ADDRESS_FEED_INTERVAL", "-5m")

	cfg := FromEnv()

	assert.Equal(t, 500, cfg.AddressFeed.PageSize)
	assert.Equal(t, 10*time.Minute, cfg.AddressFeed.Interval)
}
