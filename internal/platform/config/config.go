package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	PostgresURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	AddressFeed FeedConfig
	PersonFeed  FeedConfig

	// RegistryUpdateEndpoint is the base URL for pushing locally-originated
	// notification address edits back to the registry.
	RegistryUpdateEndpoint string
}

// FeedConfig configures one change-feed source.
type FeedConfig struct {
	Endpoint string
	PageSize int
	Interval time.Duration
}

// Enabled reports whether the feed has an endpoint to pull from.
func (f FeedConfig) Enabled() bool { return f.Endpoint != "" }

// RedisConfig configures the optional Redis connection used for run locks.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional audit event relay.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether audit events should be relayed to Kafka.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:        envOr("PROFIL_ADDR", ":8080"),
		PostgresURL: os.Getenv("PROFIL_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("PROFIL_REDIS_URL"),
			PoolSize:     envInt("PROFIL_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("PROFIL_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("PROFIL_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("PROFIL_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("PROFIL_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("PROFIL_KAFKA_BROKERS")),
			Topic:   envOr("PROFIL_KAFKA_AUDIT_TOPIC", "profil.audit"),
		},
		AddressFeed: FeedConfig{
			Endpoint: os.Getenv("PROFIL_ADDRESS_FEED_URL"),
			PageSize: envInt("PROFIL_ADDRESS_FEED_PAGE_SIZE", 500),
			Interval: envDuration("PROFIL_ADDRESS_FEED_INTERVAL", 10*time.Minute),
		},
		PersonFeed: FeedConfig{
			Endpoint: os.Getenv("PROFIL_PERSON_FEED_URL"),
			PageSize: envInt("PROFIL_PERSON_FEED_PAGE_SIZE", 500),
			Interval: envDuration("PROFIL_PERSON_FEED_INTERVAL", 10*time.Minute),
		},
		RegistryUpdateEndpoint: os.Getenv("PROFIL_REGISTRY_UPDATE_URL"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
