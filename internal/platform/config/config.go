// Package config loads process configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	Chain    Chain
	Listener Listener
	Store    Store
	Redis    Redis
	Postgres Postgres
	Notify   Notify
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	AuthRequired  bool
}

// Chain configures the ledger connection and the signing account.
type Chain struct {
	Endpoint      string
	SignerAccount string
	PollInterval  time.Duration
}

// Listener tunes the block subscription's resilience knobs.
type Listener struct {
	Autostart         bool
	ErrorBackoff      time.Duration
	StartBackoff      time.Duration
	KeepAliveInterval time.Duration
}

// Store selects the emergency store backend: memory, redis, or postgres.
type Store struct {
	Backend string
}

// Redis configures the optional Redis-backed store.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Postgres configures the optional Postgres-backed store.
type Postgres struct {
	DSN string
}

// Notify configures optional egress fan-out targets.
type Notify struct {
	WebhookURL   string
	KafkaBrokers []string
	KafkaTopic   string
}

// FromEnv builds a Config from environment variables, with defaults suitable
// for local development.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envOr("TRAILGUARD_ADDR", ":8080"),
			JWTSigningKey: envOr("TRAILGUARD_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			AuthRequired:  os.Getenv("TRAILGUARD_AUTH_REQUIRED") == "true",
		},
		Chain: Chain{
			Endpoint:      envOr("TRAILGUARD_CHAIN_ENDPOINT", "http://127.0.0.1:9933"),
			SignerAccount: os.Getenv("TRAILGUARD_SIGNER_ACCOUNT"),
			PollInterval:  envDuration("TRAILGUARD_CHAIN_POLL_INTERVAL", 6*time.Second),
		},
		Listener: Listener{
			Autostart:         os.Getenv("TRAILGUARD_LISTENER_AUTOSTART") != "false",
			ErrorBackoff:      envDuration("TRAILGUARD_LISTENER_ERROR_BACKOFF", 5*time.Second),
			StartBackoff:      envDuration("TRAILGUARD_LISTENER_START_BACKOFF", 30*time.Second),
			KeepAliveInterval: envDuration("TRAILGUARD_LISTENER_KEEPALIVE", time.Minute),
		},
		Store: Store{
			Backend: envOr("TRAILGUARD_STORE", "memory"),
		},
		Redis: Redis{
			URL:          os.Getenv("TRAILGUARD_REDIS_URL"),
			PoolSize:     envInt("TRAILGUARD_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("TRAILGUARD_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("TRAILGUARD_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("TRAILGUARD_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("TRAILGUARD_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: Postgres{
			DSN: os.Getenv("TRAILGUARD_POSTGRES_DSN"),
		},
		Notify: Notify{
			WebhookURL:   os.Getenv("TRAILGUARD_WEBHOOK_URL"),
			KafkaBrokers: envList("TRAILGUARD_KAFKA_BROKERS"),
			KafkaTopic:   envOr("TRAILGUARD_KAFKA_TOPIC", "trailguard.emergencies"),
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
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
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
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
