// Package config loads runtime configuration from STOREPING_* environment
// variables with sensible defaults, plus an optional yaml routing table.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds every runtime knob.
type Config struct {
	ListenAddr string

	// state persistence
	StateBackend string // "file" | "dynamo"
	StateDir     string
	DynamoTable  string
	AuditPath    string

	// inbound authenticity
	WebhookSecret string

	// collaborators
	ProviderBaseURL string
	ProviderToken   string
	ShopBaseURL     string
	ShopToken       string

	// timing
	DebounceDelay time.Duration // quiet period before a checkout is evaluated
	DebounceTick  time.Duration // evaluator interval
	ReviewDelay   time.Duration // delivered -> review request delay
	SweepInterval time.Duration // scheduler recovery scan interval
	LockLease     time.Duration // 0 disables stale-lock reaping

	RoutingFile string
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s=%q: %w", key, v, err)
	}
	return d, nil
}

// FromEnv builds the config. Only the webhook secret is mandatory.
func FromEnv() (Config, error) {
	cfg := Config{
		ListenAddr:      getenv("STOREPING_LISTEN_ADDR", ":8080"),
		StateBackend:    getenv("STOREPING_STATE_BACKEND", "file"),
		StateDir:        getenv("STOREPING_STATE_DIR", "./state"),
		DynamoTable:     os.Getenv("STOREPING_DYNAMO_TABLE"),
		AuditPath:       getenv("STOREPING_AUDIT_LOG", "./state/events.log"),
		WebhookSecret:   os.Getenv("STOREPING_WEBHOOK_SECRET"),
		ProviderBaseURL: os.Getenv("STOREPING_PROVIDER_URL"),
		ProviderToken:   os.Getenv("STOREPING_PROVIDER_TOKEN"),
		ShopBaseURL:     os.Getenv("STOREPING_SHOP_URL"),
		ShopToken:       os.Getenv("STOREPING_SHOP_TOKEN"),
		RoutingFile:     os.Getenv("STOREPING_ROUTING_FILE"),
	}
	if cfg.WebhookSecret == "" {
		return cfg, fmt.Errorf("STOREPING_WEBHOOK_SECRET is required")
	}

	var err error
	if cfg.DebounceDelay, err = getenvDuration("STOREPING_DEBOUNCE_DELAY", 45*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.DebounceTick, err = getenvDuration("STOREPING_DEBOUNCE_TICK", time.Minute); err != nil {
		return cfg, err
	}
	if cfg.ReviewDelay, err = getenvDuration("STOREPING_REVIEW_DELAY", 72*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.SweepInterval, err = getenvDuration("STOREPING_SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.LockLease, err = getenvDuration("STOREPING_LOCK_LEASE", 15*time.Minute); err != nil {
		return cfg, err
	}
	return cfg, nil
}
