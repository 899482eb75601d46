package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("STOREPING_WEBHOOK_SECRET", "shh")
	t.Setenv("STOREPING_DEBOUNCE_DELAY", "30m")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("default listen addr: %q", cfg.ListenAddr)
	}
	if cfg.StateBackend != "file" {
		t.Fatalf("default state backend: %q", cfg.StateBackend)
	}
	if cfg.DebounceDelay != 30*time.Minute {
		t.Fatalf("override not applied: %v", cfg.DebounceDelay)
	}
	if cfg.ReviewDelay != 72*time.Hour {
		t.Fatalf("default review delay: %v", cfg.ReviewDelay)
	}
	if cfg.LockLease != 15*time.Minute {
		t.Fatalf("default lock lease: %v", cfg.LockLease)
	}
}

func TestFromEnv_MissingSecretFails(t *testing.T) {
	t.Setenv("STOREPING_WEBHOOK_SECRET", "")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error without webhook secret")
	}
}

func TestFromEnv_BadDurationFails(t *testing.T) {
	t.Setenv("STOREPING_WEBHOOK_SECRET", "shh")
	t.Setenv("STOREPING_SWEEP_INTERVAL", "five minutes")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestLoadRouting_EmptyPathUsesDefaults(t *testing.T) {
	routing, err := LoadRouting("")
	if err != nil {
		t.Fatalf("LoadRouting: %v", err)
	}
	if routing["orders/create"] != StrategyDirect {
		t.Fatalf("default routing missing orders/create: %+v", routing)
	}
	if routing["checkouts/update"] != StrategyDebounce {
		t.Fatalf("default routing missing checkouts/update: %+v", routing)
	}
	if routing["fulfillments/update"] != StrategySchedule {
		t.Fatalf("default routing missing fulfillments/update: %+v", routing)
	}
}

func TestLoadRouting_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	doc := "topics:\n  orders/create: direct\n  orders/paid: direct\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	routing, err := LoadRouting(path)
	if err != nil {
		t.Fatalf("LoadRouting: %v", err)
	}
	if len(routing) != 2 || routing["orders/paid"] != StrategyDirect {
		t.Fatalf("unexpected routing: %+v", routing)
	}
}

func TestLoadRouting_RejectsUnknownStrategy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	doc := "topics:\n  orders/create: broadcast\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadRouting(path); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}
