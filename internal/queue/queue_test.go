package queue

import (
	"testing"
	"time"
)

func TestBackoffDelay_DoublesEachAttempt(t *testing.T) {
	cfg := Config{InitialDelay: 2 * time.Second, MaxDelay: time.Hour, BackoffFactor: 2.0}

	if got := backoffDelay(cfg, 1); got != 2*time.Second {
		t.Errorf("attempt 1: expected 2s, got %s", got)
	}
	if got := backoffDelay(cfg, 2); got != 4*time.Second {
		t.Errorf("attempt 2: expected 4s, got %s", got)
	}
	if got := backoffDelay(cfg, 3); got != 8*time.Second {
		t.Errorf("attempt 3: expected 8s, got %s", got)
	}
}

func TestBackoffDelay_CapsAtMaxDelay(t *testing.T) {
	cfg := Config{InitialDelay: 2 * time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2.0}

	if got := backoffDelay(cfg, 3); got != 5*time.Second {
		t.Errorf("expected delay capped at 5s, got %s", got)
	}
}

func TestDefaultConfig_MatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig("trades")
	if cfg.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts 3, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != 2*time.Second {
		t.Errorf("expected InitialDelay 2s, got %s", cfg.InitialDelay)
	}
	if cfg.Name != "trades" {
		t.Errorf("expected Name trades, got %s", cfg.Name)
	}
}

func TestNew_FillsZeroValueDefaults(t *testing.T) {
	q := New(nil, Config{Name: "kol"})
	if q.cfg.MaxAttempts != 3 {
		t.Errorf("expected default MaxAttempts 3, got %d", q.cfg.MaxAttempts)
	}
	if q.cfg.InitialDelay != 2*time.Second {
		t.Errorf("expected default InitialDelay 2s, got %s", q.cfg.InitialDelay)
	}
	if q.cfg.BackoffFactor != 2.0 {
		t.Errorf("expected default BackoffFactor 2.0, got %v", q.cfg.BackoffFactor)
	}
}
