package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_MatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Whale.NumWorkers != 1 {
		t.Errorf("expected Whale.NumWorkers 1, got %d", cfg.Whale.NumWorkers)
	}
	if cfg.Whale.WorkerConcurrency != 8 {
		t.Errorf("expected Whale.WorkerConcurrency 8, got %d", cfg.Whale.WorkerConcurrency)
	}
	if cfg.Whale.RateLimitMax != 30 {
		t.Errorf("expected Whale.RateLimitMax 30, got %d", cfg.Whale.RateLimitMax)
	}
	if cfg.Whale.RateLimitWindow != 5000*time.Millisecond {
		t.Errorf("expected Whale.RateLimitWindow 5000ms, got %s", cfg.Whale.RateLimitWindow)
	}
	if cfg.Feed.ConnectTimeout != 15*time.Second {
		t.Errorf("expected Feed.ConnectTimeout 15s, got %s", cfg.Feed.ConnectTimeout)
	}
	if cfg.RPC.StatusTimeout != 10*time.Second {
		t.Errorf("expected RPC.StatusTimeout 10s, got %s", cfg.RPC.StatusTimeout)
	}
	if cfg.RPC.FullTxTimeout != 15*time.Second {
		t.Errorf("expected RPC.FullTxTimeout 15s, got %s", cfg.RPC.FullTxTimeout)
	}
}

func TestLoadConfig_CreatesDefaultFileOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Whale.NumWorkers != 1 {
		t.Errorf("expected Whale.NumWorkers 1, got %d", cfg.Whale.NumWorkers)
	}

	if _, err := os.Stat(filepath.Join(dir, ConfigFileName)); err != nil {
		t.Errorf("expected config file to be created: %v", err)
	}
}

func TestApplyEnvOverlay_OverridesDefaults(t *testing.T) {
	t.Setenv("NUM_WORKERS_WHALE", "4")
	t.Setenv("RATE_LIMIT_MAX_KOL", "10")
	t.Setenv("MIN_ALERT_CONFIDENCE", "HIGH")

	cfg := DefaultConfig()
	applyEnvOverlay(cfg)

	if cfg.Whale.NumWorkers != 4 {
		t.Errorf("expected Whale.NumWorkers 4, got %d", cfg.Whale.NumWorkers)
	}
	if cfg.KOL.RateLimitMax != 10 {
		t.Errorf("expected KOL.RateLimitMax 10, got %d", cfg.KOL.RateLimitMax)
	}
	if cfg.Classifier.MinConfidence != "HIGH" {
		t.Errorf("expected Classifier.MinConfidence HIGH, got %s", cfg.Classifier.MinConfidence)
	}
}

func TestConfidenceFromString_RejectsUnknownValues(t *testing.T) {
	if confidenceFromString("") != "" {
		t.Error("expected empty string to stay empty")
	}
	if confidenceFromString("bogus") != "" {
		t.Error("expected unknown value to be rejected")
	}
	if string(confidenceFromString("MAX")) != "MAX" {
		t.Errorf("expected MAX to be accepted, got %s", confidenceFromString("MAX"))
	}
}
