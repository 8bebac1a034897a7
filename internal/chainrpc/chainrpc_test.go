package chainrpc

import (
	"testing"
	"time"
)

func TestDefaultConfig_MatchesSpecTimeouts(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.StatusTimeout != 10*time.Second {
		t.Errorf("expected StatusTimeout 10s, got %s", cfg.StatusTimeout)
	}
	if cfg.FullTxTimeout != 15*time.Second {
		t.Errorf("expected FullTxTimeout 15s, got %s", cfg.FullTxTimeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", cfg.MaxRetries)
	}
}

func TestNew_FillsZeroValueDefaults(t *testing.T) {
	c := New("https://example.invalid", Config{})
	if c.cfg.StatusTimeout != 10*time.Second {
		t.Errorf("expected default StatusTimeout 10s, got %s", c.cfg.StatusTimeout)
	}
	if c.cfg.MaxRetries != 3 {
		t.Errorf("expected default MaxRetries 3, got %d", c.cfg.MaxRetries)
	}
}
