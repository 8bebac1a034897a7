package feed

import (
	"math"
	"time"
)

// reconnectDelay implements §4.1's backoff schedule:
// min(baseDelay × backoffFactor^attempt, maxDelay).
func reconnectDelay(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.BackoffFactor, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
