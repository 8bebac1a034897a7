// Package fanout dispatches a persisted trade to the downstream consumers
// named in §4.4 step 7: the alert matcher, the websocket broadcaster, and
// the tweet composer. All three are external collaborators out of scope
// for this module; fanout only owns the non-blocking dispatch discipline
// — each consumer runs in its own goroutine with a bounded timeout so a
// slow or wedged consumer cannot stall the worker pool. Grounded on the
// teacher's swap.Manager event-broadcast pattern (internal/swap), which
// fires a set of independent listeners off of one completed trade.
package fanout

import (
	"context"
	"time"

	"github.com/klingon-exchange/swapwatch/internal/model"
	"github.com/klingon-exchange/swapwatch/pkg/logging"
)

// Consumer receives one persisted trade. Implementations are expected to
// be fast or to queue the work themselves; Dispatcher only bounds the call
// with a timeout, it does not retry.
type Consumer interface {
	Name() string
	Consume(ctx context.Context, trade model.StoredTrade) error
}

// Config bounds how long a single consumer may block per dispatch.
type Config struct {
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{Timeout: 5 * time.Second}
}

// Dispatcher fans a trade out to every registered consumer concurrently,
// never blocking the caller past cfg.Timeout regardless of how many
// consumers are slow.
type Dispatcher struct {
	consumers []Consumer
	cfg       Config
	log       *logging.Logger
}

func New(cfg Config, consumers ...Consumer) *Dispatcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Dispatcher{
		consumers: consumers,
		cfg:       cfg,
		log:       logging.GetDefault().Component("fanout"),
	}
}

// Dispatch starts one goroutine per consumer and returns immediately
// without waiting for any of them; failures are logged, never propagated,
// since a downstream consumer's outage must not fail the ingestion job
// that already succeeded (§4.4 step 7 runs after persistence). Each
// consumer gets its own detached context so the caller returning does not
// cancel an in-flight dispatch.
func (d *Dispatcher) Dispatch(trade model.StoredTrade) {
	for _, c := range d.consumers {
		c := c
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
			defer cancel()
			if err := c.Consume(ctx, trade); err != nil {
				d.log.Warn("fanout consumer failed", "consumer", c.Name(), "signature", trade.Signature, "error", err)
			}
		}()
	}
}
