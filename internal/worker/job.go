// Package worker implements the per-job control flow from §4.4: acquire
// the processing lock, obtain the raw transaction (cached or via RPC
// fallback), classify, enrich, persist, and fan out — grounded on the
// teacher's WorkerPool/worker loop shape (other_examples' RovshanMuradov
// solana-bot worker.go) adapted from trade-execution tasks to
// classification jobs.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klingon-exchange/swapwatch/internal/classifier"
	"github.com/klingon-exchange/swapwatch/internal/dedup"
	"github.com/klingon-exchange/swapwatch/internal/model"
	"github.com/klingon-exchange/swapwatch/internal/queue"
	"github.com/klingon-exchange/swapwatch/pkg/logging"
)

// JobPayload is the opaque body enqueued per (signature, trackedAccount)
// match, carrying the cached raw transaction when the feed already parsed
// one (§3's "prefer the cached rawTx from the notification").
type JobPayload struct {
	Signature      string                    `json:"signature"`
	TrackedAccount string                    `json:"trackedAccount"`
	Kind           model.AccountKind         `json:"kind"`
	RawTx          *model.RawTxNotification  `json:"rawTx,omitempty"`
}

// RecordCounter reports how many persisted records already exist for a
// signature, for the idempotency check in §4.3/§4.4 step 2.
type RecordCounter interface {
	CountRecords(ctx context.Context, signature string) (int, error)
}

// RawTxFetcher fetches a transaction from the chain RPC when no cached
// rawTx is available (§4.4 step 3).
type RawTxFetcher interface {
	FetchTransaction(ctx context.Context, signature string) (*model.RawTxNotification, error)
}

// Pipeline performs the classify → enrich → score → persist → fan-out
// chain for one ParsedSwap or SplitSwapPair. The worker package depends on
// it as an interface so job.go stays free of enrichment/persistence
// implementation detail.
type Pipeline interface {
	ProcessSwap(ctx context.Context, kind model.AccountKind, swap *model.ParsedSwap) error
	ProcessSplit(ctx context.Context, kind model.AccountKind, split *model.SplitSwapPair) error
}

// Processor runs one queued job to completion per §4.4's 8-step contract.
type Processor struct {
	dedup      *dedup.Store
	records    RecordCounter
	fetcher    RawTxFetcher
	pipeline   Pipeline
	classifier classifier.Config
	tracked    func(address string) (model.TrackedAccount, bool)
	log        *logging.Logger
}

func NewProcessor(
	dedupStore *dedup.Store,
	records RecordCounter,
	fetcher RawTxFetcher,
	pipeline Pipeline,
	classifierCfg classifier.Config,
	tracked func(address string) (model.TrackedAccount, bool),
) *Processor {
	return &Processor{
		dedup:      dedupStore,
		records:    records,
		fetcher:    fetcher,
		pipeline:   pipeline,
		classifier: classifierCfg,
		tracked:    tracked,
		log:        logging.GetDefault().Component("worker"),
	}
}

// Process runs the §4.4 control flow for one job. A non-nil error tells the
// caller to schedule a retry; a nil error, including a permanent
// classification rejection or a skipped job, means the job is finished and
// is not retried.
func (p *Processor) Process(ctx context.Context, job queue.Job) error {
	var payload JobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode job payload: %w", err)
	}

	// Step 1: acquire the processing lock.
	acquired, err := p.dedup.AcquireLock(ctx, payload.Signature)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		p.log.Debug("lock held by another worker, skipping", "signature", payload.Signature)
		return nil
	}
	defer p.finally(ctx, payload)

	// Step 2: idempotency — ≥2 records already means the split pair was
	// already fully persisted.
	count, err := p.records.CountRecords(ctx, payload.Signature)
	if err != nil {
		return fmt.Errorf("count records: %w", err)
	}
	if count >= 2 {
		p.log.Debug("signature already fully persisted", "signature", payload.Signature)
		return nil
	}

	// Step 3: obtain the raw transaction.
	rawTx := payload.RawTx
	if rawTx == nil {
		rawTx, err = p.fetcher.FetchTransaction(ctx, payload.Signature)
		if err != nil {
			return fmt.Errorf("fetch transaction: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, classifyDeadline)
	defer cancel()

	account, ok := p.tracked(payload.TrackedAccount)
	if !ok {
		p.log.Warn("tracked account vanished between enqueue and processing", "account", payload.TrackedAccount)
		return nil
	}

	// Step 4: classify.
	result := classifier.Classify(p.classifier, rawTx, payload.TrackedAccount)
	if result.Reject != nil {
		p.log.Debug("classification rejected", "signature", payload.Signature, "reason", result.Reject.Reason)
		return nil
	}

	// Steps 5-6: enrich and persist.
	if result.Swap != nil {
		if err := p.pipeline.ProcessSwap(ctx, account.Kind, result.Swap); err != nil {
			return fmt.Errorf("process swap: %w", err)
		}
		return nil
	}
	if result.Split != nil {
		if count == 1 {
			// one half already persisted by a prior attempt; the
			// transactional write below still enforces atomicity for
			// whichever half remains.
			p.log.Debug("resuming partially persisted split", "signature", payload.Signature)
		}
		if err := p.pipeline.ProcessSplit(ctx, account.Kind, result.Split); err != nil {
			return fmt.Errorf("process split: %w", err)
		}
	}
	return nil
}

// finally implements §4.4 step 8: release the lock and forget the dedup
// pair. Errors are logged, not propagated — the lock TTL is the backstop.
func (p *Processor) finally(ctx context.Context, payload JobPayload) {
	if err := p.dedup.ReleaseLock(ctx, payload.Signature); err != nil {
		p.log.Warn("failed to release processing lock", "signature", payload.Signature, "error", err)
	}
	kol := payload.Kind == model.KindKOL
	if err := p.dedup.Forget(ctx, payload.Signature, payload.TrackedAccount, kol); err != nil {
		p.log.Warn("failed to clear processed pair", "signature", payload.Signature, "error", err)
	}
}

// classifyDeadline bounds how long a single job's classify+enrich+persist
// chain may run before the worker considers it stuck, independent of the
// RPC fetch's own timeouts.
const classifyDeadline = 20 * time.Second
