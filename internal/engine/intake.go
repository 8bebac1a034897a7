// Package engine assembles every other package into one running monitor
// process: the §9 "MonitorEngine" re-architecture note's explicit value
// holding an address-set snapshot, a subscription client, the worker pool,
// and the KV/store handles, constructed once and passed by reference
// rather than kept in package globals.
package engine

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/klingon-exchange/swapwatch/internal/classifier"
	"github.com/klingon-exchange/swapwatch/internal/dedup"
	"github.com/klingon-exchange/swapwatch/internal/model"
	"github.com/klingon-exchange/swapwatch/internal/queue"
	"github.com/klingon-exchange/swapwatch/internal/worker"
	"github.com/klingon-exchange/swapwatch/pkg/logging"
)

// Intake implements feed.Handler: §4.1's final paragraph, "for each
// matched tracked account, attempt dedup+enqueue." It is the only place
// that turns a pre-checked notification into a queued job, routing to the
// whale or KOL dedup set/queue pair by the matched account's kind.
type Intake struct {
	trackedSet func() map[string]bool
	lookup     func(address string) (model.TrackedAccount, bool)
	dedup      *dedup.Store
	whaleQueue *queue.Queue
	kolQueue   *queue.Queue
	log        *logging.Logger
}

// NewIntake builds an Intake. trackedSet returns the feed manager's current
// subscription snapshot (§4.2 step A's match universe); lookup resolves a
// matched address to its full TrackedAccount record (kind, labels,
// influencer profile).
func NewIntake(
	trackedSet func() map[string]bool,
	lookup func(address string) (model.TrackedAccount, bool),
	dedupStore *dedup.Store,
	whaleQueue, kolQueue *queue.Queue,
) *Intake {
	return &Intake{
		trackedSet: trackedSet,
		lookup:     lookup,
		dedup:      dedupStore,
		whaleQueue: whaleQueue,
		kolQueue:   kolQueue,
		log:        logging.GetDefault().Component("intake"),
	}
}

// HandleNotification implements feed.Handler. It re-runs §4.2 step A's
// multi-source match (the feed's own pre-check already confirmed at least
// one match exists, but discarded which), then dedup+enqueues one job per
// matched tracked account.
func (i *Intake) HandleNotification(ctx context.Context, tx *model.RawTxNotification) {
	matches := classifier.MatchTrackedAccounts(tx, i.trackedSet())
	for _, m := range matches {
		i.enqueueMatch(ctx, tx, m)
	}
}

func (i *Intake) enqueueMatch(ctx context.Context, tx *model.RawTxNotification, m classifier.Match) {
	account, ok := i.lookup(m.Account)
	if !ok {
		i.log.Debug("matched account no longer tracked", "account", m.Account)
		return
	}
	kol := account.Kind == model.KindKOL

	claimed, err := i.dedup.TryEnqueue(ctx, tx.Signature, m.Account, kol)
	if err != nil {
		i.log.Warn("dedup enqueue check failed", "signature", tx.Signature, "account", m.Account, "error", err)
		return
	}
	if !claimed {
		// §8 scenario 4: a duplicate notification for the same
		// (signature, trackedAccount) short-circuits here.
		return
	}
	if err := i.dedup.RecordLatestSignature(ctx, m.Account, tx.Signature); err != nil {
		i.log.Debug("failed to record latest signature", "account", m.Account, "error", err)
	}

	payload := worker.JobPayload{
		Signature:      tx.Signature,
		TrackedAccount: m.Account,
		Kind:           account.Kind,
		RawTx:          tx,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		i.log.Error("failed to marshal job payload", "signature", tx.Signature, "error", err)
		return
	}

	q := i.whaleQueue
	if kol {
		q = i.kolQueue
	}
	if err := q.Enqueue(ctx, uuid.NewString(), body); err != nil {
		i.log.Error("failed to enqueue job", "signature", tx.Signature, "account", m.Account, "error", err)
		// Roll back the dedup claim so a later retry of this notification
		// (or RPC-fallback re-delivery) is not silently swallowed.
		if forgetErr := i.dedup.Forget(ctx, tx.Signature, m.Account, kol); forgetErr != nil {
			i.log.Warn("failed to roll back dedup claim", "signature", tx.Signature, "error", forgetErr)
		}
	}
}
