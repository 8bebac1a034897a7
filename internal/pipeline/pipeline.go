// Package pipeline implements worker.Pipeline: the enrich → price → score
// → persist → fan-out chain that runs after a raw transaction classifies
// successfully (§4.4 steps 5-7). It is the integration point that wires
// internal/metadata, internal/pricing, internal/scoring, internal/store
// and internal/fanout together, grounded on the teacher's backend.Backend
// call-chain style: small collaborator interfaces injected into one
// orchestrating type rather than a god-object.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/klingon-exchange/swapwatch/internal/metadata"
	"github.com/klingon-exchange/swapwatch/internal/model"
	"github.com/klingon-exchange/swapwatch/internal/pricing"
	"github.com/klingon-exchange/swapwatch/internal/scoring"
	"github.com/klingon-exchange/swapwatch/pkg/logging"
)

// TradeWriter is the persistence surface a Pipeline needs for one
// tracked-account kind (whale or KOL): single-swap and atomic split-pair
// inserts. *store.TradeRepository satisfies this.
type TradeWriter interface {
	InsertSwap(ctx context.Context, t model.StoredTrade) error
	InsertSplitPair(ctx context.Context, sell, buy model.StoredTrade) error
	UpdateHotnessScore(ctx context.Context, signature string, tradeType model.TradeType, score int) error
}

// HotnessTracker reports the "first buy" / "distinct buyers" inputs to the
// timing bonus (§4.7). *store.HotnessRepository satisfies this.
type HotnessTracker interface {
	Observe(ctx context.Context, tokenAddress, signature, trackedAccount string) (isFirstBuy bool, distinctBuyersBefore int, err error)
}

// MarketCapSource resolves a token mint's current market cap. Nil is
// permitted: resolution then always yields 0, which zeroes the denormalized
// marketCap fields and which scoring.MarketCapTier scores as the under-$1M
// tier (+3).
type MarketCapSource interface {
	MarketCap(ctx context.Context, mint string) (float64, bool)
}

// VolumeSource reports the last-15-min/24h-average BUY volume ratio
// scoring.VolumeSpike needs (§4.7). Nil is permitted: resolution then
// always yields 0, a no-spike contribution. *store.TradeRepository
// satisfies this via BuyVolumeRatio.
type VolumeSource interface {
	BuyVolumeRatio(ctx context.Context, tokenAddress string, at time.Time) (float64, error)
}

// TrackedAccountLookup resolves a tracked-account address to its labels
// and, for KOLs, its influencer profile, for the denormalized
// trackedAccount block on a StoredTrade.
type TrackedAccountLookup func(address string) (model.TrackedAccount, bool)

// Collaborators bundles every dependency a Pipeline needs for one tracked-
// account kind. Both the whale and KOL pipelines are built from this same
// shape, pointed at their own collection/repository instances.
type Collaborators struct {
	Kind            model.AccountKind
	Metadata        *metadata.Cache
	Pricer          *pricing.Pricer
	Trades          TradeWriter
	Volume          VolumeSource
	Hotness         HotnessTracker
	Repeats         scoring.RepeatTracker
	RepeatRecorder  interface {
		Record(ctx context.Context, rec model.RepeatPurchaseRecord) error
	}
	MarketCaps      MarketCapSource
	Tracked         TrackedAccountLookup
	Fanout          fanoutDispatcher
	PromotedTokens  map[string]bool // mints with an active promotion, see scoring.PromotedTokenBonus (§4.7 last paragraph)
}

// fanoutDispatcher is the subset of *fanout.Dispatcher a Pipeline calls.
// Declared locally so pipeline does not need to import fanout's Consumer
// construction details, only the dispatch call.
type fanoutDispatcher interface {
	Dispatch(trade model.StoredTrade)
}

// Pipeline implements worker.Pipeline for one tracked-account kind.
type Pipeline struct {
	c   Collaborators
	log *logging.Logger
}

func New(c Collaborators) *Pipeline {
	return &Pipeline{
		c:   c,
		log: logging.GetDefault().Component(fmt.Sprintf("pipeline.%s", c.Kind)),
	}
}

// ProcessSwap implements worker.Pipeline for a single non-split classified
// swap.
func (p *Pipeline) ProcessSwap(ctx context.Context, kind model.AccountKind, swap *model.ParsedSwap) error {
	trade, err := p.build(ctx, swap)
	if err != nil {
		return fmt.Errorf("build trade: %w", err)
	}
	if err := p.c.Trades.InsertSwap(ctx, trade); err != nil {
		return fmt.Errorf("insert swap: %w", err)
	}
	p.recordRepeatIfBuy(ctx, swap, trade)
	if p.throttled(swap, trade) {
		p.log.Debug("small repeat buy throttled, suppressing fan-out", "signature", swap.Signature)
		return nil
	}
	trade = p.applyPromotedBonus(ctx, trade)
	p.c.Fanout.Dispatch(trade)
	return nil
}

// applyPromotedBonus implements §4.7's last paragraph and spec §3's
// lifecycle note: a promoted token's BUY record gets +3 patched onto its
// hotnessScore after persistence, by the pipeline just before fan-out. The fan-out consumers
// always see the patched score even though the earlier InsertSwap call
// wrote the unpatched one.
func (p *Pipeline) applyPromotedBonus(ctx context.Context, trade model.StoredTrade) model.StoredTrade {
	if trade.Type != model.TradeTypeBuy || !p.c.PromotedTokens[trade.TokenOut.Address] {
		return trade
	}
	patched := trade.HotnessScore + scoring.PromotedTokenBonus
	if patched > 10 {
		patched = 10
	}
	if err := p.c.Trades.UpdateHotnessScore(ctx, trade.Signature, trade.Type, patched); err != nil {
		p.log.Warn("failed to patch promoted-token hotness bonus", "signature", trade.Signature, "error", err)
		return trade
	}
	trade.HotnessScore = patched
	return trade
}

// throttled implements §9's resolved daily-repeat threshold: a same-day
// repeat buy under scoring.SmallBuyThrottleUSD still gets persisted (§8
// requires at least one record per successfully classified signature) but
// is held back from fan-out, since it carries no new signal worth
// notifying on.
func (p *Pipeline) throttled(swap *model.ParsedSwap, trade model.StoredTrade) bool {
	if swap.Direction != model.DirectionBuy {
		return false
	}
	return scoring.SmallBuyThrottled(p.c.Repeats, trade.TokenOut.Address, trade.TrackedAccount.Address, swap.Timestamp, trade.USDAmounts.BuyAmount)
}

// ProcessSplit implements worker.Pipeline for a token↔token split pair: the
// sell and buy halves are built independently, then written in one
// transaction (§4.2 step E, §4.8).
func (p *Pipeline) ProcessSplit(ctx context.Context, kind model.AccountKind, split *model.SplitSwapPair) error {
	sell, err := p.build(ctx, &split.SellRecord)
	if err != nil {
		return fmt.Errorf("build sell half: %w", err)
	}
	buy, err := p.build(ctx, &split.BuyRecord)
	if err != nil {
		return fmt.Errorf("build buy half: %w", err)
	}

	if err := p.c.Trades.InsertSplitPair(ctx, sell, buy); err != nil {
		return fmt.Errorf("insert split pair: %w", err)
	}
	p.recordRepeatIfBuy(ctx, &split.BuyRecord, buy)
	p.c.Fanout.Dispatch(sell)
	if p.throttled(&split.BuyRecord, buy) {
		p.log.Debug("small repeat buy throttled, suppressing buy fan-out", "signature", split.Signature)
		return nil
	}
	buy = p.applyPromotedBonus(ctx, buy)
	p.c.Fanout.Dispatch(buy)
	return nil
}

func (p *Pipeline) recordRepeatIfBuy(ctx context.Context, swap *model.ParsedSwap, trade model.StoredTrade) {
	if swap.Direction != model.DirectionBuy || p.c.RepeatRecorder == nil {
		return
	}
	priorCount := 0
	if p.c.Repeats != nil {
		if n, err := p.c.Repeats.CountToday(trade.TokenOut.Address, trade.TrackedAccount.Address, utcDayBucket(swap.Timestamp)); err == nil {
			priorCount = n
		}
	}
	rec := scoring.NewRepeatRecord(p.c.Kind, trade.TokenOut.Address, trade.TrackedAccount.Address, swap.Signature, trade.USDAmounts.BuyAmount, swap.Timestamp, priorCount)
	if err := p.c.RepeatRecorder.Record(ctx, rec); err != nil {
		p.log.Warn("failed to record repeat purchase", "signature", swap.Signature, "error", err)
	}
}

func utcDayBucket(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format("2006-01-02")
}
