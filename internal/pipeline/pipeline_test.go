package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/klingon-exchange/swapwatch/internal/metadata"
	"github.com/klingon-exchange/swapwatch/internal/model"
	"github.com/klingon-exchange/swapwatch/internal/pricing"
)

const (
	swapperAddr = "Swapper111111111111111111111111111111111"
	tokenMint   = "TokenAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
)

// fakeTradeWriter is an in-memory stand-in for *store.TradeRepository.
type fakeTradeWriter struct {
	swaps      []model.StoredTrade
	splitSells []model.StoredTrade
	splitBuys  []model.StoredTrade
	scores     map[string]int
}

func newFakeTradeWriter() *fakeTradeWriter {
	return &fakeTradeWriter{scores: make(map[string]int)}
}

func (f *fakeTradeWriter) InsertSwap(ctx context.Context, t model.StoredTrade) error {
	f.swaps = append(f.swaps, t)
	return nil
}

func (f *fakeTradeWriter) InsertSplitPair(ctx context.Context, sell, buy model.StoredTrade) error {
	f.splitSells = append(f.splitSells, sell)
	f.splitBuys = append(f.splitBuys, buy)
	return nil
}

func (f *fakeTradeWriter) UpdateHotnessScore(ctx context.Context, signature string, tradeType model.TradeType, score int) error {
	f.scores[signature+":"+string(tradeType)] = score
	return nil
}

type fakeHotness struct {
	isFirst  bool
	distinct int
}

func (f fakeHotness) Observe(ctx context.Context, tokenAddress, signature, trackedAccount string) (bool, int, error) {
	return f.isFirst, f.distinct, nil
}

type fakeRepeats struct{ count int }

func (f fakeRepeats) CountToday(tokenAddress, trackedAccount, day string) (int, error) {
	return f.count, nil
}

type fakeRepeatRecorder struct{ records []model.RepeatPurchaseRecord }

func (f *fakeRepeatRecorder) Record(ctx context.Context, rec model.RepeatPurchaseRecord) error {
	f.records = append(f.records, rec)
	return nil
}

type fakeDispatcher struct{ dispatched []model.StoredTrade }

func (f *fakeDispatcher) Dispatch(trade model.StoredTrade) {
	f.dispatched = append(f.dispatched, trade)
}

func newTestPipeline(trades *fakeTradeWriter, dispatcher *fakeDispatcher, repeats fakeRepeats, recorder *fakeRepeatRecorder) *Pipeline {
	lookup := func(address string) (model.TrackedAccount, bool) {
		return model.TrackedAccount{Address: address, Kind: model.KindWhale, Labels: []string{"SMART MONEY"}}, true
	}
	return New(Collaborators{
		Kind:           model.KindWhale,
		Metadata:       metadata.New(nil, nil, nil, metadata.Config{}),
		Pricer:         pricing.New(nil, nil, 100),
		Trades:         trades,
		Hotness:        fakeHotness{isFirst: true, distinct: 0},
		Repeats:        repeats,
		RepeatRecorder: recorder,
		Tracked:        lookup,
		Fanout:         dispatcher,
	})
}

func baseBuySwap() *model.ParsedSwap {
	totalCost := 1.0
	return &model.ParsedSwap{
		Signature:            "sig1",
		Timestamp:            time.Unix(1700000000, 0).UTC(),
		Swapper:              swapperAddr,
		Direction:            model.DirectionBuy,
		BaseAsset:            model.Asset{Mint: tokenMint, Symbol: "TOK", Decimals: 6},
		QuoteAsset:           model.Asset{Mint: model.NativeMint, Symbol: model.NativeSymbol, Decimals: model.NativeDecimals},
		Amounts: model.Amounts{
			BaseAmount:      1000,
			TotalWalletCost: &totalCost,
		},
		Confidence:           model.ConfidenceMax,
		ClassificationSource: "v2_parser",
	}
}

func inDelta(t *testing.T, want, got, delta float64) {
	t.Helper()
	diff := want - got
	if diff < 0 {
		diff = -diff
	}
	if diff > delta {
		t.Errorf("expected %v within %v of %v", got, delta, want)
	}
}

func TestProcessSwap_PersistsAndDispatchesOneRecord(t *testing.T) {
	trades := newFakeTradeWriter()
	dispatcher := &fakeDispatcher{}
	p := newTestPipeline(trades, dispatcher, fakeRepeats{count: 0}, &fakeRepeatRecorder{})

	if err := p.ProcessSwap(context.Background(), model.KindWhale, baseBuySwap()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(trades.swaps) != 1 {
		t.Fatalf("expected 1 persisted swap, got %d", len(trades.swaps))
	}
	trade := trades.swaps[0]
	if trade.Signature != "sig1" {
		t.Errorf("expected signature sig1, got %s", trade.Signature)
	}
	if trade.Type != model.TradeTypeBuy {
		t.Errorf("expected type buy, got %s", trade.Type)
	}
	if trade.SolAmounts.SellSolAmount == nil {
		t.Fatal("expected non-nil SellSolAmount")
	}
	inDelta(t, 1.0, *trade.SolAmounts.SellSolAmount, 1e-9)
	if trade.SolAmounts.BuySolAmount != nil {
		t.Errorf("expected nil BuySolAmount, got %v", *trade.SolAmounts.BuySolAmount)
	}
	if len(dispatcher.dispatched) != 1 {
		t.Fatalf("expected 1 dispatched trade, got %d", len(dispatcher.dispatched))
	}
	if dispatcher.dispatched[0].Signature != trade.Signature {
		t.Errorf("expected dispatched signature %s, got %s", trade.Signature, dispatcher.dispatched[0].Signature)
	}
}

// A throttled small same-day repeat buy is still persisted (§8: a
// successfully classified signature must never yield zero records) but is
// held back from fan-out, since it carries no notification-worthy signal.
func TestProcessSwap_ThrottledRepeatBuyStillPersistsButSuppressesFanout(t *testing.T) {
	trades := newFakeTradeWriter()
	dispatcher := &fakeDispatcher{}
	p := newTestPipeline(trades, dispatcher, fakeRepeats{count: 1}, &fakeRepeatRecorder{})

	swap := baseBuySwap()
	// Native price 100 * tokenPrice unknown => swap-ratio imputes
	// tokenOutPrice, but the USD value here (1 SOL * $100 = $100) is
	// already below SmallBuyThrottleUSD, so a prior same-day buy throttles
	// this one's fan-out.
	if err := p.ProcessSwap(context.Background(), model.KindWhale, swap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(trades.swaps) != 1 {
		t.Fatalf("expected the throttled buy to still persist, got %d records", len(trades.swaps))
	}
	if len(dispatcher.dispatched) != 0 {
		t.Fatalf("expected fan-out to be suppressed, got %d dispatches", len(dispatcher.dispatched))
	}
}

func TestProcessSplit_PersistsBothHalvesAtomically(t *testing.T) {
	trades := newFakeTradeWriter()
	dispatcher := &fakeDispatcher{}
	p := newTestPipeline(trades, dispatcher, fakeRepeats{count: 0}, &fakeRepeatRecorder{})

	split := &model.SplitSwapPair{
		Signature: "sig2",
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Swapper:   swapperAddr,
		SellRecord: model.ParsedSwap{
			Signature:            "sig2",
			Timestamp:            time.Unix(1700000000, 0).UTC(),
			Swapper:              swapperAddr,
			Direction:            model.DirectionSell,
			BaseAsset:            model.Asset{Mint: "TokenA", Symbol: "A", Decimals: 6},
			QuoteAsset:           model.Asset{Mint: model.NativeMint, Symbol: model.NativeSymbol, Decimals: model.NativeDecimals},
			Amounts:              model.Amounts{BaseAmount: 500},
			ClassificationSource: "split_sell",
		},
		BuyRecord: model.ParsedSwap{
			Signature:            "sig2",
			Timestamp:            time.Unix(1700000000, 0).UTC(),
			Swapper:              swapperAddr,
			Direction:            model.DirectionBuy,
			BaseAsset:            model.Asset{Mint: "TokenB", Symbol: "B", Decimals: 6},
			QuoteAsset:           model.Asset{Mint: model.NativeMint, Symbol: model.NativeSymbol, Decimals: model.NativeDecimals},
			Amounts:              model.Amounts{BaseAmount: 1000},
			ClassificationSource: "split_buy",
		},
	}

	if err := p.ProcessSplit(context.Background(), model.KindWhale, split); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(trades.splitSells) != 1 || len(trades.splitBuys) != 1 {
		t.Fatalf("expected 1 sell and 1 buy, got %d sells and %d buys", len(trades.splitSells), len(trades.splitBuys))
	}
	if trades.splitSells[0].Type != model.TradeTypeSell {
		t.Errorf("expected sell type, got %s", trades.splitSells[0].Type)
	}
	if trades.splitBuys[0].Type != model.TradeTypeBuy {
		t.Errorf("expected buy type, got %s", trades.splitBuys[0].Type)
	}
	if trades.splitSells[0].Signature != "sig2" || trades.splitBuys[0].Signature != "sig2" {
		t.Errorf("expected both halves to share signature sig2, got %s and %s", trades.splitSells[0].Signature, trades.splitBuys[0].Signature)
	}
	if len(dispatcher.dispatched) != 2 {
		t.Fatalf("expected 2 dispatched trades, got %d", len(dispatcher.dispatched))
	}
}

// The sell half of a split has nothing to do with the buy-side repeat
// throttle and must always persist and dispatch, even when the buy half is
// a throttled small repeat buy.
func TestProcessSplit_ThrottledBuyHalfStillPersistsBothAndDispatchesSellOnly(t *testing.T) {
	trades := newFakeTradeWriter()
	dispatcher := &fakeDispatcher{}
	p := newTestPipeline(trades, dispatcher, fakeRepeats{count: 1}, &fakeRepeatRecorder{})

	split := &model.SplitSwapPair{
		Signature: "sig3",
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Swapper:   swapperAddr,
		SellRecord: model.ParsedSwap{
			Signature:            "sig3",
			Timestamp:            time.Unix(1700000000, 0).UTC(),
			Swapper:              swapperAddr,
			Direction:            model.DirectionSell,
			BaseAsset:            model.Asset{Mint: "TokenA", Symbol: "A", Decimals: 6},
			QuoteAsset:           model.Asset{Mint: model.NativeMint, Symbol: model.NativeSymbol, Decimals: model.NativeDecimals},
			Amounts:              model.Amounts{BaseAmount: 500},
			ClassificationSource: "split_sell",
		},
		BuyRecord: model.ParsedSwap{
			Signature:            "sig3",
			Timestamp:            time.Unix(1700000000, 0).UTC(),
			Swapper:              swapperAddr,
			Direction:            model.DirectionBuy,
			BaseAsset:            model.Asset{Mint: "TokenB", Symbol: "B", Decimals: 6},
			QuoteAsset:           model.Asset{Mint: model.NativeMint, Symbol: model.NativeSymbol, Decimals: model.NativeDecimals},
			Amounts:              model.Amounts{BaseAmount: 1000, TotalWalletCost: floatPtr(1.0)},
			ClassificationSource: "split_buy",
		},
	}

	if err := p.ProcessSplit(context.Background(), model.KindWhale, split); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(trades.splitSells) != 1 || len(trades.splitBuys) != 1 {
		t.Fatalf("expected both halves persisted even when the buy half is throttled, got %d sells and %d buys", len(trades.splitSells), len(trades.splitBuys))
	}
	if len(dispatcher.dispatched) != 1 {
		t.Fatalf("expected only the sell half dispatched, got %d dispatches", len(dispatcher.dispatched))
	}
	if dispatcher.dispatched[0].Type != model.TradeTypeSell {
		t.Errorf("expected the dispatched record to be the sell half, got %s", dispatcher.dispatched[0].Type)
	}
}

func floatPtr(f float64) *float64 { return &f }

func TestApplyPromotedBonus_PatchesHotnessScoreForPromotedToken(t *testing.T) {
	trades := newFakeTradeWriter()
	dispatcher := &fakeDispatcher{}
	p := newTestPipeline(trades, dispatcher, fakeRepeats{count: 0}, &fakeRepeatRecorder{})
	p.c.PromotedTokens = map[string]bool{tokenMint: true}

	if err := p.ProcessSwap(context.Background(), model.KindWhale, baseBuySwap()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dispatcher.dispatched) != 1 {
		t.Fatalf("expected 1 dispatched trade, got %d", len(dispatcher.dispatched))
	}
	patched := dispatcher.dispatched[0]
	if want := trades.swaps[0].HotnessScore + 3; patched.HotnessScore != want {
		t.Errorf("expected patched hotness score %d, got %d", want, patched.HotnessScore)
	}
	if trades.scores["sig1:buy"] != patched.HotnessScore {
		t.Errorf("expected persisted score update %d, got %d", patched.HotnessScore, trades.scores["sig1:buy"])
	}
}
