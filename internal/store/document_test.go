package store

import (
	"testing"
	"time"

	"github.com/klingon-exchange/swapwatch/internal/model"
)

func TestTradeDocumentRoundTrip_PreservesSolAmounts(t *testing.T) {
	sell := 2.5
	trade := model.StoredTrade{
		Signature:  "sig1",
		Type:       model.TradeTypeSell,
		USDAmounts: model.USDAmounts{BuyAmount: 100, SellAmount: 90, Imputed: true},
		SolAmounts: model.SolAmounts{SellSolAmount: &sell},
		TokenIn:    model.TokenDescriptor{Symbol: "TOK", Address: "mint1"},
		TokenOut:   model.TokenDescriptor{Symbol: "SOL", Address: model.NativeMint},
		TrackedAccount: model.TrackedAccountRef{
			Address:    "acct1",
			Labels:     []string{"SMART MONEY"},
			Influencer: &model.InfluencerProfile{Name: "Alice", Handle: "@alice"},
		},
		Timestamps: model.TradeTimestamps{Tx: time.Unix(1700000000, 0).UTC()},
	}

	doc := toTradeDocument(trade)
	if doc.BuySolAmount != nil {
		t.Errorf("expected nil BuySolAmount, got %v", *doc.BuySolAmount)
	}
	if doc.SellSolAmount == nil || *doc.SellSolAmount != 2.5 {
		t.Errorf("expected SellSolAmount 2.5, got %v", doc.SellSolAmount)
	}
	if !doc.Imputed {
		t.Error("expected Imputed true")
	}

	back := fromTradeDocument(doc)
	if back.Signature != trade.Signature {
		t.Errorf("expected signature %s, got %s", trade.Signature, back.Signature)
	}
	if back.Type != trade.Type {
		t.Errorf("expected type %s, got %s", trade.Type, back.Type)
	}
	if back.SolAmounts.BuySolAmount != nil {
		t.Errorf("expected nil BuySolAmount after round trip, got %v", *back.SolAmounts.BuySolAmount)
	}
	if back.SolAmounts.SellSolAmount == nil || *back.SolAmounts.SellSolAmount != 2.5 {
		t.Errorf("expected SellSolAmount 2.5 after round trip, got %v", back.SolAmounts.SellSolAmount)
	}
	if back.TrackedAccount.Influencer == nil || back.TrackedAccount.Influencer.Name != "Alice" {
		t.Errorf("expected influencer name Alice, got %+v", back.TrackedAccount.Influencer)
	}
	if !back.Timestamps.Tx.Equal(trade.Timestamps.Tx) {
		t.Errorf("expected tx timestamp %s, got %s", trade.Timestamps.Tx, back.Timestamps.Tx)
	}
}

func TestTradeDocumentRoundTrip_PreservesCreationAge(t *testing.T) {
	age := 48 * time.Hour
	trade := model.StoredTrade{
		Signature:  "sig2",
		Type:       model.TradeTypeBuy,
		Timestamps: model.TradeTimestamps{TokenInCreationAge: &age},
	}

	doc := toTradeDocument(trade)
	if doc.TokenInCreationAgeSeconds == nil {
		t.Fatal("expected TokenInCreationAgeSeconds to be set")
	}
	if doc.TokenOutCreationAgeSeconds != nil {
		t.Errorf("expected nil TokenOutCreationAgeSeconds, got %v", *doc.TokenOutCreationAgeSeconds)
	}

	back := fromTradeDocument(doc)
	if back.Timestamps.TokenInCreationAge == nil || *back.Timestamps.TokenInCreationAge != age {
		t.Errorf("expected TokenInCreationAge %s, got %v", age, back.Timestamps.TokenInCreationAge)
	}
	if back.Timestamps.TokenOutCreationAge != nil {
		t.Errorf("expected nil TokenOutCreationAge, got %v", *back.Timestamps.TokenOutCreationAge)
	}
}

func TestTradeDocument_NilInfluencerStaysNil(t *testing.T) {
	trade := model.StoredTrade{
		Signature:      "sig3",
		TrackedAccount: model.TrackedAccountRef{Address: "acct2"},
	}
	doc := toTradeDocument(trade)
	if doc.TrackedAccount.Influencer != nil {
		t.Errorf("expected nil influencer, got %+v", doc.TrackedAccount.Influencer)
	}

	back := fromTradeDocument(doc)
	if back.TrackedAccount.Influencer != nil {
		t.Errorf("expected nil influencer after round trip, got %+v", back.TrackedAccount.Influencer)
	}
}
