package store

import (
	"time"

	"github.com/klingon-exchange/swapwatch/internal/model"
)

// tradeDocument is the explicit BSON shape of a StoredTrade. Field-by-field
// mapping instead of relying on struct tags on model.StoredTrade keeps the
// domain model free of persistence concerns, the same separation the
// teacher draws between its Trade struct and the SQL columns CreateTrade
// writes (internal/storage/trades.go).
type tradeDocument struct {
	Signature                  string             `bson:"signature"`
	Type                       string             `bson:"type"`
	ClassificationSource       string             `bson:"classificationSource"`
	BuyAmount                  float64            `bson:"buyAmount"`
	SellAmount                 float64            `bson:"sellAmount"`
	Imputed                    bool               `bson:"imputed"`
	TokenInAmount              float64            `bson:"tokenInAmount"`
	TokenOutAmount             float64            `bson:"tokenOutAmount"`
	TokenInPrice               float64            `bson:"tokenInPrice"`
	TokenOutPrice              float64            `bson:"tokenOutPrice"`
	BuySolAmount               *float64           `bson:"buySolAmount,omitempty"`
	SellSolAmount              *float64           `bson:"sellSolAmount,omitempty"`
	TokenIn                    tokenDocument      `bson:"tokenIn"`
	TokenOut                   tokenDocument      `bson:"tokenOut"`
	Protocol                   string             `bson:"protocol"`
	GasFeeUSD                  float64            `bson:"gasFeeUsd"`
	TrackedAccount             trackedRefDocument `bson:"trackedAccount"`
	MarketCapBuy               float64            `bson:"marketCapBuy"`
	MarketCapSell              float64            `bson:"marketCapSell"`
	HotnessScore               int                `bson:"hotnessScore"`
	TxTimestamp                time.Time          `bson:"txTimestamp"`
	TokenInCreationAgeSeconds  *float64           `bson:"tokenInCreationAgeSeconds,omitempty"`
	TokenOutCreationAgeSeconds *float64           `bson:"tokenOutCreationAgeSeconds,omitempty"`
}

type tokenDocument struct {
	Symbol    string  `bson:"symbol"`
	Name      string  `bson:"name"`
	Address   string  `bson:"address"`
	ImageURL  string  `bson:"imageUrl"`
	MarketCap float64 `bson:"marketCap"`
	USDAmount float64 `bson:"usdAmount"`
}

type trackedRefDocument struct {
	Address    string                  `bson:"address"`
	Labels     []string                `bson:"labels,omitempty"`
	Influencer *influencerRefDocument  `bson:"influencer,omitempty"`
}

type influencerRefDocument struct {
	Name          string `bson:"name"`
	Handle        string `bson:"handle"`
	FollowerCount int64  `bson:"followerCount"`
	Avatar        string `bson:"avatar"`
}

func toTradeDocument(t model.StoredTrade) tradeDocument {
	doc := tradeDocument{
		Signature:            t.Signature,
		Type:                 string(t.Type),
		ClassificationSource: t.ClassificationSource,
		BuyAmount:            t.USDAmounts.BuyAmount,
		SellAmount:           t.USDAmounts.SellAmount,
		Imputed:              t.USDAmounts.Imputed,
		TokenInAmount:        t.TokenAmounts.TokenInAmount,
		TokenOutAmount:       t.TokenAmounts.TokenOutAmount,
		TokenInPrice:         t.TokenPrices.TokenInPrice,
		TokenOutPrice:        t.TokenPrices.TokenOutPrice,
		BuySolAmount:         t.SolAmounts.BuySolAmount,
		SellSolAmount:        t.SolAmounts.SellSolAmount,
		TokenIn:              toTokenDocument(t.TokenIn),
		TokenOut:             toTokenDocument(t.TokenOut),
		Protocol:             t.Protocol,
		GasFeeUSD:            t.GasFeeUSD,
		TrackedAccount:       toTrackedRefDocument(t.TrackedAccount),
		MarketCapBuy:         t.MarketCap.Buy,
		MarketCapSell:        t.MarketCap.Sell,
		HotnessScore:         t.HotnessScore,
		TxTimestamp:          t.Timestamps.Tx,
	}
	if t.Timestamps.TokenInCreationAge != nil {
		s := t.Timestamps.TokenInCreationAge.Seconds()
		doc.TokenInCreationAgeSeconds = &s
	}
	if t.Timestamps.TokenOutCreationAge != nil {
		s := t.Timestamps.TokenOutCreationAge.Seconds()
		doc.TokenOutCreationAgeSeconds = &s
	}
	return doc
}

func toTokenDocument(a model.TokenDescriptor) tokenDocument {
	return tokenDocument{
		Symbol:    a.Symbol,
		Name:      a.Name,
		Address:   a.Address,
		ImageURL:  a.ImageURL,
		MarketCap: a.MarketCap,
		USDAmount: a.USDAmount,
	}
}

func toTrackedRefDocument(r model.TrackedAccountRef) trackedRefDocument {
	doc := trackedRefDocument{Address: r.Address, Labels: r.Labels}
	if r.Influencer != nil {
		doc.Influencer = &influencerRefDocument{
			Name:          r.Influencer.Name,
			Handle:        r.Influencer.Handle,
			FollowerCount: r.Influencer.FollowerCount,
			Avatar:        r.Influencer.Avatar,
		}
	}
	return doc
}

func fromTradeDocument(doc tradeDocument) model.StoredTrade {
	t := model.StoredTrade{
		Signature:            doc.Signature,
		Type:                 model.TradeType(doc.Type),
		ClassificationSource: doc.ClassificationSource,
		USDAmounts: model.USDAmounts{
			BuyAmount:  doc.BuyAmount,
			SellAmount: doc.SellAmount,
			Imputed:    doc.Imputed,
		},
		TokenAmounts: model.TokenAmounts{
			TokenInAmount:  doc.TokenInAmount,
			TokenOutAmount: doc.TokenOutAmount,
		},
		TokenPrices: model.TokenPrices{
			TokenInPrice:  doc.TokenInPrice,
			TokenOutPrice: doc.TokenOutPrice,
		},
		SolAmounts: model.SolAmounts{
			BuySolAmount:  doc.BuySolAmount,
			SellSolAmount: doc.SellSolAmount,
		},
		TokenIn:  fromTokenDocument(doc.TokenIn),
		TokenOut: fromTokenDocument(doc.TokenOut),
		Protocol: doc.Protocol,
		GasFeeUSD: doc.GasFeeUSD,
		TrackedAccount: fromTrackedRefDocument(doc.TrackedAccount),
		MarketCap: model.MarketCapSnapshot{
			Buy:  doc.MarketCapBuy,
			Sell: doc.MarketCapSell,
		},
		HotnessScore: doc.HotnessScore,
		Timestamps: model.TradeTimestamps{
			Tx: doc.TxTimestamp,
		},
	}
	if doc.TokenInCreationAgeSeconds != nil {
		d := time.Duration(*doc.TokenInCreationAgeSeconds * float64(time.Second))
		t.Timestamps.TokenInCreationAge = &d
	}
	if doc.TokenOutCreationAgeSeconds != nil {
		d := time.Duration(*doc.TokenOutCreationAgeSeconds * float64(time.Second))
		t.Timestamps.TokenOutCreationAge = &d
	}
	return t
}

func fromTokenDocument(doc tokenDocument) model.TokenDescriptor {
	return model.TokenDescriptor{
		Symbol:    doc.Symbol,
		Name:      doc.Name,
		Address:   doc.Address,
		ImageURL:  doc.ImageURL,
		MarketCap: doc.MarketCap,
		USDAmount: doc.USDAmount,
	}
}

func fromTrackedRefDocument(doc trackedRefDocument) model.TrackedAccountRef {
	ref := model.TrackedAccountRef{Address: doc.Address, Labels: doc.Labels}
	if doc.Influencer != nil {
		ref.Influencer = &model.InfluencerProfile{
			Name:          doc.Influencer.Name,
			Handle:        doc.Influencer.Handle,
			FollowerCount: doc.Influencer.FollowerCount,
			Avatar:        doc.Influencer.Avatar,
		}
	}
	return ref
}
