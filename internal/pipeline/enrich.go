package pipeline

import (
	"context"
	"time"

	"github.com/klingon-exchange/swapwatch/internal/metadata"
	"github.com/klingon-exchange/swapwatch/internal/model"
	"github.com/klingon-exchange/swapwatch/internal/scoring"
)

// build implements §4.4 steps 5-6 for one ParsedSwap: resolve token
// metadata, price both legs, score, and assemble the StoredTrade that gets
// persisted. TokenIn/TokenOut follow the conventional DEX sense: TokenIn is
// the asset the swapper gave up, TokenOut is the asset the swapper
// received — so for a BUY, TokenIn is the quote asset and TokenOut is the
// base asset, and for a SELL it is the reverse.
func (p *Pipeline) build(ctx context.Context, swap *model.ParsedSwap) (model.StoredTrade, error) {
	inAsset, outAsset := swap.QuoteAsset, swap.BaseAsset
	if swap.Direction == model.DirectionSell {
		inAsset, outAsset = swap.BaseAsset, swap.QuoteAsset
	}
	inAmount, outAmount := legAmounts(swap)

	inMeta := p.resolveMetadata(ctx, inAsset)
	outMeta := p.resolveMetadata(ctx, outAsset)

	quote := p.c.Pricer.Quote(ctx, swap)
	inPrice, outPrice := quote.QuoteUSDPrice, quote.BaseUSDPrice
	if swap.Direction == model.DirectionSell {
		inPrice, outPrice = quote.BaseUSDPrice, quote.QuoteUSDPrice
	}

	inMarketCap := p.resolveMarketCap(ctx, inAsset.Mint)
	outMarketCap := p.resolveMarketCap(ctx, outAsset.Mint)

	account := p.resolveTrackedAccount(swap.Swapper)

	trade := model.StoredTrade{
		Signature:            swap.Signature,
		Type:                 tradeType(swap.Direction),
		ClassificationSource: swap.ClassificationSource,
		USDAmounts: model.USDAmounts{
			BuyAmount:  outAmount * outPrice,
			SellAmount: inAmount * inPrice,
			Imputed:    quote.Imputed,
		},
		TokenAmounts: model.TokenAmounts{
			TokenInAmount:  inAmount,
			TokenOutAmount: outAmount,
		},
		TokenPrices: model.TokenPrices{
			TokenInPrice:  inPrice,
			TokenOutPrice: outPrice,
		},
		SolAmounts: quote.SolAmounts,
		TokenIn: model.TokenDescriptor{
			Symbol:    resolvedSymbol(inAsset, inMeta),
			Name:      inMeta.Name,
			Address:   inAsset.Mint,
			ImageURL:  inMeta.ImageURL,
			MarketCap: inMarketCap,
			USDAmount: inAmount * inPrice,
		},
		TokenOut: model.TokenDescriptor{
			Symbol:    resolvedSymbol(outAsset, outMeta),
			Name:      outMeta.Name,
			Address:   outAsset.Mint,
			ImageURL:  outMeta.ImageURL,
			MarketCap: outMarketCap,
			USDAmount: outAmount * outPrice,
		},
		Protocol:       swap.Protocol,
		GasFeeUSD:      feeTotalNative(swap) * p.c.Pricer.CurrentNativePrice(ctx),
		TrackedAccount: trackedRef(account),
		MarketCap: model.MarketCapSnapshot{
			Buy:  outMarketCap,
			Sell: inMarketCap,
		},
		Timestamps: model.TradeTimestamps{Tx: swap.Timestamp},
	}

	// §4.7: hotness is defined for BUY records only; SELL records keep the
	// zero value.
	if swap.Direction == model.DirectionBuy {
		trade.HotnessScore = p.score(ctx, swap, trade, account)
	}
	return trade, nil
}

func legAmounts(swap *model.ParsedSwap) (in, out float64) {
	if swap.Amounts.SwapInputAmount != nil {
		in = *swap.Amounts.SwapInputAmount
	} else if swap.Direction == model.DirectionSell {
		in = swap.Amounts.BaseAmount
	}
	if swap.Amounts.SwapOutputAmount != nil {
		out = *swap.Amounts.SwapOutputAmount
	} else if swap.Direction == model.DirectionBuy {
		out = swap.Amounts.BaseAmount
	}
	return in, out
}

func feeTotalNative(swap *model.ParsedSwap) float64 {
	f := swap.Amounts.FeeBreakdown
	return f.NetworkFee + f.PriorityFee + f.ProtocolFee
}

func tradeType(dir model.Direction) model.TradeType {
	if dir == model.DirectionSell {
		return model.TradeTypeSell
	}
	return model.TradeTypeBuy
}

func resolvedSymbol(asset model.Asset, resolved metadata.Resolved) string {
	if resolved.Symbol != "" {
		return resolved.Symbol
	}
	return asset.Symbol
}

func (p *Pipeline) resolveMarketCap(ctx context.Context, mint string) float64 {
	if p.c.MarketCaps == nil || model.IsNativeMint(mint) {
		return 0
	}
	marketCap, ok := p.c.MarketCaps.MarketCap(ctx, mint)
	if !ok {
		return 0
	}
	return marketCap
}

func (p *Pipeline) resolveTrackedAccount(address string) model.TrackedAccount {
	if p.c.Tracked == nil {
		return model.TrackedAccount{Address: address, Kind: p.c.Kind}
	}
	account, ok := p.c.Tracked(address)
	if !ok {
		return model.TrackedAccount{Address: address, Kind: p.c.Kind}
	}
	return account
}

func trackedRef(a model.TrackedAccount) model.TrackedAccountRef {
	return model.TrackedAccountRef{Address: a.Address, Labels: a.Labels, Influencer: a.Influencer}
}

// score computes the §4.7 hotness score for a BUY record. Callers must not
// invoke this for SELL records: the timing, volume-spike, and daily-repeat
// components are only meaningful for a tracked account's buy.
func (p *Pipeline) score(ctx context.Context, swap *model.ParsedSwap, trade model.StoredTrade, account model.TrackedAccount) int {
	in := scoring.Inputs{
		Kind:      p.c.Kind,
		Labels:    account.Labels,
		USDAmount: transactionSizeUSD(trade),
		MarketCap: trade.TokenOut.MarketCap,
	}
	if account.Influencer != nil {
		in.FollowerCount = account.Influencer.FollowerCount
	}

	isFirst, distinct := p.observeHotness(ctx, trade.TokenOut.Address, swap.Signature, account.Address)
	in.IsFirstBuy = isFirst
	in.DistinctBuyers = distinct
	in.DailyRepeatHit = scoring.DailyRepeatPenaltyApplies(p.c.Repeats, trade.TokenOut.Address, account.Address, swap.Timestamp)
	in.VolumeSpikeRatio = p.resolveVolumeSpikeRatio(ctx, trade.TokenOut.Address, swap.Timestamp)

	return scoring.Score(in)
}

// resolveVolumeSpikeRatio backs scoring.VolumeSpike's ratio input (§4.7).
// A lookup failure or a nil Volume collaborator degrades to "no spike"
// rather than blocking persistence, matching §7's enrichment-miss policy.
func (p *Pipeline) resolveVolumeSpikeRatio(ctx context.Context, tokenAddress string, at time.Time) float64 {
	if p.c.Volume == nil {
		return 0
	}
	ratio, err := p.c.Volume.BuyVolumeRatio(ctx, tokenAddress, at)
	if err != nil {
		p.log.Warn("volume spike lookup failed", "token", tokenAddress, "error", err)
		return 0
	}
	return ratio
}

func (p *Pipeline) observeHotness(ctx context.Context, tokenAddress, signature, trackedAccount string) (bool, int) {
	if p.c.Hotness == nil {
		return false, model.DistinctBuyerTimingThreshold(p.c.Kind)
	}
	isFirst, distinct, err := p.c.Hotness.Observe(ctx, tokenAddress, signature, trackedAccount)
	if err != nil {
		p.log.Warn("hotness observe failed", "signature", signature, "error", err)
		return false, model.DistinctBuyerTimingThreshold(p.c.Kind)
	}
	return isFirst, distinct
}

func transactionSizeUSD(trade model.StoredTrade) float64 {
	if trade.USDAmounts.SellAmount > 0 {
		return trade.USDAmounts.SellAmount
	}
	return trade.USDAmounts.BuyAmount
}

func (p *Pipeline) resolveMetadata(ctx context.Context, asset model.Asset) metadata.Resolved {
	if p.c.Metadata == nil {
		return metadata.Resolved{Metadata: metadata.Metadata{Symbol: asset.Symbol}}
	}
	return p.c.Metadata.Resolve(ctx, asset.Mint, asset.Symbol)
}
