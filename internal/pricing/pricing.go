// Package pricing implements §4.6's native-coin pricing and swap-ratio USD
// mapping. Nothing here ever derives a native-coin amount from a token's
// USD price — that direction of conversion is spec §4.6's "critical
// invariant," reproduced exactly in storedSolAmounts below.
package pricing

import (
	"context"
	"time"

	"github.com/klingon-exchange/swapwatch/internal/model"
	"github.com/klingon-exchange/swapwatch/pkg/logging"
)

// NativePriceSource resolves the current and historical USD price of the
// native coin, backed by the token-pricing cache described in §4.6.
type NativePriceSource interface {
	CurrentPrice(ctx context.Context) (float64, error)
	HistoricalPrice(ctx context.Context, at time.Time) (float64, error)
}

// TokenPriceSource resolves a token's USD price from the pricing cache,
// when it is already known without a swap-ratio computation.
type TokenPriceSource interface {
	TokenPrice(ctx context.Context, mint string) (float64, bool)
}

// Quote bundles the USD prices and native-leg amounts the worker needs to
// populate a StoredTrade's USDAmounts/SolAmounts (§4.6).
type Quote struct {
	BaseUSDPrice  float64
	QuoteUSDPrice float64
	Imputed       bool // true when one side's price was estimated via the swap ratio
	SolAmounts    model.SolAmounts
}

// Pricer computes USD quotes for a ParsedSwap per §4.6.
type Pricer struct {
	native          NativePriceSource
	tokens          TokenPriceSource
	fallbackNative  float64
	log             *logging.Logger
}

func New(native NativePriceSource, tokens TokenPriceSource, fallbackNativePrice float64) *Pricer {
	return &Pricer{
		native:         native,
		tokens:         tokens,
		fallbackNative: fallbackNativePrice,
		log:            logging.GetDefault().Component("pricing"),
	}
}

// CurrentNativePrice fetches the native coin's USD price once per job. On
// failure or a non-positive result it falls back to the configured
// constant and logs a warning, per §4.6.
func (p *Pricer) CurrentNativePrice(ctx context.Context) float64 {
	if p.native != nil {
		price, err := p.native.CurrentPrice(ctx)
		if err == nil && price > 0 {
			return price
		}
		p.log.Warn("native price unavailable, using fallback", "fallback", p.fallbackNative, "error", err)
	}
	return p.fallbackNative
}

// Quote computes the full §4.6 pricing outcome for one ParsedSwap.
func (p *Pricer) Quote(ctx context.Context, swap *model.ParsedSwap) Quote {
	baseNative := model.IsNativeMint(swap.BaseAsset.Mint)
	quoteNative := model.IsNativeMint(swap.QuoteAsset.Mint)

	var historicalNative float64
	if baseNative || quoteNative {
		historicalNative = p.historicalNativePrice(ctx, swap.Timestamp)
	}

	q := Quote{}

	switch {
	case quoteNative:
		// Native is the quote side: price the base token via the swap
		// ratio when an amount for both sides is observable.
		nativeAmount := nativeLegAmount(swap)
		if nativeAmount > 0 && swap.Amounts.BaseAmount > 0 {
			q.BaseUSDPrice = (nativeAmount * historicalNative) / swap.Amounts.BaseAmount
			q.Imputed = true
		} else if price, ok := p.tokenPrice(ctx, swap.BaseAsset.Mint); ok {
			q.BaseUSDPrice = price
		}
		q.QuoteUSDPrice = historicalNative
	case baseNative:
		nativeAmount := swap.Amounts.BaseAmount
		if nativeAmount > 0 {
			if price, ok := p.tokenPrice(ctx, swap.QuoteAsset.Mint); ok {
				q.QuoteUSDPrice = price
			} else {
				// Token-only price fallback (§4.6): estimate the missing
				// quote price from the known native side.
				quoteAmount := quoteLegAmount(swap)
				if quoteAmount > 0 {
					q.QuoteUSDPrice = (nativeAmount * historicalNative) / quoteAmount
					q.Imputed = true
				}
			}
		}
		q.BaseUSDPrice = historicalNative
	default:
		// Non-native on both sides — resolve both from the token price
		// cache, no swap-ratio available. Split halves and stable-leg
		// collapses carry a native quote and take the quote-native branch
		// above instead.
		if price, ok := p.tokenPrice(ctx, swap.BaseAsset.Mint); ok {
			q.BaseUSDPrice = price
		}
		if price, ok := p.tokenPrice(ctx, swap.QuoteAsset.Mint); ok {
			q.QuoteUSDPrice = price
		}
	}

	q.SolAmounts = storedSolAmounts(swap)
	return q
}

func (p *Pricer) historicalNativePrice(ctx context.Context, at time.Time) float64 {
	if p.native == nil {
		return p.fallbackNative
	}
	price, err := p.native.HistoricalPrice(ctx, at)
	if err != nil || price <= 0 {
		p.log.Warn("historical native price unavailable, using fallback", "error", err)
		return p.fallbackNative
	}
	return price
}

func (p *Pricer) tokenPrice(ctx context.Context, mint string) (float64, bool) {
	if p.tokens == nil {
		return 0, false
	}
	return p.tokens.TokenPrice(ctx, mint)
}

func nativeLegAmount(swap *model.ParsedSwap) float64 {
	if swap.Amounts.TotalWalletCost != nil {
		return *swap.Amounts.TotalWalletCost
	}
	if swap.Amounts.NetWalletReceived != nil {
		return *swap.Amounts.NetWalletReceived
	}
	if swap.Amounts.SwapInputAmount != nil && model.IsNativeMint(swap.QuoteAsset.Mint) {
		return *swap.Amounts.SwapInputAmount
	}
	return 0
}

func quoteLegAmount(swap *model.ParsedSwap) float64 {
	if swap.Amounts.SwapOutputAmount != nil {
		return *swap.Amounts.SwapOutputAmount
	}
	return 0
}

// storedSolAmounts implements §4.6's critical invariant exactly: the four
// BUY/SELL × base/quote-native cases, never computed as usdValue/nativePrice.
func storedSolAmounts(swap *model.ParsedSwap) model.SolAmounts {
	baseNative := model.IsNativeMint(swap.BaseAsset.Mint)
	quoteNative := model.IsNativeMint(swap.QuoteAsset.Mint)

	switch {
	case swap.Direction == model.DirectionBuy && quoteNative:
		if swap.Amounts.TotalWalletCost != nil {
			return model.SolAmounts{SellSolAmount: swap.Amounts.TotalWalletCost}
		}
	case swap.Direction == model.DirectionBuy && baseNative:
		amt := swap.Amounts.BaseAmount
		return model.SolAmounts{BuySolAmount: &amt}
	case swap.Direction == model.DirectionSell && quoteNative:
		if swap.Amounts.NetWalletReceived != nil {
			return model.SolAmounts{BuySolAmount: swap.Amounts.NetWalletReceived}
		}
	case swap.Direction == model.DirectionSell && baseNative:
		amt := swap.Amounts.BaseAmount
		return model.SolAmounts{SellSolAmount: &amt}
	}
	return model.SolAmounts{}
}

// FeeLamportsToUSD implements the correct gas-fee conversion named in
// DESIGN.md's resolution of Open Question 1: lamports divided by 1e9 (to
// native units) then multiplied by the native USD price. pipeline.build
// computes the same quantity a different way — it sums the already
// native-unit FeeBreakdown and multiplies by CurrentNativePrice — since by
// the time a ParsedSwap exists the classifier has already converted its
// fee out of lamports; this function exists so that conversion's
// correctness is pinned down and unit-tested independent of the classifier.
func FeeLamportsToUSD(lamports uint64, nativeUSDPrice float64) float64 {
	return (float64(lamports) / 1e9) * nativeUSDPrice
}

// grossLamportsToUSD mirrors the source's other, buggy call site described
// in spec §9: it treats raw lamports as already being in native units. Kept
// only so its ten-digit-overstatement behavior is unit-tested and
// documented as dead — see DESIGN.md — never called from the persistence
// path.
func grossLamportsToUSD(lamports uint64, nativeUSDPrice float64) float64 {
	return float64(lamports) * nativeUSDPrice
}
