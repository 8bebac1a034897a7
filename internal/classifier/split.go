package classifier

import "github.com/klingon-exchange/swapwatch/internal/model"

// stableNativeLeg implements the observable half of §4.2 step E: whether
// the raw-tx parser recorded a stable native intermediate in the route's
// inner instructions. When true, amt is that leg's native-unit size.
func stableNativeLeg(tx *model.RawTxNotification) (ok bool, amt float64) {
	if tx.Meta.IntermediateNativeLamports == nil {
		return false, 0
	}
	return true, lamportsToSOL(*tx.Meta.IntermediateNativeLamports)
}

// buildSplitPair constructs the SELL-then-BUY pair for a token↔token route
// with no stable native leg (§4.2 step E). sent is the token the swapper
// gave up, received is the token the swapper ended up with.
func buildSplitPair(tx *model.RawTxNotification, swapper string, method model.SwapperMethod, confidence model.Confidence, sent, received netDelta) model.SplitSwapPair {
	sellAmount := sent.Amount
	if sellAmount < 0 {
		sellAmount = -sellAmount
	}

	sell := model.ParsedSwap{
		Signature:                   tx.Signature,
		Timestamp:                   tx.BlockTime,
		Swapper:                     swapper,
		Direction:                   model.DirectionSell,
		BaseAsset:                   model.Asset{Mint: sent.Mint, Symbol: sent.Symbol, Decimals: sent.Decimals},
		QuoteAsset:                  model.Asset{Mint: model.NativeMint, Symbol: model.NativeSymbol, Decimals: model.NativeDecimals},
		Amounts:                     model.Amounts{BaseAmount: sellAmount},
		Confidence:                  confidence,
		Protocol:                    "",
		SwapperIdentificationMethod: method,
		ClassificationSource:        "split_sell",
	}
	// The network charges one fee per transaction; attribute it to the sell
	// leg so a split pair's total fee is never double-counted.
	sell.Amounts.FeeBreakdown.NetworkFee = lamportsToSOL(int64(tx.Meta.Fee))

	buy := model.ParsedSwap{
		Signature:                   tx.Signature,
		Timestamp:                   tx.BlockTime,
		Swapper:                     swapper,
		Direction:                   model.DirectionBuy,
		BaseAsset:                   model.Asset{Mint: received.Mint, Symbol: received.Symbol, Decimals: received.Decimals},
		QuoteAsset:                  model.Asset{Mint: model.NativeMint, Symbol: model.NativeSymbol, Decimals: model.NativeDecimals},
		Amounts:                     model.Amounts{BaseAmount: received.Amount},
		Confidence:                  confidence,
		Protocol:                    "",
		SwapperIdentificationMethod: method,
		ClassificationSource:        "split_buy",
	}

	return model.SplitSwapPair{
		Signature:  tx.Signature,
		Timestamp:  tx.BlockTime,
		Swapper:    swapper,
		Protocol:   "",
		SellRecord: sell,
		BuyRecord:  buy,
	}
}
