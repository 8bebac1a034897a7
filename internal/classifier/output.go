package classifier

import "github.com/klingon-exchange/swapwatch/internal/model"

// buildSingleSwap implements §4.2 step G for the non-split path: either a
// direct native↔token swap, or a token↔token route whose stable
// intermediate native leg (stableLegAmount, in native units; zero when not
// applicable) lets it collapse to one record with native as the quote.
//
// Resolution of the ambiguous "produces a single ParsedSwap with native as
// quote" wording (spec §4.2 step E): when a stable leg is observed, the
// record is always a BUY whose base is the received token, and the stable
// leg's own amount is used as the native quote amount rather than either
// token leg's raw amount, since that is the one amount the parser actually
// trusts.
func buildSingleSwap(tx *model.RawTxNotification, swapper string, method model.SwapperMethod, confidence model.Confidence, dir model.Direction, base, quote model.Asset, sent, received netDelta, stableLegAmount float64) model.ParsedSwap {
	swap := model.ParsedSwap{
		Signature:                   tx.Signature,
		Timestamp:                   tx.BlockTime,
		Swapper:                     swapper,
		Direction:                   dir,
		BaseAsset:                   base,
		QuoteAsset:                  quote,
		Confidence:                  confidence,
		SwapperIdentificationMethod: method,
		ClassificationSource:        "v2_parser",
	}
	swap.Amounts.FeeBreakdown.NetworkFee = lamportsToSOL(int64(tx.Meta.Fee))

	bothNonNative := !model.IsNativeMint(sent.Mint) && !model.IsNativeMint(received.Mint)

	if bothNonNative {
		// Stable-leg collapse: base is the received token, quote is native
		// using the observed stable leg amount.
		swap.BaseAsset = model.Asset{Mint: received.Mint, Symbol: received.Symbol, Decimals: received.Decimals}
		swap.QuoteAsset = model.Asset{Mint: model.NativeMint, Symbol: model.NativeSymbol, Decimals: model.NativeDecimals}
		swap.Direction = model.DirectionBuy
		swap.Amounts.BaseAmount = received.Amount
		in := stableLegAmount
		swap.Amounts.SwapInputAmount = &in
		swap.Amounts.TotalWalletCost = &in
		return swap
	}

	switch dir {
	case model.DirectionBuy:
		swap.Amounts.BaseAmount = received.Amount
		in := -sent.Amount // sent is negative; input amount is positive
		swap.Amounts.SwapInputAmount = &in
		out := received.Amount
		swap.Amounts.SwapOutputAmount = &out
		if model.IsNativeMint(sent.Mint) {
			cost := in
			swap.Amounts.TotalWalletCost = &cost
		}
	case model.DirectionSell:
		swap.Amounts.BaseAmount = -sent.Amount
		in := -sent.Amount
		swap.Amounts.SwapInputAmount = &in
		out := received.Amount
		swap.Amounts.SwapOutputAmount = &out
		if model.IsNativeMint(received.Mint) {
			net := out
			swap.Amounts.NetWalletReceived = &net
		}
	}

	return swap
}
