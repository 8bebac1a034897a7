package classifier

import (
	"strconv"

	"github.com/klingon-exchange/swapwatch/internal/model"
	"github.com/klingon-exchange/swapwatch/pkg/helpers"
)

// netDelta is one asset's net balance change for the swapper across a
// transaction, in native (post-decimal) units.
type netDelta struct {
	Mint     string
	Symbol   string
	Decimals uint8
	Amount   float64 // signed: negative = sent, positive = received
}

// netDeltas implements §4.2 step C: compute the swapper's net change per
// mint between pre- and post-token balances, plus the native lamport delta,
// dropping rent refunds below the dust threshold and collapsing
// intermediate assets that net to (near) zero.
func netDeltas(tx *model.RawTxNotification, swapper string) []netDelta {
	byMint := make(map[string]*netDelta)

	for _, bal := range tx.Meta.PreTokenBalances {
		if bal.Owner != swapper {
			continue
		}
		d := byMint[bal.Mint]
		if d == nil {
			d = &netDelta{Mint: bal.Mint, Decimals: bal.Decimals}
			byMint[bal.Mint] = d
		}
		d.Amount -= bal.UIAmount
	}
	for _, bal := range tx.Meta.PostTokenBalances {
		if bal.Owner != swapper {
			continue
		}
		d := byMint[bal.Mint]
		if d == nil {
			d = &netDelta{Mint: bal.Mint, Decimals: bal.Decimals}
			byMint[bal.Mint] = d
		}
		d.Amount += bal.UIAmount
	}

	if lamports, ok := nativeLamportDelta(tx, swapper); ok {
		d := byMint[model.NativeMint]
		if d == nil {
			d = &netDelta{Mint: model.NativeMint, Decimals: model.NativeDecimals}
			byMint[model.NativeMint] = d
		}
		d.Amount += lamportsToSOL(lamports)
	}

	out := make([]netDelta, 0, len(byMint))
	for _, d := range byMint {
		if d.Mint == model.NativeMint && isDustRefund(tx, d) {
			continue
		}
		if isNearZero(d.Amount) {
			continue // collapsed intermediate hop
		}
		if d.Symbol == "" && d.Mint == model.NativeMint {
			d.Symbol = model.NativeSymbol
		}
		out = append(out, *d)
	}
	return out
}

// surviving picks the swapper's two surviving deltas: exactly one
// net-negative (sent) and one net-positive (received). Any other shape is
// ambiguous.
func surviving(deltas []netDelta) (sent, received netDelta, ok bool) {
	var negatives, positives []netDelta
	for _, d := range deltas {
		switch {
		case d.Amount < 0:
			negatives = append(negatives, d)
		case d.Amount > 0:
			positives = append(positives, d)
		}
	}
	if len(negatives) != 1 || len(positives) != 1 {
		return netDelta{}, netDelta{}, false
	}
	return negatives[0], positives[0], true
}

// unambiguous reports whether deltas resolve to exactly one sent and one
// received asset (used by step F's confidence computation).
func unambiguous(deltas []netDelta) bool {
	_, _, ok := surviving(deltas)
	return ok
}

// direction implements §4.2 step D: BUY when the received asset is the
// non-native base; SELL when native is received and the base is sent.
func direction(sent, received netDelta) (dir model.Direction, base, quote model.Asset, ok bool) {
	sentNative := model.IsNativeMint(sent.Mint)
	receivedNative := model.IsNativeMint(received.Mint)

	switch {
	case receivedNative && !sentNative:
		// SELL: swapper sends the base token, receives native quote.
		return model.DirectionSell,
			model.Asset{Mint: sent.Mint, Symbol: sent.Symbol, Decimals: sent.Decimals},
			model.Asset{Mint: received.Mint, Symbol: received.Symbol, Decimals: received.Decimals},
			true
	case sentNative && !receivedNative:
		// BUY: swapper sends native quote, receives the base token.
		return model.DirectionBuy,
			model.Asset{Mint: received.Mint, Symbol: received.Symbol, Decimals: received.Decimals},
			model.Asset{Mint: sent.Mint, Symbol: sent.Symbol, Decimals: sent.Decimals},
			true
	case !sentNative && !receivedNative:
		// Token↔token: direction is resolved by the caller after the split
		// decision (§4.2 step E) — base/quote are provisional here and
		// re-derived per split leg.
		return model.DirectionBuy,
			model.Asset{Mint: received.Mint, Symbol: received.Symbol, Decimals: received.Decimals},
			model.Asset{Mint: sent.Mint, Symbol: sent.Symbol, Decimals: sent.Decimals},
			true
	default:
		// Both native: not a swap (shouldn't happen — a single mint can't
		// be both the unique sent and received asset).
		return "", model.Asset{}, model.Asset{}, false
	}
}

func nativeLamportDelta(tx *model.RawTxNotification, swapper string) (int64, bool) {
	idx := -1
	for i, key := range tx.AccountKeys {
		if key == swapper {
			idx = i
			break
		}
	}
	if idx < 0 || idx >= len(tx.Meta.PreBalances) || idx >= len(tx.Meta.PostBalances) {
		return 0, false
	}
	return int64(tx.Meta.PostBalances[idx]) - int64(tx.Meta.PreBalances[idx]), true
}

func lamportsToSOL(lamports int64) float64 {
	return helpers.LamportsToSOL(lamports)
}

// isDustRefund drops a native delta whose magnitude is below the dust
// threshold and which does not correspond to the transaction's fee (a rent
// refund, not a swap leg).
func isDustRefund(tx *model.RawTxNotification, d *netDelta) bool {
	lamports := int64(d.Amount * 1e9)
	if lamports < 0 {
		lamports = -lamports
	}
	return lamports <= model.DustThresholdLamports && lamports != int64(tx.Meta.Fee)
}

func isNearZero(amount float64) bool {
	const epsilon = 1e-9
	return amount > -epsilon && amount < epsilon
}

func floatStr(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
