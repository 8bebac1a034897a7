// Package classifier implements the pure swap-classification algorithm:
// raw parsed transaction + a tracked account in, a ParsedSwap, a
// SplitSwapPair, or a typed Rejection out. Nothing in this package performs
// I/O; every function is a pure function of its inputs, per spec §8's
// "classifier outputs are pure functions" invariant.
package classifier

import (
	"github.com/klingon-exchange/swapwatch/internal/model"
)

// Config holds the classifier's tunable knobs.
type Config struct {
	// MinConfidence, when set, floors acceptance at step F (§4.2).
	MinConfidence model.Confidence
}

// Result is the outcome of classifying one (rawTx, trackedAccount) pair: at
// most one of Swap, Split, or Reject is non-nil.
type Result struct {
	Swap   *model.ParsedSwap
	Split  *model.SplitSwapPair
	Reject *model.Rejection
}

// Classify runs steps A-G of §4.2 against rawTx from the perspective of
// account. account must already be a matched tracked account (the caller
// runs step A once per notification and re-invokes Classify per match).
func Classify(cfg Config, tx *model.RawTxNotification, account string) Result {
	if tx == nil {
		return reject(model.RejectMissingData, "", 0, nil)
	}
	if tx.Meta.Err != nil {
		return reject(model.RejectOnChainError, tx.FeePayer, len(tx.Signers), nil)
	}

	swapper, method, ok := identifySwapper(tx, account)
	if !ok {
		return reject(model.RejectNoSwapper, tx.FeePayer, len(tx.Signers), nil)
	}

	deltas := netDeltas(tx, swapper)
	sent, received, ok := surviving(deltas)
	if !ok {
		return reject(model.RejectAmbiguousDirection, tx.FeePayer, len(tx.Signers), debugDeltas(deltas))
	}

	direction, base, quote, ok := direction(sent, received)
	if !ok {
		return reject(model.RejectAmbiguousDirection, tx.FeePayer, len(tx.Signers), debugDeltas(deltas))
	}

	confidence := classifyConfidence(method, unambiguous(deltas))
	if !confidence.MeetsFloor(cfg.MinConfidence) {
		return reject(model.RejectBelowConfidence, tx.FeePayer, len(tx.Signers), nil)
	}

	bothNonNative := !model.IsNativeMint(sent.Mint) && !model.IsNativeMint(received.Mint)
	if bothNonNative {
		stableLeg, stableAmt := stableNativeLeg(tx)
		if !stableLeg {
			split := buildSplitPair(tx, swapper, method, confidence, sent, received)
			return Result{Split: &split}
		}
		swap := buildSingleSwap(tx, swapper, method, confidence, direction, base, quote, sent, received, stableAmt)
		return Result{Swap: &swap}
	}

	swap := buildSingleSwap(tx, swapper, method, confidence, direction, base, quote, sent, received, 0)
	return Result{Swap: &swap}
}

func reject(reason model.RejectReason, feePayer string, signerCount int, debug map[string]string) Result {
	return Result{Reject: &model.Rejection{
		Reason:      reason,
		FeePayer:    feePayer,
		SignerCount: signerCount,
		Debug:       debug,
	}}
}

func debugDeltas(deltas []netDelta) map[string]string {
	out := make(map[string]string, len(deltas))
	for _, d := range deltas {
		out[d.Mint] = floatStr(d.Amount)
	}
	return out
}
