// Package model defines the core data types shared across the ingestion
// pipeline: tracked accounts, raw notifications, classified swaps, and the
// normalized record persisted to the document store.
package model

import "time"

// NativeMint is the wrapped-SOL mint address, used both as the native coin's
// SPL representation and as the sentinel a classifier checks asset mints
// against.
const NativeMint = "So11111111111111111111111111111111111111112"

// NativeSymbol and NativeDecimals describe the chain's base currency.
const (
	NativeSymbol   = "SOL"
	NativeDecimals = 9
)

// NativeGenesis is the fixed creation timestamp used for the native coin and
// its wrapped SPL form, per the enrichment age rule (§4.5): these never hit
// a market-data provider for creation time.
var NativeGenesis = time.Date(2020, time.March, 16, 0, 0, 0, 0, time.UTC)

// IsNativeMint reports whether mint is the native coin's SPL address.
func IsNativeMint(mint string) bool {
	return mint == NativeMint
}

// DustThresholdLamports is the fixed dust/rent-refund threshold from §4.2
// step C: native deltas at or below this magnitude are dropped unless the
// magnitude equals the transaction fee. Instruction data is not inspected
// for this check.
const DustThresholdLamports = 2_000_000 // ~0.002 SOL at 9 decimals
