// Package helpers provides common utility functions used across the codebase.
package helpers

import (
	"fmt"
	"math/big"
	"strconv"
)

// FormatAmount formats an amount in smallest units as a decimal string.
// For example, FormatAmount(100000000, 8) returns "1" (1 BTC).
func FormatAmount(amount uint64, decimals uint8) string {
	if decimals == 0 {
		return fmt.Sprintf("%d", amount)
	}

	amountBig := new(big.Int).SetUint64(amount)
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)

	whole := new(big.Int).Div(amountBig, divisor)
	frac := new(big.Int).Mod(amountBig, divisor)

	if frac.Sign() == 0 {
		return whole.String()
	}

	fracStr := fmt.Sprintf("%0*d", int(decimals), frac)
	// Trim trailing zeros
	for len(fracStr) > 0 && fracStr[len(fracStr)-1] == '0' {
		fracStr = fracStr[:len(fracStr)-1]
	}

	return fmt.Sprintf("%s.%s", whole.String(), fracStr)
}

// ParseAmount parses a decimal string to smallest units.
// For example, ParseAmount("1", 8) returns 100000000 (1 BTC in satoshis).
func ParseAmount(s string, decimals uint8) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty amount string")
	}

	// Find decimal point
	var wholeStr, fracStr string
	for i, c := range s {
		if c == '.' {
			wholeStr = s[:i]
			fracStr = s[i+1:]
			break
		}
	}
	if wholeStr == "" {
		wholeStr = s
	}

	// Validate characters
	for _, c := range wholeStr {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid character in amount: %c", c)
		}
	}
	for _, c := range fracStr {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid character in amount: %c", c)
		}
	}

	// Pad or truncate fractional part
	for len(fracStr) < int(decimals) {
		fracStr += "0"
	}
	if len(fracStr) > int(decimals) {
		fracStr = fracStr[:decimals]
	}

	// Parse combined value
	combined := wholeStr + fracStr
	amount := new(big.Int)
	_, ok := amount.SetString(combined, 10)
	if !ok {
		return 0, fmt.Errorf("invalid amount: %s", s)
	}

	if !amount.IsUint64() {
		return 0, fmt.Errorf("amount overflow: %s", s)
	}

	return amount.Uint64(), nil
}

// LamportsDecimals is SOL's fixed decimal precision: 1 SOL = 1e9 lamports.
const LamportsDecimals = 9

// LamportsToSOL converts a signed lamport amount to SOL. Negative lamports
// (a net outflow) round-trip through FormatAmount's unsigned machinery on
// the absolute value and have their sign reapplied, since on-chain deltas
// (pre/post balance differences) can go either way.
func LamportsToSOL(lamports int64) float64 {
	sign := 1.0
	abs := lamports
	if abs < 0 {
		sign = -1.0
		abs = -abs
	}
	formatted := FormatAmount(uint64(abs), LamportsDecimals)
	sol, err := strconv.ParseFloat(formatted, 64)
	if err != nil {
		return 0
	}
	return sign * sol
}

// SOLToLamports converts a SOL amount to signed lamports.
func SOLToLamports(sol float64) int64 {
	sign := int64(1)
	if sol < 0 {
		sign = -1
		sol = -sol
	}
	lamports, err := ParseAmount(strconv.FormatFloat(sol, 'f', LamportsDecimals, 64), LamportsDecimals)
	if err != nil {
		return 0
	}
	return sign * int64(lamports)
}
