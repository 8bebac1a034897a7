package metadata

import (
	"context"
	"strings"
	"testing"
)

func TestValidSymbol_RejectsPlaceholders(t *testing.T) {
	cases := map[string]bool{
		"":              false,
		"Unknown":       false,
		"Token":         false,
		"ABcd...wxyz":   false,
		"bad\x00symbol": false,
		"USDC":          true,
	}
	for symbol, want := range cases {
		if got := ValidSymbol(symbol); got != want {
			t.Errorf("ValidSymbol(%q) = %v, want %v", symbol, got, want)
		}
	}
}

func TestShortenAddress_KeepsPrefixAndSuffix(t *testing.T) {
	if got := ShortenAddress("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"); got != "EPjF...Dt1v" {
		t.Errorf("expected EPjF...Dt1v, got %s", got)
	}
	if got := ShortenAddress("abcd"); got != "abcd" {
		t.Errorf("expected short address unchanged, got %s", got)
	}
}

func TestResolve_NativeMintNeverHitsProviders(t *testing.T) {
	c := New(nil, nil, nil, Config{})
	resolved := c.Resolve(context.Background(), "So11111111111111111111111111111111111111112", "")
	if resolved.Metadata.Symbol != "SOL" {
		t.Errorf("expected symbol SOL, got %s", resolved.Metadata.Symbol)
	}
}

func TestResolve_TrustsValidRawSymbol(t *testing.T) {
	c := New(nil, nil, nil, Config{})
	resolved := c.Resolve(context.Background(), "SomeMint111", "BONK")
	if resolved.Metadata.Symbol != "BONK" {
		t.Errorf("expected symbol BONK, got %s", resolved.Metadata.Symbol)
	}
	if resolved.IsShortened {
		t.Error("expected IsShortened false for a valid raw symbol")
	}
}

func TestResolve_FallsBackToShortenedAddressWithNoProviders(t *testing.T) {
	c := New(nil, nil, nil, Config{})
	resolved := c.Resolve(context.Background(), "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", "Unknown")
	if !resolved.IsShortened {
		t.Error("expected IsShortened true when no provider can resolve the mint")
	}
	if !strings.Contains(resolved.Metadata.Symbol, "...") {
		t.Errorf("expected shortened symbol to contain '...', got %s", resolved.Metadata.Symbol)
	}
}
