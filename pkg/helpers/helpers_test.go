package helpers

import "testing"

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   uint64
		decimals uint8
		want     string
	}{
		{1000000000, 9, "1"},           // 1 SOL
		{500000000, 9, "0.5"},          // 0.5 SOL
		{123456789, 9, "0.123456789"},  // all decimals
		{100000, 9, "0.0001"},          // small amount
		{1, 9, "0.000000001"},          // 1 lamport
		{0, 9, "0"},                    // zero
		{123, 0, "123"},                // no decimals
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := FormatAmount(tt.amount, tt.decimals)
			if got != tt.want {
				t.Errorf("FormatAmount(%d, %d) = %s, want %s", tt.amount, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		decimals uint8
		want     uint64
		wantErr  bool
	}{
		{"1", 9, 1000000000, false},
		{"0.5", 9, 500000000, false},
		{"0.123456789", 9, 123456789, false},
		{"0.0001", 9, 100000, false},
		{"0.000000001", 9, 1, false},
		{"0", 9, 0, false},
		{"123", 0, 123, false},
		{"invalid", 9, 0, true},
		{"1.2.3", 9, 0, true},
		{"", 9, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input, tt.decimals)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%s, %d) = %d, want %d", tt.input, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestFormatParseRoundtrip(t *testing.T) {
	amounts := []uint64{1, 100, 123456789, 1000000000, 999999999}

	for _, amount := range amounts {
		formatted := FormatAmount(amount, LamportsDecimals)
		parsed, err := ParseAmount(formatted, LamportsDecimals)
		if err != nil {
			t.Errorf("ParseAmount(%s) failed: %v", formatted, err)
			continue
		}
		if parsed != amount {
			t.Errorf("roundtrip failed: %d -> %s -> %d", amount, formatted, parsed)
		}
	}
}

func TestLamportsToSOL(t *testing.T) {
	tests := []struct {
		lamports int64
		want     float64
	}{
		{1000000000, 1},
		{500000000, 0.5},
		{-1000000000, -1},
		{0, 0},
	}

	for _, tt := range tests {
		got := LamportsToSOL(tt.lamports)
		if got != tt.want {
			t.Errorf("LamportsToSOL(%d) = %v, want %v", tt.lamports, got, tt.want)
		}
	}
}

func TestSOLToLamports(t *testing.T) {
	tests := []struct {
		sol  float64
		want int64
	}{
		{1, 1000000000},
		{0.5, 500000000},
		{-1, -1000000000},
		{0, 0},
	}

	for _, tt := range tests {
		got := SOLToLamports(tt.sol)
		if got != tt.want {
			t.Errorf("SOLToLamports(%v) = %d, want %d", tt.sol, got, tt.want)
		}
	}
}

func TestLamportsSOLConversion_Roundtrip(t *testing.T) {
	for _, lamports := range []int64{1000000000, 123456789, -500000000} {
		sol := LamportsToSOL(lamports)
		back := SOLToLamports(sol)
		if back != lamports {
			t.Errorf("roundtrip failed: %d -> %v -> %d", lamports, sol, back)
		}
	}
}
