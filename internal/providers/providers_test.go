package providers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHeliusMetadata_FetchMetadata_ParsesAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"result": {
				"content": {
					"metadata": {"name": "Bonk", "symbol": "BONK"},
					"links": {"image": "https://example.com/bonk.png"}
				}
			}
		}`))
	}))
	defer srv.Close()

	h := NewHeliusMetadata(srv.URL, "test-key")
	md, err := h.FetchMetadata(t.Context(), "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Symbol != "BONK" {
		t.Errorf("expected symbol BONK, got %s", md.Symbol)
	}
	if md.Name != "Bonk" {
		t.Errorf("expected name Bonk, got %s", md.Name)
	}
	if md.ImageURL != "https://example.com/bonk.png" {
		t.Errorf("expected image URL, got %s", md.ImageURL)
	}
}

func TestHeliusMetadata_FetchMetadata_RejectsInvalidSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result": {"content": {"metadata": {"name": "", "symbol": ""}}}}`))
	}))
	defer srv.Close()

	h := NewHeliusMetadata(srv.URL, "test-key")
	if _, err := h.FetchMetadata(t.Context(), "mint"); err == nil {
		t.Error("expected an error for an invalid symbol")
	}
}

func TestMarketData_MarketCap_PrefersMarketCapOverFDV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pairs": [{"marketCap": 1000000, "fdv": 2000000, "priceUsd": "0.00001234"}]}`))
	}))
	defer srv.Close()

	m := NewMarketData(srv.URL)
	marketCap, ok := m.MarketCap(t.Context(), "mint")
	if !ok {
		t.Fatal("expected ok")
	}
	if marketCap != 1000000 {
		t.Errorf("expected market cap 1000000, got %v", marketCap)
	}
}

func TestMarketData_TokenPrice_ParsesDecimalString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pairs": [{"priceUsd": "143.21"}]}`))
	}))
	defer srv.Close()

	m := NewMarketData(srv.URL)
	price, ok := m.TokenPrice(t.Context(), "mint")
	if !ok {
		t.Fatal("expected ok")
	}
	if price != 143.21 {
		t.Errorf("expected price 143.21, got %v", price)
	}
}

func TestMarketData_TokenPrice_NoPairsReturnsFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pairs": []}`))
	}))
	defer srv.Close()

	m := NewMarketData(srv.URL)
	if _, ok := m.TokenPrice(t.Context(), "mint"); ok {
		t.Error("expected ok to be false")
	}
}

func TestNativeHistory_HistoricalPrice_ParsesCoinGeckoShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"market_data": {"current_price": {"usd": 101.5}}}`))
	}))
	defer srv.Close()

	n := NewNativeHistory(srv.URL, "solana", NewMarketData(srv.URL))
	price, err := n.HistoricalPrice(t.Context(), time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 101.5 {
		t.Errorf("expected price 101.5, got %v", price)
	}
}
