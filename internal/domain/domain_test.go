package domain

import (
	"testing"
	"time"
)

func TestSideForSignal(t *testing.T) {
	side, ok := SideForSignal(SignalBuy)
	if !ok || side != SideLong {
		t.Fatalf("expected long side for buy, got %s ok=%v", side, ok)
	}
	side, ok = SideForSignal(SignalSell)
	if !ok || side != SideShort {
		t.Fatalf("expected short side for sell, got %s ok=%v", side, ok)
	}
	if _, ok := SideForSignal(SignalHold); ok {
		t.Fatal("hold must not map to a position side")
	}
	if _, ok := SideForSignal(SignalCloseLong); ok {
		t.Fatal("close_long must not map to a position side")
	}
}

func TestSignalDetailsTextDeterministic(t *testing.T) {
	sig := Signal{
		Type:       SignalBuy,
		Strength:   0.8,
		Confidence: 0.9,
		Strategy:   "BTCCorrelation",
		Timestamp:  time.Now(),
		Metadata: map[string]any{
			"correlation": 0.71,
			"optimal_lag": 8,
			"direction":   "up",
		},
	}
	text := sig.DetailsText()
	if text != "correlation=0.7100;direction=up;optimal_lag=8" {
		t.Fatalf("unexpected details text: %s", text)
	}
	if (&Signal{}).DetailsText() != "" {
		t.Fatal("expected empty details for empty metadata")
	}
}

func TestPositionValue(t *testing.T) {
	p := Position{EntryPrice: 150, Units: 4}
	if p.Value() != 600 {
		t.Fatalf("expected value 600, got %f", p.Value())
	}
}

func TestCoinGeckoMappingRoundTrip(t *testing.T) {
	for _, sym := range SupportedSymbols {
		id, ok := CoinGeckoID[sym]
		if !ok {
			t.Fatalf("missing CoinGecko id for %s", sym)
		}
		if CoinGeckoIDToSymbol[id] != sym {
			t.Fatalf("reverse mapping broken for %s", sym)
		}
	}
}
