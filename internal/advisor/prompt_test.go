package advisor

import (
	"strings"
	"testing"
	"time"

	"crosslag/internal/domain"
)

func TestBuildSystemPromptContainsPhilosophy(t *testing.T) {
	prompt := BuildSystemPrompt("some context")
	if !strings.Contains(prompt, "automated crypto trading desk") {
		t.Fatal("expected trading philosophy in prompt")
	}
	if !strings.Contains(prompt, "Signal framework") {
		t.Fatal("expected signal framework in prompt")
	}
	if !strings.Contains(prompt, "LIVE MARKET DATA") {
		t.Fatal("expected market data header in prompt")
	}
	if !strings.Contains(prompt, "some context") {
		t.Fatal("expected market context in prompt")
	}
}

func TestFormatMarketContextWithPricesAndSignals(t *testing.T) {
	prices := []*domain.PriceSnapshot{
		{Symbol: "BTC", PriceUSD: 50000, Change24hPct: 2.5, Volume24h: 1e9},
	}
	signals := []domain.Signal{
		{Type: domain.SignalBuy, Strategy: "BTCCorrelation", Strength: 0.72, Confidence: 0.61, Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}

	ctx := FormatMarketContext(prices, signals, nil, nil)
	if !strings.Contains(ctx, "BTC: $50000.00") {
		t.Fatal("expected BTC price in context")
	}
	if !strings.Contains(ctx, "BUY BTCCorrelation") {
		t.Fatal("expected signal line in context")
	}
	if !strings.Contains(ctx, "strength=0.72") {
		t.Fatal("expected strength in context")
	}
}

func TestFormatMarketContextWithPositions(t *testing.T) {
	positions := []domain.Position{
		{Symbol: "XMR", Side: domain.SideLong, Units: 10, EntryPrice: 100, StopLoss: 97, TakeProfit: 106, UnrealizedPnL: 12.5},
	}
	metrics := &domain.PortfolioMetrics{PortfolioValue: 10000, PeakValue: 10500, DrawdownPct: 4.76, TotalExposure: 1000}

	ctx := FormatMarketContext(nil, nil, positions, metrics)
	if !strings.Contains(ctx, "LONG XMR") {
		t.Fatal("expected position line in context")
	}
	if !strings.Contains(ctx, "drawdown 4.76%") {
		t.Fatal("expected portfolio line in context")
	}
}

func TestFormatMarketContextEmpty(t *testing.T) {
	ctx := FormatMarketContext(nil, nil, nil, nil)
	if ctx != "No market data currently available." {
		t.Fatalf("expected fallback text, got: %s", ctx)
	}
}

func TestFormatMarketContextPricesOnly(t *testing.T) {
	prices := []*domain.PriceSnapshot{
		{Symbol: "ETH", PriceUSD: 3000, Change24hPct: -1.2, Volume24h: 5e8},
	}
	ctx := FormatMarketContext(prices, nil, nil, nil)
	if !strings.Contains(ctx, "ETH: $3000.00") {
		t.Fatal("expected ETH price")
	}
	if strings.Contains(ctx, "Recent Signals") {
		t.Fatal("should not contain signals section when no signals")
	}
}
