package feature

import (
	"math"
	"testing"
	"time"

	"crosslag/internal/domain"
)

func syntheticCandles(symbol string, n int, start float64) []*domain.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Candle, 0, n)
	price := start
	for i := 0; i < n; i++ {
		price += math.Sin(float64(i) / 3)
		out = append(out, &domain.Candle{
			Symbol:   symbol,
			Interval: "1h",
			OpenTime: base.Add(time.Duration(i) * time.Hour),
			Open:     price,
			High:     price + 1,
			Low:      price - 1,
			Close:    price + 0.5,
			Volume:   1000 + 50*float64(i%7),
		})
	}
	return out
}

func TestEngineBuildColumns(t *testing.T) {
	engine := NewEngine(nil)
	frame, err := engine.Build(syntheticCandles("XMR", 120, 150))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if frame.Len() != 120 {
		t.Fatalf("expected 120 rows, got %d", frame.Len())
	}
	for _, col := range []string{ColClose, ColRSI, ColATR, ColADX, ColEMA20, ColEMA50, ColBBUpper, ColBBLower, ColVolumeSMA} {
		if _, ok := frame.Column(col); !ok {
			t.Fatalf("missing column %q", col)
		}
	}
	if math.IsNaN(frame.Latest(ColRSI)) {
		t.Fatal("latest RSI must be computed with 120 rows")
	}
	if math.IsNaN(frame.Latest(ColATR)) {
		t.Fatal("latest ATR must be computed with 120 rows")
	}
}

func TestEngineBuildSortsAndDeduplicates(t *testing.T) {
	candles := syntheticCandles("XMR", 30, 150)
	// Shuffle in a duplicate and reverse the order.
	candles = append(candles, candles[10])
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}

	frame, err := NewEngine(nil).Build(candles)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if frame.Len() != 30 {
		t.Fatalf("expected duplicates collapsed to 30 rows, got %d", frame.Len())
	}
	for i := 1; i < frame.Len(); i++ {
		if !frame.Timestamps[i-1].Before(frame.Timestamps[i]) {
			t.Fatalf("timestamps not strictly ascending at %d", i)
		}
	}
}

func TestEngineBuildEmpty(t *testing.T) {
	if _, err := NewEngine(nil).Build(nil); err == nil {
		t.Fatal("expected error for empty candle set")
	}
}

func TestNewFrameMissingRequiredColumn(t *testing.T) {
	ts := []time.Time{time.Now()}
	_, err := NewFrame("XMR", "1h", ts, map[string][]float64{
		ColOpen: {1}, ColHigh: {1}, ColLow: {1}, ColClose: {1},
	})
	if err == nil {
		t.Fatal("expected error for missing volume column")
	}
}

func TestFrameLatestOrDefault(t *testing.T) {
	ts := []time.Time{time.Now(), time.Now().Add(time.Hour)}
	frame, err := NewFrame("XMR", "1h", ts, map[string][]float64{
		ColOpen: {1, 2}, ColHigh: {1, 2}, ColLow: {1, 2}, ColClose: {1, 2}, ColVolume: {10, 20},
		ColADX: {math.NaN(), math.NaN()},
	})
	if err != nil {
		t.Fatalf("frame build failed: %v", err)
	}
	if got := frame.LatestOr(ColADX, 0); got != 0 {
		t.Fatalf("expected NaN ADX to fall back to 0, got %f", got)
	}
	if got := frame.LatestOr(ColClose, 0); got != 2 {
		t.Fatalf("expected latest close 2, got %f", got)
	}
	if got := frame.LatestOr("missing", 7); got != 7 {
		t.Fatalf("expected missing column fallback 7, got %f", got)
	}
}
