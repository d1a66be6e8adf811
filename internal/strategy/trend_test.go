package strategy

import (
	"testing"
	"time"

	"crosslag/internal/domain"
	"crosslag/internal/feature"
)

// indicatorFrame builds a frame from constant base data with explicit
// indicator overrides.
func indicatorFrame(t *testing.T, n int, overrides map[string][]float64) *feature.Frame {
	t.Helper()
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	timestamps := make([]time.Time, n)
	for i := range timestamps {
		timestamps[i] = start.Add(time.Duration(i) * time.Hour)
	}
	columns := map[string][]float64{
		feature.ColOpen:   flatVolumes(n, 100),
		feature.ColHigh:   flatVolumes(n, 101),
		feature.ColLow:    flatVolumes(n, 99),
		feature.ColClose:  flatVolumes(n, 100),
		feature.ColVolume: flatVolumes(n, 1000),
	}
	for name, col := range overrides {
		columns[name] = col
	}
	f, err := feature.NewFrame("XMR", "1h", timestamps, columns)
	if err != nil {
		t.Fatalf("frame build failed: %v", err)
	}
	return f
}

func withLast(col []float64, values ...float64) []float64 {
	out := make([]float64, len(col))
	copy(out, col)
	for i, v := range values {
		out[len(out)-len(values)+i] = v
	}
	return out
}

func TestTrendFollowingGoldenCross(t *testing.T) {
	n := 60
	f := indicatorFrame(t, n, map[string][]float64{
		feature.ColClose:     withLast(flatVolumes(n, 100), 106),
		feature.ColEMA20:     withLast(flatVolumes(n, 100), 100, 105),
		feature.ColEMA50:     flatVolumes(n, 102),
		feature.ColADX:       flatVolumes(n, 30),
		feature.ColVolume:    withLast(flatVolumes(n, 1000), 1500),
		feature.ColVolumeSMA: flatVolumes(n, 1000),
	})

	s := NewTrendFollowingStrategy(TrendFollowingParams{}, fixedNow)
	out, err := s.GenerateSignal(f)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if out == nil || out.Type != domain.SignalBuy {
		t.Fatalf("expected buy on golden cross, got %+v", out)
	}
	if !s.ValidateSignal(out, f) {
		t.Fatal("close above fast EMA must validate a buy")
	}
}

func TestTrendFollowingDeathCross(t *testing.T) {
	n := 60
	f := indicatorFrame(t, n, map[string][]float64{
		feature.ColClose: withLast(flatVolumes(n, 100), 95),
		feature.ColEMA20: withLast(flatVolumes(n, 104), 104, 99),
		feature.ColEMA50: flatVolumes(n, 102),
		feature.ColADX:   flatVolumes(n, 30),
	})

	s := NewTrendFollowingStrategy(TrendFollowingParams{}, fixedNow)
	out, err := s.GenerateSignal(f)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if out == nil || out.Type != domain.SignalSell {
		t.Fatalf("expected sell on death cross, got %+v", out)
	}
}

func TestTrendFollowingWeakTrendIsSilent(t *testing.T) {
	n := 60
	f := indicatorFrame(t, n, map[string][]float64{
		feature.ColEMA20:     withLast(flatVolumes(n, 100), 100, 105),
		feature.ColEMA50:     flatVolumes(n, 102),
		feature.ColADX:       flatVolumes(n, 10), // below threshold
		feature.ColVolume:    withLast(flatVolumes(n, 1000), 1500),
		feature.ColVolumeSMA: flatVolumes(n, 1000),
	})

	s := NewTrendFollowingStrategy(TrendFollowingParams{}, fixedNow)
	out, err := s.GenerateSignal(f)
	if err != nil || out != nil {
		t.Fatalf("expected no signal without trend strength, got (%+v, %v)", out, err)
	}
}

func TestTrendFollowingInsufficientRows(t *testing.T) {
	f := indicatorFrame(t, 30, nil)
	s := NewTrendFollowingStrategy(TrendFollowingParams{}, fixedNow)
	out, err := s.GenerateSignal(f)
	if err != nil || out != nil {
		t.Fatalf("expected no signal under slow period, got (%+v, %v)", out, err)
	}
}

func TestMeanReversionOversoldBuy(t *testing.T) {
	n := 40
	f := indicatorFrame(t, n, map[string][]float64{
		feature.ColClose:     withLast(flatVolumes(n, 100), 90),
		feature.ColRSI:       flatVolumes(n, 25),
		feature.ColBBLower:   flatVolumes(n, 92),
		feature.ColBBUpper:   flatVolumes(n, 108),
		feature.ColADX:       flatVolumes(n, 15),
		feature.ColVolume:    withLast(flatVolumes(n, 1000), 2000),
		feature.ColVolumeSMA: flatVolumes(n, 1000),
	})

	s := NewMeanReversionStrategy(MeanReversionParams{}, fixedNow)
	out, err := s.GenerateSignal(f)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if out == nil || out.Type != domain.SignalBuy {
		t.Fatalf("expected buy at oversold extreme, got %+v", out)
	}
	if !s.ValidateSignal(out, f) {
		t.Fatal("rsi below midline must validate a buy")
	}
}

func TestMeanReversionOverboughtSell(t *testing.T) {
	n := 40
	f := indicatorFrame(t, n, map[string][]float64{
		feature.ColClose:   withLast(flatVolumes(n, 100), 110),
		feature.ColRSI:     flatVolumes(n, 78),
		feature.ColBBLower: flatVolumes(n, 92),
		feature.ColBBUpper: flatVolumes(n, 108),
		feature.ColADX:     flatVolumes(n, 15),
	})

	s := NewMeanReversionStrategy(MeanReversionParams{}, fixedNow)
	out, err := s.GenerateSignal(f)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if out == nil || out.Type != domain.SignalSell {
		t.Fatalf("expected sell at overbought extreme, got %+v", out)
	}
}

func TestMeanReversionTrendingMarketIsSilent(t *testing.T) {
	n := 40
	f := indicatorFrame(t, n, map[string][]float64{
		feature.ColClose:     withLast(flatVolumes(n, 100), 90),
		feature.ColRSI:       flatVolumes(n, 25),
		feature.ColBBLower:   flatVolumes(n, 92),
		feature.ColBBUpper:   flatVolumes(n, 108),
		feature.ColADX:       flatVolumes(n, 40), // strong trend, reversion off
		feature.ColVolume:    withLast(flatVolumes(n, 1000), 2000),
		feature.ColVolumeSMA: flatVolumes(n, 1000),
	})

	s := NewMeanReversionStrategy(MeanReversionParams{}, fixedNow)
	out, err := s.GenerateSignal(f)
	if err != nil || out != nil {
		t.Fatalf("expected no reversion signal in a trend, got (%+v, %v)", out, err)
	}
}

func TestMeanReversionValidateRejectsCrossedMidline(t *testing.T) {
	n := 40
	f := indicatorFrame(t, n, map[string][]float64{
		feature.ColRSI: flatVolumes(n, 60),
	})
	s := NewMeanReversionStrategy(MeanReversionParams{}, fixedNow)
	buy := &domain.Signal{Type: domain.SignalBuy}
	if s.ValidateSignal(buy, f) {
		t.Fatal("buy must not validate once rsi crossed above 50")
	}
}
