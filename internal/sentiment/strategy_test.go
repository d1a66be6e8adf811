package sentiment

import (
	"testing"
	"time"

	"crosslag/internal/domain"
)

type stubSource struct {
	snapshot *Snapshot
}

func (s *stubSource) Latest() *Snapshot { return s.snapshot }

func TestStrategySignalsOnStretchedSentiment(t *testing.T) {
	source := &stubSource{snapshot: &Snapshot{
		Score:       0.45,
		Confidence:  0.6,
		Label:       "bullish",
		GeneratedAt: testNow().Add(-10 * time.Minute),
	}}
	strat := NewStrategy(source, 0.2, 2*time.Hour, testNow)

	sig, err := strat.GenerateSignal(nil)
	if err != nil {
		t.Fatalf("GenerateSignal: %v", err)
	}
	if sig == nil || sig.Type != domain.SignalBuy {
		t.Fatalf("expected buy signal, got %+v", sig)
	}
	if sig.Strength != 0.45 || sig.Confidence != 0.6 {
		t.Fatalf("unexpected strength/confidence: %.2f/%.2f", sig.Strength, sig.Confidence)
	}
	if !strat.ValidateSignal(sig, nil) {
		t.Fatal("expected signal to validate")
	}
}

func TestStrategySellsOnBearishMood(t *testing.T) {
	source := &stubSource{snapshot: &Snapshot{
		Score:       -0.5,
		Confidence:  0.55,
		Label:       "bearish",
		GeneratedAt: testNow(),
	}}
	strat := NewStrategy(source, 0.2, 2*time.Hour, testNow)

	sig, err := strat.GenerateSignal(nil)
	if err != nil {
		t.Fatalf("GenerateSignal: %v", err)
	}
	if sig == nil || sig.Type != domain.SignalSell {
		t.Fatalf("expected sell signal, got %+v", sig)
	}
}

func TestStrategyAbstainsInNeutralBand(t *testing.T) {
	source := &stubSource{snapshot: &Snapshot{
		Score:       0.1,
		Confidence:  0.8,
		GeneratedAt: testNow(),
	}}
	strat := NewStrategy(source, 0.2, 2*time.Hour, testNow)

	sig, err := strat.GenerateSignal(nil)
	if err != nil || sig != nil {
		t.Fatalf("expected silent abstain, got sig=%+v err=%v", sig, err)
	}
}

func TestStrategyIgnoresStaleSnapshot(t *testing.T) {
	source := &stubSource{snapshot: &Snapshot{
		Score:       0.9,
		Confidence:  0.9,
		GeneratedAt: testNow().Add(-3 * time.Hour),
	}}
	strat := NewStrategy(source, 0.2, 2*time.Hour, testNow)

	sig, err := strat.GenerateSignal(nil)
	if err != nil || sig != nil {
		t.Fatalf("expected no signal from stale snapshot, got sig=%+v err=%v", sig, err)
	}
	if strat.SignalStrength(nil) != 0 || strat.Confidence(nil) != 0 {
		t.Fatal("expected zero strength and confidence when stale")
	}
}

func TestStrategyNoSource(t *testing.T) {
	strat := NewStrategy(nil, 0.2, 2*time.Hour, testNow)

	sig, err := strat.GenerateSignal(nil)
	if err != nil || sig != nil {
		t.Fatalf("expected no signal without a source, got sig=%+v err=%v", sig, err)
	}
}

func TestStrategyValidateRejectsMismatchedMetadata(t *testing.T) {
	strat := NewStrategy(nil, 0.2, 2*time.Hour, testNow)

	sig := &domain.Signal{Type: domain.SignalBuy, Metadata: map[string]any{"sentiment_score": -0.5}}
	if strat.ValidateSignal(sig, nil) {
		t.Fatal("expected buy signal with bearish score to fail validation")
	}
	if strat.ValidateSignal(&domain.Signal{Type: domain.SignalBuy}, nil) {
		t.Fatal("expected signal without metadata to fail validation")
	}
}
