package strategy

import (
	"testing"

	"crosslag/internal/domain"
)

func TestMLStrategyWithoutModelIsSilent(t *testing.T) {
	s := NewMLStrategy(0, fixedNow)
	out, err := s.GenerateSignal(indicatorFrame(t, 40, nil))
	if err != nil || out != nil {
		t.Fatalf("expected no signal without a trained model, got (%+v, %v)", out, err)
	}
}

func TestMLStrategyValidate(t *testing.T) {
	s := NewMLStrategy(0.15, fixedNow)

	buy := &domain.Signal{Type: domain.SignalBuy, Metadata: map[string]any{"ml_score": 0.4}}
	if !s.ValidateSignal(buy, nil) {
		t.Fatal("strong positive score must validate a buy")
	}

	weak := &domain.Signal{Type: domain.SignalBuy, Metadata: map[string]any{"ml_score": 0.05}}
	if s.ValidateSignal(weak, nil) {
		t.Fatal("sub-threshold score must not validate")
	}

	flipped := &domain.Signal{Type: domain.SignalSell, Metadata: map[string]any{"ml_score": 0.4}}
	if s.ValidateSignal(flipped, nil) {
		t.Fatal("positive score must not validate a sell")
	}

	if s.ValidateSignal(&domain.Signal{Type: domain.SignalBuy}, nil) {
		t.Fatal("missing metadata must fail closed")
	}
}

func TestMLStrategyRetrainInstallsModel(t *testing.T) {
	s := NewMLStrategy(0.15, fixedNow)
	f := priceFrame(t, "XMR", noisyCloses(200, 200, 0.02, 5), flatVolumes(200, 50), fixedNow())
	if err := s.Retrain(f, 4); err != nil {
		t.Fatalf("retrain failed: %v", err)
	}
	if s.Ensemble() == nil {
		t.Fatal("retrain must install an ensemble")
	}
}
