package strategy

import (
	"math"
	"sync"
	"time"

	"crosslag/internal/domain"
	"crosslag/internal/feature"
	"crosslag/internal/ml"
)

const defaultMLThreshold = 0.15

// MLStrategy wraps the model ensemble as a voting strategy. The
// ensemble is swapped atomically by the retraining loop while the
// trade cycle reads it, hence the lock.
type MLStrategy struct {
	mu        sync.RWMutex
	ensemble  *ml.Ensemble
	threshold float64
	now       func() time.Time
}

func NewMLStrategy(threshold float64, now func() time.Time) *MLStrategy {
	if threshold <= 0 {
		threshold = defaultMLThreshold
	}
	if now == nil {
		now = time.Now
	}
	return &MLStrategy{threshold: threshold, now: now}
}

func (s *MLStrategy) Name() string { return "MLEnsemble" }

// SetEnsemble installs a freshly trained ensemble.
func (s *MLStrategy) SetEnsemble(e *ml.Ensemble) {
	s.mu.Lock()
	s.ensemble = e
	s.mu.Unlock()
}

func (s *MLStrategy) Ensemble() *ml.Ensemble {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ensemble
}

// Retrain fits a new ensemble on the frame and swaps it in.
func (s *MLStrategy) Retrain(f *feature.Frame, horizon int) error {
	e, err := ml.TrainEnsemble(f, horizon)
	if err != nil {
		return err
	}
	s.SetEnsemble(e)
	return nil
}

func (s *MLStrategy) GenerateSignal(f *feature.Frame) (*domain.Signal, error) {
	e := s.Ensemble()
	if e == nil {
		return nil, nil
	}
	sample := ml.SampleAt(f, f.Len()-1)
	if sample == nil {
		return nil, nil
	}

	score := e.Score(sample)
	if math.Abs(score) < s.threshold {
		return nil, nil
	}

	signalType := domain.SignalBuy
	if score < 0 {
		signalType = domain.SignalSell
	}
	agreement := e.Agreement(sample)

	return &domain.Signal{
		Type:       signalType,
		Strength:   clamp01(math.Abs(score)),
		Confidence: clamp01(0.6*agreement + 0.4*math.Abs(score)),
		Strategy:   s.Name(),
		Timestamp:  s.now(),
		Metadata: map[string]any{
			"ml_score":        score,
			"model_agreement": agreement,
		},
	}, nil
}

// ValidateSignal checks the recorded score still clears the threshold
// in the signal's direction.
func (s *MLStrategy) ValidateSignal(sig *domain.Signal, _ *feature.Frame) bool {
	if sig == nil || sig.Metadata == nil {
		return false
	}
	score, ok := sig.Metadata["ml_score"].(float64)
	if !ok || math.Abs(score) < s.threshold {
		return false
	}
	if sig.Type == domain.SignalBuy {
		return score > 0
	}
	return score < 0
}

func (s *MLStrategy) SignalStrength(f *feature.Frame) float64 {
	e := s.Ensemble()
	if e == nil {
		return 0
	}
	sample := ml.SampleAt(f, f.Len()-1)
	if sample == nil {
		return 0
	}
	return clamp01(math.Abs(e.Score(sample)))
}

func (s *MLStrategy) Confidence(f *feature.Frame) float64 {
	e := s.Ensemble()
	if e == nil {
		return 0
	}
	sample := ml.SampleAt(f, f.Len()-1)
	if sample == nil {
		return 0
	}
	return clamp01(0.6*e.Agreement(sample) + 0.4*math.Abs(e.Score(sample)))
}
