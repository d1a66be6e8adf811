package sentiment

import (
	"math"
	"time"

	"crosslag/internal/domain"
	"crosslag/internal/feature"
)

const (
	defaultSignalThreshold = 0.2
	defaultMaxSnapshotAge  = 2 * time.Hour
)

// SnapshotSource is the slice of Service the strategy needs.
type SnapshotSource interface {
	Latest() *Snapshot
}

// Strategy votes on market mood. It abstains (returns no signal) when no
// fresh snapshot exists or the composite sits inside the neutral band, so
// it only sways the aggregate when sentiment is actually stretched.
type Strategy struct {
	source    SnapshotSource
	threshold float64
	maxAge    time.Duration
	now       func() time.Time
}

func NewStrategy(source SnapshotSource, threshold float64, maxAge time.Duration, now func() time.Time) *Strategy {
	if threshold <= 0 || threshold >= 1 {
		threshold = defaultSignalThreshold
	}
	if maxAge <= 0 {
		maxAge = defaultMaxSnapshotAge
	}
	if now == nil {
		now = time.Now
	}
	return &Strategy{source: source, threshold: threshold, maxAge: maxAge, now: now}
}

func (s *Strategy) Name() string { return "Sentiment" }

func (s *Strategy) GenerateSignal(_ *feature.Frame) (*domain.Signal, error) {
	snapshot := s.fresh()
	if snapshot == nil {
		return nil, nil
	}
	if math.Abs(snapshot.Score) < s.threshold {
		return nil, nil
	}

	signalType := domain.SignalBuy
	if snapshot.Score < 0 {
		signalType = domain.SignalSell
	}

	return &domain.Signal{
		Type:       signalType,
		Strength:   math.Abs(snapshot.Score),
		Confidence: snapshot.Confidence,
		Strategy:   s.Name(),
		Timestamp:  s.now(),
		Metadata: map[string]any{
			"sentiment_score": snapshot.Score,
			"sentiment_label": snapshot.Label,
			"age_hours":       s.now().Sub(snapshot.GeneratedAt).Hours(),
		},
	}, nil
}

func (s *Strategy) ValidateSignal(sig *domain.Signal, _ *feature.Frame) bool {
	if sig == nil || sig.Metadata == nil {
		return false
	}
	score, ok := sig.Metadata["sentiment_score"].(float64)
	if !ok {
		return false
	}
	switch sig.Type {
	case domain.SignalBuy:
		return score >= s.threshold
	case domain.SignalSell:
		return score <= -s.threshold
	default:
		return false
	}
}

func (s *Strategy) SignalStrength(_ *feature.Frame) float64 {
	snapshot := s.fresh()
	if snapshot == nil {
		return 0
	}
	return math.Abs(snapshot.Score)
}

func (s *Strategy) Confidence(_ *feature.Frame) float64 {
	snapshot := s.fresh()
	if snapshot == nil {
		return 0
	}
	return snapshot.Confidence
}

func (s *Strategy) fresh() *Snapshot {
	if s.source == nil {
		return nil
	}
	snapshot := s.source.Latest()
	if snapshot == nil {
		return nil
	}
	if s.now().Sub(snapshot.GeneratedAt) > s.maxAge {
		return nil
	}
	return snapshot
}
