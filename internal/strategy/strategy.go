package strategy

import (
	"math"

	"crosslag/internal/domain"
	"crosslag/internal/feature"
)

// Strategy is a policy object that inspects a feature frame and
// optionally emits a directional signal. Implementations keep their
// state private; they never mutate aggregator or risk state.
type Strategy interface {
	Name() string

	// GenerateSignal returns nil when the strategy has no opinion.
	// An error means the strategy failed this cycle; the aggregator
	// logs it and moves on.
	GenerateSignal(f *feature.Frame) (*domain.Signal, error)

	// ValidateSignal is a cheap staleness re-check run immediately
	// after generation, before the signal is admitted to aggregation.
	ValidateSignal(sig *domain.Signal, f *feature.Frame) bool

	// SignalStrength and Confidence are the strategy's scoring
	// helpers, each bounded to [0,1].
	SignalStrength(f *feature.Frame) float64
	Confidence(f *feature.Frame) float64
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
