package strategy

import (
	"math"
	"time"

	"crosslag/internal/domain"
	"crosslag/internal/feature"
)

// TrendFollowingParams tunes the EMA crossover strategy.
type TrendFollowingParams struct {
	FastPeriod       int
	SlowPeriod       int
	ADXThreshold     float64
	VolumeMultiplier float64
}

func DefaultTrendFollowingParams() TrendFollowingParams {
	return TrendFollowingParams{
		FastPeriod:       20,
		SlowPeriod:       50,
		ADXThreshold:     25,
		VolumeMultiplier: 1.2,
	}
}

// TrendFollowingStrategy enters on EMA crossovers confirmed by trend
// strength and volume.
type TrendFollowingStrategy struct {
	params TrendFollowingParams
	now    func() time.Time
}

func NewTrendFollowingStrategy(params TrendFollowingParams, now func() time.Time) *TrendFollowingStrategy {
	def := DefaultTrendFollowingParams()
	if params.FastPeriod <= 0 {
		params.FastPeriod = def.FastPeriod
	}
	if params.SlowPeriod <= 0 {
		params.SlowPeriod = def.SlowPeriod
	}
	if params.ADXThreshold <= 0 {
		params.ADXThreshold = def.ADXThreshold
	}
	if params.VolumeMultiplier <= 0 {
		params.VolumeMultiplier = def.VolumeMultiplier
	}
	if now == nil {
		now = time.Now
	}
	return &TrendFollowingStrategy{params: params, now: now}
}

func (s *TrendFollowingStrategy) Name() string { return "TrendFollowing" }

func (s *TrendFollowingStrategy) GenerateSignal(f *feature.Frame) (*domain.Signal, error) {
	if f.Len() < s.params.SlowPeriod {
		return nil, nil
	}
	prev := f.Len() - 2

	fastEMA := f.Latest(feature.ColEMA20)
	slowEMA := f.Latest(feature.ColEMA50)
	prevFast := f.At(feature.ColEMA20, prev)
	prevSlow := f.At(feature.ColEMA50, prev)

	goldenCross := prevFast <= prevSlow && fastEMA > slowEMA
	deathCross := prevFast >= prevSlow && fastEMA < slowEMA

	adx := f.LatestOr(feature.ColADX, 0)
	adxStrong := adx > s.params.ADXThreshold

	volume := f.Latest(feature.ColVolume)
	volumeSMA := f.LatestOr(feature.ColVolumeSMA, volume)
	volumeConfirmed := volume > volumeSMA*s.params.VolumeMultiplier

	var signalType domain.SignalType
	switch {
	case goldenCross && adxStrong && volumeConfirmed:
		signalType = domain.SignalBuy
	case deathCross && adxStrong:
		signalType = domain.SignalSell
	default:
		return nil, nil
	}

	volumeRatio := 1.0
	if volumeSMA > 0 {
		volumeRatio = volume / volumeSMA
	}
	return &domain.Signal{
		Type:       signalType,
		Strength:   s.SignalStrength(f),
		Confidence: s.Confidence(f),
		Strategy:   s.Name(),
		Timestamp:  s.now(),
		Metadata: map[string]any{
			"fast_ema":     fastEMA,
			"slow_ema":     slowEMA,
			"adx":          adx,
			"volume_ratio": volumeRatio,
		},
	}, nil
}

// ValidateSignal requires price to remain on the entry side of the fast
// EMA.
func (s *TrendFollowingStrategy) ValidateSignal(sig *domain.Signal, f *feature.Frame) bool {
	if sig == nil {
		return false
	}
	close := f.Latest(feature.ColClose)
	fastEMA := f.Latest(feature.ColEMA20)
	switch sig.Type {
	case domain.SignalBuy:
		return close > fastEMA
	case domain.SignalSell:
		return close < fastEMA
	}
	return true
}

func (s *TrendFollowingStrategy) SignalStrength(f *feature.Frame) float64 {
	fastEMA := f.Latest(feature.ColEMA20)
	slowEMA := f.Latest(feature.ColEMA50)
	trendStrength := 0.0
	if slowEMA != 0 {
		trendStrength = math.Abs(fastEMA-slowEMA) / slowEMA
	}
	adxStrength := math.Min(f.LatestOr(feature.ColADX, 0)/50, 1.0)

	volume := f.Latest(feature.ColVolume)
	volumeSMA := f.LatestOr(feature.ColVolumeSMA, volume)
	volumeStrength := 0.5
	if volumeSMA > 0 {
		volumeStrength = math.Min(volume/volumeSMA, 2.0) / 2
	}
	return clamp01(trendStrength*0.4 + adxStrength*0.4 + volumeStrength*0.2)
}

func (s *TrendFollowingStrategy) Confidence(f *feature.Frame) float64 {
	consistent := 0
	for i := 1; i < 6 && i <= f.Len(); i++ {
		row := f.Len() - i
		if f.At(feature.ColEMA20, row) > f.At(feature.ColEMA50, row) {
			consistent++
		}
	}
	trendConsistency := float64(consistent) / 5

	adxConfidence := math.Min(f.LatestOr(feature.ColADX, 0)/40, 1.0)

	close := f.Latest(feature.ColClose)
	lowVolatility := 1.0 - math.Min(f.LatestOr(feature.ColATR, 0)/close*100, 1.0)

	return clamp01(trendConsistency*0.4 + adxConfidence*0.3 + lowVolatility*0.3)
}
