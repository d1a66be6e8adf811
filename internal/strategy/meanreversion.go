package strategy

import (
	"math"
	"time"

	"crosslag/internal/domain"
	"crosslag/internal/feature"
)

// MeanReversionParams tunes the RSI/Bollinger reversion strategy.
type MeanReversionParams struct {
	RSIOversold     float64
	RSIOverbought   float64
	VolumeThreshold float64
	ADXMax          float64
}

func DefaultMeanReversionParams() MeanReversionParams {
	return MeanReversionParams{
		RSIOversold:     30,
		RSIOverbought:   70,
		VolumeThreshold: 1.5,
		ADXMax:          25,
	}
}

// MeanReversionStrategy fades extremes when the market is range-bound:
// oversold RSI at the lower band buys, overbought at the upper sells.
type MeanReversionStrategy struct {
	params MeanReversionParams
	now    func() time.Time
}

func NewMeanReversionStrategy(params MeanReversionParams, now func() time.Time) *MeanReversionStrategy {
	def := DefaultMeanReversionParams()
	if params.RSIOversold <= 0 {
		params.RSIOversold = def.RSIOversold
	}
	if params.RSIOverbought <= 0 {
		params.RSIOverbought = def.RSIOverbought
	}
	if params.VolumeThreshold <= 0 {
		params.VolumeThreshold = def.VolumeThreshold
	}
	if params.ADXMax <= 0 {
		params.ADXMax = def.ADXMax
	}
	if now == nil {
		now = time.Now
	}
	return &MeanReversionStrategy{params: params, now: now}
}

func (s *MeanReversionStrategy) Name() string { return "MeanReversion" }

func (s *MeanReversionStrategy) GenerateSignal(f *feature.Frame) (*domain.Signal, error) {
	if f.Len() < 20 {
		return nil, nil
	}

	rsi := f.LatestOr(feature.ColRSI, 50)
	close := f.Latest(feature.ColClose)
	bbLower := f.LatestOr(feature.ColBBLower, close)
	bbUpper := f.LatestOr(feature.ColBBUpper, close)
	adx := f.LatestOr(feature.ColADX, 0)

	oversold := rsi < s.params.RSIOversold && close <= bbLower
	overbought := rsi > s.params.RSIOverbought && close >= bbUpper
	lowTrend := adx < s.params.ADXMax

	volume := f.Latest(feature.ColVolume)
	volumeSMA := f.LatestOr(feature.ColVolumeSMA, volume)
	volumeSpike := volume > volumeSMA*s.params.VolumeThreshold

	var signalType domain.SignalType
	switch {
	case oversold && lowTrend && volumeSpike:
		signalType = domain.SignalBuy
	case overbought && lowTrend:
		signalType = domain.SignalSell
	default:
		return nil, nil
	}

	bbPosition := 0.5
	if bbUpper != bbLower {
		bbPosition = (close - bbLower) / (bbUpper - bbLower)
	}
	return &domain.Signal{
		Type:       signalType,
		Strength:   s.SignalStrength(f),
		Confidence: s.Confidence(f),
		Strategy:   s.Name(),
		Timestamp:  s.now(),
		Metadata: map[string]any{
			"rsi":          rsi,
			"bb_position":  bbPosition,
			"adx":          adx,
			"volume_spike": volumeSpike,
		},
	}, nil
}

// ValidateSignal drops a reversion entry once RSI has already crossed
// back through the midline.
func (s *MeanReversionStrategy) ValidateSignal(sig *domain.Signal, f *feature.Frame) bool {
	if sig == nil {
		return false
	}
	rsi := f.LatestOr(feature.ColRSI, 50)
	switch sig.Type {
	case domain.SignalBuy:
		return rsi < 50
	case domain.SignalSell:
		return rsi > 50
	}
	return true
}

func (s *MeanReversionStrategy) SignalStrength(f *feature.Frame) float64 {
	rsi := f.LatestOr(feature.ColRSI, 50)
	rsiStrength := math.Abs(50-rsi) / 50

	close := f.Latest(feature.ColClose)
	bbLower := f.LatestOr(feature.ColBBLower, close)
	bbUpper := f.LatestOr(feature.ColBBUpper, close)
	bbPosition := 0.5
	if bbUpper != bbLower {
		bbPosition = (close - bbLower) / (bbUpper - bbLower)
	}
	bbStrength := math.Abs(0.5-bbPosition) * 2

	volume := f.Latest(feature.ColVolume)
	volumeSMA := f.LatestOr(feature.ColVolumeSMA, volume)
	volumeStrength := 0.5
	if volumeSMA > 0 {
		volumeStrength = math.Min(volume/volumeSMA/2, 1.0)
	}
	return clamp01(rsiStrength*0.4 + bbStrength*0.4 + volumeStrength*0.2)
}

func (s *MeanReversionStrategy) Confidence(f *feature.Frame) float64 {
	adx := f.LatestOr(feature.ColADX, 25)
	rangeBound := math.Max(0, 1-adx/40)

	consistent := 0
	for i := 1; i < 6 && i <= f.Len(); i++ {
		row := f.Len() - i
		volume := f.At(feature.ColVolume, row)
		volumeSMA := f.AtOr(feature.ColVolumeSMA, row, volume)
		if volume < volumeSMA*2 {
			consistent++
		}
	}
	volumeConfidence := float64(consistent) / 5

	close := f.Latest(feature.ColClose)
	priceStability := 1 - math.Min(f.LatestOr(feature.ColATR, 0)/close*50, 1.0)

	return clamp01(rangeBound*0.4 + volumeConfidence*0.3 + priceStability*0.3)
}
