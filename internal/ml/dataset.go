package ml

import (
	"errors"
	"math"

	"crosslag/internal/feature"
)

// Feature vector layout shared by training and inference. Order
// matters; artifacts persist the names for a sanity check on load.
var FeatureNames = []string{
	"rsi",
	"atr_pct",
	"ema_spread",
	"bb_position",
	"volume_ratio",
	"return_1",
	"return_4",
	"return_12",
}

const defaultLabelHorizon = 4

// Dataset is a supervised snapshot extracted from a frame: one sample
// per usable row, labeled 1 when the close is higher `horizon` rows
// later.
type Dataset struct {
	Samples [][]float64
	Labels  []float64
}

// SampleAt extracts the feature vector for row i, or nil when any
// input the vector needs is missing.
func SampleAt(f *feature.Frame, i int) []float64 {
	close := f.At(feature.ColClose, i)
	if math.IsNaN(close) || close == 0 {
		return nil
	}
	rsi := f.AtOr(feature.ColRSI, i, 50)
	atrPct := f.AtOr(feature.ColATR, i, 0) / close

	ema20 := f.AtOr(feature.ColEMA20, i, close)
	ema50 := f.AtOr(feature.ColEMA50, i, close)
	emaSpread := 0.0
	if ema50 != 0 {
		emaSpread = ema20/ema50 - 1
	}

	bbLower := f.AtOr(feature.ColBBLower, i, close)
	bbUpper := f.AtOr(feature.ColBBUpper, i, close)
	bbPosition := 0.5
	if bbUpper != bbLower {
		bbPosition = (close - bbLower) / (bbUpper - bbLower)
	}

	volume := f.At(feature.ColVolume, i)
	volumeSMA := f.AtOr(feature.ColVolumeSMA, i, volume)
	volumeRatio := 1.0
	if volumeSMA > 0 {
		volumeRatio = volume / volumeSMA
	}

	sample := []float64{
		rsi / 100,
		atrPct,
		emaSpread,
		bbPosition,
		volumeRatio,
		trailingReturn(f, i, 1),
		trailingReturn(f, i, 4),
		trailingReturn(f, i, 12),
	}
	for _, v := range sample {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
	}
	return sample
}

func trailingReturn(f *feature.Frame, i, periods int) float64 {
	if i-periods < 0 {
		return 0
	}
	past := f.At(feature.ColClose, i-periods)
	cur := f.At(feature.ColClose, i)
	if math.IsNaN(past) || past == 0 || math.IsNaN(cur) {
		return 0
	}
	return cur/past - 1
}

// BuildDataset walks the frame and extracts labeled samples. Horizon
// defaults to 4 rows when non-positive.
func BuildDataset(f *feature.Frame, horizon int) (*Dataset, error) {
	if horizon <= 0 {
		horizon = defaultLabelHorizon
	}
	if f.Len() <= horizon {
		return nil, errors.New("not enough rows to label a dataset")
	}

	ds := &Dataset{}
	for i := 0; i < f.Len()-horizon; i++ {
		sample := SampleAt(f, i)
		if sample == nil {
			continue
		}
		cur := f.At(feature.ColClose, i)
		future := f.At(feature.ColClose, i+horizon)
		if math.IsNaN(cur) || math.IsNaN(future) {
			continue
		}
		label := 0.0
		if future > cur {
			label = 1.0
		}
		ds.Samples = append(ds.Samples, sample)
		ds.Labels = append(ds.Labels, label)
	}
	if len(ds.Samples) == 0 {
		return nil, errors.New("no usable samples in frame")
	}
	return ds, nil
}
