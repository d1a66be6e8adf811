package ta

import "math"

// SMASeries computes a simple moving average, NaN-padded until the
// window is full.
func SMASeries(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 0 {
		return nil
	}
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// TrueRangeSeries computes the per-bar true range.
func TrueRangeSeries(highs, lows, closes []float64) []float64 {
	n := len(closes)
	if n == 0 || len(highs) != n || len(lows) != n {
		return nil
	}
	out := make([]float64, n)
	out[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATRSeries computes the Average True Range using Wilder smoothing.
func ATRSeries(highs, lows, closes []float64, period int) []float64 {
	tr := TrueRangeSeries(highs, lows, closes)
	if tr == nil || period <= 0 || len(tr) < period {
		return nil
	}
	out := make([]float64, len(tr))
	for i := range out {
		out[i] = math.NaN()
	}
	var sum float64
	for i := 0; i < period; i++ {
		sum += tr[i]
	}
	out[period-1] = sum / float64(period)
	for i := period; i < len(tr); i++ {
		out[i] = (out[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return out
}

// ADXSeries computes the Average Directional Index using Wilder smoothing.
func ADXSeries(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	if n == 0 || len(highs) != n || len(lows) != n || period <= 0 || n < 2*period {
		return nil
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}
	tr := TrueRangeSeries(highs, lows, closes)

	smTR := wilderSmooth(tr[1:], period)
	smPlus := wilderSmooth(plusDM[1:], period)
	smMinus := wilderSmooth(minusDM[1:], period)

	dx := make([]float64, len(smTR))
	for i := range dx {
		dx[i] = math.NaN()
		if math.IsNaN(smTR[i]) || smTR[i] == 0 {
			continue
		}
		plusDI := 100 * smPlus[i] / smTR[i]
		minusDI := 100 * smMinus[i] / smTR[i]
		if plusDI+minusDI == 0 {
			dx[i] = 0
			continue
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
	}

	adx := wilderAverage(dx, period)

	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	copy(out[1:], adx)
	return out
}

func wilderSmooth(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(values) < period {
		return out
	}
	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum
	for i := period; i < len(values); i++ {
		out[i] = out[i-1] - out[i-1]/float64(period) + values[i]
	}
	return out
}

func wilderAverage(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	start := -1
	count := 0
	var sum float64
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		count++
		if count == period {
			start = i
			out[i] = sum / float64(period)
			break
		}
	}
	if start < 0 {
		return out
	}
	for i := start + 1; i < len(values); i++ {
		if math.IsNaN(values[i]) {
			out[i] = out[i-1]
			continue
		}
		out[i] = (out[i-1]*float64(period-1) + values[i]) / float64(period)
	}
	return out
}
