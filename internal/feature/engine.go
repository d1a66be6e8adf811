package feature

import (
	"errors"
	"sort"
	"time"

	"crosslag/internal/domain"
	"crosslag/internal/ta"
)

const (
	rsiPeriod    = 14
	atrPeriod    = 14
	adxPeriod    = 14
	emaFast      = 20
	emaSlow      = 50
	bbPeriod     = 20
	bbStdDevs    = 2.0
	volSMAPeriod = 20
)

// Engine turns stored candles into feature frames with the conventional
// indicator columns.
type Engine struct {
	now func() time.Time
}

func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// Build computes the indicator columns for a candle series and returns
// the frame strategies evaluate. Candles may arrive in any order; they
// are deduplicated by open time and sorted oldest first.
func (e *Engine) Build(candles []*domain.Candle) (*Frame, error) {
	normalized := normalizeCandles(candles)
	if len(normalized) == 0 {
		return nil, errors.New("no candles to build features from")
	}

	n := len(normalized)
	timestamps := make([]time.Time, n)
	opens := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range normalized {
		timestamps[i] = c.OpenTime.UTC()
		opens[i] = c.Open
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	columns := map[string][]float64{
		ColOpen:   opens,
		ColHigh:   highs,
		ColLow:    lows,
		ColClose:  closes,
		ColVolume: volumes,
	}

	if rsi := ta.RSISeries(closes, rsiPeriod); rsi != nil {
		columns[ColRSI] = rsi
	}
	if atr := ta.ATRSeries(highs, lows, closes, atrPeriod); atr != nil {
		columns[ColATR] = atr
	}
	if adx := ta.ADXSeries(highs, lows, closes, adxPeriod); adx != nil {
		columns[ColADX] = adx
	}
	columns[ColEMA20] = ta.EMASeries(closes, emaFast)
	columns[ColEMA50] = ta.EMASeries(closes, emaSlow)
	_, bbUpper, bbLower := ta.BollingerSeries(closes, bbPeriod, bbStdDevs)
	columns[ColBBUpper] = bbUpper
	columns[ColBBLower] = bbLower
	if sma := ta.SMASeries(volumes, volSMAPeriod); sma != nil {
		columns[ColVolumeSMA] = sma
	}

	first := normalized[0]
	return NewFrame(first.Symbol, first.Interval, timestamps, columns)
}

func normalizeCandles(in []*domain.Candle) []domain.Candle {
	byTime := make(map[int64]domain.Candle, len(in))
	for _, c := range in {
		if c == nil {
			continue
		}
		byTime[c.OpenTime.UnixMilli()] = *c
	}
	out := make([]domain.Candle, 0, len(byTime))
	for _, c := range byTime {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OpenTime.Before(out[j].OpenTime)
	})
	return out
}
