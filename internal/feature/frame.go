package feature

import (
	"fmt"
	"math"
	"time"
)

// Conventional column names shared between the feature engine and the
// strategies that consume frames.
const (
	ColOpen      = "open"
	ColHigh      = "high"
	ColLow       = "low"
	ColClose     = "close"
	ColVolume    = "volume"
	ColRSI       = "rsi"
	ColATR       = "atr"
	ColADX       = "adx"
	ColEMA20     = "ema_20"
	ColEMA50     = "ema_50"
	ColBBUpper   = "bb_upper"
	ColBBLower   = "bb_lower"
	ColVolumeSMA = "volume_sma"
)

var requiredColumns = []string{ColOpen, ColHigh, ColLow, ColClose, ColVolume}

// Frame is a column-oriented feature snapshot for one asset. Rows are
// ordered oldest to newest and aligned with Timestamps.
type Frame struct {
	Symbol     string
	Interval   string
	Timestamps []time.Time
	columns    map[string][]float64
}

// NewFrame builds a frame and validates that the required OHLCV columns
// are present with matching lengths. A malformed snapshot is a hard
// error for the caller, not a silent degradation.
func NewFrame(symbol, interval string, timestamps []time.Time, columns map[string][]float64) (*Frame, error) {
	for _, name := range requiredColumns {
		col, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("snapshot for %s missing required column %q", symbol, name)
		}
		if len(col) != len(timestamps) {
			return nil, fmt.Errorf("snapshot for %s column %q has %d rows, want %d", symbol, name, len(col), len(timestamps))
		}
	}
	for name, col := range columns {
		if len(col) != len(timestamps) {
			return nil, fmt.Errorf("snapshot for %s column %q has %d rows, want %d", symbol, name, len(col), len(timestamps))
		}
	}
	return &Frame{Symbol: symbol, Interval: interval, Timestamps: timestamps, columns: columns}, nil
}

func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Timestamps)
}

// Column returns the full series for a named column.
func (f *Frame) Column(name string) ([]float64, bool) {
	col, ok := f.columns[name]
	return col, ok
}

// At returns the value of a column at row i, or NaN when the column is
// absent or the index is out of range.
func (f *Frame) At(name string, i int) float64 {
	col, ok := f.columns[name]
	if !ok || i < 0 || i >= len(col) {
		return math.NaN()
	}
	return col[i]
}

// Latest returns the newest value of a column, or NaN when absent.
func (f *Frame) Latest(name string) float64 {
	return f.At(name, f.Len()-1)
}

// LatestOr returns the newest value of a column, falling back to def
// when the column is absent or the value is NaN. This mirrors how the
// strategies treat optional indicator columns: missing data degrades to
// a neutral default instead of failing the cycle.
func (f *Frame) LatestOr(name string, def float64) float64 {
	v := f.Latest(name)
	if math.IsNaN(v) {
		return def
	}
	return v
}

// AtOr is LatestOr for an arbitrary row.
func (f *Frame) AtOr(name string, i int, def float64) float64 {
	v := f.At(name, i)
	if math.IsNaN(v) {
		return def
	}
	return v
}

// LatestTime returns the timestamp of the newest row.
func (f *Frame) LatestTime() time.Time {
	if f.Len() == 0 {
		return time.Time{}
	}
	return f.Timestamps[f.Len()-1]
}

// TailMean averages the last n values of a column, skipping NaNs.
// Returns 0 when no valid values fall in the window.
func (f *Frame) TailMean(name string, n int) float64 {
	col, ok := f.columns[name]
	if !ok || n <= 0 {
		return 0
	}
	start := len(col) - n
	if start < 0 {
		start = 0
	}
	var sum float64
	count := 0
	for _, v := range col[start:] {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
