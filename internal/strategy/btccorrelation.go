package strategy

import (
	"log"
	"math"
	"time"

	"crosslag/internal/domain"
	"crosslag/internal/feature"
	"crosslag/internal/ta"
)

// BTCCorrelationParams tunes the lag-correlation strategy. Zero values
// are replaced by the defaults in DefaultBTCCorrelationParams.
type BTCCorrelationParams struct {
	MoveThreshold     float64 // reference move that arms a signal
	StrongMove        float64 // move treated as full magnitude score
	ShortWindowHours  int
	MediumWindowHours int
	LongWindowHours   int
	ExpectedLagHours  float64
	MaxLagHours       float64
	MinCorrelation    float64
	VolumeMultiplier  float64
	HalfLifeHours     float64
}

func DefaultBTCCorrelationParams() BTCCorrelationParams {
	return BTCCorrelationParams{
		MoveThreshold:     0.03,
		StrongMove:        0.05,
		ShortWindowHours:  4,
		MediumWindowHours: 12,
		LongWindowHours:   24,
		ExpectedLagHours:  8,
		MaxLagHours:       24,
		MinCorrelation:    0.6,
		VolumeMultiplier:  1.3,
		HalfLifeHours:     6,
	}
}

const minCorrelationObservations = 24

// referenceMove is a detected significant move on the reference asset.
type referenceMove struct {
	Direction       string // "up" or "down"
	Magnitude       float64
	WindowHours     int
	VolumeConfirmed bool
	AllMoves        map[string]windowMove
	DetectedAt      time.Time
}

type windowMove struct {
	PctChange   float64
	Hours       int
	Significant bool
}

// BTCCorrelationStrategy trades the target off significant moves in a
// reference asset that the target historically follows with a lag. The
// reference frame is injected each cycle via SetReferenceFrame; an armed
// move persists across cycles and decays until it expires.
type BTCCorrelationStrategy struct {
	params    BTCCorrelationParams
	reference *feature.Frame
	lastMove  *referenceMove
	now       func() time.Time
}

func NewBTCCorrelationStrategy(params BTCCorrelationParams, now func() time.Time) *BTCCorrelationStrategy {
	def := DefaultBTCCorrelationParams()
	if params.MoveThreshold <= 0 {
		params.MoveThreshold = def.MoveThreshold
	}
	if params.StrongMove <= 0 {
		params.StrongMove = def.StrongMove
	}
	if params.ShortWindowHours <= 0 {
		params.ShortWindowHours = def.ShortWindowHours
	}
	if params.MediumWindowHours <= 0 {
		params.MediumWindowHours = def.MediumWindowHours
	}
	if params.LongWindowHours <= 0 {
		params.LongWindowHours = def.LongWindowHours
	}
	if params.ExpectedLagHours <= 0 {
		params.ExpectedLagHours = def.ExpectedLagHours
	}
	if params.MaxLagHours <= 0 {
		params.MaxLagHours = def.MaxLagHours
	}
	if params.MinCorrelation <= 0 {
		params.MinCorrelation = def.MinCorrelation
	}
	if params.VolumeMultiplier <= 0 {
		params.VolumeMultiplier = def.VolumeMultiplier
	}
	if params.HalfLifeHours <= 0 {
		params.HalfLifeHours = def.HalfLifeHours
	}
	if now == nil {
		now = time.Now
	}
	return &BTCCorrelationStrategy{params: params, now: now}
}

func (s *BTCCorrelationStrategy) Name() string { return "BTCCorrelation" }

// SetReferenceFrame supplies the reference asset's latest frame.
func (s *BTCCorrelationStrategy) SetReferenceFrame(f *feature.Frame) {
	s.reference = f
}

// CalculateCorrelation searches lags 0..MaxLagHours for the lag at which
// the target's returns best track the reference's returns. Rows are
// matched by timestamp, with the target shifted back by the candidate
// lag. Returns (0, 0) when either series has fewer than 24 rows.
func (s *BTCCorrelationStrategy) CalculateCorrelation(target, reference *feature.Frame) (float64, int) {
	if target.Len() < minCorrelationObservations || reference.Len() < minCorrelationObservations {
		return 0, 0
	}

	targetReturns := returnsByTime(target)
	refCloses, _ := reference.Column(feature.ColClose)
	refReturns := ta.PctChangeSeries(refCloses)

	maxLag := int(s.params.MaxLagHours)
	var bestCorr float64
	bestLag := 0
	for lag := 0; lag <= maxLag; lag++ {
		shift := time.Duration(lag) * time.Hour
		xs := make([]float64, 0, reference.Len())
		ys := make([]float64, 0, reference.Len())
		for i, ts := range reference.Timestamps {
			if math.IsNaN(refReturns[i]) {
				continue
			}
			tv, ok := targetReturns[ts.Add(shift).Unix()]
			if !ok {
				continue
			}
			xs = append(xs, refReturns[i])
			ys = append(ys, tv)
		}
		corr := ta.Pearson(xs, ys)
		if math.Abs(corr) > math.Abs(bestCorr) {
			bestCorr = corr
			bestLag = lag
		}
	}
	return bestCorr, bestLag
}

func returnsByTime(f *feature.Frame) map[int64]float64 {
	closes, _ := f.Column(feature.ColClose)
	returns := ta.PctChangeSeries(closes)
	out := make(map[int64]float64, len(returns))
	for i, ts := range f.Timestamps {
		if math.IsNaN(returns[i]) {
			continue
		}
		out[ts.Unix()] = returns[i]
	}
	return out
}

// detectReferenceMove scans the short, medium, and long windows of the
// reference frame for a significant move and returns the strongest one,
// or nil when no window clears the threshold.
func (s *BTCCorrelationStrategy) detectReferenceMove(reference *feature.Frame) *referenceMove {
	if reference.Len() < minCorrelationObservations {
		return nil
	}
	closes, _ := reference.Column(feature.ColClose)
	latest := closes[len(closes)-1]

	moves := make(map[string]windowMove, 3)
	for _, w := range []struct {
		name  string
		hours int
	}{
		{"short", s.params.ShortWindowHours},
		{"medium", s.params.MediumWindowHours},
		{"long", s.params.LongWindowHours},
	} {
		if reference.Len() < w.hours {
			continue
		}
		past := closes[len(closes)-w.hours]
		pct := (latest - past) / past
		moves[w.name] = windowMove{
			PctChange:   pct,
			Hours:       w.hours,
			Significant: math.Abs(pct) >= s.params.MoveThreshold,
		}
	}

	var strongest *windowMove
	for name := range moves {
		m := moves[name]
		if !m.Significant {
			continue
		}
		if strongest == nil || math.Abs(m.PctChange) > math.Abs(strongest.PctChange) {
			strongest = &m
		}
	}
	if strongest == nil {
		return nil
	}

	latestVolume := reference.Latest(feature.ColVolume)
	avgVolume := reference.TailMean(feature.ColVolume, s.params.LongWindowHours)
	volumeConfirmed := latestVolume > avgVolume*s.params.VolumeMultiplier

	direction := "up"
	if strongest.PctChange < 0 {
		direction = "down"
	}
	return &referenceMove{
		Direction:       direction,
		Magnitude:       math.Abs(strongest.PctChange),
		WindowHours:     strongest.Hours,
		VolumeConfirmed: volumeConfirmed,
		AllMoves:        moves,
		DetectedAt:      s.now(),
	}
}

// DecayFactor is how much of the armed move's weight remains. Decays
// exponentially with the configured half-life and drops straight to 0
// once the move is older than the maximum lag.
func (s *BTCCorrelationStrategy) DecayFactor() float64 {
	if s.lastMove == nil {
		return 0
	}
	elapsed := s.now().Sub(s.lastMove.DetectedAt).Hours()
	if elapsed > s.params.MaxLagHours {
		return 0
	}
	return math.Exp2(-elapsed / s.params.HalfLifeHours)
}

func (s *BTCCorrelationStrategy) GenerateSignal(f *feature.Frame) (*domain.Signal, error) {
	if s.reference == nil || s.reference.Len() < minCorrelationObservations {
		log.Printf("btccorrelation: reference data not available")
		return nil, nil
	}
	if f.Len() < minCorrelationObservations {
		return nil, nil
	}

	corr, lag := s.CalculateCorrelation(f, s.reference)
	if math.Abs(corr) < s.params.MinCorrelation {
		return nil, nil
	}

	if move := s.detectReferenceMove(s.reference); move != nil && move.Magnitude >= s.params.MoveThreshold {
		s.lastMove = move
		log.Printf("btccorrelation: reference %s move %.2f%% over %dh volume_confirmed=%v",
			move.Direction, move.Magnitude*100, move.WindowHours, move.VolumeConfirmed)
	}
	if s.lastMove == nil {
		return nil, nil
	}

	decay := s.DecayFactor()
	if decay < 0.1 {
		s.lastMove = nil
		return nil, nil
	}

	// The target may already have caught up; halve confidence when it
	// moved in the reference's direction over the last 4 rows.
	closes, _ := f.Column(feature.ColClose)
	targetLatest := closes[len(closes)-1]
	targetPast := closes[len(closes)-4]
	targetMove := (targetLatest - targetPast) / targetPast

	latenessPenalty := 1.0
	alreadyMoved := (s.lastMove.Direction == "up" && targetMove > 0.02) ||
		(s.lastMove.Direction == "down" && targetMove < -0.02)
	if alreadyMoved {
		latenessPenalty = 0.5
	}

	signalType := domain.SignalBuy
	if s.lastMove.Direction == "down" {
		signalType = domain.SignalSell
	}

	strength := s.SignalStrength(f)
	confidence := clamp01(s.Confidence(f) * decay * latenessPenalty)
	hoursSince := s.now().Sub(s.lastMove.DetectedAt).Hours()

	return &domain.Signal{
		Type:       signalType,
		Strength:   strength,
		Confidence: confidence,
		Strategy:   s.Name(),
		Timestamp:  s.now(),
		Metadata: map[string]any{
			"btc_move":             s.lastMove.Magnitude,
			"btc_direction":        s.lastMove.Direction,
			"btc_window_hours":     s.lastMove.WindowHours,
			"correlation":          corr,
			"optimal_lag":          lag,
			"decay_factor":         decay,
			"hours_since_btc_move": hoursSince,
			"volume_confirmed":     s.lastMove.VolumeConfirmed,
			"lateness_penalty":     latenessPenalty,
			"target_move_4h":       targetMove,
		},
	}, nil
}

// ValidateSignal re-checks the freshness constraints captured in the
// signal's metadata. Any missing field fails closed.
func (s *BTCCorrelationStrategy) ValidateSignal(sig *domain.Signal, _ *feature.Frame) bool {
	if sig == nil || sig.Metadata == nil {
		return false
	}
	corr, _ := sig.Metadata["correlation"].(float64)
	if math.Abs(corr) < s.params.MinCorrelation {
		return false
	}
	hoursSince, _ := sig.Metadata["hours_since_btc_move"].(float64)
	if hoursSince > s.params.MaxLagHours {
		return false
	}
	lateness, ok := sig.Metadata["lateness_penalty"].(float64)
	if !ok || lateness < 0.3 {
		return false
	}
	return true
}

// SignalStrength weighs the armed move's magnitude, volume confirmation
// and multi-window agreement.
func (s *BTCCorrelationStrategy) SignalStrength(_ *feature.Frame) float64 {
	if s.lastMove == nil {
		return 0
	}
	magnitudeScore := math.Min(s.lastMove.Magnitude/s.params.StrongMove, 1.0)

	volumeScore := 0.6
	if s.lastMove.VolumeConfirmed {
		volumeScore = 1.0
	}

	multiWindowScore := 0.5
	if len(s.lastMove.AllMoves) > 0 {
		agreeing := 0
		for _, m := range s.lastMove.AllMoves {
			if (s.lastMove.Direction == "up" && m.PctChange > 0) ||
				(s.lastMove.Direction == "down" && m.PctChange < 0) {
				agreeing++
			}
		}
		multiWindowScore = float64(agreeing) / float64(len(s.lastMove.AllMoves))
	}

	return clamp01(magnitudeScore*0.5 + volumeScore*0.3 + multiWindowScore*0.2)
}

// Confidence weighs correlation strength, lag consistency with the
// expected lag, target volatility, and trend alignment between target
// and reference.
func (s *BTCCorrelationStrategy) Confidence(f *feature.Frame) float64 {
	if s.reference == nil || s.reference.Len() < minCorrelationObservations {
		return 0
	}
	corr, lag := s.CalculateCorrelation(f, s.reference)
	correlationConfidence := math.Abs(corr)

	lagDiff := math.Abs(s.params.ExpectedLagHours - float64(lag))
	lagConfidence := math.Max(0, 1-lagDiff/12)

	close := f.Latest(feature.ColClose)
	atr := f.LatestOr(feature.ColATR, 0)
	volatilityConfidence := 1 - math.Min(atr/close*50, 1.0)

	targetTrendUp := f.Latest(feature.ColClose) > f.At(feature.ColClose, f.Len()-24)
	refTrendUp := s.reference.Latest(feature.ColClose) > s.reference.At(feature.ColClose, s.reference.Len()-24)
	alignmentConfidence := 0.7
	if targetTrendUp == refTrendUp {
		alignmentConfidence = 1.0
	}

	return clamp01(correlationConfidence*0.4 + lagConfidence*0.2 + volatilityConfidence*0.2 + alignmentConfidence*0.2)
}

// CorrelationReport is a diagnostic snapshot exposed over the API.
type CorrelationReport struct {
	Correlation     float64   `json:"correlation"`
	OptimalLagHours int       `json:"optimal_lag_hours"`
	ActiveMove      bool      `json:"active_move"`
	MoveDirection   string    `json:"move_direction,omitempty"`
	MoveMagnitude   float64   `json:"move_magnitude,omitempty"`
	SignalAgeHours  float64   `json:"signal_age_hours,omitempty"`
	SignalDecay     float64   `json:"signal_decay"`
	Timestamp       time.Time `json:"timestamp"`
}

// Report summarizes the current correlation state for diagnostics.
func (s *BTCCorrelationStrategy) Report(f *feature.Frame) CorrelationReport {
	report := CorrelationReport{Timestamp: s.now()}
	if s.reference == nil {
		return report
	}
	report.Correlation, report.OptimalLagHours = s.CalculateCorrelation(f, s.reference)
	report.SignalDecay = s.DecayFactor()
	if s.lastMove != nil {
		report.ActiveMove = true
		report.MoveDirection = s.lastMove.Direction
		report.MoveMagnitude = s.lastMove.Magnitude
		report.SignalAgeHours = s.now().Sub(s.lastMove.DetectedAt).Hours()
	}
	return report
}
