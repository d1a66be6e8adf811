package strategy

import (
	"log"
	"sync"
	"time"

	"crosslag/internal/domain"
	"crosslag/internal/feature"
)

// Aggregation methods accepted by AggregateSignals. An unknown method
// falls back to weighted voting.
const (
	MethodWeightedVoting  = "weighted_voting"
	MethodMajorityVoting  = "majority_voting"
	MethodStrongestSignal = "strongest_signal"
)

const maxSignalHistory = 1000

// Aggregator collects per-strategy signals and combines them into one
// consensus signal. Strategy weights start uniform and can be rebalanced
// from realized performance. Safe for concurrent use; the trade cycle
// writes while the HTTP layer reads statistics.
type Aggregator struct {
	mu         sync.Mutex
	strategies []Strategy
	weights    map[string]float64
	history    []domain.Signal
	now        func() time.Time
}

func NewAggregator(strategies []Strategy, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	weights := make(map[string]float64, len(strategies))
	for _, s := range strategies {
		weights[s.Name()] = 1.0 / float64(len(strategies))
	}
	return &Aggregator{strategies: strategies, weights: weights, now: now}
}

// GenerateSignals runs every strategy against the frame. A strategy
// that errors is logged and skipped so one failure cannot poison the
// cycle; signals that fail their own validation are dropped. Admitted
// signals are appended to the rolling history.
func (a *Aggregator) GenerateSignals(f *feature.Frame) []domain.Signal {
	signals := make([]domain.Signal, 0, len(a.strategies))
	for _, s := range a.strategies {
		sig, err := s.GenerateSignal(f)
		if err != nil {
			log.Printf("aggregator: strategy %s failed: %v", s.Name(), err)
			continue
		}
		if sig == nil {
			continue
		}
		if !s.ValidateSignal(sig, f) {
			log.Printf("aggregator: strategy %s signal rejected by validation", s.Name())
			continue
		}
		sig.Strength = clamp01(sig.Strength)
		sig.Confidence = clamp01(sig.Confidence)
		signals = append(signals, *sig)
	}

	a.mu.Lock()
	a.history = append(a.history, signals...)
	if len(a.history) > maxSignalHistory {
		a.history = a.history[len(a.history)-maxSignalHistory:]
	}
	a.mu.Unlock()

	return signals
}

// AggregateSignals combines the cycle's signals with the requested
// method. Returns nil when there is no input or no consensus.
func (a *Aggregator) AggregateSignals(signals []domain.Signal, method string) *domain.Signal {
	if len(signals) == 0 {
		return nil
	}
	switch method {
	case MethodMajorityVoting:
		return a.majorityVoting(signals)
	case MethodStrongestSignal:
		return a.strongestSignal(signals)
	default:
		return a.weightedVoting(signals)
	}
}

// weightedVoting scores each signal as strength x confidence x weight
// and buckets the scores per direction. The winning direction must win
// strictly; ties fall through to HOLD. The consensus strength is the
// winner's share of the total score, confidence the mean over all
// inputs.
func (a *Aggregator) weightedVoting(signals []domain.Signal) *domain.Signal {
	a.mu.Lock()
	var buyScore, sellScore, holdScore float64
	for _, sig := range signals {
		weight, ok := a.weights[sig.Strategy]
		if !ok {
			weight = 1.0
		}
		score := sig.Score() * weight
		switch sig.Type {
		case domain.SignalBuy:
			buyScore += score
		case domain.SignalSell:
			sellScore += score
		default:
			holdScore += score
		}
	}
	a.mu.Unlock()

	total := buyScore + sellScore + holdScore
	if total == 0 {
		return nil
	}

	var signalType domain.SignalType
	var strength float64
	switch {
	case buyScore > sellScore && buyScore > holdScore:
		signalType = domain.SignalBuy
		strength = buyScore / total
	case sellScore > buyScore && sellScore > holdScore:
		signalType = domain.SignalSell
		strength = sellScore / total
	default:
		signalType = domain.SignalHold
		strength = holdScore / total
	}

	var confSum float64
	names := make([]string, 0, len(signals))
	for _, sig := range signals {
		confSum += sig.Confidence
		names = append(names, sig.Strategy)
	}

	return &domain.Signal{
		Type:       signalType,
		Strength:   strength,
		Confidence: confSum / float64(len(signals)),
		Strategy:   domain.AggregatedStrategyName,
		Timestamp:  a.now(),
		Metadata: map[string]any{
			"num_signals": len(signals),
			"strategies":  names,
			"buy_score":   buyScore,
			"sell_score":  sellScore,
			"hold_score":  holdScore,
		},
	}
}

// majorityVoting requires at least half the signals to agree on a
// direction; otherwise there is no consensus. Strength and confidence
// are averaged over the agreeing subset only.
func (a *Aggregator) majorityVoting(signals []domain.Signal) *domain.Signal {
	counts := make(map[domain.SignalType]int, 3)
	for _, sig := range signals {
		counts[sig.Type]++
	}

	// Ties break by first appearance so the result is deterministic.
	var winner domain.SignalType
	best := 0
	for _, sig := range signals {
		if counts[sig.Type] > best {
			winner = sig.Type
			best = counts[sig.Type]
		}
	}
	if float64(best) < float64(len(signals))/2 {
		return nil
	}

	var strengthSum, confSum float64
	names := make([]string, 0, best)
	for _, sig := range signals {
		if sig.Type != winner {
			continue
		}
		strengthSum += sig.Strength
		confSum += sig.Confidence
		names = append(names, sig.Strategy)
	}

	return &domain.Signal{
		Type:       winner,
		Strength:   strengthSum / float64(best),
		Confidence: confSum / float64(best),
		Strategy:   domain.AggregatedStrategyName,
		Timestamp:  a.now(),
		Metadata: map[string]any{
			"num_signals": len(signals),
			"strategies":  names,
			"vote_count":  best,
			"total_votes": len(signals),
		},
	}
}

// strongestSignal passes through the signal with the highest
// strength x confidence product.
func (a *Aggregator) strongestSignal(signals []domain.Signal) *domain.Signal {
	strongest := signals[0]
	for _, sig := range signals[1:] {
		if sig.Score() > strongest.Score() {
			strongest = sig
		}
	}

	names := make([]string, 0, len(signals))
	for _, sig := range signals {
		names = append(names, sig.Strategy)
	}

	return &domain.Signal{
		Type:       strongest.Type,
		Strength:   strongest.Strength,
		Confidence: strongest.Confidence,
		Strategy:   domain.AggregatedStrategyName,
		Timestamp:  strongest.Timestamp,
		Metadata: map[string]any{
			"original_strategy": strongest.Strategy,
			"num_signals":       len(signals),
			"all_strategies":    names,
		},
	}
}

// UpdateWeights rebalances strategy weights proportionally to realized
// performance. A non-positive total leaves the weights untouched.
func (a *Aggregator) UpdateWeights(performance map[string]float64) {
	var total float64
	for _, p := range performance {
		total += p
	}
	if total <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for name, p := range performance {
		if _, ok := a.weights[name]; ok {
			a.weights[name] = p / total
		}
	}
}

// Weights returns a copy of the current strategy weights.
func (a *Aggregator) Weights() map[string]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]float64, len(a.weights))
	for k, v := range a.weights {
		out[k] = v
	}
	return out
}

// Statistics summarizes the signal history for diagnostics.
func (a *Aggregator) Statistics() domain.SignalStatistics {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := domain.SignalStatistics{
		TotalSignals: len(a.history),
		ByType:       make(map[domain.SignalType]int),
		ByStrategy:   make(map[string]int),
	}
	if len(a.history) == 0 {
		return stats
	}
	var strengthSum, confSum float64
	for _, sig := range a.history {
		stats.ByType[sig.Type]++
		stats.ByStrategy[sig.Strategy]++
		strengthSum += sig.Strength
		confSum += sig.Confidence
	}
	stats.AvgStrength = strengthSum / float64(len(a.history))
	stats.AvgConfidence = confSum / float64(len(a.history))
	return stats
}
