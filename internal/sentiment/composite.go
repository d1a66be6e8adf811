package sentiment

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Component is one source's contribution to the composite mood.
type Component struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Available  bool    `json:"available"`
}

type Input struct {
	FearGreedValue *int
	FearGreed      Component
	News           Component
	Reddit         Component
	OnChain        Component
}

// Snapshot is the blended market mood the sentiment strategy votes from.
type Snapshot struct {
	Score       float64              `json:"score"`
	Confidence  float64              `json:"confidence"`
	Label       string               `json:"label"`
	Weights     map[string]float64   `json:"weights"`
	Components  map[string]Component `json:"components"`
	FearGreed   *int                 `json:"fear_greed_value,omitempty"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// BuildComposite blends the available source components into one score in
// [-1,1]. Weights of missing sources are redistributed over the rest; if
// nothing is available the snapshot is neutral with zero confidence.
func BuildComposite(in Input, now time.Time) Snapshot {
	weights := map[string]float64{
		"fear_greed": 0.20,
		"news":       0.35,
		"reddit":     0.25,
		"onchain":    0.20,
	}
	components := map[string]Component{
		"fear_greed": in.FearGreed,
		"news":       in.News,
		"reddit":     in.Reddit,
		"onchain":    in.OnChain,
	}

	activeWeight := 0.0
	for name, c := range components {
		if c.Available {
			activeWeight += weights[name]
		}
	}
	if activeWeight <= 0 {
		return Snapshot{
			Label:       "neutral",
			Weights:     map[string]float64{},
			Components:  components,
			FearGreed:   in.FearGreedValue,
			GeneratedAt: now.UTC(),
		}
	}

	normalized := make(map[string]float64, len(weights))
	score := 0.0
	confidence := 0.0
	for name, w := range weights {
		if !components[name].Available {
			continue
		}
		nw := w / activeWeight
		normalized[name] = nw
		score += nw * clamp(components[name].Score, -1, 1)
		confidence += nw * clamp(components[name].Confidence, 0, 1)
	}

	snapshot := Snapshot{
		Score:       clamp(score, -1, 1),
		Confidence:  clamp(confidence, 0, 1),
		Weights:     normalized,
		Components:  components,
		FearGreed:   in.FearGreedValue,
		GeneratedAt: now.UTC(),
	}
	snapshot.Label = labelForScore(snapshot.Score)
	return snapshot
}

// DetailsText renders the snapshot as a deterministic key=value line.
func (s Snapshot) DetailsText() string {
	parts := []string{
		fmt.Sprintf("score=%.4f", s.Score),
		fmt.Sprintf("confidence=%.4f", s.Confidence),
		fmt.Sprintf("label=%s", s.Label),
	}
	names := make([]string, 0, len(s.Components))
	for name := range s.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := s.Components[name]
		if !c.Available {
			parts = append(parts, name+"=na")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%.4f", name, clamp(c.Score, -1, 1)))
	}
	if s.FearGreed != nil {
		parts = append(parts, fmt.Sprintf("fng_value=%d", *s.FearGreed))
	}
	return strings.Join(parts, ";")
}

func labelForScore(score float64) string {
	if score > 0.2 {
		return "bullish"
	}
	if score < -0.2 {
		return "bearish"
	}
	return "neutral"
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
