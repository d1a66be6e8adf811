package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type SignalType string

const (
	SignalBuy        SignalType = "buy"
	SignalSell       SignalType = "sell"
	SignalHold       SignalType = "hold"
	SignalCloseLong  SignalType = "close_long"
	SignalCloseShort SignalType = "close_short"
)

// AggregatedStrategyName is the strategy name carried by every signal
// produced by the aggregator rather than a single strategy.
const AggregatedStrategyName = "Aggregated"

// Signal is one strategy's directional vote for one evaluation cycle.
// Strength and Confidence are always within [0,1].
type Signal struct {
	Type       SignalType     `json:"signal_type"`
	Strength   float64        `json:"strength"`
	Confidence float64        `json:"confidence"`
	Strategy   string         `json:"strategy_name"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Score is the signal's weight-free vote score.
func (s *Signal) Score() float64 {
	return s.Strength * s.Confidence
}

// DetailsText renders metadata as a deterministic key=value line for
// logs and persistence.
func (s *Signal) DetailsText() string {
	if len(s.Metadata) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s.Metadata))
	for k, v := range s.Metadata {
		switch val := v.(type) {
		case float64:
			parts = append(parts, fmt.Sprintf("%s=%.4f", k, val))
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

type PositionSide string

const (
	SideLong  PositionSide = "long"
	SideShort PositionSide = "short"
)

// SideForSignal maps an actionable signal type to the position side it
// opens. Returns false for non-entry signal types.
func SideForSignal(t SignalType) (PositionSide, bool) {
	switch t {
	case SignalBuy:
		return SideLong, true
	case SignalSell:
		return SideShort, true
	default:
		return "", false
	}
}

type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

type CloseReason string

const (
	CloseStopLoss   CloseReason = "stop_loss"
	CloseTakeProfit CloseReason = "take_profit"
	CloseManual     CloseReason = "manual"
)

// Position is an open risk-bounded holding tracked by the risk manager.
type Position struct {
	ID            string         `json:"id"`
	Symbol        string         `json:"symbol"`
	Side          PositionSide   `json:"side"`
	EntryPrice    float64        `json:"entry_price"`
	Units         float64        `json:"units"`
	StopLoss      float64        `json:"stop_loss"`
	TakeProfit    float64        `json:"take_profit"`
	OpenedAt      time.Time      `json:"opened_at"`
	UnrealizedPnL float64        `json:"unrealized_pnl"`
	Status        PositionStatus `json:"status"`
}

// Value is the position's notional at entry.
func (p *Position) Value() float64 {
	return p.EntryPrice * p.Units
}

// TradeResult summarizes a closed position.
type TradeResult struct {
	PositionID  string       `json:"position_id"`
	Symbol      string       `json:"symbol"`
	Side        PositionSide `json:"side"`
	EntryPrice  float64      `json:"entry_price"`
	ExitPrice   float64      `json:"exit_price"`
	Units       float64      `json:"units"`
	RealizedPnL float64      `json:"realized_pnl"`
	Reason      CloseReason  `json:"reason"`
	OpenedAt    time.Time    `json:"opened_at"`
	ClosedAt    time.Time    `json:"closed_at"`
}

// TradeDecision is the risk manager's verdict on an aggregated signal.
type TradeDecision struct {
	Approved   bool         `json:"approved"`
	Reason     string       `json:"reason"`
	Side       PositionSide `json:"side,omitempty"`
	EntryPrice float64      `json:"entry_price,omitempty"`
	Units      float64      `json:"units,omitempty"`
	StopLoss   float64      `json:"stop_loss,omitempty"`
	TakeProfit float64      `json:"take_profit,omitempty"`
	OrderValue float64      `json:"order_value,omitempty"`
}

// PortfolioMetrics is a consistent read-only snapshot of portfolio state.
type PortfolioMetrics struct {
	PortfolioValue float64 `json:"portfolio_value"`
	PeakValue      float64 `json:"peak_value"`
	DrawdownPct    float64 `json:"drawdown_pct"`
	OpenPositions  int     `json:"open_positions"`
	TotalExposure  float64 `json:"total_exposure"`
	UnrealizedPnL  float64 `json:"unrealized_pnl"`
}

// RiskMetrics summarizes a historical return series.
type RiskMetrics struct {
	TotalReturn float64 `json:"total_return"`
	AvgReturn   float64 `json:"avg_return"`
	Volatility  float64 `json:"volatility"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	WinRate     float64 `json:"win_rate"`
	TotalTrades int     `json:"total_trades"`
}

// ConversationMessage is one turn of an advisor chat.
type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SignalStatistics is a read-only aggregate view over emitted signals.
type SignalStatistics struct {
	TotalSignals  int                `json:"total_signals"`
	ByType        map[SignalType]int `json:"signal_type_distribution"`
	ByStrategy    map[string]int     `json:"strategy_distribution"`
	AvgStrength   float64            `json:"average_strength"`
	AvgConfidence float64            `json:"average_confidence"`
}
