package risk

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"crosslag/internal/domain"
)

const (
	atrStopMultiplier  = 2.0
	defaultStopPercent = 2.0
	riskRewardRatio    = 2.0
	maxExposurePercent = 95.0
)

// Limits are the configured risk boundaries. Zero values fall back to
// the defaults.
type Limits struct {
	MaxPositionSize     float64 // max order notional in USD
	MaxDrawdownPercent  float64
	RiskPerTradePercent float64
}

func DefaultLimits() Limits {
	return Limits{
		MaxPositionSize:     1000,
		MaxDrawdownPercent:  10,
		RiskPerTradePercent: 2,
	}
}

// Manager sizes trades, enforces the approval gates, and owns the open
// position map. It is the only shared mutable state between the trade
// cycle and the monitoring loop, so every operation takes the one lock.
type Manager struct {
	mu     sync.Mutex
	limits Limits

	peakValue    float64
	currentValue float64
	positions    map[string]*domain.Position

	now func() time.Time
}

func NewManager(limits Limits, now func() time.Time) *Manager {
	def := DefaultLimits()
	if limits.MaxPositionSize <= 0 {
		limits.MaxPositionSize = def.MaxPositionSize
	}
	if limits.MaxDrawdownPercent <= 0 {
		limits.MaxDrawdownPercent = def.MaxDrawdownPercent
	}
	if limits.RiskPerTradePercent <= 0 {
		limits.RiskPerTradePercent = def.RiskPerTradePercent
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{
		limits:    limits,
		positions: make(map[string]*domain.Position),
		now:       now,
	}
}

// CalculatePositionSize returns the number of units to buy so that the
// loss at the stop equals the configured per-trade risk, capped by the
// max position notional. A zero-distance stop sizes to 0 instead of
// dividing by zero.
func (m *Manager) CalculatePositionSize(portfolioValue, entryPrice, stopLossPrice float64) float64 {
	riskAmount := portfolioValue * (m.limits.RiskPerTradePercent / 100)
	priceRisk := math.Abs(entryPrice - stopLossPrice)
	if priceRisk == 0 {
		return 0
	}
	size := riskAmount / priceRisk
	maxUnits := m.limits.MaxPositionSize / entryPrice
	return math.Min(size, maxUnits)
}

// CalculateStopLoss places the stop ATR-distance away when ATR is
// available, otherwise at a fixed percentage (default 2%).
func (m *Manager) CalculateStopLoss(entryPrice float64, side domain.PositionSide, atr, fixedPercent float64) float64 {
	var distance float64
	switch {
	case atr > 0:
		distance = atr * atrStopMultiplier
	case fixedPercent > 0:
		distance = entryPrice * (fixedPercent / 100)
	default:
		distance = entryPrice * (defaultStopPercent / 100)
	}
	if side == domain.SideLong {
		return entryPrice - distance
	}
	return entryPrice + distance
}

// CalculateTakeProfit mirrors the stop distance at the configured
// risk-reward ratio.
func (m *Manager) CalculateTakeProfit(entryPrice, stopLossPrice float64, side domain.PositionSide) float64 {
	reward := math.Abs(entryPrice-stopLossPrice) * riskRewardRatio
	if side == domain.SideLong {
		return entryPrice + reward
	}
	return entryPrice - reward
}

// CheckDrawdown updates the tracked peak and reports whether the
// current drawdown stays within the limit. The peak only ever ratchets
// upward.
func (m *Manager) CheckDrawdown(currentValue float64) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkDrawdownLocked(currentValue)
}

func (m *Manager) checkDrawdownLocked(currentValue float64) (bool, float64) {
	if currentValue > m.peakValue {
		m.peakValue = currentValue
	}
	m.currentValue = currentValue
	if m.peakValue == 0 {
		return true, 0
	}
	drawdown := (m.peakValue - currentValue) / m.peakValue * 100
	return drawdown <= m.limits.MaxDrawdownPercent, drawdown
}

// ValidateOrder runs the approval gates in a fixed order and returns
// the first failing gate's reason: notional cap, then the 95% exposure
// ceiling, then drawdown.
func (m *Manager) ValidateOrder(orderValue, portfolioValue, currentPositionsValue float64) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validateOrderLocked(orderValue, portfolioValue, currentPositionsValue)
}

func (m *Manager) validateOrderLocked(orderValue, portfolioValue, currentPositionsValue float64) (bool, string) {
	if orderValue > m.limits.MaxPositionSize {
		return false, fmt.Sprintf("order value $%.2f exceeds max position size $%.2f", orderValue, m.limits.MaxPositionSize)
	}
	exposure := (currentPositionsValue + orderValue) / portfolioValue * 100
	if exposure > maxExposurePercent {
		return false, fmt.Sprintf("total exposure %.1f%% would exceed %.0f%% of portfolio", exposure, maxExposurePercent)
	}
	ok, drawdown := m.checkDrawdownLocked(portfolioValue)
	if !ok {
		return false, fmt.Sprintf("current drawdown %.2f%% exceeds maximum %.2f%%", drawdown, m.limits.MaxDrawdownPercent)
	}
	return true, "order validated"
}

// EvaluateTradeOpportunity turns an aggregated signal into an approved,
// fully sized trade decision, or a rejection with the gate that failed.
func (m *Manager) EvaluateTradeOpportunity(sig *domain.Signal, portfolioValue, entryPrice, atr float64) domain.TradeDecision {
	if sig == nil {
		return domain.TradeDecision{Reason: "no signal"}
	}
	side, ok := domain.SideForSignal(sig.Type)
	if !ok {
		return domain.TradeDecision{Reason: fmt.Sprintf("signal type %s is not actionable", sig.Type)}
	}
	if entryPrice <= 0 {
		return domain.TradeDecision{Reason: "entry price unavailable"}
	}

	stopLoss := m.CalculateStopLoss(entryPrice, side, atr, 0)
	units := m.CalculatePositionSize(portfolioValue, entryPrice, stopLoss)
	if units <= 0 {
		return domain.TradeDecision{Reason: "position size rounded to zero"}
	}
	orderValue := units * entryPrice

	m.mu.Lock()
	var exposure float64
	for _, p := range m.positions {
		exposure += p.Value()
	}
	approved, reason := m.validateOrderLocked(orderValue, portfolioValue, exposure)
	m.mu.Unlock()
	if !approved {
		return domain.TradeDecision{Reason: reason}
	}

	return domain.TradeDecision{
		Approved:   true,
		Reason:     reason,
		Side:       side,
		EntryPrice: entryPrice,
		Units:      units,
		StopLoss:   stopLoss,
		TakeProfit: m.CalculateTakeProfit(entryPrice, stopLoss, side),
		OrderValue: orderValue,
	}
}

// AddPosition admits a position to the open map.
func (m *Manager) AddPosition(p *domain.Position) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("position must have an id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.positions[p.ID]; exists {
		return fmt.Errorf("position %s already open", p.ID)
	}
	cp := *p
	cp.Status = domain.PositionOpen
	if cp.OpenedAt.IsZero() {
		cp.OpenedAt = m.now()
	}
	m.positions[p.ID] = &cp
	return nil
}

// UpdatePositionPnL recomputes unrealized P&L from the latest price.
func (m *Manager) UpdatePositionPnL(id string, price float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok {
		return 0, fmt.Errorf("position %s not found", id)
	}
	p.UnrealizedPnL = unrealizedPnL(p, price)
	return p.UnrealizedPnL, nil
}

func unrealizedPnL(p *domain.Position, price float64) float64 {
	if p.Side == domain.SideShort {
		return (p.EntryPrice - price) * p.Units
	}
	return (price - p.EntryPrice) * p.Units
}

// CheckStopLossHit reports whether the price has crossed the stop. Does
// not mutate state.
func (m *Manager) CheckStopLossHit(id string, price float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok {
		return false
	}
	return stopHit(p, price)
}

func stopHit(p *domain.Position, price float64) bool {
	if p.Side == domain.SideShort {
		return price >= p.StopLoss
	}
	return price <= p.StopLoss
}

// CheckTakeProfitHit reports whether the price has reached the target.
// Does not mutate state.
func (m *Manager) CheckTakeProfitHit(id string, price float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok {
		return false
	}
	return takeProfitHit(p, price)
}

func takeProfitHit(p *domain.Position, price float64) bool {
	if p.Side == domain.SideShort {
		return price <= p.TakeProfit
	}
	return price >= p.TakeProfit
}

// ClosePosition removes the position and returns the realized result.
func (m *Manager) ClosePosition(id string, price float64, reason domain.CloseReason) (*domain.TradeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closePositionLocked(id, price, reason)
}

func (m *Manager) closePositionLocked(id string, price float64, reason domain.CloseReason) (*domain.TradeResult, error) {
	p, ok := m.positions[id]
	if !ok {
		return nil, fmt.Errorf("position %s not found", id)
	}
	delete(m.positions, id)
	result := &domain.TradeResult{
		PositionID:  p.ID,
		Symbol:      p.Symbol,
		Side:        p.Side,
		EntryPrice:  p.EntryPrice,
		ExitPrice:   price,
		Units:       p.Units,
		RealizedPnL: unrealizedPnL(p, price),
		Reason:      reason,
		OpenedAt:    p.OpenedAt,
		ClosedAt:    m.now(),
	}
	log.Printf("risk: closed position %s (%s %s) pnl=%.2f reason=%s", p.ID, p.Symbol, p.Side, result.RealizedPnL, reason)
	return result, nil
}

// Tick advances one position through the monitoring state machine:
// refresh P&L, then stop-loss, then take-profit, closing on the first
// trigger. Stop-loss strictly precedes take-profit.
func (m *Manager) Tick(id string, price float64) (*domain.TradeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok {
		return nil, fmt.Errorf("position %s not found", id)
	}
	p.UnrealizedPnL = unrealizedPnL(p, price)
	if stopHit(p, price) {
		return m.closePositionLocked(id, price, domain.CloseStopLoss)
	}
	if takeProfitHit(p, price) {
		return m.closePositionLocked(id, price, domain.CloseTakeProfit)
	}
	return nil, nil
}

// TickAll runs Tick for every open position of a symbol against its
// latest price and returns the closes that fired.
func (m *Manager) TickAll(prices map[string]float64) []domain.TradeResult {
	m.mu.Lock()
	ids := make([]string, 0, len(m.positions))
	for id := range m.positions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var closed []domain.TradeResult
	for _, id := range ids {
		m.mu.Lock()
		p, ok := m.positions[id]
		if !ok {
			m.mu.Unlock()
			continue
		}
		price, havePrice := prices[p.Symbol]
		m.mu.Unlock()
		if !havePrice {
			continue
		}
		if result, err := m.Tick(id, price); err == nil && result != nil {
			closed = append(closed, *result)
		}
	}
	return closed
}

// OpenPositions returns a snapshot of the open position map.
func (m *Manager) OpenPositions() []domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	return out
}

// Position returns a copy of one open position.
func (m *Manager) Position(id string) (domain.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// PortfolioMetrics is a consistent snapshot taken under the lock.
func (m *Manager) PortfolioMetrics() domain.PortfolioMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	var exposure, unrealized float64
	for _, p := range m.positions {
		exposure += p.Value()
		unrealized += p.UnrealizedPnL
	}
	var drawdown float64
	if m.peakValue > 0 {
		drawdown = (m.peakValue - m.currentValue) / m.peakValue * 100
	}
	return domain.PortfolioMetrics{
		PortfolioValue: m.currentValue,
		PeakValue:      m.peakValue,
		DrawdownPct:    drawdown,
		OpenPositions:  len(m.positions),
		TotalExposure:  exposure,
		UnrealizedPnL:  unrealized,
	}
}

// Limits returns the configured risk boundaries.
func (m *Manager) Limits() Limits {
	return m.limits
}
