package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"crosslag/internal/domain"
	"crosslag/internal/feature"
	"crosslag/internal/risk"
	"crosslag/internal/strategy"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// frameLookback is how many hourly candles the strategies evaluate
// against: two weeks, matching the market_chart refresh window.
const frameLookback = 14 * 24

// PriceSource is the slice of PriceService the engine needs.
type PriceSource interface {
	GetCurrentPrice(ctx context.Context, symbol string) (*domain.PriceSnapshot, error)
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error)
	RefreshPrices(ctx context.Context) error
	RefreshHourlyCandles(ctx context.Context, symbol string) error
}

type SignalStore interface {
	InsertSignal(ctx context.Context, symbol string, sig *domain.Signal) error
}

type TradeStore interface {
	UpsertPosition(ctx context.Context, p *domain.Position) error
	OpenPositions(ctx context.Context) ([]*domain.Position, error)
	RecordClose(ctx context.Context, result *domain.TradeResult) error
}

type Snapshots interface {
	SetLatestSignal(ctx context.Context, symbol string, v any) error
	SetPortfolio(ctx context.Context, v any) error
}

// Notifier pushes trade events to the chat bot. Nil disables notifications.
type Notifier interface {
	NotifyDecision(symbol string, sig *domain.Signal, decision domain.TradeDecision)
	NotifyClose(result domain.TradeResult)
}

// Params configures the engine loops.
type Params struct {
	TradeSymbol       string
	ReferenceSymbol   string
	Interval          string
	AggregationMethod string
	PortfolioValue    float64

	CycleInterval        time.Duration
	MonitorInterval      time.Duration
	PriceRefreshInterval time.Duration

	MLEnabled         bool
	MLTargetHours     int
	MLTrainWindowDays int
	MLTrainHourUTC    int
}

// Engine runs the periodic evaluate-decide-monitor loops: a slow trade
// cycle that turns candles into signals and signals into positions, a
// fast monitor that marks open positions to market, and an optional
// daily model retrain.
type Engine struct {
	tracer    trace.Tracer
	params    Params
	prices    PriceSource
	features  *feature.Engine
	agg       *strategy.Aggregator
	reference *strategy.BTCCorrelationStrategy
	mlstrat   *strategy.MLStrategy
	risk      *risk.Manager
	signals   SignalStore
	trades    TradeStore
	snapshots Snapshots
	notifier  Notifier

	now   func() time.Time
	newID func() string
}

func NewEngine(
	tracer trace.Tracer,
	params Params,
	prices PriceSource,
	features *feature.Engine,
	agg *strategy.Aggregator,
	reference *strategy.BTCCorrelationStrategy,
	mlstrat *strategy.MLStrategy,
	riskManager *risk.Manager,
	signals SignalStore,
	trades TradeStore,
	snapshots Snapshots,
	notifier Notifier,
	now func() time.Time,
) *Engine {
	if now == nil {
		now = time.Now
	}
	if params.CycleInterval <= 0 {
		params.CycleInterval = 12 * time.Hour
	}
	if params.MonitorInterval <= 0 {
		params.MonitorInterval = time.Minute
	}
	return &Engine{
		tracer:    tracer,
		params:    params,
		prices:    prices,
		features:  features,
		agg:       agg,
		reference: reference,
		mlstrat:   mlstrat,
		risk:      riskManager,
		signals:   signals,
		trades:    trades,
		snapshots: snapshots,
		notifier:  notifier,
		now:       now,
		newID:     uuid.NewString,
	}
}

// Start launches the engine loops. Each loop runs its job immediately,
// then on its ticker, until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	if e.params.PriceRefreshInterval > 0 {
		go e.loop(ctx, "price-refresh", e.params.PriceRefreshInterval, e.prices.RefreshPrices)
	}

	go e.loop(ctx, "trade-cycle", e.params.CycleInterval, e.RunTradeCycle)

	go func() {
		// Stagger so the first monitor tick sees positions the first
		// trade cycle may have opened.
		select {
		case <-time.After(15 * time.Second):
		case <-ctx.Done():
			return
		}
		e.loop(ctx, "position-monitor", e.params.MonitorInterval, e.RunMonitorTick)
	}()

	if e.params.MLEnabled && e.mlstrat != nil {
		go e.retrainLoop(ctx)
	}
}

func (e *Engine) loop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	log.Printf("Starting %s loop (every %s)", name, interval)

	if err := fn(ctx); err != nil {
		log.Printf("%s failed: %v", name, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Stopping %s loop", name)
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				log.Printf("%s failed: %v", name, err)
			}
		}
	}
}

// Rehydrate reloads open positions from storage into the risk manager
// so a restart does not orphan them.
func (e *Engine) Rehydrate(ctx context.Context) error {
	if e.trades == nil {
		return nil
	}
	positions, err := e.trades.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("load open positions: %w", err)
	}
	for _, p := range positions {
		if err := e.risk.AddPosition(p); err != nil {
			log.Printf("rehydrate position %s: %v", p.ID, err)
			continue
		}
	}
	if len(positions) > 0 {
		log.Printf("Rehydrated %d open positions", len(positions))
	}
	return nil
}

// RunTradeCycle executes one full evaluation: refresh candles, rebuild
// frames, collect strategy signals, aggregate, and hand the consensus to
// the risk manager. A cycle that produces no trade is a normal outcome.
func (e *Engine) RunTradeCycle(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "engine.trade-cycle")
	defer span.End()

	for _, symbol := range []string{e.params.ReferenceSymbol, e.params.TradeSymbol} {
		if err := e.prices.RefreshHourlyCandles(ctx, symbol); err != nil {
			log.Printf("refresh hourly candles for %s: %v", symbol, err)
		}
	}

	target, err := e.loadFrame(ctx, e.params.TradeSymbol)
	if err != nil {
		return fmt.Errorf("build %s frame: %w", e.params.TradeSymbol, err)
	}
	if e.reference != nil {
		ref, err := e.loadFrame(ctx, e.params.ReferenceSymbol)
		if err != nil {
			return fmt.Errorf("build %s frame: %w", e.params.ReferenceSymbol, err)
		}
		e.reference.SetReferenceFrame(ref)
	}

	signals := e.agg.GenerateSignals(target)
	for i := range signals {
		e.persistSignal(ctx, &signals[i])
	}

	consensus := e.agg.AggregateSignals(signals, e.params.AggregationMethod)
	if consensus == nil {
		log.Printf("No consensus for %s this cycle (%d signals)", e.params.TradeSymbol, len(signals))
		return nil
	}
	e.persistSignal(ctx, consensus)
	if e.snapshots != nil {
		if err := e.snapshots.SetLatestSignal(ctx, e.params.TradeSymbol, consensus); err != nil {
			log.Printf("cache latest signal: %v", err)
		}
	}
	log.Printf("Consensus for %s: %s (strength=%.2f confidence=%.2f)",
		e.params.TradeSymbol, consensus.Type, consensus.Strength, consensus.Confidence)

	entry := target.LatestOr("close", 0)
	atr := target.LatestOr("atr", 0)
	decision := e.risk.EvaluateTradeOpportunity(consensus, e.params.PortfolioValue, entry, atr)
	if !decision.Approved {
		log.Printf("Trade rejected for %s: %s", e.params.TradeSymbol, decision.Reason)
		return nil
	}

	return e.openPosition(ctx, consensus, decision)
}

func (e *Engine) openPosition(ctx context.Context, sig *domain.Signal, decision domain.TradeDecision) error {
	position := &domain.Position{
		ID:         e.newID(),
		Symbol:     e.params.TradeSymbol,
		Side:       decision.Side,
		EntryPrice: decision.EntryPrice,
		Units:      decision.Units,
		StopLoss:   decision.StopLoss,
		TakeProfit: decision.TakeProfit,
		OpenedAt:   e.now(),
	}
	if err := e.risk.AddPosition(position); err != nil {
		return fmt.Errorf("add position: %w", err)
	}
	if e.trades != nil {
		if err := e.trades.UpsertPosition(ctx, position); err != nil {
			log.Printf("persist position %s: %v", position.ID, err)
		}
	}
	if e.notifier != nil {
		e.notifier.NotifyDecision(e.params.TradeSymbol, sig, decision)
	}
	log.Printf("Opened %s %s: %.4f units @ %.2f (stop=%.2f target=%.2f)",
		position.Side, position.Symbol, position.Units, position.EntryPrice,
		position.StopLoss, position.TakeProfit)
	return nil
}

// RunMonitorTick marks every open position to market, closes the ones
// that hit their stop or target, and refreshes the cached portfolio view.
func (e *Engine) RunMonitorTick(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "engine.monitor-tick")
	defer span.End()

	positions := e.risk.OpenPositions()
	if len(positions) > 0 {
		prices := make(map[string]float64)
		for _, p := range positions {
			if _, ok := prices[p.Symbol]; ok {
				continue
			}
			snap, err := e.prices.GetCurrentPrice(ctx, p.Symbol)
			if err != nil {
				log.Printf("monitor price for %s: %v", p.Symbol, err)
				continue
			}
			prices[p.Symbol] = snap.PriceUSD
		}

		for _, result := range e.risk.TickAll(prices) {
			e.recordClose(ctx, result)
		}

		for _, p := range e.risk.OpenPositions() {
			if e.trades == nil {
				break
			}
			p := p
			if err := e.trades.UpsertPosition(ctx, &p); err != nil {
				log.Printf("persist position %s: %v", p.ID, err)
			}
		}
	}

	if e.snapshots != nil {
		if err := e.snapshots.SetPortfolio(ctx, e.risk.PortfolioMetrics()); err != nil {
			log.Printf("cache portfolio metrics: %v", err)
		}
	}
	return nil
}

func (e *Engine) recordClose(ctx context.Context, result domain.TradeResult) {
	log.Printf("Closed %s %s @ %.2f (%s, pnl=%.2f)",
		result.Side, result.Symbol, result.ExitPrice, result.Reason, result.RealizedPnL)
	if e.trades != nil {
		if err := e.trades.RecordClose(ctx, &result); err != nil {
			log.Printf("record close for %s: %v", result.PositionID, err)
		}
	}
	if e.notifier != nil {
		e.notifier.NotifyClose(result)
	}
}

// RunRetrain refits the ML ensemble on the configured training window.
func (e *Engine) RunRetrain(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "engine.ml-retrain")
	defer span.End()

	limit := e.params.MLTrainWindowDays * 24
	if limit <= 0 {
		limit = 90 * 24
	}
	candles, err := e.prices.GetCandles(ctx, e.params.TradeSymbol, e.params.Interval, limit)
	if err != nil {
		return fmt.Errorf("load training candles: %w", err)
	}
	frame, err := e.features.Build(candles)
	if err != nil {
		return fmt.Errorf("build training frame: %w", err)
	}
	if err := e.mlstrat.Retrain(frame, e.params.MLTargetHours); err != nil {
		return fmt.Errorf("retrain ensemble: %w", err)
	}
	log.Printf("Retrained ML ensemble on %d candles of %s", frame.Len(), e.params.TradeSymbol)
	return nil
}

func (e *Engine) retrainLoop(ctx context.Context) {
	log.Printf("Starting ml-retrain loop (daily at %02d:00 UTC)", e.params.MLTrainHourUTC)

	if err := e.RunRetrain(ctx); err != nil {
		log.Printf("ml-retrain failed: %v", err)
	}

	for {
		wait := time.Until(nextTrainTime(e.now(), e.params.MLTrainHourUTC))
		select {
		case <-ctx.Done():
			log.Printf("Stopping ml-retrain loop")
			return
		case <-time.After(wait):
			if err := e.RunRetrain(ctx); err != nil {
				log.Printf("ml-retrain failed: %v", err)
			}
		}
	}
}

func nextTrainTime(now time.Time, hourUTC int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

func (e *Engine) loadFrame(ctx context.Context, symbol string) (*feature.Frame, error) {
	candles, err := e.prices.GetCandles(ctx, symbol, e.params.Interval, frameLookback)
	if err != nil {
		return nil, err
	}
	return e.features.Build(candles)
}

func (e *Engine) persistSignal(ctx context.Context, sig *domain.Signal) {
	if e.signals == nil {
		return
	}
	if err := e.signals.InsertSignal(ctx, e.params.TradeSymbol, sig); err != nil {
		log.Printf("persist %s signal: %v", sig.Strategy, err)
	}
}
