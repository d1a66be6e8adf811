package handler

import (
	"context"

	"crosslag/internal/domain"
	"crosslag/internal/feature"
	"crosslag/internal/service"
	"crosslag/internal/strategy"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// PositionBook is the risk manager view the API reports from.
type PositionBook interface {
	OpenPositions() []domain.Position
	PortfolioMetrics() domain.PortfolioMetrics
}

type SignalReader interface {
	RecentSignals(ctx context.Context, symbol string, limit int) ([]domain.Signal, error)
}

type TradeReader interface {
	RecentTrades(ctx context.Context, limit int) ([]domain.TradeResult, error)
	TradeReturns(ctx context.Context, limit int) ([]float64, error)
}

type StatsProvider interface {
	Statistics() domain.SignalStatistics
	Weights() map[string]float64
}

type SnapshotReader interface {
	LatestSignal(ctx context.Context, symbol string, out any) (bool, error)
}

type CorrelationReporter interface {
	Report(f *feature.Frame) strategy.CorrelationReport
}

type Handler struct {
	tracer       trace.Tracer
	priceService *service.PriceService
	features     *feature.Engine
	book         PositionBook
	signals      SignalReader
	trades       TradeReader
	stats        StatsProvider
	snapshots    SnapshotReader
	reporter     CorrelationReporter
	tradeSymbol  string
}

func New(
	tracer trace.Tracer,
	priceService *service.PriceService,
	features *feature.Engine,
	book PositionBook,
	signals SignalReader,
	trades TradeReader,
	stats StatsProvider,
	snapshots SnapshotReader,
	reporter CorrelationReporter,
	tradeSymbol string,
) *Handler {
	return &Handler{
		tracer:       tracer,
		priceService: priceService,
		features:     features,
		book:         book,
		signals:      signals,
		trades:       trades,
		stats:        stats,
		snapshots:    snapshots,
		reporter:     reporter,
		tradeSymbol:  tradeSymbol,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/prices", h.GetAllPrices)
	r.GET("/api/prices/:symbol", h.GetPrice)
	r.GET("/api/candles/:symbol", h.GetCandles)
	r.GET("/api/signals", h.GetSignals)
	r.GET("/api/signals/latest", h.GetLatestSignal)
	r.GET("/api/signals/statistics", h.GetSignalStatistics)
	r.GET("/api/positions", h.GetPositions)
	r.GET("/api/portfolio", h.GetPortfolio)
	r.GET("/api/trades", h.GetTrades)
	r.GET("/api/metrics", h.GetRiskMetrics)
	r.GET("/api/correlation", h.GetCorrelation)
}
