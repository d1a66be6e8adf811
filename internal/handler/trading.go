package handler

import (
	"net/http"
	"strconv"
	"strings"

	"crosslag/internal/domain"
	"crosslag/internal/risk"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const maxHistoryLimit = 200

// GetSignals godoc
// @Summary      Get recent signals
// @Description  Returns the newest persisted signals for a symbol
// @Tags         trading
// @Produce      json
// @Param        symbol  query  string  false  "Asset symbol (defaults to the traded symbol)"
// @Param        limit   query  int     false  "Number of signals (default 20, max 200)"  default(20)
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/signals [get]
func (h *Handler) GetSignals(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-signals")
	defer span.End()

	if h.signals == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal history is not available"})
		return
	}

	symbol := strings.ToUpper(c.DefaultQuery("symbol", h.tradeSymbol))
	span.SetAttributes(attribute.String("symbol", symbol))

	signals, err := h.signals.RecentSignals(ctx, symbol, queryLimit(c, 20))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "signals": signals})
}

// GetLatestSignal godoc
// @Summary      Get the latest aggregated signal
// @Description  Returns the consensus signal from the most recent trade cycle
// @Tags         trading
// @Produce      json
// @Success      200  {object}  domain.Signal
// @Failure      404  {object}  map[string]string
// @Router       /api/signals/latest [get]
func (h *Handler) GetLatestSignal(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-latest-signal")
	defer span.End()

	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal cache is not available"})
		return
	}

	var sig domain.Signal
	found, err := h.snapshots.LatestSignal(ctx, h.tradeSymbol, &sig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no signal cached for " + h.tradeSymbol})
		return
	}
	c.JSON(http.StatusOK, sig)
}

// GetSignalStatistics godoc
// @Summary      Get signal statistics
// @Description  Returns the distribution of emitted signals and current strategy weights
// @Tags         trading
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/signals/statistics [get]
func (h *Handler) GetSignalStatistics(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-signal-statistics")
	defer span.End()

	if h.stats == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "aggregator is not running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"statistics": h.stats.Statistics(),
		"weights":    h.stats.Weights(),
	})
}

// GetPositions godoc
// @Summary      Get open positions
// @Description  Returns every position the risk manager is tracking
// @Tags         trading
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/positions [get]
func (h *Handler) GetPositions(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-positions")
	defer span.End()

	if h.book == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "position tracking is not running"})
		return
	}
	positions := h.book.OpenPositions()
	c.JSON(http.StatusOK, gin.H{"count": len(positions), "positions": positions})
}

// GetPortfolio godoc
// @Summary      Get portfolio metrics
// @Description  Returns portfolio value, drawdown, exposure and unrealized PnL
// @Tags         trading
// @Produce      json
// @Success      200  {object}  domain.PortfolioMetrics
// @Router       /api/portfolio [get]
func (h *Handler) GetPortfolio(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-portfolio")
	defer span.End()

	if h.book == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "position tracking is not running"})
		return
	}
	c.JSON(http.StatusOK, h.book.PortfolioMetrics())
}

// GetTrades godoc
// @Summary      Get closed trades
// @Description  Returns closed trades, newest first
// @Tags         trading
// @Produce      json
// @Param        limit  query  int  false  "Number of trades (default 20, max 200)"  default(20)
// @Success      200  {object}  map[string]interface{}
// @Router       /api/trades [get]
func (h *Handler) GetTrades(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-trades")
	defer span.End()

	if h.trades == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade history is not available"})
		return
	}
	trades, err := h.trades.RecentTrades(ctx, queryLimit(c, 20))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(trades), "trades": trades})
}

// GetRiskMetrics godoc
// @Summary      Get historical risk metrics
// @Description  Returns Sharpe ratio, drawdown, volatility and win rate over closed trades
// @Tags         trading
// @Produce      json
// @Success      200  {object}  domain.RiskMetrics
// @Router       /api/metrics [get]
func (h *Handler) GetRiskMetrics(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-risk-metrics")
	defer span.End()

	if h.trades == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade history is not available"})
		return
	}
	returns, err := h.trades.TradeReturns(ctx, maxHistoryLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, risk.CalculateRiskMetrics(returns, 0))
}

// GetCorrelation godoc
// @Summary      Get the lag correlation report
// @Description  Returns the current reference correlation, optimal lag and signal decay state
// @Tags         trading
// @Produce      json
// @Success      200  {object}  strategy.CorrelationReport
// @Failure      503  {object}  map[string]string
// @Router       /api/correlation [get]
func (h *Handler) GetCorrelation(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-correlation")
	defer span.End()

	if h.reporter == nil || h.features == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "correlation strategy is not running"})
		return
	}

	candles, err := h.priceService.GetCandles(ctx, h.tradeSymbol, "1h", 14*24)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	frame, err := h.features.Build(candles)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.reporter.Report(frame))
}

func queryLimit(c *gin.Context, def int) int {
	limit := def
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= maxHistoryLimit {
			limit = n
		}
	}
	return limit
}
