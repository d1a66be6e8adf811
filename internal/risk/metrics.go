package risk

import (
	"gonum.org/v1/gonum/stat"

	"crosslag/internal/domain"
)

const tradingDaysPerYear = 252

// CalculateRiskMetrics summarizes a series of per-trade returns. The
// Sharpe ratio uses a daily-scaled risk-free rate and is 0 when the
// series has no variance; max drawdown is the deepest dip of the
// compounded-returns curve below its running maximum, expressed as a
// negative fraction.
func CalculateRiskMetrics(returns []float64, riskFreeRate float64) domain.RiskMetrics {
	if len(returns) == 0 {
		return domain.RiskMetrics{}
	}

	totalReturn := 1.0
	for _, r := range returns {
		totalReturn *= 1 + r
	}
	totalReturn -= 1

	avg := stat.Mean(returns, nil)
	volatility := stat.PopStdDev(returns, nil)

	sharpe := 0.0
	if volatility > 0 {
		sharpe = (avg - riskFreeRate/tradingDaysPerYear) / volatility
	}

	cumulative := 1.0
	runningMax := 0.0
	maxDrawdown := 0.0
	for _, r := range returns {
		cumulative *= 1 + r
		if cumulative > runningMax {
			runningMax = cumulative
		}
		if dd := (cumulative - runningMax) / runningMax; dd < maxDrawdown {
			maxDrawdown = dd
		}
	}

	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}

	return domain.RiskMetrics{
		TotalReturn: totalReturn,
		AvgReturn:   avg,
		Volatility:  volatility,
		SharpeRatio: sharpe,
		MaxDrawdown: maxDrawdown,
		WinRate:     float64(wins) / float64(len(returns)),
		TotalTrades: len(returns),
	}
}
