package advisor

import (
	"fmt"
	"strings"
	"time"

	"crosslag/internal/domain"
)

const tradingPhilosophy = `You are the advisor bot of an automated crypto trading desk. Your role is to interpret the desk's signals, positions, and market data, NOT to generate signals yourself.

Signal framework:
- Every signal carries a strength and a confidence in [0,1]. Treat strength as how decisive the setup is and confidence as how much to trust it.
- The "Aggregated" strategy is the desk's consensus across all strategies; individual strategy signals are its inputs.
- The BTCCorrelation strategy trades lagged reactions of the target asset to large BTC moves. Its signals decay over time; an old signal is a weak signal.

Rules:
- Always reference specific signals and data when making observations.
- Never fabricate data. If data is unavailable, say so.
- Express uncertainty when signals conflict.
- Mention strength and confidence when discussing any signal.
- Keep responses concise and actionable. You are talking via Telegram.
- Do not provide financial advice disclaimers on every message. The user understands this is informational.
- When asked about an asset, summarize: current price, recent signals, open position if any, and your interpretation.
- If no signals exist for an asset, say so honestly rather than speculating.`

func BuildSystemPrompt(marketContext string) string {
	var sb strings.Builder
	sb.WriteString(tradingPhilosophy)
	sb.WriteString("\n\n--- LIVE MARKET DATA (as of ")
	sb.WriteString(time.Now().UTC().Format(time.RFC822))
	sb.WriteString(") ---\n")
	sb.WriteString(marketContext)
	return sb.String()
}

func FormatMarketContext(
	prices []*domain.PriceSnapshot,
	signals []domain.Signal,
	positions []domain.Position,
	metrics *domain.PortfolioMetrics,
) string {
	var sb strings.Builder

	if len(prices) > 0 {
		sb.WriteString("\nCurrent Prices:\n")
		for _, p := range prices {
			sb.WriteString(fmt.Sprintf("  %s: $%.2f (24h: %+.2f%%, vol: $%.0f)\n",
				p.Symbol, p.PriceUSD, p.Change24hPct, p.Volume24h))
		}
	}

	if len(signals) > 0 {
		sb.WriteString("\nRecent Signals:\n")
		for _, s := range signals {
			sb.WriteString(fmt.Sprintf("  %s %s strength=%.2f confidence=%.2f (%s)\n",
				strings.ToUpper(string(s.Type)), s.Strategy,
				s.Strength, s.Confidence,
				s.Timestamp.UTC().Format("Jan 2 15:04")))
		}
	}

	if len(positions) > 0 {
		sb.WriteString("\nOpen Positions:\n")
		for _, p := range positions {
			sb.WriteString(fmt.Sprintf("  %s %s: %.4f @ $%.2f, stop $%.2f, target $%.2f, pnl $%.2f\n",
				strings.ToUpper(string(p.Side)), p.Symbol, p.Units, p.EntryPrice,
				p.StopLoss, p.TakeProfit, p.UnrealizedPnL))
		}
	}

	if metrics != nil {
		sb.WriteString(fmt.Sprintf("\nPortfolio: value $%.2f, peak $%.2f, drawdown %.2f%%, exposure $%.2f, unrealized pnl $%.2f\n",
			metrics.PortfolioValue, metrics.PeakValue, metrics.DrawdownPct,
			metrics.TotalExposure, metrics.UnrealizedPnL))
	}

	if sb.Len() == 0 {
		return "No market data currently available."
	}
	return sb.String()
}
