package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m *AppModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("crosslag"))
	b.WriteString("  ")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	switch m.active {
	case tabDashboard:
		b.WriteString(m.renderDashboard())
	case tabPositions:
		b.WriteString(m.renderPositions())
	case tabSignals:
		b.WriteString(m.renderSignals())
	case tabAdvisor:
		b.WriteString(m.renderAdvisor())
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("tab/shift+tab switch · r refresh · q quit"))
	return b.String()
}

func (m *AppModel) renderTabs() string {
	parts := make([]string, 0, int(tabCount))
	for i := tab(0); i < tabCount; i++ {
		style := tabStyle
		if i == m.active {
			style = activeTabStyle
		}
		parts = append(parts, style.Render(tabNames[i]))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *AppModel) renderDashboard() string {
	var b strings.Builder

	if m.loading && len(m.prices) == 0 {
		return m.spinner.View() + " loading market data..."
	}

	if len(m.prices) == 0 {
		b.WriteString(labelStyle.Render("No price data available yet."))
		b.WriteString("\n")
	} else {
		for _, p := range m.prices {
			change := pnlStyle(p.Change24hPct).Render(fmt.Sprintf("%+6.2f%%", p.Change24hPct))
			b.WriteString(fmt.Sprintf(
				"%s  %s  %s  %s\n",
				valueStyle.Render(fmt.Sprintf("%-5s", p.Symbol)),
				valueStyle.Render(fmt.Sprintf("$%12.2f", p.PriceUSD)),
				change,
				labelStyle.Render(fmt.Sprintf("vol $%.0f", p.Volume24h)),
			))
		}
	}

	b.WriteString("\n")
	b.WriteString(m.renderPortfolioPanel())
	return b.String()
}

func (m *AppModel) renderPortfolioPanel() string {
	if m.portfolio == nil {
		return labelStyle.Render("Portfolio snapshot not available.")
	}
	p := m.portfolio
	lines := []string{
		fmt.Sprintf("%s $%.2f", labelStyle.Render("Value:"), p.PortfolioValue),
		fmt.Sprintf("%s $%.2f", labelStyle.Render("Peak:"), p.PeakValue),
		fmt.Sprintf("%s %.2f%%", labelStyle.Render("Drawdown:"), p.DrawdownPct),
		fmt.Sprintf("%s $%.2f", labelStyle.Render("Exposure:"), p.TotalExposure),
		fmt.Sprintf("%s %d", labelStyle.Render("Open positions:"), p.OpenPositions),
		fmt.Sprintf("%s %s", labelStyle.Render("Unrealized PnL:"),
			pnlStyle(p.UnrealizedPnL).Render(fmt.Sprintf("$%+.2f", p.UnrealizedPnL))),
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m *AppModel) renderPositions() string {
	if m.svc.Positions == nil {
		return labelStyle.Render("Position tracking is not connected.")
	}
	if len(m.positions.Rows()) == 0 {
		return labelStyle.Render("No open positions.")
	}
	return m.positions.View()
}

func (m *AppModel) renderSignals() string {
	if m.svc.Signals == nil {
		return labelStyle.Render("Signal history is not connected.")
	}
	if len(m.signals.Rows()) == 0 {
		return labelStyle.Render(fmt.Sprintf("No signals recorded for %s yet.", m.svc.Symbol))
	}
	return m.signals.View()
}

func (m *AppModel) renderAdvisor() string {
	if m.svc.Advisor == nil {
		return labelStyle.Render("The advisor is not configured on this server.")
	}

	var b strings.Builder
	for _, line := range m.chat {
		b.WriteString(valueStyle.Render(line.role + ": "))
		b.WriteString(line.text)
		b.WriteString("\n")
	}
	if m.asking {
		b.WriteString(m.spinner.View())
		b.WriteString(" thinking...\n")
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	if !m.input.Focused() {
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("press enter to type, esc to leave the input"))
	}
	return b.String()
}
