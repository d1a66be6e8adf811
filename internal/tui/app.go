// Package tui is the SSH-facing dashboard: a read-only view over the
// trading engine's prices, positions and signals, plus an advisor chat.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crosslag/internal/domain"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	fetchTimeout    = 5 * time.Second
	refreshInterval = 15 * time.Second
	signalLimit     = 15
)

// PriceQuerier serves current prices for the dashboard tab.
type PriceQuerier interface {
	GetCurrentPrices(ctx context.Context) ([]*domain.PriceSnapshot, error)
}

// PositionReader serves open positions, usually the trade repository.
type PositionReader interface {
	OpenPositions(ctx context.Context) ([]*domain.Position, error)
}

// SignalReader serves recent signal history.
type SignalReader interface {
	RecentSignals(ctx context.Context, symbol string, limit int) ([]domain.Signal, error)
}

// PortfolioReader reads the cached portfolio snapshot the monitor loop
// publishes.
type PortfolioReader interface {
	Portfolio(ctx context.Context, out any) (bool, error)
}

// AdvisorQuerier answers free-form questions. Nil disables the tab.
type AdvisorQuerier interface {
	Ask(ctx context.Context, chatID int64, userMessage string) (string, error)
}

// Services bundles everything a session's model needs. Any reader may
// be nil; its tab degrades to a placeholder.
type Services struct {
	Prices    PriceQuerier
	Positions PositionReader
	Signals   SignalReader
	Portfolio PortfolioReader
	Advisor   AdvisorQuerier

	Symbol   string
	Username string
	ChatID   int64
}

type tab int

const (
	tabDashboard tab = iota
	tabPositions
	tabSignals
	tabAdvisor
	tabCount
)

var tabNames = [tabCount]string{"Dashboard", "Positions", "Signals", "Advisor"}

type (
	pricesMsg    []*domain.PriceSnapshot
	positionsMsg []*domain.Position
	signalsMsg   []domain.Signal
	portfolioMsg *domain.PortfolioMetrics
	replyMsg     string
	fetchErrMsg  struct{ err error }
	tickMsg      time.Time
)

// AppModel is the bubbletea model for one SSH session.
type AppModel struct {
	svc    Services
	active tab
	width  int
	height int

	spinner   spinner.Model
	positions table.Model
	signals   table.Model
	input     textinput.Model

	prices    []*domain.PriceSnapshot
	portfolio *domain.PortfolioMetrics
	chat      []chatLine
	loading   bool
	asking    bool
	err       error
}

type chatLine struct {
	role string
	text string
}

func NewAppModel(svc Services) *AppModel {
	if svc.Symbol == "" {
		svc.Symbol = "XMR"
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	positions := table.New(
		table.WithColumns([]table.Column{
			{Title: "Side", Width: 6},
			{Title: "Symbol", Width: 7},
			{Title: "Units", Width: 10},
			{Title: "Entry", Width: 10},
			{Title: "Stop", Width: 10},
			{Title: "Target", Width: 10},
			{Title: "PnL", Width: 10},
		}),
		table.WithHeight(10),
	)

	signals := table.New(
		table.WithColumns([]table.Column{
			{Title: "Time", Width: 12},
			{Title: "Type", Width: 11},
			{Title: "Strategy", Width: 16},
			{Title: "Strength", Width: 9},
			{Title: "Confidence", Width: 10},
		}),
		table.WithHeight(signalLimit),
	)

	input := textinput.New()
	input.Placeholder = "ask the advisor, e.g. should I close my position?"
	input.CharLimit = 300

	return &AppModel{
		svc:       svc,
		spinner:   sp,
		positions: positions,
		signals:   signals,
		input:     input,
		loading:   true,
	}
}

// SetSize is called by the SSH middleware with the client's PTY size.
func (m *AppModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refreshCmd(), tickCmd())
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		return m, tea.Batch(m.refreshCmd(), tickCmd())

	case pricesMsg:
		m.prices = msg
		m.loading = false
		m.err = nil
		return m, nil

	case positionsMsg:
		m.positions.SetRows(positionRows(msg))
		return m, nil

	case signalsMsg:
		m.signals.SetRows(signalRows(msg))
		return m, nil

	case portfolioMsg:
		m.portfolio = msg
		return m, nil

	case replyMsg:
		m.asking = false
		m.chat = append(m.chat, chatLine{role: "advisor", text: string(msg)})
		return m, nil

	case fetchErrMsg:
		m.loading = false
		m.asking = false
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The advisor input owns most keys while focused.
	if m.active == tabAdvisor && m.input.Focused() {
		switch msg.String() {
		case "esc":
			m.input.Blur()
			return m, nil
		case "enter":
			question := strings.TrimSpace(m.input.Value())
			if question == "" || m.asking {
				return m, nil
			}
			m.input.SetValue("")
			m.asking = true
			m.chat = append(m.chat, chatLine{role: m.username(), text: question})
			return m, tea.Batch(m.spinner.Tick, m.askCmd(question))
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab", "right", "l":
		m.active = (m.active + 1) % tabCount
	case "shift+tab", "left", "h":
		m.active = (m.active + tabCount - 1) % tabCount
	case "r":
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, m.refreshCmd())
	case "enter", "i":
		if m.active == tabAdvisor {
			m.input.Focus()
			return m, textinput.Blink
		}
	case "up", "k":
		m.scrollTable(msg)
	case "down", "j":
		m.scrollTable(msg)
	}
	return m, nil
}

func (m *AppModel) scrollTable(msg tea.KeyMsg) {
	switch m.active {
	case tabPositions:
		m.positions, _ = m.positions.Update(msg)
	case tabSignals:
		m.signals, _ = m.signals.Update(msg)
	}
}

func (m *AppModel) username() string {
	if m.svc.Username == "" {
		return "you"
	}
	return m.svc.Username
}

// refreshCmd fans out one fetch per data source so a slow source does
// not hold up the rest of the screen.
func (m *AppModel) refreshCmd() tea.Cmd {
	var cmds []tea.Cmd
	if m.svc.Prices != nil {
		cmds = append(cmds, m.fetchPrices())
	}
	if m.svc.Positions != nil {
		cmds = append(cmds, m.fetchPositions())
	}
	if m.svc.Signals != nil {
		cmds = append(cmds, m.fetchSignals())
	}
	if m.svc.Portfolio != nil {
		cmds = append(cmds, m.fetchPortfolio())
	}
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

func (m *AppModel) fetchPrices() tea.Cmd {
	prices := m.svc.Prices
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		snapshots, err := prices.GetCurrentPrices(ctx)
		if err != nil {
			return fetchErrMsg{err: err}
		}
		return pricesMsg(snapshots)
	}
}

func (m *AppModel) fetchPositions() tea.Cmd {
	positions := m.svc.Positions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		open, err := positions.OpenPositions(ctx)
		if err != nil {
			return fetchErrMsg{err: err}
		}
		return positionsMsg(open)
	}
}

func (m *AppModel) fetchSignals() tea.Cmd {
	signals := m.svc.Signals
	symbol := m.svc.Symbol
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		recent, err := signals.RecentSignals(ctx, symbol, signalLimit)
		if err != nil {
			return fetchErrMsg{err: err}
		}
		return signalsMsg(recent)
	}
}

func (m *AppModel) fetchPortfolio() tea.Cmd {
	portfolio := m.svc.Portfolio
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		var metrics domain.PortfolioMetrics
		found, err := portfolio.Portfolio(ctx, &metrics)
		if err != nil || !found {
			return portfolioMsg(nil)
		}
		return portfolioMsg(&metrics)
	}
}

func (m *AppModel) askCmd(question string) tea.Cmd {
	advisor := m.svc.Advisor
	chatID := m.svc.ChatID
	return func() tea.Msg {
		if advisor == nil {
			return replyMsg("The advisor is not configured on this server.")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		reply, err := advisor.Ask(ctx, chatID, question)
		if err != nil {
			return fetchErrMsg{err: err}
		}
		return replyMsg(reply)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func positionRows(positions []*domain.Position) []table.Row {
	rows := make([]table.Row, 0, len(positions))
	for _, p := range positions {
		rows = append(rows, table.Row{
			strings.ToUpper(string(p.Side)),
			p.Symbol,
			fmt.Sprintf("%.4f", p.Units),
			fmt.Sprintf("%.2f", p.EntryPrice),
			fmt.Sprintf("%.2f", p.StopLoss),
			fmt.Sprintf("%.2f", p.TakeProfit),
			fmt.Sprintf("%+.2f", p.UnrealizedPnL),
		})
	}
	return rows
}

func signalRows(signals []domain.Signal) []table.Row {
	rows := make([]table.Row, 0, len(signals))
	for _, s := range signals {
		rows = append(rows, table.Row{
			s.Timestamp.Format("01-02 15:04"),
			strings.ToUpper(string(s.Type)),
			s.Strategy,
			fmt.Sprintf("%.2f", s.Strength),
			fmt.Sprintf("%.2f", s.Confidence),
		})
	}
	return rows
}
