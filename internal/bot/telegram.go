package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"crosslag/internal/domain"

	tele "gopkg.in/telebot.v3"
)

type PriceReader interface {
	GetCurrentPrice(ctx context.Context, symbol string) (*domain.PriceSnapshot, error)
}

// PositionBook is the risk manager view the bot reports from.
type PositionBook interface {
	OpenPositions() []domain.Position
	PortfolioMetrics() domain.PortfolioMetrics
}

type SignalReader interface {
	RecentSignals(ctx context.Context, symbol string, limit int) ([]domain.Signal, error)
}

// Asker answers free-form questions with market context. Nil disables /ask.
type Asker interface {
	Ask(ctx context.Context, chatID int64, userMessage string) (string, error)
}

// TradeBot serves chat commands and pushes trade notifications. The
// notification chat is set via TELEGRAM_CHAT_ID; without it the bot still
// answers commands but swallows pushes.
type TradeBot struct {
	bot     *tele.Bot
	prices  PriceReader
	book    PositionBook
	signals SignalReader
	asker   Asker
	symbol  string
	chatID  int64
}

// StartTelegramBot wires the command handlers and begins long polling.
// Returns nil when TELEGRAM_BOT_TOKEN is not set.
func StartTelegramBot(prices PriceReader, book PositionBook, signals SignalReader, asker Asker, symbol string) *TradeBot {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	var chatID int64
	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			chatID = id
		} else {
			log.Printf("invalid TELEGRAM_CHAT_ID %q, notifications disabled", raw)
		}
	}

	tb := &TradeBot{bot: b, prices: prices, book: book, signals: signals, asker: asker, symbol: symbol, chatID: chatID}
	tb.registerHandlers()

	log.Println("Telegram bot started")
	go b.Start()
	return tb
}

func (t *TradeBot) registerHandlers() {
	t.bot.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	t.bot.Handle("/price", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send(fmt.Sprintf("Usage: /price BTC\nSupported: %s", strings.Join(domain.SupportedSymbols, ", ")))
		}
		symbol := strings.ToUpper(args[0])
		if _, ok := domain.CoinGeckoID[symbol]; !ok {
			return c.Send(fmt.Sprintf("Unknown symbol: %s\nSupported: %s", symbol, strings.Join(domain.SupportedSymbols, ", ")))
		}
		snapshot, err := t.prices.GetCurrentPrice(context.Background(), symbol)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching price for %s: %v", symbol, err))
		}
		msg := fmt.Sprintf(
			"%s\nPrice: $%.2f\n24h Change: %.2f%%\n24h Volume: $%.0f",
			symbol, snapshot.PriceUSD, snapshot.Change24hPct, snapshot.Volume24h,
		)
		return c.Send(msg)
	})

	t.bot.Handle("/positions", func(c tele.Context) error {
		if t.book == nil {
			return c.Send("Position tracking is not running")
		}
		positions := t.book.OpenPositions()
		if len(positions) == 0 {
			return c.Send("No open positions")
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Open positions (%d):\n", len(positions)))
		for _, p := range positions {
			sb.WriteString(fmt.Sprintf(
				"%s %s: %.4f @ $%.2f | stop $%.2f | target $%.2f | pnl $%.2f\n",
				strings.ToUpper(string(p.Side)), p.Symbol, p.Units, p.EntryPrice,
				p.StopLoss, p.TakeProfit, p.UnrealizedPnL,
			))
		}
		return c.Send(sb.String())
	})

	t.bot.Handle("/portfolio", func(c tele.Context) error {
		if t.book == nil {
			return c.Send("Position tracking is not running")
		}
		m := t.book.PortfolioMetrics()
		msg := fmt.Sprintf(
			"Portfolio\nValue: $%.2f\nPeak: $%.2f\nDrawdown: %.2f%%\nExposure: $%.2f\nOpen positions: %d\nUnrealized PnL: $%.2f",
			m.PortfolioValue, m.PeakValue, m.DrawdownPct, m.TotalExposure, m.OpenPositions, m.UnrealizedPnL,
		)
		return c.Send(msg)
	})

	t.bot.Handle("/signals", func(c tele.Context) error {
		if t.signals == nil {
			return c.Send("Signal history is not available")
		}
		signals, err := t.signals.RecentSignals(context.Background(), t.symbol, 10)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching signals: %v", err))
		}
		if len(signals) == 0 {
			return c.Send(fmt.Sprintf("No signals recorded for %s yet", t.symbol))
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Recent %s signals:\n", t.symbol))
		for _, s := range signals {
			sb.WriteString(fmt.Sprintf(
				"%s %s (%s) strength=%.2f confidence=%.2f\n",
				s.Timestamp.Format("01-02 15:04"), strings.ToUpper(string(s.Type)), s.Strategy,
				s.Strength, s.Confidence,
			))
		}
		return c.Send(sb.String())
	})

	t.bot.Handle("/ask", func(c tele.Context) error {
		if t.asker == nil {
			return c.Send("The advisor is not configured")
		}
		question := strings.TrimSpace(strings.TrimPrefix(c.Text(), "/ask"))
		if question == "" {
			return c.Send("Usage: /ask should I close my XMR position?")
		}
		reply, err := t.asker.Ask(context.Background(), c.Chat().ID, question)
		if err != nil {
			return c.Send(fmt.Sprintf("Advisor error: %v", err))
		}
		return c.Send(reply)
	})
}

// NotifyDecision pushes an approved trade to the notification chat.
func (t *TradeBot) NotifyDecision(symbol string, sig *domain.Signal, decision domain.TradeDecision) {
	msg := fmt.Sprintf(
		"Trade opened: %s %s\nEntry: $%.2f\nUnits: %.4f\nStop: $%.2f\nTarget: $%.2f\nSignal: %s (strength=%.2f confidence=%.2f)",
		strings.ToUpper(string(decision.Side)), symbol,
		decision.EntryPrice, decision.Units, decision.StopLoss, decision.TakeProfit,
		sig.Strategy, sig.Strength, sig.Confidence,
	)
	t.push(msg)
}

// NotifyClose pushes a closed trade to the notification chat.
func (t *TradeBot) NotifyClose(result domain.TradeResult) {
	msg := fmt.Sprintf(
		"Trade closed: %s %s (%s)\nExit: $%.2f\nRealized PnL: $%.2f",
		strings.ToUpper(string(result.Side)), result.Symbol, result.Reason,
		result.ExitPrice, result.RealizedPnL,
	)
	t.push(msg)
}

func (t *TradeBot) push(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(&tele.Chat{ID: t.chatID}, msg); err != nil {
		log.Printf("telegram notify: %v", err)
	}
}
