package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	TelegramBotToken string
	DatabaseURL      string
	RedisURL         string
	HTTPAddr         string
	SSHAddr          string

	CoinGeckoPollSecs int

	TradeSymbol     string
	ReferenceSymbol string
	Interval        string

	AggregationMethod string

	MaxPositionSize     float64
	MaxDrawdownPercent  float64
	RiskPerTradePercent float64
	PortfolioValue      float64

	MoveThreshold     float64
	MinCorrelation    float64
	ExpectedLagHours  float64
	MaxLagHours       float64
	SignalHalfLife    float64
	TradeCycleSecs    int
	MonitorPollSecs   int
	SentimentPollSecs int

	MLEnabled         bool
	MLTargetHours     int
	MLTrainWindowDays int
	MLTrainHourUTC    int
	MLScoreThreshold  float64

	OpenAIAPIKey      string
	OpenAIModel       string
	AdvisorMaxHistory int
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
	}

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, advisor will be disabled")
	}

	cfg.HTTPAddr = stringEnv("HTTP_ADDR", ":8080")
	cfg.SSHAddr = stringEnv("SSH_ADDR", ":2222")

	cfg.CoinGeckoPollSecs = intEnv("COINGECKO_POLL_SECS", 60)

	cfg.TradeSymbol = strings.ToUpper(stringEnv("TRADE_SYMBOL", "XMR"))
	cfg.ReferenceSymbol = strings.ToUpper(stringEnv("REFERENCE_SYMBOL", "BTC"))
	cfg.Interval = stringEnv("CANDLE_INTERVAL", "1h")

	cfg.AggregationMethod = stringEnv("AGGREGATION_METHOD", "weighted_voting")
	switch cfg.AggregationMethod {
	case "weighted_voting", "majority_voting", "strongest_signal":
	default:
		log.Printf("Warning: unsupported AGGREGATION_METHOD=%q, defaulting to weighted_voting", cfg.AggregationMethod)
		cfg.AggregationMethod = "weighted_voting"
	}

	cfg.MaxPositionSize = floatEnv("MAX_POSITION_SIZE", 1000)
	cfg.MaxDrawdownPercent = floatEnv("MAX_DRAWDOWN_PERCENT", 10)
	cfg.RiskPerTradePercent = floatEnv("RISK_PER_TRADE_PERCENT", 2)
	cfg.PortfolioValue = floatEnv("PORTFOLIO_VALUE", 10000)

	cfg.MoveThreshold = floatEnv("BTC_MOVE_THRESHOLD", 0.03)
	cfg.MinCorrelation = floatEnv("MIN_CORRELATION", 0.6)
	cfg.ExpectedLagHours = floatEnv("EXPECTED_LAG_HOURS", 8)
	cfg.MaxLagHours = floatEnv("MAX_LAG_HOURS", 24)
	cfg.SignalHalfLife = floatEnv("SIGNAL_HALF_LIFE_HOURS", 6)

	cfg.TradeCycleSecs = intEnv("TRADE_CYCLE_SECS", 43200)
	cfg.MonitorPollSecs = intEnv("MONITOR_POLL_SECS", 60)
	cfg.SentimentPollSecs = intEnv("SENTIMENT_POLL_SECS", 3600)

	cfg.MLEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("ML_ENABLED")), "true")
	cfg.MLTargetHours = intEnv("ML_TARGET_HOURS", 4)
	cfg.MLTrainWindowDays = intEnv("ML_TRAIN_WINDOW_DAYS", 90)
	cfg.MLTrainHourUTC = 0
	if v := strings.TrimSpace(os.Getenv("ML_TRAIN_HOUR_UTC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 23 {
			cfg.MLTrainHourUTC = n
		}
	}
	cfg.MLScoreThreshold = floatEnv("ML_SCORE_THRESHOLD", 0.15)

	cfg.OpenAIModel = stringEnv("OPENAI_MODEL", "gpt-4o-mini")
	cfg.AdvisorMaxHistory = intEnv("ADVISOR_MAX_HISTORY", 20)

	return cfg
}

func stringEnv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intEnv(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func floatEnv(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			return n
		}
	}
	return def
}
