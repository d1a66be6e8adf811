package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("TRADE_SYMBOL", "")
	t.Setenv("AGGREGATION_METHOD", "")
	t.Setenv("MAX_POSITION_SIZE", "")

	cfg := Load()
	if cfg.RedisURL != "localhost:6379" {
		t.Fatalf("expected default redis url, got %s", cfg.RedisURL)
	}
	if cfg.TradeSymbol != "XMR" || cfg.ReferenceSymbol != "BTC" {
		t.Fatalf("unexpected default symbols: %s/%s", cfg.TradeSymbol, cfg.ReferenceSymbol)
	}
	if cfg.AggregationMethod != "weighted_voting" {
		t.Fatalf("expected default aggregation method, got %s", cfg.AggregationMethod)
	}
	if cfg.MaxPositionSize != 1000 || cfg.MaxDrawdownPercent != 10 || cfg.RiskPerTradePercent != 2 {
		t.Fatalf("unexpected default risk limits: %+v", cfg)
	}
	if cfg.TradeCycleSecs != 43200 || cfg.MonitorPollSecs != 60 {
		t.Fatalf("unexpected default loop cadence: %+v", cfg)
	}
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis:6379")
	t.Setenv("TRADE_SYMBOL", "ltc")
	t.Setenv("MAX_POSITION_SIZE", "2500")
	t.Setenv("MIN_CORRELATION", "0.75")

	cfg := Load()
	if cfg.TelegramBotToken != "token" || cfg.DatabaseURL != "postgres://example" || cfg.RedisURL != "redis:6379" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.TradeSymbol != "LTC" {
		t.Fatalf("trade symbol must be upper-cased, got %s", cfg.TradeSymbol)
	}
	if cfg.MaxPositionSize != 2500 || cfg.MinCorrelation != 0.75 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("COINGECKO_POLL_SECS", "bad")
	t.Setenv("MAX_POSITION_SIZE", "-5")
	t.Setenv("AGGREGATION_METHOD", "coin_flip")

	cfg := Load()
	if cfg.CoinGeckoPollSecs != 60 {
		t.Fatalf("invalid poll secs should fall back to default, got %d", cfg.CoinGeckoPollSecs)
	}
	if cfg.MaxPositionSize != 1000 {
		t.Fatalf("negative size should fall back to default, got %f", cfg.MaxPositionSize)
	}
	if cfg.AggregationMethod != "weighted_voting" {
		t.Fatalf("unknown method should fall back, got %s", cfg.AggregationMethod)
	}
}
