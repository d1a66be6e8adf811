package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"crosslag/internal/advisor"
	"crosslag/internal/bot"
	"crosslag/internal/cache"
	"crosslag/internal/config"
	"crosslag/internal/db"
	"crosslag/internal/engine"
	"crosslag/internal/feature"
	"crosslag/internal/handler"
	"crosslag/internal/provider"
	"crosslag/internal/repository"
	"crosslag/internal/risk"
	"crosslag/internal/sentiment"
	"crosslag/internal/service"
	"crosslag/internal/strategy"
	"crosslag/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "crosslag/docs"
)

// defaultNewsFeeds and defaultRedditSubs seed the sentiment poller when
// NEWS_FEEDS / REDDIT_SUBS are not set.
var (
	defaultNewsFeeds = []string{
		"https://www.coindesk.com/arc/outboundfeeds/rss/",
		"https://cointelegraph.com/rss",
	}
	defaultRedditSubs = []string{"CryptoCurrency", "CryptoMarkets", "Monero"}
)

var (
	loadEnvFunc              = godotenv.Load
	loadConfigFunc           = config.Load
	initPostgresFunc         = db.InitPostgres
	initRedisFunc            = cache.InitRedis
	initTracerFunc           = tracing.InitTracer
	newCandleRepoFunc        = repository.NewCandleRepository
	newCoinGeckoProviderFunc = func(tracer trace.Tracer) service.PriceProvider {
		return provider.NewCoinGeckoProvider(tracer)
	}
	newPriceServiceFunc = service.NewPriceService
	startSentimentFunc  = func(s *sentiment.Service, ctx context.Context, interval time.Duration) {
		go s.Start(ctx, interval)
	}
	startTelegramBotFunc   = bot.StartTelegramBot
	startEngineFunc        = func(e *engine.Engine, ctx context.Context) { e.Start(ctx) }
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Crosslag Trading API
// @version         1.0
// @description     Automated trading decision engine with lag-correlation signals and OpenTelemetry tracing.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Create repositories and run migrations. Without a database the
	// engine still trades; signals and positions just live in memory.
	candleRepo := newCandleRepoFunc(db.Pool, tracer)
	var (
		signalStore engine.SignalStore
		tradeStore  engine.TradeStore
		signals     *repository.SignalRepository
		trades      *repository.TradeRepository
		convStore   advisor.ConversationStore
	)
	if db.Pool != nil {
		if err := candleRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		signals = repository.NewSignalRepository(db.Pool, tracer)
		trades = repository.NewTradeRepository(db.Pool, tracer)
		signalStore = signals
		tradeStore = trades
		convStore = repository.NewConversationRepository(db.Pool, tracer)
	}

	// Create provider and price service
	cgProvider := newCoinGeckoProviderFunc(tracer)
	priceService := newPriceServiceFunc(tracer, cgProvider, candleRepo, cache.Client)

	snapshots := cache.NewSnapshotStore(cache.Client)
	features := feature.NewEngine(nil)

	// Strategies: trend and mean reversion with defaults, the lag
	// correlation strategy tuned from config.
	btcParams := strategy.DefaultBTCCorrelationParams()
	btcParams.MoveThreshold = cfg.MoveThreshold
	btcParams.MinCorrelation = cfg.MinCorrelation
	btcParams.ExpectedLagHours = cfg.ExpectedLagHours
	btcParams.MaxLagHours = cfg.MaxLagHours
	btcParams.HalfLifeHours = cfg.SignalHalfLife
	btcStrategy := strategy.NewBTCCorrelationStrategy(btcParams, nil)

	strategies := []strategy.Strategy{
		strategy.NewTrendFollowingStrategy(strategy.DefaultTrendFollowingParams(), nil),
		strategy.NewMeanReversionStrategy(strategy.DefaultMeanReversionParams(), nil),
		btcStrategy,
	}

	var mlStrategy *strategy.MLStrategy
	if cfg.MLEnabled {
		mlStrategy = strategy.NewMLStrategy(cfg.MLScoreThreshold, nil)
		strategies = append(strategies, mlStrategy)
	}

	// Sentiment poller feeds the sentiment strategy its composite snapshot.
	scorer := sentiment.NewScorer(nil, 0)
	if cfg.OpenAIAPIKey != "" {
		scorer = sentiment.NewScorer(sentiment.NewOpenAIScorer(cfg.OpenAIAPIKey, cfg.OpenAIModel), 0)
	}
	sentimentSvc := sentiment.NewService(
		tracer,
		scorer,
		provider.NewFearGreedProvider(tracer),
		provider.NewRSSProvider(tracer),
		provider.NewRedditProvider(tracer),
		provider.NewBTCMempoolOnChainProvider(tracer, os.Getenv("MEMPOOL_BASE_URL")),
		sentiment.Config{
			NewsFeeds:  envList("NEWS_FEEDS", defaultNewsFeeds),
			RedditSubs: envList("REDDIT_SUBS", defaultRedditSubs),
			Interval:   cfg.Interval,
		},
		nil,
	)
	strategies = append(strategies, sentiment.NewStrategy(sentimentSvc, 0, 0, nil))
	startSentimentFunc(sentimentSvc, ctx, time.Duration(cfg.SentimentPollSecs)*time.Second)

	aggregator := strategy.NewAggregator(strategies, nil)

	riskManager := risk.NewManager(risk.Limits{
		MaxPositionSize:     cfg.MaxPositionSize,
		MaxDrawdownPercent:  cfg.MaxDrawdownPercent,
		RiskPerTradePercent: cfg.RiskPerTradePercent,
	}, nil)

	// LLM advisor backs the bot's /ask command. Optional.
	var advisorSvc *advisor.AdvisorService
	if cfg.OpenAIAPIKey != "" {
		var advisorSignals advisor.SignalQuerier
		if signals != nil {
			advisorSignals = signals
		}
		advisorSvc = advisor.NewAdvisorService(
			tracer,
			advisor.NewOpenAIClient(cfg.OpenAIAPIKey),
			priceService,
			advisorSignals,
			riskManager,
			convStore,
			cfg.TradeSymbol,
			cfg.OpenAIModel,
			cfg.AdvisorMaxHistory,
		)
	}

	// Start Telegram bot
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	var botSignals bot.SignalReader
	if signals != nil {
		botSignals = signals
	}
	var asker bot.Asker
	if advisorSvc != nil {
		asker = advisorSvc
	}
	tradeBot := startTelegramBotFunc(priceService, riskManager, botSignals, asker, cfg.TradeSymbol)

	// Build and start the trading engine
	var notifier engine.Notifier
	if tradeBot != nil {
		notifier = tradeBot
	}
	eng := engine.NewEngine(
		tracer,
		engine.Params{
			TradeSymbol:          cfg.TradeSymbol,
			ReferenceSymbol:      cfg.ReferenceSymbol,
			Interval:             cfg.Interval,
			AggregationMethod:    cfg.AggregationMethod,
			PortfolioValue:       cfg.PortfolioValue,
			CycleInterval:        time.Duration(cfg.TradeCycleSecs) * time.Second,
			MonitorInterval:      time.Duration(cfg.MonitorPollSecs) * time.Second,
			PriceRefreshInterval: time.Duration(cfg.CoinGeckoPollSecs) * time.Second,
			MLEnabled:            cfg.MLEnabled,
			MLTargetHours:        cfg.MLTargetHours,
			MLTrainWindowDays:    cfg.MLTrainWindowDays,
			MLTrainHourUTC:       cfg.MLTrainHourUTC,
		},
		priceService,
		features,
		aggregator,
		btcStrategy,
		mlStrategy,
		riskManager,
		signalStore,
		tradeStore,
		snapshots,
		notifier,
		nil,
	)
	if err := eng.Rehydrate(ctx); err != nil {
		log.Printf("failed to rehydrate open positions: %v", err)
	}
	startEngineFunc(eng, ctx)

	// Create handlers and routes
	var (
		signalReader handler.SignalReader
		tradeReader  handler.TradeReader
	)
	if signals != nil {
		signalReader = signals
	}
	if trades != nil {
		tradeReader = trades
	}
	h := newHandlerFunc(
		tracer,
		priceService,
		features,
		riskManager,
		signalReader,
		tradeReader,
		aggregator,
		snapshots,
		btcStrategy,
		cfg.TradeSymbol,
	)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("crosslag"))
	r.Use(handler.APIKeyAuth(os.Getenv("API_KEY")))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

func envList(key string, def []string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
