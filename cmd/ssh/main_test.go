package main

import (
	"context"
	"os"
	"testing"
	"time"

	"crosslag/internal/advisor"
	"crosslag/internal/config"
	"crosslag/internal/repository"
	"crosslag/internal/service"

	"github.com/charmbracelet/ssh"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMainBootstrap(t *testing.T) {
	restore := stubSSHDeps()
	defer restore()

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
}

func TestLoadAuthorizedKeysMissingFile(t *testing.T) {
	if got := loadAuthorizedKeys("/nonexistent/authorized_keys"); got != nil {
		t.Fatalf("expected nil for missing file, got %v", got)
	}
}

func TestSessionChatIDStableAndNegative(t *testing.T) {
	a := sessionChatID("trader")
	b := sessionChatID("trader")
	if a != b {
		t.Fatalf("expected stable chat ID, got %d and %d", a, b)
	}
	if a >= 0 {
		t.Fatalf("expected negative chat ID, got %d", a)
	}
	if sessionChatID("Trader") != a {
		t.Fatal("expected case-insensitive chat ID")
	}
	if sessionChatID("other") == a {
		t.Fatal("expected different users to get different chat IDs")
	}
}

func stubSSHDeps() func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origInitTracer := initTracerFunc
	origNewCandleRepo := newCandleRepoFunc
	origNewSignalRepo := newSignalRepoFunc
	origNewTradeRepo := newTradeRepoFunc
	origNewConvRepo := newConversationRepoFunc
	origNewProvider := newCoinGeckoProviderFunc
	origNewPriceService := newPriceServiceFunc
	origNewOpenAIClient := newOpenAIClientFunc
	origNewAdvisor := newAdvisorServiceFunc
	origNewWishServer := newWishServerFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config {
		return &config.Config{
			RedisURL:    "",
			DatabaseURL: "",
			SSHAddr:     ":2222",
			TradeSymbol: "XMR",
		}
	}
	initPostgresFunc = func(context.Context) {}
	initRedisFunc = func(context.Context) {}
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	newCandleRepoFunc = func(repository.PgxPool, trace.Tracer) *repository.CandleRepository {
		return nil
	}
	newSignalRepoFunc = func(repository.PgxPool, trace.Tracer) *repository.SignalRepository {
		return nil
	}
	newTradeRepoFunc = func(repository.PgxPool, trace.Tracer) *repository.TradeRepository {
		return nil
	}
	newConversationRepoFunc = func(repository.PgxPool, trace.Tracer) *repository.ConversationRepository {
		return nil
	}
	newCoinGeckoProviderFunc = func(trace.Tracer) service.PriceProvider { return nil }
	newPriceServiceFunc = func(
		trace.Tracer,
		service.PriceProvider,
		service.CandleRepository,
		service.RedisClient,
	) *service.PriceService {
		return nil
	}
	newOpenAIClientFunc = func(string) advisor.LLMClient { return nil }
	newAdvisorServiceFunc = func(
		trace.Tracer, advisor.LLMClient, advisor.PriceQuerier, advisor.SignalQuerier,
		advisor.PositionBook, advisor.ConversationStore, string, string, int,
	) *advisor.AdvisorService {
		return nil
	}
	newWishServerFunc = func(ops ...ssh.Option) (*ssh.Server, error) {
		return nil, nil
	}
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		initTracerFunc = origInitTracer
		newCandleRepoFunc = origNewCandleRepo
		newSignalRepoFunc = origNewSignalRepo
		newTradeRepoFunc = origNewTradeRepo
		newConversationRepoFunc = origNewConvRepo
		newCoinGeckoProviderFunc = origNewProvider
		newPriceServiceFunc = origNewPriceService
		newOpenAIClientFunc = origNewOpenAIClient
		newAdvisorServiceFunc = origNewAdvisor
		newWishServerFunc = origNewWishServer
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
	}
}
