package main

import (
	"context"
	"log"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"crosslag/internal/advisor"
	"crosslag/internal/cache"
	"crosslag/internal/config"
	"crosslag/internal/db"
	"crosslag/internal/provider"
	"crosslag/internal/repository"
	"crosslag/internal/service"
	"crosslag/internal/tui"
	"crosslag/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	gossh "golang.org/x/crypto/ssh"
)

var (
	loadEnvFunc              = godotenv.Load
	loadConfigFunc           = config.Load
	initPostgresFunc         = db.InitPostgres
	initRedisFunc            = cache.InitRedis
	initTracerFunc           = tracing.InitTracer
	newCandleRepoFunc        = repository.NewCandleRepository
	newSignalRepoFunc        = repository.NewSignalRepository
	newTradeRepoFunc         = repository.NewTradeRepository
	newConversationRepoFunc  = repository.NewConversationRepository
	newCoinGeckoProviderFunc = func(tracer trace.Tracer) service.PriceProvider {
		return provider.NewCoinGeckoProvider(tracer)
	}
	newPriceServiceFunc   = service.NewPriceService
	newOpenAIClientFunc   = advisor.NewOpenAIClient
	newAdvisorServiceFunc = advisor.NewAdvisorService
	newWishServerFunc     = wish.NewServer
	setupSignalNotify     = ossignal.Notify
	waitForSignalFunc     = func(quit <-chan os.Signal) { <-quit }
)

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

	// Create repositories. The dashboard reads what the server process
	// writes; without a database the position and signal tabs are empty.
	candleRepo := newCandleRepoFunc(db.Pool, tracer)
	var (
		signalRepo *repository.SignalRepository
		tradeRepo  *repository.TradeRepository
		convStore  advisor.ConversationStore
	)
	if db.Pool != nil {
		signalRepo = newSignalRepoFunc(db.Pool, tracer)
		tradeRepo = newTradeRepoFunc(db.Pool, tracer)
		convStore = newConversationRepoFunc(db.Pool, tracer)
	}

	// Create services
	cgProvider := newCoinGeckoProviderFunc(tracer)
	priceService := newPriceServiceFunc(tracer, cgProvider, candleRepo, cache.Client)
	snapshots := cache.NewSnapshotStore(cache.Client)

	// Advisor (optional)
	var advisorSvc *advisor.AdvisorService
	if cfg.OpenAIAPIKey != "" {
		llmClient := newOpenAIClientFunc(cfg.OpenAIAPIKey)
		var advisorSignals advisor.SignalQuerier
		if signalRepo != nil {
			advisorSignals = signalRepo
		}
		advisorSvc = newAdvisorServiceFunc(tracer, llmClient, priceService, advisorSignals,
			nil, convStore, cfg.TradeSymbol, cfg.OpenAIModel, cfg.AdvisorMaxHistory)
		log.Println("SSH advisor service enabled")
	}

	authorized := loadAuthorizedKeys(envOr("SSH_AUTHORIZED_KEYS", ".ssh/authorized_keys"))

	srv, err := newWishServerFunc(
		wish.WithAddress(cfg.SSHAddr),
		wish.WithHostKeyPath(envOr("SSH_HOST_KEY_PATH", ".ssh/crosslag_ed25519")),
		wish.WithPublicKeyAuth(func(ctx ssh.Context, key ssh.PublicKey) bool {
			fingerprint := gossh.FingerprintSHA256(key)
			if len(authorized) == 0 {
				log.Printf("SSH auth open (no authorized_keys): user=%s fingerprint=%s", ctx.User(), fingerprint)
				return true
			}
			if _, ok := authorized[fingerprint]; !ok {
				log.Printf("SSH auth denied: user=%s fingerprint=%s", ctx.User(), fingerprint)
				return false
			}
			log.Printf("SSH auth accepted: user=%s fingerprint=%s", ctx.User(), fingerprint)
			return true
		}),
		wish.WithMiddleware(
			bubbletea.Middleware(func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
				var (
					positions tui.PositionReader
					signals   tui.SignalReader
					advisorQ  tui.AdvisorQuerier
				)
				if tradeRepo != nil {
					positions = tradeRepo
				}
				if signalRepo != nil {
					signals = signalRepo
				}
				if advisorSvc != nil {
					advisorQ = advisorSvc
				}

				svc := tui.Services{
					Prices:    priceService,
					Positions: positions,
					Signals:   signals,
					Portfolio: snapshots,
					Advisor:   advisorQ,
					Symbol:    cfg.TradeSymbol,
					Username:  s.User(),
					ChatID:    sessionChatID(s.User()),
				}

				model := tui.NewAppModel(svc)
				pty, _, _ := s.Pty()
				model.SetSize(pty.Window.Width, pty.Window.Height)

				return model, []tea.ProgramOption{tea.WithAltScreen()}
			}),
			logging.Middleware(),
		),
	)
	if err != nil {
		log.Fatalf("failed to create SSH server: %v", err)
	}

	if srv != nil {
		go func() {
			log.Printf("SSH server listening on %s", cfg.SSHAddr)
			if err := srv.ListenAndServe(); err != nil {
				log.Printf("SSH server stopped: %v", err)
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down SSH server...")

	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("SSH server shutdown error: %v", err)
		}
	}

	log.Println("SSH server exited")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadAuthorizedKeys reads an OpenSSH authorized_keys file and returns
// the SHA256 fingerprints of the keys it contains. An empty map means
// the file is absent and auth falls open for local use.
func loadAuthorizedKeys(path string) map[string]struct{} {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("no authorized_keys at %s, accepting any public key", path)
		return nil
	}

	fingerprints := make(map[string]struct{})
	for len(data) > 0 {
		key, _, _, rest, err := gossh.ParseAuthorizedKey(data)
		if err != nil {
			break
		}
		fingerprints[gossh.FingerprintSHA256(key)] = struct{}{}
		data = rest
	}
	log.Printf("loaded %d authorized keys from %s", len(fingerprints), path)
	return fingerprints
}

// sessionChatID derives a stable conversation ID from the SSH username
// so dashboard chats share history with nothing else.
func sessionChatID(user string) int64 {
	var h int64
	for _, r := range strings.ToLower(user) {
		h = h*31 + int64(r)
	}
	if h < 0 {
		h = -h
	}
	// Keep SSH conversations out of the Telegram chat ID space.
	return -(h%1_000_000_000 + 1)
}
