package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"edubot/internal/config"
	"edubot/internal/database"
	"edubot/internal/handlers"
	"edubot/internal/middleware"
	"edubot/internal/repository"
	"edubot/internal/router"
	"edubot/internal/services"
)

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Env != "production" && isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// openStore returns the configured history store and a func releasing its
// connections.
func openStore(cfg *config.Config) (repository.ConversationStore, func(), error) {
	switch cfg.HistoryStore {
	case config.StoreRedis:
		client, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "redis connection failed")
		}
		return repository.NewRedisConversationRepo(client), func() { client.Close() }, nil

	case config.StorePostgres:
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "postgres connection failed")
		}
		if err := database.RunMigrations(pool, database.Migrations); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "database migration failed")
		}
		return repository.NewPostgresConversationRepo(pool), pool.Close, nil

	default:
		return repository.NewMemoryConversationRepo(), func() {}, nil
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// ──── Step 1: Conversation history store ────
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	log.Info().Str("store", cfg.HistoryStore).Msg("history store ready")

	// ──── Step 2: Bot ────
	kb, err := services.DefaultKnowledgeBase()
	if err != nil {
		return errors.Wrap(err, "load knowledge base")
	}
	var botOpts []services.BotOption
	if cfg.GeminiAPIKey != "" {
		gemini, err := services.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs)
		if err != nil {
			return errors.Wrap(err, "gemini client initialization failed")
		}
		defer gemini.Close()
		botOpts = append(botOpts, services.WithFallback(gemini))
		log.Info().Str("model", cfg.GeminiModel).Msg("gemini fallback enabled")
	}
	bot := services.NewBotService(kb, botOpts...)
	log.Info().Int("faq", len(kb.FAQ)).Int("patterns", len(kb.Patterns)).Msg("knowledge base loaded")

	// ──── Step 3: HTTP server ────
	limiter := middleware.NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateWindow)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router.New(handlers.NewChatHandler(bot, store), limiter, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		limiter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Msgf("EduBot ready on http://localhost:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server error")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func main() {
	cfg := config.Load()
	setupLogging(cfg)
	log.Info().Str("env", cfg.Env).Msg("starting EduBot server")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		stop()
		log.Fatal().Err(err).Msg("server stopped")
	}
}
