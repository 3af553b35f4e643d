// Command server runs the educational chat backend.
//
//	@title						Edu Chat Backend API
//	@version					1.0
//	@description				Educational tutoring chat: conversations, suggested questions and sessions.
//	@BasePath					/api
//	@securityDefinitions.apikey	SessionCookie
//	@in							header
//	@name						Authorization
//	@description				Session token issued by /auth/signin. Sent as the edu_session cookie or as "Bearer <token>".
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/tbourn/go-edu-chat-backend/docs"
	"github.com/tbourn/go-edu-chat-backend/internal/ai"
	"github.com/tbourn/go-edu-chat-backend/internal/auth"
	"github.com/tbourn/go-edu-chat-backend/internal/cache"
	"github.com/tbourn/go-edu-chat-backend/internal/config"
	httpapi "github.com/tbourn/go-edu-chat-backend/internal/http"
	"github.com/tbourn/go-edu-chat-backend/internal/http/handlers"
	"github.com/tbourn/go-edu-chat-backend/internal/observability"
	"github.com/tbourn/go-edu-chat-backend/internal/seed"
	"github.com/tbourn/go-edu-chat-backend/internal/services"
	"github.com/tbourn/go-edu-chat-backend/internal/storage"
	"github.com/tbourn/go-edu-chat-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	historyLimit    = 20
	shutdownTimeout = 15 * time.Second
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func setupLogging(cfg config.Config) {
	lvl := sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	log.Logger = log.With().Str("service", cfg.OTEL.ServiceName).Str("version", version).Logger()
	log.Debug().Str("level", lvl.String()).Msg("logging configured")
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer flush("otel", shutdownOTel)

	backend, err := storage.Open(ctx, cfg.Storage, cfg.OTEL.Enabled)
	if err != nil {
		return err
	}
	defer closeLogged("storage", backend.Close)

	cat, err := seed.Load(cfg.QuestionsPath)
	if err != nil {
		return err
	}
	n, err := seed.Apply(ctx, backend, cat)
	if err != nil {
		return err
	}
	log.Info().Int("questions", n).Int("topics", len(cat.Topics)).Msg("question catalogue applied")

	replies, closeCache, err := cache.New(cfg.Cache, backend)
	if err != nil {
		return err
	}
	defer closeLogged("cache", closeCache)

	gen, err := ai.New(cfg.AI)
	if err != nil {
		return err
	}

	convs := services.NewConversationService(backend)
	assistant := &services.AssistantService{
		Conversations:  convs,
		Generator:      gen,
		Cache:          replies,
		CacheTTL:       cfg.Cache.TTL,
		Timeout:        cfg.AI.Timeout,
		HistoryLimit:   historyLimit,
		MaxPromptRunes: cfg.MaxPromptRunes,
		MaxReplyRunes:  cfg.MaxReplyRunes,
	}
	sessions := services.NewSessionService(auth.NewAdapter(backend, cfg.Auth.MaxAge), cfg.Auth.BcryptCost, cfg.Auth.UpdateAge)

	h := handlers.New(convs, assistant, services.NewQuestionService(backend, cat.Topics), sessions, replies, handlers.Options{
		CookieName:     cfg.Auth.CookieName,
		SecureCookie:   cfg.Auth.SecureCookie,
		ProviderSecret: cfg.Auth.Secret,
		IdempotencyTTL: cfg.IdempotencyTTL,
	})

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, h, sessions, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("storage", backend.Name()).
			Str("cache", cfg.Cache.Driver).
			Str("ai", cfg.AI.Provider).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

func flush(name string, fn observability.Shutdown) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn().Err(err).Str("component", name).Msg("shutdown failed")
	}
}

func closeLogged(name string, fn func() error) {
	if err := fn(); err != nil {
		log.Warn().Err(err).Str("component", name).Msg("close failed")
	}
}
