package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eigo-sensei/server/internal/bot/credential"
	"github.com/eigo-sensei/server/internal/bot/dispatch"
	"github.com/eigo-sensei/server/internal/bot/memory"
	"github.com/eigo-sensei/server/internal/bot/model"
	"github.com/eigo-sensei/server/internal/bot/quota"
	"github.com/eigo-sensei/server/internal/core"
	"github.com/eigo-sensei/server/internal/provider"
	"github.com/eigo-sensei/server/internal/storage"
	"github.com/eigo-sensei/server/internal/transport/line"
	logx "github.com/eigo-sensei/server/pkg/logger"
	pkgredis "github.com/eigo-sensei/server/pkg/redis"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig defines all configurable parameters for the relay, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	Port        string `envconfig:"PORT" default:"8080"`

	// Infrastructure
	Redis   pkgredis.Config
	Storage model.StorageConfig

	// Bot behaviour
	Bot   model.BotConfig
	Quota model.QuotaConfig

	// Messaging channel
	Line line.Config
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	env := core.ParseEnvironment(cfg.Environment)
	logx.Init(logx.LoggerOpts{Environment: env})

	store, err := newCredentialStore(cfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise credential store")
	}

	providers := provider.NewFactory(cfg.Bot.OpenAIBaseURL)
	registry := credential.New(store, func(ctx context.Context, apiKey string) error {
		return providers(apiKey).CheckCredential(ctx)
	})

	// Session bootstrap: a missing snapshot is not an error, the registry
	// simply starts empty.
	snapshot, err := store.Load(ctx)
	if err != nil {
		logx.Warn().Err(err).Msg("could not load credential snapshot, starting empty")
	} else {
		registry.Bootstrap(snapshot)
		logx.Info().Int("users", len(snapshot)).Msg("credential registry bootstrapped")
	}

	mem := memory.New(cfg.Bot.SystemMessage, cfg.Bot.MemoryMessageCount)
	gate := quota.New(cfg.Quota)
	dispatcher := dispatch.New(registry, mem, gate, providers, cfg.Bot)

	lineClient := line.NewClient(cfg.Line)
	handler := line.NewHandler(cfg.Line.ChannelSecret, lineClient, dispatcher, providers(cfg.Bot.DefaultAPIKey))

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Post("/callback", handler.Callback)
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logx.Info().Str("port", cfg.Port).Str("env", env.String()).Msg("webhook server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("shutdown failed")
	}
	logx.Info().Msg("server stopped")
}

func newCredentialStore(cfg AppConfig) (model.CredentialStore, error) {
	if cfg.Storage.Backend == "redis" {
		rdb, err := cfg.Redis.New()
		if err != nil {
			return nil, err
		}
		return storage.NewRedisStore(rdb, cfg.Storage.RedisKey), nil
	}
	return storage.NewFileStore(cfg.Storage.FilePath), nil
}
