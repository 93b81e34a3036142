package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/artifact-chatbot/backend/internal/config"
	"github.com/artifact-chatbot/backend/internal/handler"
	"github.com/artifact-chatbot/backend/internal/logger"
	"github.com/artifact-chatbot/backend/internal/model/persona"
	"github.com/artifact-chatbot/backend/internal/service/ai"
	"github.com/artifact-chatbot/backend/internal/service/chat"
	"github.com/artifact-chatbot/backend/internal/service/history"
	"github.com/artifact-chatbot/backend/internal/service/speech"
	"github.com/artifact-chatbot/backend/internal/service/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// .env is optional
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(config.LogConfig{})
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(cfg.Log)
	if envErr != nil {
		log.Warn().Err(envErr).Msg("failed to load .env file, continuing with system environment variables only")
	}

	store, err := history.Open(ctx, cfg.Database.Driver, cfg.Database.URL, logger.Component(log, "history"))
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open history store")
	}
	defer store.Close()

	personaStore := persona.NewMemoryStore(persona.Seed(cfg.LLM.Models()))

	chatModel, err := cfg.LLM.NewChatModel(ctx, persona.DefaultModel)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.LLM.Provider).Msg("failed to create chat model")
	}
	aiService, err := ai.NewService(ctx, chatModel, cfg.LLM.Timeout, logger.Component(log, "ai"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize AI service")
	}

	opts := []chat.Option{
		chat.WithHistoryLimit(cfg.Chat.HistoryLimit),
		chat.WithStrictArtifacts(cfg.Chat.StrictArtifacts),
	}

	deps := handler.Deps{Personas: personaStore, Health: store}

	switch {
	case !cfg.Speech.Enabled():
		log.Warn().Msg("ElevenLabs key not configured, replies will have no audio")
	case !cfg.Storage.Enabled():
		log.Warn().Str("driver", cfg.Storage.Driver).Msg("audio storage not configured, replies will have no audio")
	default:
		backend, err := storage.Open(cfg.Storage, logger.Component(log, "storage"))
		if err != nil {
			log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to open audio storage")
		}
		defer backend.Close()

		speechService := speech.NewService(cfg.Speech, logger.Component(log, "speech"))
		opts = append(opts, chat.WithVoiceOutput(speechService, backend.Publisher))
		if backend.NATS != nil {
			deps.Objects = backend.NATS
		}
		log.Info().Str("storage", cfg.Storage.Driver).Msg("voice output enabled")
	}

	deps.Turns = chat.NewService(personaStore, chat.StoreSessions(store), aiService, logger.Component(log, "chat"), opts...)

	router, err := handler.NewRouter(cfg.CORS, deps, logger.Component(log, "http"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build router")
	}

	startServer(ctx, cfg.Server, router, log)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log zerolog.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("artifact chatbot backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
