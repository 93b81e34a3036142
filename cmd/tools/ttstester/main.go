package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/artifact-chatbot/backend/internal/config"
	"github.com/artifact-chatbot/backend/internal/logger"
	"github.com/artifact-chatbot/backend/internal/model/persona"
	speechmodel "github.com/artifact-chatbot/backend/internal/model/speech"
	"github.com/artifact-chatbot/backend/internal/service/speech"
	"github.com/artifact-chatbot/backend/internal/service/storage"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(config.LogConfig{Format: "console"})
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}

	cfg.Log.Format = "console"
	log := logger.New(cfg.Log)
	if envErr != nil {
		log.Warn().Err(envErr).Msg("failed to load .env, using system environment")
	}

	if !cfg.Speech.Enabled() {
		log.Fatal().Msg("ELEVENLABS_API_KEY is not set")
	}

	artifact := flag.String("artifact", persona.FallbackID, "persona whose voice is used")
	text := flag.String("text", "", "text to synthesize")
	outputPath := flag.String("out", "", "output mp3 path (default tts-output-<unix>.mp3)")
	publish := flag.Bool("publish", false, "also upload to the configured audio storage")
	userID := flag.String("user", "ttstester", "user id used in the object key")
	timeout := flag.Duration("timeout", 60*time.Second, "request timeout")

	flag.Parse()

	if strings.TrimSpace(*text) == "" {
		flag.Usage()
		log.Fatal().Msg("-text is required")
	}

	p := persona.NewMemoryStore(persona.Seed(cfg.LLM.Models())).Lookup(*artifact)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	svc := speech.NewService(cfg.Speech, logger.Component(log, "speech"))

	log.Info().Str("artifact", p.ID).Str("voice_id", p.Voice.ID).Msg("starting TTS test")

	resp, err := svc.SynthesizeSpeech(ctx, &speechmodel.TTSRequest{
		Text:         *text,
		Voice:        p.Voice,
		OutputFormat: speechmodel.OutputFormat,
		ModelID:      speechmodel.ModelID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("TTS request failed")
	}

	out := *outputPath
	if out == "" {
		out = fmt.Sprintf("tts-output-%d.mp3", time.Now().Unix())
	}
	if err := os.WriteFile(out, resp.AudioData, 0o644); err != nil {
		log.Fatal().Err(err).Msg("failed to write audio file")
	}

	log.Info().Str("file", out).Int("chunks", resp.Chunks).Int("bytes", len(resp.AudioData)).Msg("TTS succeeded")

	if *publish {
		publishAudio(ctx, cfg.Storage, p.ID, *userID, resp.AudioData, log)
	}
}

func publishAudio(ctx context.Context, cfg config.StorageConfig, artifactID, userID string, audio []byte, log zerolog.Logger) {
	if !cfg.Enabled() {
		log.Fatal().Str("driver", cfg.Driver).Msg("audio storage is not configured")
	}

	backend, err := storage.Open(cfg, logger.Component(log, "storage"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open audio storage")
	}
	defer backend.Close()

	key := storage.ObjectKey(artifactID, userID, time.Now())
	if err := backend.Publisher.Upload(ctx, key, audio, speechmodel.ContentType); err != nil {
		log.Fatal().Err(err).Str("key", key).Msg("upload failed")
	}

	log.Info().Str("url", backend.Publisher.PublicURL(key)).Msg("audio published")
}
