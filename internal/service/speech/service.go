package speech

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/artifact-chatbot/backend/internal/config"
	"github.com/artifact-chatbot/backend/internal/model/speech"
)

// Service synthesizes persona replies into speech.
type Service struct {
	ttsClient *ElevenLabsClient
	timeout   time.Duration
}

// NewService builds the synthesizer from configuration.
func NewService(cfg config.SpeechConfig, log zerolog.Logger) *Service {
	return &Service{
		ttsClient: NewElevenLabsClient(cfg.APIKey, cfg.BaseURL, log),
		timeout:   cfg.Timeout,
	}
}

// SynthesizeSpeech runs a raw TTS request.
func (s *Service) SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.ttsClient.SynthesizeSpeechWS(ctx, req)
}

// Synthesize renders text with the given voice using the fixed MP3 format
// and multilingual model.
func (s *Service) Synthesize(ctx context.Context, text string, voice speech.Voice) ([]byte, error) {
	resp, err := s.SynthesizeSpeech(ctx, &speech.TTSRequest{
		Text:         text,
		Voice:        voice,
		OutputFormat: speech.OutputFormat,
		ModelID:      speech.ModelID,
	})
	if err != nil {
		return nil, err
	}
	return resp.AudioData, nil
}
