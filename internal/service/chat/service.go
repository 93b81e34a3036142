// Package chat runs one conversation turn: history, prompt, completion,
// persistence, then best-effort voice output.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/artifact-chatbot/backend/internal/model/chat"
	"github.com/artifact-chatbot/backend/internal/model/persona"
	"github.com/artifact-chatbot/backend/internal/model/speech"
	"github.com/artifact-chatbot/backend/internal/service/ai"
	"github.com/artifact-chatbot/backend/internal/service/history"
	"github.com/artifact-chatbot/backend/internal/service/storage"
)

const defaultHistoryLimit = 10

var (
	ErrInvalidInput    = errors.New("invalid chat input")
	ErrUnknownArtifact = fmt.Errorf("%w: unknown artifact_id", ErrInvalidInput)
	ErrHistory         = errors.New("failed to load chat history")
	ErrCompletion      = errors.New("failed to generate reply")
	ErrPersist         = errors.New("failed to save chat turns")
	ErrAudioDisabled   = errors.New("audio output disabled")
)

// HistorySession is a request-scoped handle on the turn log.
type HistorySession interface {
	RecentHistory(ctx context.Context, userID, artifactID string, limit int) ([]chat.Turn, error)
	AppendTurns(ctx context.Context, turns ...chat.Turn) error
	Close() error
}

// SessionOpener acquires a HistorySession for one turn.
type SessionOpener func(ctx context.Context) (HistorySession, error)

// StoreSessions adapts a history.Store to a SessionOpener.
func StoreSessions(store *history.Store) SessionOpener {
	return func(ctx context.Context) (HistorySession, error) {
		sess, err := store.Session(ctx)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}
}

// Completer generates the assistant reply.
type Completer interface {
	Complete(ctx context.Context, modelName string, messages []*schema.Message) (string, error)
}

// Synthesizer renders reply text as audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice speech.Voice) ([]byte, error)
}

// TurnRequest is one visitor message.
type TurnRequest struct {
	UserID     string
	ArtifactID string
	Message    string
}

// TurnResult carries the reply. AudioURL is nil when voice output failed,
// in which case AudioErr says why.
type TurnResult struct {
	Response string
	AudioURL *string
	AudioErr error
}

// Option customises a Service.
type Option func(*Service)

// WithVoiceOutput enables synthesis and publishing of replies.
func WithVoiceOutput(synth Synthesizer, publisher storage.Publisher) Option {
	return func(s *Service) {
		s.synth = synth
		s.publisher = publisher
	}
}

// WithHistoryLimit sets how many prior turns are sent to the model.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithStrictArtifacts rejects artifact ids the registry does not know.
func WithStrictArtifacts(strict bool) Option {
	return func(s *Service) { s.strictArtifacts = strict }
}

// WithClock overrides the time source used for audio object keys.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service orchestrates chat turns.
type Service struct {
	personas  persona.Store
	sessions  SessionOpener
	completer Completer
	synth     Synthesizer
	publisher storage.Publisher

	historyLimit    int
	strictArtifacts bool
	now             func() time.Time
	log             zerolog.Logger
}

// NewService wires the turn pipeline. Voice output stays disabled unless
// WithVoiceOutput is given.
func NewService(personas persona.Store, sessions SessionOpener, completer Completer, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		personas:     personas,
		sessions:     sessions,
		completer:    completer,
		historyLimit: defaultHistoryLimit,
		now:          time.Now,
		log:          log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Turn runs the pipeline for one message. Any returned error aborts the
// turn; voice output failures are reported in TurnResult.AudioErr instead.
func (s *Service) Turn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	log := s.log.With().
		Str("turn_id", uuid.NewString()).
		Str("user_id", req.UserID).
		Str("artifact_id", req.ArtifactID).
		Logger()

	sess, err := s.sessions(ctx)
	if err != nil {
		log.Error().Err(err).Msg("history session unavailable")
		return nil, fmt.Errorf("%w: %w", ErrHistory, err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to release history session")
		}
	}()

	past, err := sess.RecentHistory(ctx, req.UserID, req.ArtifactID, s.historyLimit)
	if err != nil {
		log.Error().Err(err).Msg("history load failed")
		return nil, fmt.Errorf("%w: %w", ErrHistory, err)
	}

	p := s.personas.Lookup(req.ArtifactID)
	messages := ai.Build(p, past, req.Message)

	answer, err := s.completer.Complete(ctx, p.ModelName, messages)
	if err != nil {
		log.Error().Err(err).Str("model", p.ModelName).Msg("completion failed")
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}

	// Completed turns are kept even if the caller has gone away.
	err = sess.AppendTurns(context.WithoutCancel(ctx),
		chat.UserTurn(req.UserID, req.ArtifactID, req.Message),
		chat.AssistantTurn(req.UserID, req.ArtifactID, answer),
	)
	if err != nil {
		log.Error().Err(err).Msg("persisting turns failed")
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	result := &TurnResult{Response: answer}

	url, err := s.voice(ctx, req, p, answer)
	if err != nil {
		log.Warn().Err(err).Msg("audio output failed")
		result.AudioErr = err
		return result, nil
	}

	log.Info().Str("audio_url", url).Int("history", len(past)).Msg("turn completed")
	result.AudioURL = &url
	return result, nil
}

func (s *Service) validate(req TurnRequest) error {
	var missing []string
	if req.UserID == "" {
		missing = append(missing, "user_id")
	}
	if req.Message == "" {
		missing = append(missing, "message")
	}
	if req.ArtifactID == "" {
		missing = append(missing, "artifact_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}

	if s.strictArtifacts {
		if _, ok := s.personas.FindByID(req.ArtifactID); !ok {
			return fmt.Errorf("%w %q", ErrUnknownArtifact, req.ArtifactID)
		}
	}
	return nil
}

// voice synthesizes the reply and publishes it, returning the public URL.
func (s *Service) voice(ctx context.Context, req TurnRequest, p persona.Persona, answer string) (string, error) {
	if s.synth == nil || s.publisher == nil {
		return "", ErrAudioDisabled
	}

	key := storage.ObjectKey(req.ArtifactID, req.UserID, s.now())

	audio, err := s.synth.Synthesize(ctx, answer, p.Voice)
	if err != nil {
		return "", err
	}

	if err := s.publisher.Upload(ctx, key, audio, speech.ContentType); err != nil {
		return "", err
	}
	return s.publisher.PublicURL(key), nil
}
