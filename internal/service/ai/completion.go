package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

// Service runs completions through a compiled eino chain.
type Service struct {
	chain   compose.Runnable[[]*schema.Message, *schema.Message]
	timeout time.Duration
	log     zerolog.Logger
}

// NewService compiles a single-node chain around chatModel. A zero timeout
// leaves deadlines to the caller's context.
func NewService(ctx context.Context, chatModel model.BaseChatModel, timeout time.Duration, log zerolog.Logger) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{chain: runnable, timeout: timeout, log: log}, nil
}

// Complete asks modelName for the next assistant message. The reply is
// whitespace-trimmed; an empty reply is returned as "" without error.
func (s *Service) Complete(ctx context.Context, modelName string, messages []*schema.Message) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := s.chain.Invoke(ctx, messages, compose.WithChatModelOption(model.WithModel(modelName)))
	if err != nil {
		return "", fmt.Errorf("failed to run chat chain: %w", err)
	}

	var answer string
	if resp != nil {
		answer = strings.TrimSpace(resp.Content)
	}

	s.log.Debug().
		Str("model", modelName).
		Int("messages", len(messages)).
		Int("length", len(answer)).
		Dur("elapsed", time.Since(started)).
		Msg("completion finished")
	return answer, nil
}
