// Package ai produces assistant replies. A Generator receives the user's
// message and the prior turns of the conversation and returns the reply
// text.
package ai

import (
	"context"
	"fmt"

	"github.com/tbourn/go-edu-chat-backend/internal/config"
	"github.com/tbourn/go-edu-chat-backend/internal/domain"
)

// Generator produces a reply to message given the conversation so far.
type Generator interface {
	Generate(ctx context.Context, message string, history []domain.Turn) (string, error)
}

// New builds the generator selected by cfg.Provider.
func New(cfg config.AIConfig) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderMock, "":
		return Canned{}, nil
	case config.ProviderOpenAI:
		return NewOpenAI(cfg), nil
	default:
		return nil, fmt.Errorf("ai: unknown provider %q", cfg.Provider)
	}
}
