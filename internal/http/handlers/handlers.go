// Package handlers exposes the REST endpoints of the tutoring API.
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses. Authenticated routes
// rely on middleware.RequireSession having stored the user in the context.
package handlers

import (
	"context"
	"time"

	"github.com/tbourn/go-edu-chat-backend/internal/cache"
	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// ConversationService defines the conversation operations the handlers use.
type ConversationService interface {
	// Create starts a conversation for userID with the assistant greeting.
	Create(ctx context.Context, userID, title string) (*domain.Conversation, error)
	// List returns the user's conversations with their latest message.
	List(ctx context.Context, userID string) ([]domain.Conversation, error)
	// Messages returns up to limit recent messages of a conversation the
	// user participates in.
	Messages(ctx context.Context, userID, conversationID string, limit int) ([]domain.Message, error)
}

// AssistantService answers chat messages.
type AssistantService interface {
	Reply(ctx context.Context, userID string, req services.ChatRequest) (string, error)
}

// QuestionService serves the suggested-question catalogue.
type QuestionService interface {
	Topics() []domain.Topic
	ByTopic(ctx context.Context, topic, query string) ([]domain.Question, error)
}

// SessionService handles sign-up, sign-in and account removal.
type SessionService interface {
	SignUp(ctx context.Context, email, name, password string) (*domain.User, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, *domain.User, error)
	ProviderLogin(ctx context.Context, p services.ProviderProfile) (*domain.Session, *domain.User, error)
	SignOut(ctx context.Context, token string) error
	DeleteAccount(ctx context.Context, userID string) error
}

//
// Handler wiring
//

// Options carries the transport settings handlers need.
type Options struct {
	// CookieName is the session cookie written on sign-in.
	CookieName string
	// SecureCookie marks the session cookie HTTPS-only.
	SecureCookie bool
	// ProviderSecret authenticates trusted identity-provider callbacks on
	// POST /auth/provider. Empty disables the endpoint.
	ProviderSecret string
	// IdempotencyTTL is how long a POST /conversations response is replayed.
	IdempotencyTTL time.Duration
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	convs     ConversationService
	assistant AssistantService
	questions QuestionService
	sessions  SessionService
	responses cache.Cache
	opts      Options
}

// New constructs Handlers. responses stores idempotent responses; a nil
// cache disables replay.
func New(convs ConversationService, assistant AssistantService, questions QuestionService,
	sessions SessionService, responses cache.Cache, opts Options) *Handlers {
	if responses == nil {
		responses = cache.Noop{}
	}
	if opts.CookieName == "" {
		opts.CookieName = "edu_session"
	}
	return &Handlers{
		convs:     convs,
		assistant: assistant,
		questions: questions,
		sessions:  sessions,
		responses: responses,
		opts:      opts,
	}
}
