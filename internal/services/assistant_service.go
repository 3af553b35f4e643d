// Package services – AssistantService
//
// AssistantService answers chat messages. It validates the prompt, records
// the exchange when the request names a conversation, serves repeated
// questions from the cache and bounds every generator call with a timeout.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-edu-chat-backend/internal/ai"
	"github.com/tbourn/go-edu-chat-backend/internal/cache"
	"github.com/tbourn/go-edu-chat-backend/internal/domain"
)

// ChatRequest is one user turn sent to the assistant.
type ChatRequest struct {
	Message        string
	History        []domain.Turn
	ConversationID string
}

// AssistantService produces assistant replies.
type AssistantService struct {
	Conversations *ConversationService
	Generator     ai.Generator
	Cache         cache.Cache

	// CacheTTL is how long a reply is reused for an identical request.
	CacheTTL time.Duration
	// Timeout bounds each generator call.
	Timeout time.Duration
	// HistoryLimit caps the stored turns handed to the generator.
	HistoryLimit int

	// Optional guards
	MaxPromptRunes int
	MaxReplyRunes  int
}

func (s *AssistantService) tracer() trace.Tracer {
	return otel.Tracer("services/AssistantService")
}

// Reply answers req on behalf of userID. When req names a conversation the
// user must participate in it; the stored history is used when req carries
// none, and the user message and the reply are stored together once the
// generator succeeds. A failed generation leaves the conversation untouched.
func (s *AssistantService) Reply(ctx context.Context, userID string, req ChatRequest) (string, error) {
	ctx, span := s.tracer().Start(ctx, "Reply",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("conversation.id", req.ConversationID),
		),
	)
	defer span.End()

	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return "", ErrEmptyMessage
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(msg) > s.MaxPromptRunes {
		return "", ErrTooLong
	}
	for _, t := range req.History {
		if t.Role != domain.RoleUser && t.Role != domain.RoleAssistant {
			return "", ErrInvalidRole
		}
	}

	history := req.History
	if req.ConversationID != "" {
		if err := s.Conversations.Authorize(ctx, userID, req.ConversationID); err != nil {
			return "", err
		}
		if len(history) == 0 {
			stored, err := s.Conversations.History(ctx, req.ConversationID, s.HistoryLimit)
			if err != nil {
				return "", err
			}
			history = stored
		}
	}

	reply, err := s.generate(ctx, msg, history)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	reply = s.clipReply(reply)

	if req.ConversationID != "" {
		if _, err := s.Conversations.Append(ctx, req.ConversationID, domain.RoleUser, msg); err != nil {
			return "", err
		}
		if _, err := s.Conversations.Append(ctx, req.ConversationID, domain.RoleAssistant, reply); err != nil {
			return "", err
		}
	}
	return reply, nil
}

// generate serves a cached reply or calls the generator and caches its
// answer. Cache failures degrade to a miss.
func (s *AssistantService) generate(ctx context.Context, msg string, history []domain.Turn) (string, error) {
	ctx, span := s.tracer().Start(ctx, "generate",
		trace.WithAttributes(attribute.Int("history.len", len(history))),
	)
	defer span.End()

	key := cache.ChatKey(msg, history)
	if s.Cache != nil {
		v, ok, err := s.Cache.Get(ctx, key)
		if err != nil {
			span.RecordError(err)
		} else if ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return v, nil
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	gctx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		gctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	reply, err := s.Generator.Generate(gctx, msg, history)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(gctx.Err(), context.DeadlineExceeded) {
			return "", ErrUpstreamTimeout
		}
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, key, reply, s.CacheTTL); err != nil {
			span.RecordError(err)
		}
	}
	return reply, nil
}

// clipReply truncates a reply to MaxReplyRunes.
func (s *AssistantService) clipReply(reply string) string {
	if s.MaxReplyRunes > 0 && utf8.RuneCountInString(reply) > s.MaxReplyRunes {
		return string([]rune(reply)[:s.MaxReplyRunes])
	}
	return reply
}
