// Package services – ConversationService
//
// ConversationService owns conversations, their participants and their
// messages. New conversations open with an assistant greeting; listing
// returns each conversation with only its most recent message, most
// recently active first.
package services

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/repo"
	"github.com/tbourn/go-edu-chat-backend/internal/storage"
)

const (
	// DefaultTitle is used when a conversation is created without a title.
	DefaultTitle = "New Conversation"

	// Greeting is the assistant message every conversation opens with.
	Greeting = "Hello! How can I assist you today?"
)

// ConversationService provides conversation-level operations.
type ConversationService struct {
	// Store is the persistence backend.
	Store storage.Backend

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
}

// NewConversationService constructs a ConversationService with default
// title handling.
func NewConversationService(b storage.Backend) *ConversationService {
	return &ConversationService{Store: b, TitleMaxLen: 60}
}

func (s *ConversationService) tracer() trace.Tracer {
	return otel.Tracer("services/ConversationService")
}

// Create starts a conversation with userID as sole participant and stores
// the assistant greeting. The result carries participant profiles and the
// greeting.
func (s *ConversationService) Create(ctx context.Context, userID, title string) (*domain.Conversation, error) {
	ctx, span := s.tracer().Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	title = normalizeTitle(title)
	if title == "" {
		title = DefaultTitle
	}
	c, err := repo.CreateConversation(ctx, s.Store, s.clip(title), userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	greeting, err := repo.CreateMessage(ctx, s.Store, c.ID, domain.RoleAssistant, Greeting, c.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	c.Messages = []domain.Message{*greeting}
	if err := s.attachProfiles(ctx, c); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("conversation.id", c.ID))
	return c, nil
}

// List returns the conversations userID participates in, each with at most
// its latest message, ordered by updated_at descending then id.
func (s *ConversationService) List(ctx context.Context, userID string) ([]domain.Conversation, error) {
	ctx, span := s.tracer().Start(ctx, "List",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	memberships, err := repo.ListMemberships(ctx, s.Store, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := make([]domain.Conversation, 0, len(memberships))
	for _, m := range memberships {
		c, err := repo.GetConversation(ctx, s.Store, m.ConversationID)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		c.Messages = []domain.Message{}
		latest, err := repo.LatestMessage(ctx, s.Store, c.ID)
		switch {
		case err == nil:
			c.Messages = append(c.Messages, *latest)
		case !errors.Is(err, repo.ErrNotFound):
			return nil, err
		}
		if err := s.attachProfiles(ctx, c); err != nil {
			return nil, err
		}
		out = append(out, *c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	span.SetAttributes(attribute.Int("conversations", len(out)))
	return out, nil
}

// Append stores a message and moves the conversation's updated_at to the
// message time.
func (s *ConversationService) Append(ctx context.Context, conversationID, role, content string) (*domain.Message, error) {
	ctx, span := s.tracer().Start(ctx, "Append",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("message.role", role),
		),
	)
	defer span.End()

	if role != domain.RoleUser && role != domain.RoleAssistant {
		return nil, ErrInvalidRole
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	if _, err := repo.GetConversation(ctx, s.Store, conversationID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	m, err := repo.CreateMessage(ctx, s.Store, conversationID, role, content, time.Time{})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := repo.TouchConversation(ctx, s.Store, conversationID, m.CreatedAt); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return m, nil
}

// Messages returns the messages of a conversation userID participates in,
// oldest first. A positive limit keeps only the most recent messages.
func (s *ConversationService) Messages(ctx context.Context, userID, conversationID string, limit int) ([]domain.Message, error) {
	ctx, span := s.tracer().Start(ctx, "Messages",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("user.id", userID),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if err := s.Authorize(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return repo.ListMessages(ctx, s.Store, conversationID, limit)
}

// History returns the last limit messages as generator turns.
func (s *ConversationService) History(ctx context.Context, conversationID string, limit int) ([]domain.Turn, error) {
	msgs, err := repo.ListMessages(ctx, s.Store, conversationID, limit)
	if err != nil {
		return nil, err
	}
	turns := make([]domain.Turn, len(msgs))
	for i, m := range msgs {
		turns[i] = domain.Turn{Role: m.Role, Content: m.Content}
	}
	return turns, nil
}

// Authorize returns ErrConversationNotFound unless userID participates in
// the conversation.
func (s *ConversationService) Authorize(ctx context.Context, userID, conversationID string) error {
	ok, err := repo.IsParticipant(ctx, s.Store, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConversationNotFound
	}
	return nil
}

// attachProfiles loads the participants of c with their public profiles.
// Participants whose user no longer exists keep a nil profile.
func (s *ConversationService) attachProfiles(ctx context.Context, c *domain.Conversation) error {
	ps, err := repo.ListParticipants(ctx, s.Store, c.ID)
	if err != nil {
		return err
	}
	for i := range ps {
		u, err := repo.GetUser(ctx, s.Store, ps[i].UserID)
		switch {
		case err == nil:
			ps[i].User = u.Profile()
		case !errors.Is(err, repo.ErrNotFound):
			return err
		}
	}
	c.Participants = ps
	return nil
}

// clip truncates a title to the configured maximum rune length.
func (s *ConversationService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
