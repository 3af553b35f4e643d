package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/storage"
)

// CreateMessage inserts a new message. A zero at means now. The timestamp
// is moved forward when needed so it sorts strictly after the conversation's
// latest message; two appends within one millisecond keep their order.
func CreateMessage(ctx context.Context, b storage.Backend, conversationID, role, content string, at time.Time) (*domain.Message, error) {
	if at.IsZero() {
		at = time.Now()
	}
	at = storage.Timestamp(at)

	latest, err := LatestMessage(ctx, b, conversationID)
	switch {
	case err == nil:
		if !at.After(latest.CreatedAt) {
			at = latest.CreatedAt.Add(time.Millisecond)
		}
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	m := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      at,
	}
	if err := b.Put(ctx, storage.Messages, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns messages ordered deterministically (CreatedAt ASC, ID ASC).
// A positive limit keeps only the most recent limit messages.
func ListMessages(ctx context.Context, b storage.Backend, conversationID string, limit int) ([]domain.Message, error) {
	all, err := queryAll[domain.Message](ctx, b, storage.Messages, storage.ConversationIDIndex, conversationID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

// LatestMessage returns the most recent message of a conversation, or
// ErrNotFound when it has none.
func LatestMessage(ctx context.Context, b storage.Backend, conversationID string) (*domain.Message, error) {
	all, err := ListMessages(ctx, b, conversationID, 1)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	return &all[0], nil
}
