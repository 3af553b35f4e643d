package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/storage"
)

// CreateConversation stores a new conversation and one participant record
// per user. The returned conversation carries the participants.
func CreateConversation(ctx context.Context, b storage.Backend, title string, userIDs ...string) (*domain.Conversation, error) {
	now := storage.Now()
	c := &domain.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := b.Put(ctx, storage.Conversations, c); err != nil {
		return nil, err
	}
	c.Participants = make([]domain.Participant, 0, len(userIDs))
	for _, uid := range userIDs {
		p := domain.Participant{
			ID:             domain.ParticipantID(c.ID, uid),
			ConversationID: c.ID,
			UserID:         uid,
			CreatedAt:      now,
		}
		if err := b.Put(ctx, storage.Participants, &p); err != nil {
			return nil, err
		}
		c.Participants = append(c.Participants, p)
	}
	return c, nil
}

// GetConversation loads a conversation without its relations.
func GetConversation(ctx context.Context, b storage.Backend, id string) (*domain.Conversation, error) {
	return getOne[domain.Conversation](ctx, b, storage.Conversations, id)
}

// TouchConversation sets a conversation's updated_at.
func TouchConversation(ctx context.Context, b storage.Backend, id string, at time.Time) error {
	return b.Update(ctx, storage.Conversations, id, map[string]any{"updated_at": storage.Timestamp(at)})
}

// ListParticipants returns the participants of a conversation.
func ListParticipants(ctx context.Context, b storage.Backend, conversationID string) ([]domain.Participant, error) {
	return queryAll[domain.Participant](ctx, b, storage.Participants, storage.ConversationIDIndex, conversationID)
}

// ListMemberships returns the participant records of a user, one per
// conversation they belong to.
func ListMemberships(ctx context.Context, b storage.Backend, userID string) ([]domain.Participant, error) {
	return queryAll[domain.Participant](ctx, b, storage.Participants, storage.UserIDIndex, userID)
}

// IsParticipant reports whether userID belongs to the conversation.
func IsParticipant(ctx context.Context, b storage.Backend, conversationID, userID string) (bool, error) {
	_, err := getOne[domain.Participant](ctx, b, storage.Participants, domain.ParticipantID(conversationID, userID))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
