package repo

import (
	"context"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/storage"
)

// PutQuestion creates or replaces a catalogue question.
func PutQuestion(ctx context.Context, b storage.Backend, q *domain.Question) error {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = storage.Now()
	}
	q.CreatedAt = storage.Timestamp(q.CreatedAt)
	return b.Put(ctx, storage.Questions, q)
}

// ListQuestionsByTopic returns the questions whose topic equals topic
// exactly (case-sensitive).
func ListQuestionsByTopic(ctx context.Context, b storage.Backend, topic string) ([]domain.Question, error) {
	return queryAll[domain.Question](ctx, b, storage.Questions, storage.TopicIndex, topic)
}
