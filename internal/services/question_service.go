package services

import (
	"context"
	"strings"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/repo"
	"github.com/tbourn/go-edu-chat-backend/internal/search"
	"github.com/tbourn/go-edu-chat-backend/internal/storage"
)

var questionRanker = search.NewRanker(search.DefaultStopwords...)

// QuestionService serves the suggested-question catalogue.
type QuestionService struct {
	Store  storage.Backend
	topics []domain.Topic
}

// NewQuestionService returns a service listing topics in the given order.
func NewQuestionService(b storage.Backend, topics []domain.Topic) *QuestionService {
	return &QuestionService{Store: b, topics: append([]domain.Topic(nil), topics...)}
}

// Topics returns the catalogue topics.
func (s *QuestionService) Topics() []domain.Topic {
	return append([]domain.Topic{}, s.topics...)
}

// ByTopic returns the questions whose topic equals topic exactly. An
// unknown topic yields an empty list. When query is not blank only the
// questions sharing a word with it are returned, best match first.
func (s *QuestionService) ByTopic(ctx context.Context, topic, query string) ([]domain.Question, error) {
	if topic == "" {
		return nil, ErrTopicRequired
	}
	qs, err := repo.ListQuestionsByTopic(ctx, s.Store, topic)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" || len(qs) == 0 {
		return qs, nil
	}

	docs := make([]search.Document, len(qs))
	byID := make(map[string]domain.Question, len(qs))
	for i, q := range qs {
		docs[i] = search.Document{ID: q.ID, Text: q.QuestionText}
		byID[q.ID] = q
	}
	ranked := questionRanker.Rank(query, docs, 0)
	out := make([]domain.Question, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, byID[r.ID])
	}
	return out, nil
}
