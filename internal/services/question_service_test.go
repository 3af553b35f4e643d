package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-edu-chat-backend/internal/seed"
	"github.com/tbourn/go-edu-chat-backend/internal/storage"
)

func seededQuestions(t *testing.T, b storage.Backend) *QuestionService {
	t.Helper()
	c, err := seed.Load("")
	if err != nil {
		t.Fatalf("seed.Load: %v", err)
	}
	if _, err := seed.Apply(context.Background(), b, c); err != nil {
		t.Fatalf("seed.Apply: %v", err)
	}
	return NewQuestionService(b, c.Topics)
}

func TestByTopic_ExactCaseSensitive(t *testing.T) {
	eachBackend(t, func(t *testing.T, b storage.Backend) {
		ctx := context.Background()
		s := seededQuestions(t, b)

		qs, err := s.ByTopic(ctx, "Mathematics", "")
		if err != nil {
			t.Fatalf("ByTopic: %v", err)
		}
		if len(qs) != 3 {
			t.Fatalf("got %d questions", len(qs))
		}
		for _, q := range qs {
			if q.Topic != "Mathematics" {
				t.Fatalf("foreign topic %q", q.Topic)
			}
		}

		for _, topic := range []string{"mathematics", "Underwater Basket Weaving"} {
			qs, err := s.ByTopic(ctx, topic, "")
			if err != nil || qs == nil || len(qs) != 0 {
				t.Fatalf("ByTopic(%q) = %#v, %v", topic, qs, err)
			}
		}

		if _, err := s.ByTopic(ctx, "", ""); !errors.Is(err, ErrTopicRequired) {
			t.Fatalf("want ErrTopicRequired, got %v", err)
		}
	})
}

func TestByTopic_QueryRanks(t *testing.T) {
	eachBackend(t, func(t *testing.T, b storage.Backend) {
		s := seededQuestions(t, b)
		qs, err := s.ByTopic(context.Background(), "Computer Science", "recursion in programming")
		if err != nil {
			t.Fatalf("ByTopic: %v", err)
		}
		if len(qs) != 2 || qs[0].ID != "10" || qs[1].ID != "9" {
			t.Fatalf("ranked = %+v", qs)
		}
	})
}

func TestTopics_ReturnsCopy(t *testing.T) {
	c, _ := seed.Load("")
	s := NewQuestionService(nil, c.Topics)
	ts := s.Topics()
	if len(ts) != 5 || ts[0].Name != "Mathematics" {
		t.Fatalf("Topics = %+v", ts)
	}
	ts[0].Name = "changed"
	if s.Topics()[0].Name != "Mathematics" {
		t.Fatalf("Topics leaked internal slice")
	}
}
