package services

import (
	"context"
	"testing"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/repo"
	"github.com/tbourn/go-edu-chat-backend/internal/storage"
	"github.com/tbourn/go-edu-chat-backend/internal/storage/storagetest"
)

// eachBackend runs fn once per storage backend.
func eachBackend(t *testing.T, fn func(t *testing.T, b storage.Backend)) {
	t.Helper()
	for name, b := range storagetest.Backends(t) {
		b := b
		t.Run(name, func(t *testing.T) { fn(t, b) })
	}
}

func mustUser(t *testing.T, b storage.Backend, id, name string) *domain.User {
	t.Helper()
	u := &domain.User{ID: id, Name: name, Email: id + "@example.com", Image: id + ".png"}
	if err := repo.PutUser(context.Background(), b, u); err != nil {
		t.Fatalf("PutUser(%s): %v", id, err)
	}
	return u
}
