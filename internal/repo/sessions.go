package repo

import (
	"context"
	"time"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/storage"
)

// PutSession creates or replaces a session.
func PutSession(ctx context.Context, b storage.Backend, s *domain.Session) error {
	now := storage.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.CreatedAt = storage.Timestamp(s.CreatedAt)
	s.UpdatedAt = now
	s.Expires = storage.Timestamp(s.Expires)
	return b.Put(ctx, storage.Sessions, s)
}

// GetSession loads a session by token.
func GetSession(ctx context.Context, b storage.Backend, token string) (*domain.Session, error) {
	return getOne[domain.Session](ctx, b, storage.Sessions, token)
}

// ExtendSession moves a session's expiry. Returns ErrNotFound when the
// token is unknown.
func ExtendSession(ctx context.Context, b storage.Backend, token string, expires time.Time) error {
	return b.Update(ctx, storage.Sessions, token, map[string]any{
		"expires":    storage.Timestamp(expires),
		"updated_at": storage.Now(),
	})
}

// DeleteSession removes a session; unknown tokens are ignored.
func DeleteSession(ctx context.Context, b storage.Backend, token string) error {
	return b.Delete(ctx, storage.Sessions, token)
}

// ListSessionsByUser returns every session of a user, oldest first.
func ListSessionsByUser(ctx context.Context, b storage.Backend, userID string) ([]domain.Session, error) {
	return queryAll[domain.Session](ctx, b, storage.Sessions, storage.UserIDIndex, userID)
}
