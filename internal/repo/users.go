package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/storage"
)

// PutUser creates or replaces a user. An empty ID is assigned a UUID; the
// email is lower-cased. Returns ErrDuplicate when another user already owns
// the email.
func PutUser(ctx context.Context, b storage.Backend, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = NormalizeEmail(u.Email)
	now := storage.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.CreatedAt = storage.Timestamp(u.CreatedAt)
	u.UpdatedAt = now
	if u.EmailVerified != nil {
		t := storage.Timestamp(*u.EmailVerified)
		u.EmailVerified = &t
	}

	// Uniqueness is enforced here so the key-value backend behaves like the
	// relational one, whose unique index would reject the write anyway.
	if u.Email != "" {
		owner, err := FindUserByEmail(ctx, b, u.Email)
		switch {
		case err == nil && owner.ID != u.ID:
			return fmt.Errorf("%w: email %s", ErrDuplicate, u.Email)
		case err != nil && !errors.Is(err, ErrNotFound):
			return err
		}
	}

	if err := b.Put(ctx, storage.Users, u); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email %s", ErrDuplicate, u.Email)
		}
		return err
	}
	return nil
}

// GetUser loads a user by ID.
func GetUser(ctx context.Context, b storage.Backend, id string) (*domain.User, error) {
	return getOne[domain.User](ctx, b, storage.Users, id)
}

// FindUserByEmail looks a user up through the email index.
func FindUserByEmail(ctx context.Context, b storage.Backend, email string) (*domain.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrNotFound
	}
	return findOne[domain.User](ctx, b, storage.Users, storage.EmailIndex, email)
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
