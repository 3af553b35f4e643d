package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/storage"
)

// PutAccount creates or replaces a provider account. An empty ID is
// assigned a UUID.
func PutAccount(ctx context.Context, b storage.Backend, a *domain.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := storage.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.CreatedAt = storage.Timestamp(a.CreatedAt)
	a.UpdatedAt = now
	if err := b.Put(ctx, storage.Accounts, a); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// FindAccountByProvider resolves the composite (provider, providerAccountID)
// key.
func FindAccountByProvider(ctx context.Context, b storage.Backend, provider, providerAccountID string) (*domain.Account, error) {
	return findOne[domain.Account](ctx, b, storage.Accounts, storage.ProviderAccountIndex, provider, providerAccountID)
}

// ListAccountsByUser returns every account linked to a user.
func ListAccountsByUser(ctx context.Context, b storage.Backend, userID string) ([]domain.Account, error) {
	return queryAll[domain.Account](ctx, b, storage.Accounts, storage.UserIDIndex, userID)
}

// DeleteAccount removes an account by ID.
func DeleteAccount(ctx context.Context, b storage.Backend, id string) error {
	return b.Delete(ctx, storage.Accounts, id)
}
