// Package auth implements the persistence contract an identity-provider
// integration expects: users, linked provider accounts and database
// sessions. Lookups that find nothing return (nil, nil); errors are reserved
// for backend failures.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/repo"
	"github.com/tbourn/go-edu-chat-backend/internal/storage"
)

// DefaultMaxAge is the session lifetime used when none is configured.
const DefaultMaxAge = 30 * 24 * time.Hour

// ErrEmailTaken is returned when a different user already owns the email.
var ErrEmailTaken = errors.New("auth: email already in use")

// Adapter stores identity records in a storage backend.
type Adapter struct {
	b      storage.Backend
	maxAge time.Duration
	now    func() time.Time
}

// NewAdapter returns an adapter over b. A non-positive maxAge falls back to
// DefaultMaxAge.
func NewAdapter(b storage.Backend, maxAge time.Duration) *Adapter {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Adapter{b: b, maxAge: maxAge, now: time.Now}
}

// MaxAge reports the session lifetime.
func (a *Adapter) MaxAge() time.Duration { return a.maxAge }

// absent turns ErrNotFound into a nil result.
func absent[T any](v *T, err error) (*T, error) {
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func mapPutUserErr(err error) error {
	if errors.Is(err, repo.ErrDuplicate) {
		return ErrEmailTaken
	}
	return err
}

// CreateUser stores u, assigning an ID when empty. Creating a user whose ID
// already exists replaces it.
func (a *Adapter) CreateUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	if err := repo.PutUser(ctx, a.b, u); err != nil {
		return nil, mapPutUserErr(err)
	}
	return u, nil
}

// GetUser loads a user by ID.
func (a *Adapter) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return absent(repo.GetUser(ctx, a.b, id))
}

// GetUserByEmail loads a user by email, case-insensitively.
func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return absent(repo.FindUserByEmail(ctx, a.b, email))
}

// GetUserByAccount resolves the user linked to a provider account.
func (a *Adapter) GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*domain.User, error) {
	acc, err := absent(repo.FindAccountByProvider(ctx, a.b, provider, providerAccountID))
	if err != nil || acc == nil {
		return nil, err
	}
	return a.GetUser(ctx, acc.UserID)
}

// UpdateUser merges the non-zero fields of patch into the stored user.
// Returns (nil, nil) when the user does not exist.
func (a *Adapter) UpdateUser(ctx context.Context, patch *domain.User) (*domain.User, error) {
	u, err := a.GetUser(ctx, patch.ID)
	if err != nil || u == nil {
		return nil, err
	}
	if patch.Name != "" {
		u.Name = patch.Name
	}
	if patch.Email != "" {
		u.Email = patch.Email
	}
	if patch.EmailVerified != nil {
		u.EmailVerified = patch.EmailVerified
	}
	if patch.Image != "" {
		u.Image = patch.Image
	}
	if patch.PasswordHash != "" {
		u.PasswordHash = patch.PasswordHash
	}
	if err := repo.PutUser(ctx, a.b, u); err != nil {
		return nil, mapPutUserErr(err)
	}
	return u, nil
}

// DeleteUser removes the user with its sessions and accounts. A failure
// part-way is returned as *repo.CascadeError.
func (a *Adapter) DeleteUser(ctx context.Context, id string) error {
	return repo.DeleteUserCascade(ctx, a.b, id)
}

// LinkAccount stores a provider account. Linking the same provider account
// again replaces the stored tokens.
func (a *Adapter) LinkAccount(ctx context.Context, acc *domain.Account) (*domain.Account, error) {
	existing, err := absent(repo.FindAccountByProvider(ctx, a.b, acc.Provider, acc.ProviderAccountID))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		acc.ID = existing.ID
		acc.CreatedAt = existing.CreatedAt
	}
	if err := repo.PutAccount(ctx, a.b, acc); err != nil {
		return nil, fmt.Errorf("link account: %w", err)
	}
	return acc, nil
}

// UnlinkAccount removes a provider account; unknown pairs are ignored.
func (a *Adapter) UnlinkAccount(ctx context.Context, provider, providerAccountID string) error {
	acc, err := absent(repo.FindAccountByProvider(ctx, a.b, provider, providerAccountID))
	if err != nil || acc == nil {
		return err
	}
	return repo.DeleteAccount(ctx, a.b, acc.ID)
}

// CreateSession stores s. A zero Expires is set to now plus the max age.
func (a *Adapter) CreateSession(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	if s.Expires.IsZero() {
		s.Expires = a.now().Add(a.maxAge)
	}
	if err := repo.PutSession(ctx, a.b, s); err != nil {
		return nil, err
	}
	return s, nil
}

// GetSessionAndUser loads a session with its user. A session whose user no
// longer exists is reported as absent. Expiry is not checked here.
func (a *Adapter) GetSessionAndUser(ctx context.Context, token string) (*domain.Session, *domain.User, error) {
	s, err := absent(repo.GetSession(ctx, a.b, token))
	if err != nil || s == nil {
		return nil, nil, err
	}
	u, err := a.GetUser(ctx, s.UserID)
	if err != nil || u == nil {
		return nil, nil, err
	}
	return s, u, nil
}

// UpdateSession moves a session's expiry. A zero expires extends it by the
// max age from now. Returns (nil, nil) for unknown tokens.
func (a *Adapter) UpdateSession(ctx context.Context, token string, expires time.Time) (*domain.Session, error) {
	if expires.IsZero() {
		expires = a.now().Add(a.maxAge)
	}
	if err := repo.ExtendSession(ctx, a.b, token, expires); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return absent(repo.GetSession(ctx, a.b, token))
}

// DeleteSession removes a session; unknown tokens are ignored.
func (a *Adapter) DeleteSession(ctx context.Context, token string) error {
	return repo.DeleteSession(ctx, a.b, token)
}
