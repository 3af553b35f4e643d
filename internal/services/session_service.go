// Package services – SessionService
//
// SessionService implements sign-up, credential sign-in, identity-provider
// sign-in and database sessions on top of the auth adapter. Sessions slide:
// once UpdateAge has passed since the expiry was last set, resolving the
// session pushes its expiry out by the full max age again.
package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/tbourn/go-edu-chat-backend/internal/auth"
	"github.com/tbourn/go-edu-chat-backend/internal/domain"
)

// MinPasswordLen is the shortest password SignUp accepts.
const MinPasswordLen = 8

// ProviderProfile is what an identity provider reports after a successful
// external sign-in.
type ProviderProfile struct {
	Provider          string `json:"provider"`
	ProviderAccountID string `json:"provider_account_id"`
	Type              string `json:"type"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	Image             string `json:"image"`
	AccessToken       string `json:"access_token"`
	RefreshToken      string `json:"refresh_token"`
	ExpiresAt         int64  `json:"expires_at"`
	TokenType         string `json:"token_type"`
	Scope             string `json:"scope"`
	IDToken           string `json:"id_token"`
}

// SessionService manages users and their sessions.
type SessionService struct {
	Auth       *auth.Adapter
	BcryptCost int
	UpdateAge  time.Duration

	now func() time.Time
}

// NewSessionService builds a SessionService. A zero bcryptCost uses
// bcrypt.DefaultCost.
func NewSessionService(a *auth.Adapter, bcryptCost int, updateAge time.Duration) *SessionService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &SessionService{Auth: a, BcryptCost: bcryptCost, UpdateAge: updateAge, now: time.Now}
}

func (s *SessionService) tracer() trace.Tracer {
	return otel.Tracer("services/SessionService")
}

// SignUp creates a credentials user.
func (s *SessionService) SignUp(ctx context.Context, email, name, password string) (*domain.User, error) {
	ctx, span := s.tracer().Start(ctx, "SignUp")
	defer span.End()

	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil || len(password) < MinPasswordLen {
		return nil, ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.BcryptCost)
	if err != nil {
		return nil, err
	}
	u, err := s.Auth.CreateUser(ctx, &domain.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
	})
	if errors.Is(err, auth.ErrEmailTaken) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	return u, nil
}

// SignIn verifies credentials and opens a session.
func (s *SessionService) SignIn(ctx context.Context, email, password string) (*domain.Session, *domain.User, error) {
	ctx, span := s.tracer().Start(ctx, "SignIn")
	defer span.End()

	u, err := s.Auth.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if u == nil || u.PasswordHash == "" {
		return nil, nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}
	sess, err := s.openSession(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}
	return sess, u, nil
}

// ProviderLogin completes an identity-provider sign-in. The user is found
// by linked account, then by email, and created otherwise; the account is
// linked (or its tokens refreshed) and a session opened.
func (s *SessionService) ProviderLogin(ctx context.Context, p ProviderProfile) (*domain.Session, *domain.User, error) {
	ctx, span := s.tracer().Start(ctx, "ProviderLogin",
		trace.WithAttributes(attribute.String("auth.provider", p.Provider)),
	)
	defer span.End()

	if strings.TrimSpace(p.Provider) == "" || strings.TrimSpace(p.ProviderAccountID) == "" {
		return nil, nil, ErrInvalidInput
	}
	if p.Type == "" {
		p.Type = "oauth"
	}

	u, err := s.Auth.GetUserByAccount(ctx, p.Provider, p.ProviderAccountID)
	if err != nil {
		return nil, nil, err
	}
	if u == nil && p.Email != "" {
		if u, err = s.Auth.GetUserByEmail(ctx, p.Email); err != nil {
			return nil, nil, err
		}
	}
	if u == nil {
		verified := s.now()
		u, err = s.Auth.CreateUser(ctx, &domain.User{
			Name:          p.Name,
			Email:         p.Email,
			Image:         p.Image,
			EmailVerified: &verified,
		})
		if err != nil {
			span.RecordError(err)
			return nil, nil, err
		}
	}

	if _, err := s.Auth.LinkAccount(ctx, &domain.Account{
		UserID:            u.ID,
		Type:              p.Type,
		Provider:          p.Provider,
		ProviderAccountID: p.ProviderAccountID,
		AccessToken:       p.AccessToken,
		RefreshToken:      p.RefreshToken,
		ExpiresAt:         p.ExpiresAt,
		TokenType:         p.TokenType,
		Scope:             p.Scope,
		IDToken:           p.IDToken,
	}); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	sess, err := s.openSession(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}
	return sess, u, nil
}

// Resolve returns the live session for token with its user. Expired
// sessions are reported as ErrUnauthorized and left in place; only
// sign-out and account deletion remove them.
func (s *SessionService) Resolve(ctx context.Context, token string) (*domain.Session, *domain.User, error) {
	if token == "" {
		return nil, nil, ErrUnauthorized
	}
	sess, u, err := s.Auth.GetSessionAndUser(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		return nil, nil, ErrUnauthorized
	}

	now := s.now()
	if !now.Before(sess.Expires) {
		return nil, nil, ErrUnauthorized
	}

	if s.UpdateAge > 0 {
		due := sess.Expires.Add(-s.Auth.MaxAge()).Add(s.UpdateAge)
		if !now.Before(due) {
			updated, err := s.Auth.UpdateSession(ctx, token, now.Add(s.Auth.MaxAge()))
			if err != nil {
				return nil, nil, err
			}
			if updated != nil {
				sess = updated
			}
		}
	}
	return sess, u, nil
}

// SignOut deletes the session. Unknown tokens are ignored.
func (s *SessionService) SignOut(ctx context.Context, token string) error {
	return s.Auth.DeleteSession(ctx, token)
}

// DeleteAccount removes the user with all sessions and linked accounts.
func (s *SessionService) DeleteAccount(ctx context.Context, userID string) error {
	ctx, span := s.tracer().Start(ctx, "DeleteAccount",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if err := s.Auth.DeleteUser(ctx, userID); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *SessionService) openSession(ctx context.Context, userID string) (*domain.Session, error) {
	return s.Auth.CreateSession(ctx, &domain.Session{
		SessionToken: uuid.NewString(),
		UserID:       userID,
		Expires:      s.now().Add(s.Auth.MaxAge()),
	})
}
