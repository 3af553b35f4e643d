package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tbourn/go-edu-chat-backend/internal/auth"
	"github.com/tbourn/go-edu-chat-backend/internal/repo"
	"github.com/tbourn/go-edu-chat-backend/internal/storage"
)

func newSessions(b storage.Backend, maxAge, updateAge time.Duration) *SessionService {
	return NewSessionService(auth.NewAdapter(b, maxAge), bcrypt.MinCost, updateAge)
}

func TestSignUpAndSignIn(t *testing.T) {
	eachBackend(t, func(t *testing.T, b storage.Backend) {
		ctx := context.Background()
		s := newSessions(b, time.Hour, 0)

		u, err := s.SignUp(ctx, "Ada@Example.com", "Ada", "correct horse")
		if err != nil {
			t.Fatalf("SignUp: %v", err)
		}
		if u.PasswordHash == "" || u.PasswordHash == "correct horse" {
			t.Fatalf("password not hashed")
		}
		if _, err := s.SignUp(ctx, "ada@example.com", "Other", "password123"); !errors.Is(err, ErrEmailTaken) {
			t.Fatalf("want ErrEmailTaken, got %v", err)
		}
		if _, err := s.SignUp(ctx, "not-an-email", "X", "password123"); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("want ErrInvalidInput for email, got %v", err)
		}
		if _, err := s.SignUp(ctx, "b@example.com", "X", "short"); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("want ErrInvalidInput for password, got %v", err)
		}

		sess, got, err := s.SignIn(ctx, "ada@example.com", "correct horse")
		if err != nil {
			t.Fatalf("SignIn: %v", err)
		}
		if got.ID != u.ID || sess.UserID != u.ID || sess.SessionToken == "" {
			t.Fatalf("SignIn = %+v, %+v", sess, got)
		}
		if _, _, err := s.SignIn(ctx, "ada@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("want ErrInvalidCredentials, got %v", err)
		}
		if _, _, err := s.SignIn(ctx, "ghost@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("want ErrInvalidCredentials for unknown user, got %v", err)
		}
	})
}

func TestProviderLogin_CreatesThenReuses(t *testing.T) {
	eachBackend(t, func(t *testing.T, b storage.Backend) {
		ctx := context.Background()
		s := newSessions(b, time.Hour, 0)
		p := ProviderProfile{Provider: "github", ProviderAccountID: "42", Email: "gh@example.com", Name: "GH", AccessToken: "t1"}

		_, u1, err := s.ProviderLogin(ctx, p)
		if err != nil {
			t.Fatalf("ProviderLogin: %v", err)
		}
		if u1.EmailVerified == nil {
			t.Fatalf("provider users should be verified")
		}

		p.AccessToken = "t2"
		_, u2, err := s.ProviderLogin(ctx, p)
		if err != nil || u2.ID != u1.ID {
			t.Fatalf("second login = %+v, %v", u2, err)
		}
		accs, _ := repo.ListAccountsByUser(ctx, b, u1.ID)
		if len(accs) != 1 || accs[0].AccessToken != "t2" || accs[0].Type != "oauth" {
			t.Fatalf("accounts = %+v", accs)
		}

		if _, _, err := s.ProviderLogin(ctx, ProviderProfile{Provider: "github"}); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("want ErrInvalidInput, got %v", err)
		}
	})
}

func TestProviderLogin_WithoutEmail(t *testing.T) {
	eachBackend(t, func(t *testing.T, b storage.Backend) {
		ctx := context.Background()
		s := newSessions(b, time.Hour, 0)

		_, first, err := s.ProviderLogin(ctx, ProviderProfile{Provider: "github", ProviderAccountID: "1", Name: "One"})
		if err != nil {
			t.Fatalf("first ProviderLogin: %v", err)
		}
		_, second, err := s.ProviderLogin(ctx, ProviderProfile{Provider: "github", ProviderAccountID: "2", Name: "Two"})
		if err != nil {
			t.Fatalf("second ProviderLogin: %v", err)
		}
		if first.ID == second.ID {
			t.Fatalf("distinct accounts resolved to one user %s", first.ID)
		}
		if second.Email != "" {
			t.Fatalf("email = %q; want empty", second.Email)
		}
	})
}

func TestProviderLogin_LinksExistingEmailUser(t *testing.T) {
	eachBackend(t, func(t *testing.T, b storage.Backend) {
		ctx := context.Background()
		s := newSessions(b, time.Hour, 0)
		u, err := s.SignUp(ctx, "both@example.com", "Both", "password123")
		if err != nil {
			t.Fatalf("SignUp: %v", err)
		}
		_, got, err := s.ProviderLogin(ctx, ProviderProfile{Provider: "google", ProviderAccountID: "g-1", Email: "BOTH@example.com"})
		if err != nil || got.ID != u.ID {
			t.Fatalf("ProviderLogin = %+v, %v", got, err)
		}
	})
}

func TestResolve_ExpirySlidingAndSignOut(t *testing.T) {
	eachBackend(t, func(t *testing.T, b storage.Backend) {
		ctx := context.Background()
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		s := newSessions(b, 10*time.Hour, time.Hour)
		s.now = func() time.Time { return now }

		if _, err := s.SignUp(ctx, "r@example.com", "R", "password123"); err != nil {
			t.Fatalf("SignUp: %v", err)
		}
		sess, _, err := s.SignIn(ctx, "r@example.com", "password123")
		if err != nil {
			t.Fatalf("SignIn: %v", err)
		}
		tok := sess.SessionToken

		// Within the update age: expiry unchanged.
		now = now.Add(30 * time.Minute)
		got, _, err := s.Resolve(ctx, tok)
		if err != nil || !got.Expires.Equal(sess.Expires) {
			t.Fatalf("Resolve = %+v, %v", got, err)
		}

		// Past the update age: expiry slides.
		now = now.Add(time.Hour)
		got, _, err = s.Resolve(ctx, tok)
		if err != nil || !got.Expires.Equal(now.Add(10*time.Hour)) {
			t.Fatalf("sliding Resolve = %+v, %v", got, err)
		}

		// Expired: rejected but still stored, and rejected again on retry.
		now = now.Add(11 * time.Hour)
		if _, _, err := s.Resolve(ctx, tok); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("want ErrUnauthorized, got %v", err)
		}
		if _, err := repo.GetSession(ctx, b, tok); err != nil {
			t.Fatalf("expired session should not be purged: %v", err)
		}
		if _, _, err := s.Resolve(ctx, tok); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expired session resolved on retry: %v", err)
		}

		// Sign out.
		now = now.Add(time.Minute)
		sess, _, _ = s.SignIn(ctx, "r@example.com", "password123")
		if err := s.SignOut(ctx, sess.SessionToken); err != nil {
			t.Fatalf("SignOut: %v", err)
		}
		if _, _, err := s.Resolve(ctx, sess.SessionToken); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("signed-out session still resolves: %v", err)
		}
		if _, _, err := s.Resolve(ctx, ""); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("empty token: %v", err)
		}
	})
}

func TestDeleteAccount_Cascades(t *testing.T) {
	eachBackend(t, func(t *testing.T, b storage.Backend) {
		ctx := context.Background()
		s := newSessions(b, time.Hour, 0)
		sess, u, err := s.ProviderLogin(ctx, ProviderProfile{Provider: "github", ProviderAccountID: "9", Email: "del@example.com"})
		if err != nil {
			t.Fatalf("ProviderLogin: %v", err)
		}
		if err := s.DeleteAccount(ctx, u.ID); err != nil {
			t.Fatalf("DeleteAccount: %v", err)
		}
		if _, _, err := s.Resolve(ctx, sess.SessionToken); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("session survived account deletion: %v", err)
		}
		if accs, _ := repo.ListAccountsByUser(ctx, b, u.ID); len(accs) != 0 {
			t.Fatalf("accounts survived: %+v", accs)
		}
	})
}
