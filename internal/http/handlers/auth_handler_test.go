package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tbourn/go-edu-chat-backend/internal/repo"
	"github.com/tbourn/go-edu-chat-backend/internal/services"
)

func TestSignUp_Validation(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name   string
		body   any
		status int
	}{
		{"missing fields", map[string]string{}, http.StatusBadRequest},
		{"bad email", SignUpRequest{Email: "not-an-email", Password: "password123"}, http.StatusBadRequest},
		{"short password", SignUpRequest{Email: "ada@example.com", Password: "short"}, http.StatusBadRequest},
		{"ok", SignUpRequest{Email: "ada@example.com", Name: "Ada", Password: "password123"}, http.StatusCreated},
		{"duplicate", SignUpRequest{Email: "ADA@example.com", Password: "password123"}, http.StatusConflict},
	}
	for _, tc := range cases {
		w := do(t, h.r, http.MethodPost, "/auth/signup", "", tc.body)
		if w.Code != tc.status {
			t.Fatalf("%s: status=%d want %d body=%s", tc.name, w.Code, tc.status, w.Body.String())
		}
	}
}

func TestSignUp_NeverReturnsPasswordHash(t *testing.T) {
	h := newHarness(t)
	w := do(t, h.r, http.MethodPost, "/auth/signup", "", SignUpRequest{Email: "ada@example.com", Name: "Ada", Password: "password123"})
	if strings.Contains(w.Body.String(), "password") || strings.Contains(w.Body.String(), "$2a$") {
		t.Fatalf("hash leaked: %s", w.Body.String())
	}
	u := decode[UserResponse](t, w).User
	if u == nil || u.ID == "" || u.Email != "ada@example.com" || u.Name != "Ada" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestSignIn_CookieSessionAndSignOut(t *testing.T) {
	h := newHarness(t)
	do(t, h.r, http.MethodPost, "/auth/signup", "", SignUpRequest{Email: "ada@example.com", Name: "Ada", Password: "password123"})

	if w := do(t, h.r, http.MethodPost, "/auth/signin", "", SignInRequest{Email: "ada@example.com", Password: "wrong-password"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status=%d", w.Code)
	}
	if w := do(t, h.r, http.MethodPost, "/auth/signin", "", SignInRequest{Email: "nobody@example.com", Password: "password123"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown email: status=%d", w.Code)
	}

	w := do(t, h.r, http.MethodPost, "/auth/signin", "", SignInRequest{Email: "ada@example.com", Password: "password123"})
	if w.Code != http.StatusOK {
		t.Fatalf("signin: status=%d", w.Code)
	}
	s := decode[SessionResponse](t, w)
	if s.Token == "" || s.User == nil || s.Expires.IsZero() {
		t.Fatalf("unexpected session: %+v", s)
	}
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == testCookie {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != s.Token || !cookie.HttpOnly {
		t.Fatalf("session cookie missing or wrong: %+v", cookie)
	}

	// The cookie authenticates.
	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("session via cookie: status=%d", rec.Code)
	}
	got := decode[SessionResponse](t, rec)
	if got.User.ID != s.User.ID || got.Token != "" {
		t.Fatalf("unexpected session body: %+v", got)
	}

	// Sign out ends the session.
	if w := do(t, h.r, http.MethodPost, "/auth/signout", s.Token, nil); w.Code != http.StatusNoContent {
		t.Fatalf("signout: status=%d", w.Code)
	}
	if w := do(t, h.r, http.MethodGet, "/auth/session", s.Token, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("after signout: status=%d", w.Code)
	}
}

func TestProviderLogin(t *testing.T) {
	h := newHarness(t)
	profile := services.ProviderProfile{
		Provider:          "github",
		ProviderAccountID: "gh-42",
		Email:             "ada@example.com",
		Name:              "Ada",
		AccessToken:       "gho_secret",
	}

	if w := do(t, h.r, http.MethodPost, "/auth/provider", "", profile); w.Code != http.StatusForbidden {
		t.Fatalf("no secret: status=%d", w.Code)
	}
	if w := do(t, h.r, http.MethodPost, "/auth/provider", "", profile, HeaderAuthSecret, "wrong"); w.Code != http.StatusForbidden {
		t.Fatalf("wrong secret: status=%d", w.Code)
	}
	if w := do(t, h.r, http.MethodPost, "/auth/provider", "", services.ProviderProfile{Provider: "github"}, HeaderAuthSecret, testSecret); w.Code != http.StatusBadRequest {
		t.Fatalf("missing account id: status=%d", w.Code)
	}

	w := do(t, h.r, http.MethodPost, "/auth/provider", "", profile, HeaderAuthSecret, testSecret)
	if w.Code != http.StatusOK {
		t.Fatalf("provider login: status=%d body=%s", w.Code, w.Body.String())
	}
	first := decode[SessionResponse](t, w)
	if strings.Contains(w.Body.String(), "gho_secret") {
		t.Fatalf("provider token leaked: %s", w.Body.String())
	}

	// Second login with the same account reuses the user.
	second := decode[SessionResponse](t, do(t, h.r, http.MethodPost, "/auth/provider", "", profile, HeaderAuthSecret, testSecret))
	if second.User.ID != first.User.ID || second.Token == first.Token {
		t.Fatalf("expected same user with a new session: %+v vs %+v", first, second)
	}
}

func TestProviderLogin_DisabledWithoutSecret(t *testing.T) {
	h := New(nil, nil, nil, nil, nil, Options{})
	r := routes(h, nil)
	w := do(t, r, http.MethodPost, "/auth/provider", "", services.ProviderProfile{Provider: "github", ProviderAccountID: "1"}, HeaderAuthSecret, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestDeleteAccount_CascadesAndInvalidatesSession(t *testing.T) {
	h := newHarness(t)
	tok, uid := h.signIn(t, "ada@example.com")

	// A second session for the same user.
	w := do(t, h.r, http.MethodPost, "/auth/signin", "", SignInRequest{Email: "ada@example.com", Password: "password123"})
	tok2 := decode[SessionResponse](t, w).Token

	if w := do(t, h.r, http.MethodDelete, "/auth/account", tok, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: status=%d", w.Code)
	}
	for _, token := range []string{tok, tok2} {
		if w := do(t, h.r, http.MethodGet, "/auth/session", token, nil); w.Code != http.StatusUnauthorized {
			t.Fatalf("session survived deletion: status=%d", w.Code)
		}
	}
	if _, err := repo.GetUser(context.Background(), h.b, uid); err == nil {
		t.Fatalf("user still present")
	}
	sessions, err := repo.ListSessionsByUser(context.Background(), h.b, uid)
	if err != nil || len(sessions) != 0 {
		t.Fatalf("sessions left: %d err=%v", len(sessions), err)
	}
}
