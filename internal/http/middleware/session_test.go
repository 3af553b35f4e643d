package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/services"
)

type fakeResolver struct {
	sessions map[string]*domain.Session
	err      error
	got      string
}

func (f *fakeResolver) Resolve(_ context.Context, token string) (*domain.Session, *domain.User, error) {
	f.got = token
	if f.err != nil {
		return nil, nil, f.err
	}
	s, ok := f.sessions[token]
	if !ok {
		return nil, nil, services.ErrUnauthorized
	}
	return s, &domain.User{ID: s.UserID, Name: "Ada"}, nil
}

func sessionRouter(res SessionResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireSession(res, SessionOptions{CookieName: "edu_session"}))
	r.GET("/me", func(c *gin.Context) {
		u, _ := CurrentUser(c)
		s, _ := CurrentSession(c)
		c.JSON(http.StatusOK, gin.H{
			"user_id": UserID(c),
			"name":    u.Name,
			"token":   CurrentToken(c),
			"expires": s.Expires,
		})
	})
	return r
}

func TestRequireSession_CookieAndBearer(t *testing.T) {
	exp := time.Now().Add(time.Hour).UTC()
	res := &fakeResolver{sessions: map[string]*domain.Session{
		"tok-1": {SessionToken: "tok-1", UserID: "u1", Expires: exp},
	}}
	r := sessionRouter(res)

	// cookie
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "edu_session", Value: "tok-1"})
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("cookie: status=%d body=%s", w.Code, w.Body.String())
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["user_id"] != "u1" || body["name"] != "Ada" || body["token"] != "tok-1" {
		t.Fatalf("unexpected body: %v", body)
	}
	sc := w.Header().Get("Set-Cookie")
	if !strings.Contains(sc, "edu_session=tok-1") || !strings.Contains(sc, "HttpOnly") || !strings.Contains(sc, "SameSite=Lax") {
		t.Fatalf("cookie not re-issued: %q", sc)
	}

	// bearer, no cookie re-issue
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("bearer: status=%d", w.Code)
	}
	if sc := w.Header().Get("Set-Cookie"); sc != "" {
		t.Fatalf("bearer auth must not set a cookie, got %q", sc)
	}
}

func TestRequireSession_Unauthorized(t *testing.T) {
	res := &fakeResolver{sessions: map[string]*domain.Session{}}
	r := sessionRouter(res)

	cases := map[string]func(*http.Request){
		"no credentials": func(*http.Request) {},
		"unknown cookie": func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "edu_session", Value: "nope"}) },
		"basic auth":     func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			mutate(req)
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status=%d", w.Code)
			}
			var body map[string]any
			_ = json.Unmarshal(w.Body.Bytes(), &body)
			if body["error"] != "Unauthorized" || body["code"] != "unauthorized" {
				t.Fatalf("unexpected body: %v", body)
			}
		})
	}
}

func TestRequireSession_BackendErrorIs500(t *testing.T) {
	r := sessionRouter(&fakeResolver{err: errors.New("dynamodb down")})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer tok")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	if strings.Contains(w.Body.String(), "dynamodb") {
		t.Fatalf("backend detail leaked: %s", w.Body.String())
	}
}

func TestSessionTokenFromRequest_CookieWins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Authorization", "bearer from-header")
	if tok, fromCookie := SessionTokenFromRequest(c, "edu_session"); tok != "from-header" || fromCookie {
		t.Fatalf("got %q, %v", tok, fromCookie)
	}
	c.Request.AddCookie(&http.Cookie{Name: "edu_session", Value: "from-cookie"})
	if tok, fromCookie := SessionTokenFromRequest(c, "edu_session"); tok != "from-cookie" || !fromCookie {
		t.Fatalf("got %q, %v", tok, fromCookie)
	}
}
