package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/tbourn/go-edu-chat-backend/internal/ai"
	"github.com/tbourn/go-edu-chat-backend/internal/auth"
	"github.com/tbourn/go-edu-chat-backend/internal/cache"
	"github.com/tbourn/go-edu-chat-backend/internal/http/middleware"
	"github.com/tbourn/go-edu-chat-backend/internal/seed"
	"github.com/tbourn/go-edu-chat-backend/internal/services"
	"github.com/tbourn/go-edu-chat-backend/internal/storage"
	"github.com/tbourn/go-edu-chat-backend/internal/storage/storagetest"
)

const (
	testCookie = "edu_session"
	testSecret = "provider-secret"
)

// harness wires real services over an in-memory SQLite backend.
type harness struct {
	r        *gin.Engine
	b        storage.Backend
	convs    *services.ConversationService
	sessions *services.SessionService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := storagetest.NewSQL(t)
	cat, err := seed.Load("")
	if err != nil {
		t.Fatalf("seed.Load: %v", err)
	}
	if _, err := seed.Apply(context.Background(), b, cat); err != nil {
		t.Fatalf("seed.Apply: %v", err)
	}

	convs := services.NewConversationService(b)
	assistant := &services.AssistantService{
		Conversations:  convs,
		Generator:      ai.Canned{},
		Cache:          cache.Noop{},
		CacheTTL:       time.Hour,
		Timeout:        time.Second,
		HistoryLimit:   20,
		MaxPromptRunes: 200,
		MaxReplyRunes:  4000,
	}
	sessions := services.NewSessionService(auth.NewAdapter(b, 0), bcrypt.MinCost, time.Hour)
	h := New(convs, assistant, services.NewQuestionService(b, cat.Topics), sessions, cache.NewStore(b), Options{
		CookieName:     testCookie,
		ProviderSecret: testSecret,
		IdempotencyTTL: time.Hour,
	})
	return &harness{r: routes(h, sessions), b: b, convs: convs, sessions: sessions}
}

// routes mirrors the production route table without the ambient middleware.
func routes(h *Handlers, res middleware.SessionResolver) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())

	r.GET("/questions", h.ListQuestions)
	r.GET("/topics", h.ListTopics)
	r.POST("/auth/signup", h.SignUp)
	r.POST("/auth/signin", h.SignIn)
	r.POST("/auth/provider", h.ProviderLogin)

	authed := r.Group("/", middleware.RequireSession(res, middleware.SessionOptions{CookieName: testCookie}))
	authed.POST("/chat", h.Chat)
	authed.GET("/conversations", h.ListConversations)
	authed.POST("/conversations",
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, h.StoredResponse),
		h.CreateConversation)
	authed.GET("/conversations/:id/messages", h.ListMessages)
	authed.GET("/auth/session", h.GetSession)
	authed.POST("/auth/signout", h.SignOut)
	authed.DELETE("/auth/account", h.DeleteAccount)
	return r
}

// do sends a JSON request. token, when set, is sent as a Bearer header.
func do(t *testing.T, r http.Handler, method, path, token string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body=%s)", v, err, w.Body.String())
	}
	return v
}

// signIn registers a credentials user and returns a session token.
func (h *harness) signIn(t *testing.T, email string) (token, userID string) {
	t.Helper()
	w := do(t, h.r, http.MethodPost, "/auth/signup", "", SignUpRequest{Email: email, Name: "Learner", Password: "password123"})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup %s: %d %s", email, w.Code, w.Body.String())
	}
	w = do(t, h.r, http.MethodPost, "/auth/signin", "", SignInRequest{Email: email, Password: "password123"})
	if w.Code != http.StatusOK {
		t.Fatalf("signin %s: %d %s", email, w.Code, w.Body.String())
	}
	s := decode[SessionResponse](t, w)
	return s.Token, s.User.ID
}
