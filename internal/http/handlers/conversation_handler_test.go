package handlers

import (
	"net/http"
	"testing"

	"github.com/tbourn/go-edu-chat-backend/internal/http/middleware"
	"github.com/tbourn/go-edu-chat-backend/internal/services"
)

func TestConversations_RequireSession(t *testing.T) {
	h := newHarness(t)
	for _, rt := range []struct{ method, path string }{
		{http.MethodGet, "/conversations"},
		{http.MethodPost, "/conversations"},
		{http.MethodGet, "/conversations/x/messages"},
		{http.MethodPost, "/chat"},
	} {
		w := do(t, h.r, rt.method, rt.path, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: status=%d", rt.method, rt.path, w.Code)
		}
		if e := decode[ErrorResponse](t, w); e.Error != "Unauthorized" {
			t.Fatalf("%s %s: body=%+v", rt.method, rt.path, e)
		}
	}
}

func TestCreateConversation_DefaultTitleAndGreeting(t *testing.T) {
	h := newHarness(t)
	tok, uid := h.signIn(t, "ada@example.com")

	w := do(t, h.r, http.MethodPost, "/conversations", tok, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	resp := decode[CreateConversationResponse](t, w)
	if resp.Conversation == nil || resp.Conversation.Title != services.DefaultTitle {
		t.Fatalf("unexpected conversation: %+v", resp.Conversation)
	}
	if resp.Message == nil || resp.Message.Role != "assistant" || resp.Message.Content != services.Greeting {
		t.Fatalf("unexpected greeting: %+v", resp.Message)
	}
	if len(resp.Conversation.Participants) != 1 || resp.Conversation.Participants[0].UserID != uid {
		t.Fatalf("unexpected participants: %+v", resp.Conversation.Participants)
	}

	w = do(t, h.r, http.MethodPost, "/conversations", tok, CreateConversationRequest{Title: "  Algebra   homework "})
	if got := decode[CreateConversationResponse](t, w).Conversation.Title; got != "Algebra homework" {
		t.Fatalf("title=%q", got)
	}
}

func TestCreateConversation_InvalidJSON(t *testing.T) {
	h := newHarness(t)
	tok, _ := h.signIn(t, "ada@example.com")

	w := do(t, h.r, http.MethodPost, "/conversations", tok, "not-an-object")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestCreateConversation_IdempotentReplay(t *testing.T) {
	h := newHarness(t)
	tok, _ := h.signIn(t, "ada@example.com")
	other, _ := h.signIn(t, "bob@example.com")

	first := do(t, h.r, http.MethodPost, "/conversations", tok, CreateConversationRequest{Title: "Once"},
		middleware.HeaderIdempotencyKey, "create-1")
	if first.Code != http.StatusCreated {
		t.Fatalf("first: %d", first.Code)
	}
	if first.Header().Get(middleware.HeaderIdempotencyReplayed) != "" {
		t.Fatalf("first response must not be marked replayed")
	}

	second := do(t, h.r, http.MethodPost, "/conversations", tok, CreateConversationRequest{Title: "Once"},
		middleware.HeaderIdempotencyKey, "create-1")
	if second.Code != http.StatusCreated || second.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("second: %d replayed=%q", second.Code, second.Header().Get(middleware.HeaderIdempotencyReplayed))
	}
	a := decode[CreateConversationResponse](t, first)
	b := decode[CreateConversationResponse](t, second)
	if a.Conversation.ID != b.Conversation.ID {
		t.Fatalf("replay created a new conversation: %s vs %s", a.Conversation.ID, b.Conversation.ID)
	}

	list := decode[ListConversationsResponse](t, do(t, h.r, http.MethodGet, "/conversations", tok, nil))
	if len(list.Conversations) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(list.Conversations))
	}

	// Same key, different user: independent.
	third := do(t, h.r, http.MethodPost, "/conversations", other, CreateConversationRequest{Title: "Once"},
		middleware.HeaderIdempotencyKey, "create-1")
	if third.Header().Get(middleware.HeaderIdempotencyReplayed) != "" {
		t.Fatalf("keys must be scoped per user")
	}
	if decode[CreateConversationResponse](t, third).Conversation.ID == a.Conversation.ID {
		t.Fatalf("other user received a foreign conversation")
	}
}

func TestListConversations_OwnOnlyWithLatestMessageAndETag(t *testing.T) {
	h := newHarness(t)
	tok, _ := h.signIn(t, "ada@example.com")
	other, _ := h.signIn(t, "bob@example.com")

	do(t, h.r, http.MethodPost, "/conversations", other, CreateConversationRequest{Title: "Bob's"})
	c1 := decode[CreateConversationResponse](t, do(t, h.r, http.MethodPost, "/conversations", tok, CreateConversationRequest{Title: "First"}))
	do(t, h.r, http.MethodPost, "/conversations", tok, CreateConversationRequest{Title: "Second"})

	w := do(t, h.r, http.MethodGet, "/conversations", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	list := decode[ListConversationsResponse](t, w)
	if len(list.Conversations) != 2 {
		t.Fatalf("expected 2 own conversations, got %d", len(list.Conversations))
	}
	for _, c := range list.Conversations {
		if c.Title == "Bob's" {
			t.Fatalf("foreign conversation listed")
		}
		if len(c.Messages) != 1 {
			t.Fatalf("conversation %s has %d messages, want 1", c.ID, len(c.Messages))
		}
	}

	// Unchanged → 304.
	w = do(t, h.r, http.MethodGet, "/conversations", tok, nil, "If-None-Match", etag)
	if w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}

	// A chat in the first conversation moves it to the top and changes the ETag.
	do(t, h.r, http.MethodPost, "/chat", tok, ChatRequest{Message: "What is math?", ConversationID: c1.Conversation.ID})
	w = do(t, h.r, http.MethodGet, "/conversations", tok, nil, "If-None-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after change, got %d", w.Code)
	}
	list = decode[ListConversationsResponse](t, w)
	top := list.Conversations[0]
	if top.ID != c1.Conversation.ID || top.Messages[0].Role != "assistant" {
		t.Fatalf("expected %s on top with the reply as latest, got %s %+v", c1.Conversation.ID, top.ID, top.Messages)
	}
}

func TestListMessages_OrderLimitAndAccess(t *testing.T) {
	h := newHarness(t)
	tok, _ := h.signIn(t, "ada@example.com")
	other, _ := h.signIn(t, "bob@example.com")

	c := decode[CreateConversationResponse](t, do(t, h.r, http.MethodPost, "/conversations", tok, nil)).Conversation
	do(t, h.r, http.MethodPost, "/chat", tok, ChatRequest{Message: "What is math?", ConversationID: c.ID})

	w := do(t, h.r, http.MethodGet, "/conversations/"+c.ID+"/messages", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	msgs := decode[ListMessagesResponse](t, w).Messages
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	wantRoles := []string{"assistant", "user", "assistant"}
	for i, m := range msgs {
		if m.Role != wantRoles[i] {
			t.Fatalf("msg %d role=%s", i, m.Role)
		}
		if i > 0 && !msgs[i-1].CreatedAt.Before(m.CreatedAt) {
			t.Fatalf("messages not strictly ascending at %d", i)
		}
	}

	w = do(t, h.r, http.MethodGet, "/conversations/"+c.ID+"/messages?limit=1", tok, nil)
	if got := decode[ListMessagesResponse](t, w).Messages; len(got) != 1 || got[0].ID != msgs[2].ID {
		t.Fatalf("limit=1 should keep the latest message, got %+v", got)
	}

	if w := do(t, h.r, http.MethodGet, "/conversations/"+c.ID+"/messages", other, nil); w.Code != http.StatusNotFound {
		t.Fatalf("foreign conversation: status=%d", w.Code)
	}
	if w := do(t, h.r, http.MethodGet, "/conversations/missing/messages", tok, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing conversation: status=%d", w.Code)
	}
}
