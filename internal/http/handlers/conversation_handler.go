// Conversation HTTP handlers.
//
//   - GET    /conversations                (list, weak ETag support)
//   - POST   /conversations                (create, Idempotency-Key replay)
//   - GET    /conversations/{id}/messages  (history)
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-edu-chat-backend/internal/cache"
	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/http/middleware"
	"github.com/tbourn/go-edu-chat-backend/internal/services"
	"github.com/tbourn/go-edu-chat-backend/internal/utils"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
)

//
// DTOs
//

// CreateConversationRequest is the JSON payload for creating a conversation.
type CreateConversationRequest struct {
	// Title optionally names the conversation; "New Conversation" when empty.
	Title string `json:"title" example:"Algebra homework"`
}

// CreateConversationResponse carries the new conversation and its greeting.
type CreateConversationResponse struct {
	Conversation *domain.Conversation `json:"conversation"`
	Message      *domain.Message      `json:"message"`
}

// ListConversationsResponse wraps the user's conversations.
type ListConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
}

// ListMessagesResponse wraps the messages of a conversation, oldest first.
type ListMessagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

//
// Handlers
//

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations
// @Description Returns the current user's conversations, most recently active first, each with its latest message. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Conversations
// @Produce     json
// @Security    SessionCookie
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"conversations:2:1718000000000\")
//
// @Success     200  {object} handlers.ListConversationsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	items, err := h.convs.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		internal(c, ErrCodeListFailed, err)
		return
	}

	etag := conversationsETag(items)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}
	ok(c, http.StatusOK, ListConversationsResponse{Conversations: items})
}

// conversationsETag changes whenever a conversation is added or removed or
// receives a message, since appending moves updated_at.
func conversationsETag(items []domain.Conversation) string {
	var latest time.Time
	for _, it := range items {
		if it.UpdatedAt.After(latest) {
			latest = it.UpdatedAt
		}
	}
	var ts int64
	if !latest.IsZero() {
		ts = latest.UnixMilli()
	}
	return fmt.Sprintf(`W/"conversations:%d:%d"`, len(items), ts)
}

// CreateConversation godoc
// @ID          createConversation
// @Summary     Create a conversation
// @Description Creates a conversation for the current user and adds the assistant greeting. With an Idempotency-Key, a retry returns the stored response and sets Idempotency-Replayed: true.
// @Tags        Conversations
// @Accept      json
// @Produce     json
// @Security    SessionCookie
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(3f1c9b0a-create-1)
// @Param       body             body    handlers.CreateConversationRequest  false  "Create conversation payload"
//
// @Success     201  {object}  handlers.CreateConversationResponse
// @Header      201  {string}  Idempotency-Replayed  "true when served from a stored response"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations [post]
func (h *Handlers) CreateConversation(c *gin.Context) {
	if payload, replay := middleware.ReplayPayload(c); replay {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
		c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
		return
	}

	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	uid := middleware.UserID(c)
	conv, err := h.convs.Create(c.Request.Context(), uid, req.Title)
	if err != nil {
		internal(c, ErrCodeCreateFailed, err)
		return
	}

	resp := CreateConversationResponse{Conversation: conv}
	if len(conv.Messages) > 0 {
		resp.Message = &conv.Messages[0]
	}

	if key, has := middleware.GetIdempotencyKey(c); has {
		h.storeResponse(c, cache.IdempotencyKey(uid, key), resp)
	}
	ok(c, http.StatusCreated, resp)
}

// StoredResponse looks up the response recorded for the user's
// Idempotency-Key. It backs middleware.IdempotencyValidator.
func (h *Handlers) StoredResponse(ctx context.Context, userID, key string) (string, bool, error) {
	return h.responses.Get(ctx, cache.IdempotencyKey(userID, key))
}

// storeResponse records body for replay. Failures only cost the replay, so
// they are logged and otherwise ignored.
func (h *Handlers) storeResponse(c *gin.Context, key string, body any) {
	raw, err := json.Marshal(body)
	if err == nil {
		err = h.responses.Set(c.Request.Context(), key, string(raw), h.opts.IdempotencyTTL)
	}
	if err != nil {
		lg := middleware.LoggerFrom(c)
		lg.Warn().Err(err).Msg("store idempotent response")
	}
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List conversation messages
// @Description Returns the most recent messages of a conversation the current user participates in, oldest first.
// @Tags        Conversations
// @Produce     json
// @Security    SessionCookie
//
// @Param       id     path   string  true   "Conversation ID (UUID)"  format(uuid)
// @Param       limit  query  int     false  "Maximum number of messages"  minimum(1) maximum(200) default(50)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	limit := utils.Limit(c.Query("limit"), defaultMessageLimit, maxMessageLimit)

	msgs, err := h.convs.Messages(c.Request.Context(), middleware.UserID(c), c.Param("id"), limit)
	switch {
	case errors.Is(err, services.ErrConversationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Conversation not found")
		return
	case err != nil:
		internal(c, ErrCodeListFailed, err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: msgs})
}
