// Chat HTTP handler.
//
//   - POST /chat  (ask the assistant, optionally within a conversation)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/http/middleware"
	"github.com/tbourn/go-edu-chat-backend/internal/services"
)

// ChatRequest is the JSON payload of POST /chat.
type ChatRequest struct {
	// Message is the learner's question.
	Message string `json:"message" example:"What is math?"`
	// ConversationHistory optionally replaces the stored history as context.
	ConversationHistory []domain.Turn `json:"conversationHistory"`
	// ConversationID stores the exchange in that conversation when set.
	ConversationID string `json:"conversationId" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// ChatResponse carries the assistant reply.
type ChatResponse struct {
	Response string `json:"response" example:"Mathematics is the study of numbers, quantities, and shapes."`
}

// Chat godoc
// @ID          chat
// @Summary     Ask the assistant
// @Description Generates a tutoring reply. When conversationId is given, the user message and the reply are stored in that conversation and its stored history is used unless conversationHistory is supplied.
// @Tags        Chat
// @Accept      json
// @Produce     json
// @Security    SessionCookie
//
// @Param       body  body  handlers.ChatRequest  true  "Chat payload"
//
// @Success     200  {object}  handlers.ChatResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing or invalid message"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Message is required")
		return
	}

	reply, err := h.assistant.Reply(c.Request.Context(), middleware.UserID(c), services.ChatRequest{
		Message:        req.Message,
		History:        req.ConversationHistory,
		ConversationID: strings.TrimSpace(req.ConversationID),
	})
	switch {
	case err == nil:
		ok(c, http.StatusOK, ChatResponse{Response: reply})
	case errors.Is(err, services.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Message is required")
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Message is too long")
	case errors.Is(err, services.ErrInvalidRole):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "History roles must be user or assistant")
	case errors.Is(err, services.ErrConversationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Conversation not found")
	default:
		internal(c, ErrCodeChatFailed, err)
	}
}
