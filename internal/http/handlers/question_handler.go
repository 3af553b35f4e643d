// Question catalogue HTTP handlers.
//
//   - GET /questions?topic=...&query=...
//   - GET /topics
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/services"
)

// ListQuestionsResponse wraps the suggested questions of a topic.
type ListQuestionsResponse struct {
	Questions []domain.Question `json:"questions"`
}

// ListTopicsResponse wraps the catalogue topics.
type ListTopicsResponse struct {
	Topics []domain.Topic `json:"topics"`
}

// ListQuestions godoc
// @ID          listQuestions
// @Summary     Suggested questions for a topic
// @Description Returns the questions whose topic equals the parameter exactly (case-sensitive). An unknown topic yields an empty list. With query, only questions sharing a word with it are returned, best match first.
// @Tags        Questions
// @Produce     json
//
// @Param       topic  query  string  true   "Topic name"  example(Mathematics)
// @Param       query  query  string  false  "Optional keyword filter"  example(equations)
//
// @Success     200  {object} handlers.ListQuestionsResponse
// @Failure     400  {object} handlers.ErrorResponse "Topic parameter is required"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /questions [get]
func (h *Handlers) ListQuestions(c *gin.Context) {
	qs, err := h.questions.ByTopic(c.Request.Context(), c.Query("topic"), c.Query("query"))
	switch {
	case errors.Is(err, services.ErrTopicRequired):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Topic parameter is required")
		return
	case err != nil:
		internal(c, ErrCodeListFailed, err)
		return
	}
	if qs == nil {
		qs = []domain.Question{}
	}
	ok(c, http.StatusOK, ListQuestionsResponse{Questions: qs})
}

// ListTopics godoc
// @ID          listTopics
// @Summary     Catalogue topics
// @Description Returns the topics of the suggested-question catalogue in display order.
// @Tags        Questions
// @Produce     json
//
// @Success     200  {object} handlers.ListTopicsResponse
// @Router      /topics [get]
func (h *Handlers) ListTopics(c *gin.Context) {
	ok(c, http.StatusOK, ListTopicsResponse{Topics: h.questions.Topics()})
}
