// Package handlers implements the JSON API: chat, conversations, messages,
// the question catalogue and the auth endpoints. Every failure is written as
//
//	{"request_id": "...", "code": "not_found", "error": "Conversation not found"}
//
// and 5xx responses always carry the generic message.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-edu-chat-backend/internal/http/middleware"
)

// genericError is the only message a 5xx response ever carries.
const genericError = "an error occurred"

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable code from errors.go
	Code  string `json:"code" example:"not_found"`
	Error string `json:"error" example:"Conversation not found"`
}

// fail aborts the request with the error envelope. Server errors never
// echo msg; it goes to the request log instead.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		serverError(c, status, code, errors.New(msg))
		return
	}
	c.AbortWithStatusJSON(status, envelope(c, code, msg))
}

// internal answers 500 for err. The cause is logged, never returned.
func internal(c *gin.Context, code string, err error) {
	serverError(c, http.StatusInternalServerError, code, err)
}

func serverError(c *gin.Context, status int, code string, err error) {
	lg := middleware.LoggerFrom(c)
	lg.Error().Err(err).Int("status", status).Str("code", code).Msg("request failed")
	c.AbortWithStatusJSON(status, envelope(c, code, genericError))
}

func envelope(c *gin.Context, code, msg string) ErrorResponse {
	return ErrorResponse{RequestID: middleware.RequestIDFrom(c), Code: code, Error: msg}
}

// Fail is the exported variant of fail() for the router and middleware.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
