// Package middleware holds the Gin middleware shared by the HTTP layer:
// correlation ids, access logging with redaction, panic recovery, session
// resolution, idempotent replays, rate limiting, security headers and
// Prometheus instrumentation.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderRequestID carries the correlation id in both directions.
const HeaderRequestID = "X-Request-ID"

const (
	ctxKeyRequestID = "requestID"
	ctxKeyLogger    = "logger"
)

// RequestID reuses an incoming X-Request-ID or mints a UUIDv4, stores it on
// the context and echoes it on the response so error envelopes and log lines
// can quote it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, rid)
		c.Header(HeaderRequestID, rid)
		c.Next()
	}
}

// RequestIDFrom returns the correlation id of the request, falling back to
// the response header when RequestID did not run.
func RequestIDFrom(c *gin.Context) string {
	if rid := c.GetString(ctxKeyRequestID); rid != "" {
		return rid
	}
	return c.Writer.Header().Get(HeaderRequestID)
}

// abortJSON stops the chain with the API error envelope.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": RequestIDFrom(c),
		"code":       code,
		"error":      msg,
	})
}
