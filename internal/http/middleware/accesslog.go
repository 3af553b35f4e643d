package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxLoggedQuery bounds the raw query copied into an access log line.
const maxLoggedQuery = 2048

const redacted = "[REDACTED]"

// RedactOptions lists extra headers, beyond Authorization and cookies, whose
// values never reach the logs. Names are case-insensitive.
type RedactOptions struct {
	MaskHeaders []string
}

var (
	idPattern    = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// Redact replaces UUIDs, email addresses and phone numbers in s with typed
// placeholders. Ids are replaced first so their digit groups are never read
// as phone numbers.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = idPattern.ReplaceAllString(s, "[REDACTED:id]")
	s = emailPattern.ReplaceAllString(s, "[REDACTED:email]")
	return phonePattern.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactingLogger attaches a request-scoped logger (see LoggerFrom) and
// writes one access line per request once the chain returns. Bodies are
// never logged; credentials are masked and the rest of the metadata is passed
// through Redact. The level follows the outcome: info, warn for 4xx, error
// for 5xx or collected gin errors.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]bool{"authorization": true, "cookie": true, "set-cookie": true}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = true
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		rid := RequestIDFrom(c)
		if rid == "" {
			rid = c.GetHeader(HeaderRequestID)
		}

		lg := log.With().
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", route).
			Logger()
		c.Set(ctxKeyLogger, &lg)

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = lg.Error()
		case status >= 400:
			ev = lg.Warn()
		default:
			ev = lg.Info()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		if id := c.Param("id"); id != "" {
			ev = ev.Str("conversation_id", id)
		}

		ev.Str("user_id", UserID(c)).
			Str("query", Redact(clip(c.Request.URL.RawQuery, maxLoggedQuery))).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Dict("headers", headerDict(c.Request.Header, masked)).
			Msg("http_request")
	}
}

// LoggerFrom returns the logger RedactingLogger attached to c, or the global
// logger without request fields. It never returns nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(ctxKeyLogger); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	lg := log.Logger
	return &lg
}

func headerDict(h map[string][]string, masked map[string]bool) *zerolog.Event {
	d := zerolog.Dict()
	for k, vv := range h {
		if masked[strings.ToLower(k)] {
			d = d.Str(k, redacted)
			continue
		}
		d = d.Str(k, Redact(strings.Join(vv, ", ")))
	}
	return d
}

// clip cuts s to n bytes and marks the cut with an ellipsis.
func clip(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
