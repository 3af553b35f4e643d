package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// captureLogs points the global logger at a buffer for the test's lifetime.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := log.Logger
	log.Logger = zerolog.New(buf)
	t.Cleanup(func() { log.Logger = prev })
	return buf
}

// accessLines returns the decoded "http_request" lines in buf.
func accessLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("log line is not JSON: %q", line)
		}
		if m["message"] == "http_request" {
			out = append(out, m)
		}
	}
	return out
}

func TestRedact(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"topic=Science", "topic=Science"},
		{"from ada@example.com", "from [REDACTED:email]"},
		{"call 212-555-1212", "call [REDACTED:phone]"},
		{"conv 123e4567-e89b-12d3-a456-426614174000", "conv [REDACTED:id]"},
	}
	for _, tc := range cases {
		if got := Redact(tc.in); got != tc.want {
			t.Errorf("Redact(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRedactingLogger_MasksCredentialsAndScrubsPII(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{MaskHeaders: []string{" x-auth-secret "}}))
	r.GET("/api/conversations/:id/messages", func(c *gin.Context) {
		c.Set(ctxKeyUserID, "u-42")
		c.String(http.StatusOK, "[]")
	})

	req := httptest.NewRequest(http.MethodGet,
		"/api/conversations/c-7/messages?note=ada@example.com&tel=555-123-4567", nil)
	req.Header.Set("Authorization", "Bearer tok-secret")
	req.AddCookie(&http.Cookie{Name: "edu_session", Value: "tok-secret"})
	req.Header.Set("X-Auth-Secret", "provider-secret")
	req.Header.Set("X-Debug", "owner ada@example.com")
	req.Header.Set(HeaderRequestID, "rid-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	raw := buf.String()
	for _, secret := range []string{"tok-secret", "provider-secret", "ada@example.com", "555-123-4567"} {
		if strings.Contains(raw, secret) {
			t.Fatalf("%q leaked into logs: %s", secret, raw)
		}
	}

	lines := accessLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("want one access line, got %d", len(lines))
	}
	l := lines[0]
	want := map[string]any{
		"level":           "info",
		"path":            "/api/conversations/:id/messages",
		"request_id":      "rid-1",
		"user_id":         "u-42",
		"conversation_id": "c-7",
		"status":          float64(200),
	}
	for k, v := range want {
		if l[k] != v {
			t.Errorf("%s = %v, want %v", k, l[k], v)
		}
	}
	hdrs, _ := l["headers"].(map[string]any)
	for _, h := range []string{"Authorization", "Cookie", "X-Auth-Secret"} {
		if hdrs[h] != "[REDACTED]" {
			t.Errorf("header %s = %v, want masked", h, hdrs[h])
		}
	}
	if hdrs["X-Debug"] != "owner [REDACTED:email]" {
		t.Errorf("X-Debug = %v", hdrs["X-Debug"])
	}
}

func TestRedactingLogger_LevelFollowsOutcome(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		handler gin.HandlerFunc
		path    string
		level   string
	}{
		{"ok", func(c *gin.Context) { c.Status(http.StatusNoContent) }, "/x", "info"},
		{"client error", func(c *gin.Context) { c.Status(http.StatusConflict) }, "/x", "warn"},
		{"server error", func(c *gin.Context) { c.Status(http.StatusBadGateway) }, "/x", "error"},
		{"gin error on 4xx", func(c *gin.Context) {
			_ = c.Error(errors.New("bind failed"))
			c.Status(http.StatusBadRequest)
		}, "/x", "error"},
		{"no route", nil, "/missing", "warn"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := captureLogs(t)
			r := gin.New()
			r.Use(RedactingLogger(RedactOptions{}))
			if tc.handler != nil {
				r.GET("/x", tc.handler)
			}
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))

			lines := accessLines(t, buf)
			if len(lines) != 1 || lines[0]["level"] != tc.level {
				t.Fatalf("lines=%v, want level %s", lines, tc.level)
			}
			if lines[0]["path"] != tc.path {
				t.Fatalf("path = %v, want %s", lines[0]["path"], tc.path)
			}
		})
	}
}

func TestRedactingLogger_RequestIDFromIncomingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	// RequestID not installed: the logger still quotes the caller's id.
	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "rid-upstream")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if l := accessLines(t, buf); len(l) != 1 || l[0]["request_id"] != "rid-upstream" {
		t.Fatalf("unexpected access lines: %v", l)
	}
}

func TestLoggerFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("fallback", func(t *testing.T) {
		buf := captureLogs(t)
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		lg := LoggerFrom(c)
		lg.Info().Msg("bare")
		if !strings.Contains(buf.String(), `"message":"bare"`) || strings.Contains(buf.String(), "request_id") {
			t.Fatalf("fallback logger output: %s", buf.String())
		}
	})

	t.Run("request scoped", func(t *testing.T) {
		buf := captureLogs(t)
		r := gin.New()
		r.Use(RequestID(), RedactingLogger(RedactOptions{}))
		r.POST("/api/chat", func(c *gin.Context) {
			lg := LoggerFrom(c)
			lg.Info().Msg("generating")
			c.Status(http.StatusOK)
		})
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.Header.Set(HeaderRequestID, "rid-chat")
		r.ServeHTTP(httptest.NewRecorder(), req)

		var inner string
		for _, line := range strings.Split(buf.String(), "\n") {
			if strings.Contains(line, `"message":"generating"`) {
				inner = line
			}
		}
		if !strings.Contains(inner, `"request_id":"rid-chat"`) || !strings.Contains(inner, `"path":"/api/chat"`) {
			t.Fatalf("scoped logger missing fields: %q", inner)
		}
	})
}

func TestClip(t *testing.T) {
	if got := clip("topic=Math", 64); got != "topic=Math" {
		t.Fatalf("short input changed: %q", got)
	}
	if got := clip("abcdefgh", 5); got != "abcde…" {
		t.Fatalf("clip = %q", got)
	}
	if got := clip("abc", 0); got != "abc" {
		t.Fatalf("n<=0 must disable clipping, got %q", got)
	}
}
