package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var seen string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/health", func(c *gin.Context) {
		seen = RequestIDFrom(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	minted := w.Header().Get(HeaderRequestID)
	if _, err := uuid.Parse(minted); err != nil {
		t.Fatalf("minted id %q is not a UUID: %v", minted, err)
	}
	if seen != minted {
		t.Fatalf("context id %q != header id %q", seen, minted)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("x-request-id", "rid-from-client")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(HeaderRequestID); got != "rid-from-client" || seen != got {
		t.Fatalf("incoming id not propagated: header=%q ctx=%q", got, seen)
	}
}

func TestRequestIDFrom_FallsBackToResponseHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := RequestIDFrom(c); got != "" {
		t.Fatalf("empty context gave %q", got)
	}
	c.Writer.Header().Set(HeaderRequestID, "rid-hdr")
	if got := RequestIDFrom(c); got != "rid-hdr" {
		t.Fatalf("fallback = %q", got)
	}
}

func TestAbortJSON_Envelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) {
		abortJSON(c, http.StatusUnauthorized, "unauthorized", "Unauthorized")
	})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "rid-401")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if w.Code != http.StatusUnauthorized || body["request_id"] != "rid-401" || body["code"] != "unauthorized" {
		t.Fatalf("status=%d body=%v", w.Code, body)
	}
}
