package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecurity(opt SecurityOptions, req *http.Request) http.Header {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders(opt))
	r.NoRoute(func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	h := serveSecurity(SecurityOptions{}, httptest.NewRequest(http.MethodGet, "/api/topics", nil))

	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	for _, k := range []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security"} {
		if h.Get(k) != "" {
			t.Fatalf("unexpected %s: %q", k, h.Get(k))
		}
	}
}

func TestSecurityHeaders_Policy(t *testing.T) {
	h := serveSecurity(SecurityOptions{EnablePolicy: true}, httptest.NewRequest(http.MethodGet, "/", nil))
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("policy headers missing: %#v", h)
	}
}

func TestSecurityHeaders_NoStoreByPrefix(t *testing.T) {
	// A trailing slash on a prefix still covers the bare path.
	opt := SecurityOptions{NoStorePrefixes: []string{"/api/auth", "/api/conversations/"}}
	cases := map[string]bool{
		"/api/auth":                      true,
		"/api/auth/session":              true,
		"/api/conversations":             true,
		"/api/conversations/c1/messages": true,
		"/api/conversationsx":            false,
		"/api/authors":                   false,
		"/api/questions":                 false,
	}
	for path, want := range cases {
		h := serveSecurity(opt, httptest.NewRequest(http.MethodGet, path, nil))
		if got := h.Get("Cache-Control") == "no-store"; got != want {
			t.Fatalf("%s: no-store=%v want %v", path, got, want)
		}
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}

	plain := serveSecurity(opt, httptest.NewRequest(http.MethodGet, "/", nil))
	if plain.Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be sent over plain HTTP")
	}

	tlsReq := httptest.NewRequest(http.MethodGet, "/", nil)
	tlsReq.TLS = &tls.ConnectionState{}
	if got := serveSecurity(opt, tlsReq).Get("Strict-Transport-Security"); got != "max-age=3600; includeSubDomains; preload" {
		t.Fatalf("HSTS over TLS = %q", got)
	}

	proxied := httptest.NewRequest(http.MethodGet, "/", nil)
	proxied.Header.Set("X-Forwarded-Proto", "HTTPS")
	if got := serveSecurity(SecurityOptions{EnableHSTS: true}, proxied).Get("Strict-Transport-Security"); got != "max-age=15552000; includeSubDomains; preload" {
		t.Fatalf("HSTS behind proxy (default max-age) = %q", got)
	}
}
