package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/services"
)

const (
	ctxKeyUserID  = "userID"
	ctxKeySession = "session"
	ctxKeyUser    = "user"
	ctxKeyToken   = "session.token"
)

// SessionResolver turns a token into a live session and its user. It returns
// services.ErrUnauthorized for unknown or expired tokens.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*domain.Session, *domain.User, error)
}

// SessionOptions configures RequireSession.
type SessionOptions struct {
	// CookieName is the session cookie. Required.
	CookieName string
	// Secure marks re-issued cookies HTTPS-only.
	Secure bool
}

// RequireSession rejects requests without a valid session. The token comes
// from the session cookie (browsers) or "Authorization: Bearer" (API
// clients), cookie first. The user, session and user id are stored on the
// context for handlers. When the token came from the cookie, the cookie is re-issued with the session's current
// expiry so sliding refreshes reach the browser.
func RequireSession(res SessionResolver, opts SessionOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, fromCookie := SessionTokenFromRequest(c, opts.CookieName)
		sess, user, err := res.Resolve(c.Request.Context(), token)
		switch {
		case errors.Is(err, services.ErrUnauthorized):
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		case err != nil:
			lg := LoggerFrom(c)
			lg.Error().Err(err).Msg("session lookup failed")
			abortJSON(c, http.StatusInternalServerError, "internal_error", "an error occurred")
			return
		}

		c.Set(ctxKeyUserID, user.ID)
		c.Set(ctxKeySession, sess)
		c.Set(ctxKeyUser, user)
		c.Set(ctxKeyToken, token)

		if fromCookie {
			SetSessionCookie(c, opts.CookieName, token, sess.Expires, opts.Secure)
		}
		c.Next()
	}
}

// SessionTokenFromRequest returns the session token and whether it came from
// the cookie. The cookie wins over the Authorization header.
func SessionTokenFromRequest(c *gin.Context, cookieName string) (string, bool) {
	if v, err := c.Cookie(cookieName); err == nil && v != "" {
		return v, true
	}
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:]), false
	}
	return "", false
}

// SetSessionCookie writes an HttpOnly, SameSite=Lax session cookie that
// expires with the session.
func SetSessionCookie(c *gin.Context, name, token string, expires time.Time, secure bool) {
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 1 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, token, maxAge, "/", "", secure, true)
}

// ClearSessionCookie expires the session cookie immediately.
func ClearSessionCookie(c *gin.Context, name string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", secure, true)
}

// CurrentUser returns the authenticated user stored by RequireSession.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(ctxKeyUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok && u != nil
}

// CurrentSession returns the session stored by RequireSession.
func CurrentSession(c *gin.Context) (*domain.Session, bool) {
	v, ok := c.Get(ctxKeySession)
	if !ok {
		return nil, false
	}
	s, ok := v.(*domain.Session)
	return s, ok && s != nil
}

// CurrentToken returns the token the request authenticated with.
func CurrentToken(c *gin.Context) string {
	return c.GetString(ctxKeyToken)
}

// UserID returns the authenticated user id, or "" on public routes.
func UserID(c *gin.Context) string {
	return c.GetString(ctxKeyUserID)
}
