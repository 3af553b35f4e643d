// Authentication HTTP handlers.
//
//   - POST   /auth/signup    (credentials user)
//   - POST   /auth/signin    (credentials sign-in, sets the session cookie)
//   - POST   /auth/provider  (trusted identity-provider callback)
//   - GET    /auth/session   (current user)
//   - POST   /auth/signout   (end the session)
//   - DELETE /auth/account   (delete the user with sessions and accounts)
package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/http/middleware"
	"github.com/tbourn/go-edu-chat-backend/internal/services"
)

// HeaderAuthSecret carries the shared secret of POST /auth/provider.
const HeaderAuthSecret = "X-Auth-Secret"

// SignUpRequest is the JSON payload of POST /auth/signup.
type SignUpRequest struct {
	Email    string `json:"email" binding:"required" example:"ada@example.com"`
	Name     string `json:"name" example:"Ada Lovelace"`
	Password string `json:"password" binding:"required" example:"correct horse battery"`
}

// SignInRequest is the JSON payload of POST /auth/signin.
type SignInRequest struct {
	Email    string `json:"email" binding:"required" example:"ada@example.com"`
	Password string `json:"password" binding:"required" example:"correct horse battery"`
}

// UserResponse wraps a user.
type UserResponse struct {
	User *domain.User `json:"user"`
}

// SessionResponse describes an open session. Token is only returned when the
// session is created, for clients that authenticate with a Bearer header.
type SessionResponse struct {
	User    *domain.User `json:"user"`
	Expires time.Time    `json:"expires"`
	Token   string       `json:"token,omitempty"`
}

// SignUp godoc
// @ID          signUp
// @Summary     Create an account
// @Description Registers a user with email and password. Passwords need at least 8 characters.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SignUpRequest  true  "Sign-up payload"
//
// @Success     201  {object}  handlers.UserResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid email or password"
// @Failure     409  {object}  handlers.ErrorResponse  "Email already in use"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/signup [post]
func (h *Handlers) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password are required")
		return
	}

	u, err := h.sessions.SignUp(c.Request.Context(), req.Email, req.Name, req.Password)
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "a valid email and a password of at least 8 characters are required")
	case errors.Is(err, services.ErrEmailTaken):
		fail(c, http.StatusConflict, ErrCodeConflict, "Email already in use")
	case err != nil:
		internal(c, ErrCodeAuthFailed, err)
	default:
		ok(c, http.StatusCreated, UserResponse{User: u})
	}
}

// SignIn godoc
// @ID          signIn
// @Summary     Sign in with email and password
// @Description Opens a session, sets the session cookie and returns the token for Bearer clients.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SignInRequest  true  "Credentials"
//
// @Success     200  {object}  handlers.SessionResponse
// @Header      200  {string}  Set-Cookie  "Session cookie"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid email or password"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/signin [post]
func (h *Handlers) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password are required")
		return
	}

	sess, u, err := h.sessions.SignIn(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid email or password")
		return
	case err != nil:
		internal(c, ErrCodeAuthFailed, err)
		return
	}
	h.openSession(c, sess, u)
}

// ProviderLogin godoc
// @ID          providerLogin
// @Summary     Complete an identity-provider sign-in
// @Description Called by the trusted sign-in frontend after an OAuth/OIDC flow. Finds or creates the user, links the provider account and opens a session. Requires the shared secret in X-Auth-Secret.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       X-Auth-Secret  header  string                    true  "Shared provider secret"
// @Param       body           body    services.ProviderProfile  true  "Provider profile and tokens"
//
// @Success     200  {object}  handlers.SessionResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/provider [post]
func (h *Handlers) ProviderLogin(c *gin.Context) {
	secret := h.opts.ProviderSecret
	given := c.GetHeader(HeaderAuthSecret)
	if secret == "" || subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "Forbidden")
		return
	}

	var p services.ProviderProfile
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	sess, u, err := h.sessions.ProviderLogin(c.Request.Context(), p)
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "provider and provider_account_id are required")
		return
	case err != nil:
		internal(c, ErrCodeAuthFailed, err)
		return
	}
	h.openSession(c, sess, u)
}

func (h *Handlers) openSession(c *gin.Context, sess *domain.Session, u *domain.User) {
	middleware.SetSessionCookie(c, h.opts.CookieName, sess.SessionToken, sess.Expires, h.opts.SecureCookie)
	ok(c, http.StatusOK, SessionResponse{User: u, Expires: sess.Expires, Token: sess.SessionToken})
}

// GetSession godoc
// @ID          getSession
// @Summary     Current session
// @Description Returns the signed-in user and when the session expires.
// @Tags        Auth
// @Produce     json
// @Security    SessionCookie
//
// @Success     200  {object}  handlers.SessionResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /auth/session [get]
func (h *Handlers) GetSession(c *gin.Context) {
	u, okU := middleware.CurrentUser(c)
	s, okS := middleware.CurrentSession(c)
	if !okU || !okS {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "Unauthorized")
		return
	}
	ok(c, http.StatusOK, SessionResponse{User: u, Expires: s.Expires})
}

// SignOut godoc
// @ID          signOut
// @Summary     Sign out
// @Description Deletes the current session and clears the cookie.
// @Tags        Auth
// @Security    SessionCookie
//
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/signout [post]
func (h *Handlers) SignOut(c *gin.Context) {
	if err := h.sessions.SignOut(c.Request.Context(), middleware.CurrentToken(c)); err != nil {
		internal(c, ErrCodeAuthFailed, err)
		return
	}
	middleware.ClearSessionCookie(c, h.opts.CookieName, h.opts.SecureCookie)
	noContent(c)
}

// DeleteAccount godoc
// @ID          deleteAccount
// @Summary     Delete the current user
// @Description Deletes the user together with all sessions and linked provider accounts. On a partial failure the user is kept and the call can be retried.
// @Tags        Auth
// @Security    SessionCookie
//
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/account [delete]
func (h *Handlers) DeleteAccount(c *gin.Context) {
	if err := h.sessions.DeleteAccount(c.Request.Context(), middleware.UserID(c)); err != nil {
		internal(c, ErrCodeAuthFailed, err)
		return
	}
	middleware.ClearSessionCookie(c, h.opts.CookieName, h.opts.SecureCookie)
	noContent(c)
}
