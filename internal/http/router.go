// Package httpapi wires the Gin engine: the global middleware chain, the
// operational endpoints and the versioned API served by handlers.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-edu-chat-backend/internal/config"
	"github.com/tbourn/go-edu-chat-backend/internal/http/handlers"
	"github.com/tbourn/go-edu-chat-backend/internal/http/middleware"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

var (
	corsMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsHeaders = []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		middleware.HeaderIdempotencyKey, handlers.HeaderAuthSecret,
	}
	corsExpose = []string{
		middleware.HeaderRequestID, "Content-Length", "ETag", middleware.HeaderIdempotencyReplayed,
	}
)

// RegisterRoutes attaches the middleware chain and every endpoint to r.
//
// Global order:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger
//  4. Recovery
//  5. body limit, gzip
//  6. Metrics
//  7. CORS, security headers
//
// Authenticated routes additionally run RequireSession, then (for
// POST /conversations) the idempotency validator, then the rate limiter, so
// the limiter keys by user and replays skip it.
func RegisterRoutes(r *gin.Engine, h *handlers.Handlers, sessions middleware.SessionResolver, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{handlers.HeaderAuthSecret},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	base := strings.TrimSuffix(cfg.APIBasePath, "/")
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		EnablePolicy:    true,
		NoStorePrefixes: []string{base + "/auth", base + "/conversations", base + "/chat"},
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	limit := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Handler()

	api := groupWithPrefix(r, cfg.APIBasePath)

	public := api.Group("", limit)
	{
		public.GET("/questions", h.ListQuestions)
		public.GET("/topics", h.ListTopics)
		public.POST("/auth/signup", h.SignUp)
		public.POST("/auth/signin", h.SignIn)
		public.POST("/auth/provider", h.ProviderLogin)
	}

	authed := api.Group("", middleware.RequireSession(sessions, middleware.SessionOptions{
		CookieName: cfg.Auth.CookieName,
		Secure:     cfg.Auth.SecureCookie,
	}))
	authed.POST("/conversations",
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, h.StoredResponse),
		limit,
		h.CreateConversation,
	)

	limited := authed.Group("", limit)
	{
		limited.POST("/chat", h.Chat)
		limited.GET("/conversations", h.ListConversations)
		limited.GET("/conversations/:id/messages", h.ListMessages)

		limited.GET("/auth/session", h.GetSession)
		limited.POST("/auth/signout", h.SignOut)
		limited.DELETE("/auth/account", h.DeleteAccount)
	}
}

// corsMiddleware allows every origin when no allowlist is configured. With
// an allowlist, listed origins are echoed and credentials (the session
// cookie) are allowed.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	if len(origins) == 0 {
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins: true,
				AllowMethods:    corsMethods,
				AllowHeaders:    corsHeaders,
				ExposeHeaders:   corsExpose,
				MaxAge:          12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    corsExpose,
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// limitBody caps the request body at maxBytes; reads beyond it fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
