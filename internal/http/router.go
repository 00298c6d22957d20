// Package httpapi wires the HTTP transport (Gin) to the handlers and the
// shared middleware: tracing, correlation ids, redacting access logs, panic
// recovery, metrics, CORS, security headers, rate limiting and gzip.
//
// Route groups:
//   - /telegram/webhook[/:tenant]: platform traffic. Always acknowledged with
//     200 {"ok": true}, never rate limited.
//   - /telegram/test-send and the API base path: admin traffic, rate limited
//     per tenant or IP; the API group is gzip-compressed.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/tbourn/go-bizbot-backend/docs"
	"github.com/tbourn/go-bizbot-backend/internal/config"
	"github.com/tbourn/go-bizbot-backend/internal/http/handlers"
	"github.com/tbourn/go-bizbot-backend/internal/http/middleware"
)

// maxBodyBytes caps request bodies; Telegram updates are well below it.
const maxBodyBytes = 1 << 20

var corsAllowHeaders = []string{
	"Origin", "Content-Type", "Accept", "Authorization",
	middleware.TenantHeader, "If-None-Match",
}

// RegisterRoutes attaches all middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger (also attaches the request-scoped logger)
//  4. Recovery, after the logger so panics carry the request id
//  5. Body size limit
//  6. Metrics
//  7. CORS and security headers
//
// Admin responses are additionally marked no-store.
//
// Webhook routes add MarkWebhook and WebhookSecret; admin routes add the
// rate limiter.
func RegisterRoutes(r *gin.Engine, h *handlers.Handlers, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", h.Health)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByTenantOrIP())

	tg := r.Group("/telegram")
	{
		hook := tg.Group("/webhook",
			middleware.MarkWebhook(),
			middleware.WebhookSecret(middleware.WebhookSecretOptions{}),
		)
		hook.POST("", h.TelegramWebhook)
		hook.POST("/:tenant", h.TelegramWebhook)

		tg.POST("/test-send", rl.Handler(), h.TestSend)
	}

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(rl.Handler(), middleware.NoStore(), gzip.Gzip(gzip.DefaultCompression))
	{
		api.GET("/conversations", h.ListConversations)

		api.GET("/memory/:user_id", h.GetMemory)
		api.DELETE("/memory/:user_id", h.ClearMemory)

		api.POST("/integrations/telegram", h.RegisterTelegram)
		api.GET("/integrations/telegram/:tenant/status", h.TelegramStatus)
		api.DELETE("/integrations/telegram/:tenant/:name", h.DeactivateTelegram)
	}
}

// corsMiddleware allows every origin when none are configured and echoes
// allow-listed origins otherwise.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     corsAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "ETag", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		// Also set ACAO without an Origin header, e.g. for health probes.
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
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
		cors.New(base),
	}
}

// limitBody caps the request body at maxBytes.
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
