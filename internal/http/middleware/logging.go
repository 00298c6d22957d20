// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides the request correlation id, the request-scoped logger
// and panic recovery:
//
//   - RequestID() propagates X-Request-ID or generates a short id.
//   - attachLogger, called by RedactingLogger, stores a request-scoped
//     zerolog.Logger on both the Gin context ("logger") and the request
//     context, so services can log through zerolog.Ctx(ctx).
//   - Recovery() turns panics into a JSON 500, or into the platform
//     acknowledgment on webhook routes.
//
// Order: RequestID, then RedactingLogger, then Recovery.
package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// TenantHeader selects the tenant on admin routes.
	TenantHeader = "X-Tenant-ID"
	// maxQueryLogLength caps the number of bytes of the raw query string logged.
	maxQueryLogLength = 2048
	// maxRequestIDLength bounds propagated ids so clients cannot bloat logs.
	maxRequestIDLength = 128
	// shortIDLength is the length of generated correlation ids.
	shortIDLength = 8
)

// webhookAckKey marks routes whose failures must still acknowledge with 200.
const webhookAckKey = "webhook.ack"

// NewRequestID returns a short random correlation id.
func NewRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:shortIDLength]
}

// RequestID attaches a correlation id to each request. An incoming
// X-Request-ID is reused when present and reasonably short.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if rid == "" || len(rid) > maxRequestIDLength {
			rid = NewRequestID()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// RequestIDFrom returns the correlation id stored by RequestID.
func RequestIDFrom(c *gin.Context) string {
	v, _ := c.Get(requestIDKey)
	return asString(v)
}

// attachLogger finishes ctx with the correlation fields and makes the logger
// reachable from the Gin context and the request context.
func attachLogger(c *gin.Context, ctx zerolog.Context) *zerolog.Logger {
	// Carry the request context so hooks can read the active span.
	ctx = ctx.Ctx(c.Request.Context())
	if rid := RequestIDFrom(c); rid != "" {
		ctx = ctx.Str("request_id", rid)
	}
	if tenant := requestTenant(c); tenant != "" {
		ctx = ctx.Str("tenant_id", tenant)
	}
	l := ctx.Logger()
	c.Set("logger", &l)
	c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
	return &l
}

// requestTenant reads the tenant from the route or the admin header.
func requestTenant(c *gin.Context) string {
	if t := c.Param("tenant"); t != "" {
		return t
	}
	return strings.TrimSpace(c.GetHeader(TenantHeader))
}

// MarkWebhook flags the request so Recovery acknowledges with 200 instead
// of a 500; chat platforms retry non-2xx deliveries.
func MarkWebhook() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(webhookAckKey, true)
		c.Next()
	}
}

// Recovery intercepts panics, logs the stack and writes an error response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := RequestIDFrom(c)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			if c.GetBool(webhookAckKey) {
				c.AbortWithStatusJSON(http.StatusOK, gin.H{"ok": true})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// none was attached.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate cuts s to max bytes and appends an ellipsis; max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
