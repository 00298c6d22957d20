// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by all admin endpoints. The
// webhook route never uses them: it always answers 200 {"ok": true}.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "1f0c2a9b",
//	  "code": "tenant_not_found",
//	  "message": "tenant not found"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bizbot-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by admin endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"1f0c2a9b"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
}

// fail aborts the request with the error envelope. Server errors are logged
// at error level, client errors at debug.
func fail(c *gin.Context, status int, code, msg string) {
	lg := middleware.LoggerFrom(c)
	ev := lg.Debug()
	if status >= http.StatusInternalServerError {
		ev = lg.Error()
	}
	ev.Int("status", status).Str("code", code).Str("message", msg).Msg("api error")

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail() for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// ack is the platform acknowledgment written by webhook routes.
func ack(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
