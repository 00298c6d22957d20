// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger mounted by the
// router. It never logs bodies (Telegram updates carry user text) and scrubs
// request metadata before emitting:
//
//   - bot tokens, UUIDs, emails and phone numbers are pattern-redacted
//   - sensitive headers are masked: Authorization, Cookie, Set-Cookie and
//     the Telegram webhook secret header, plus RedactOptions.MaskHeaders
//   - query parameters named token, secret or bot_token are masked
//
// Like Logger, it attaches the request-scoped logger to the request context.
package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures additional scrub behavior for RedactingLogger.
type RedactOptions struct {
	// MaskHeaders lists extra header names (case-insensitive) to mask fully.
	MaskHeaders []string
	// MaskParams lists extra query parameter names to mask fully.
	MaskParams []string
}

var (
	botTokenRE = regexp.MustCompile(`\d{5,}:[A-Za-z0-9_-]{20,}`)
	uuidRE     = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE    = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so hex segments of UUIDs never match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// redact scrubs identifiers from s. Bot tokens go first since their numeric
// prefix would otherwise be eaten by the phone pattern; phone is the loosest.
func redact(s string) string {
	if s == "" {
		return s
	}
	s = botTokenRE.ReplaceAllString(s, "[REDACTED:token]")
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// redactQuery masks sensitive parameters and pattern-redacts the rest. An
// unparsable query is pattern-redacted as a whole.
func redactQuery(raw string, masked map[string]struct{}) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return redact(raw)
	}
	for k := range values {
		if _, ok := masked[strings.ToLower(k)]; ok {
			values[k] = []string{"[REDACTED]"}
		}
	}
	q, _ := url.QueryUnescape(values.Encode())
	return redact(q)
}

func lowerSet(base []string, extra []string) map[string]struct{} {
	out := make(map[string]struct{}, len(base)+len(extra))
	for _, group := range [][]string{base, extra} {
		for _, v := range group {
			if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
				out[v] = struct{}{}
			}
		}
	}
	return out
}

// RedactingLogger returns a Gin middleware that logs every request with
// sensitive values scrubbed, at info, warn for 4xx, or error for 5xx.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := lowerSet([]string{"Authorization", "Cookie", "Set-Cookie", HeaderWebhookSecret}, opts.MaskHeaders)
	maskParams := lowerSet([]string{"token", "secret", "bot_token"}, opts.MaskParams)

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := truncate(redactQuery(c.Request.URL.RawQuery, maskParams), maxQueryLogLength)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = redact(strings.Join(vv, ", "))
		}

		l := attachLogger(c, log.With())

		c.Next()

		status := c.Writer.Status()
		ev := l.Info()
		switch {
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		}

		// Without RequestID upstream the logger carries no id yet.
		if RequestIDFrom(c) == "" {
			reqID := c.Writer.Header().Get(requestIDHeader)
			if reqID == "" {
				reqID = c.GetHeader(requestIDHeader)
			}
			ev = ev.Str("request_id", reqID)
		}
		ev.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
