// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the secret token Telegram attaches to webhook
// deliveries and stashes it for the webhook handler. Telegram accepts
// 1-256 characters from A-Z, a-z, 0-9, "_" and "-". A malformed header can
// never match a registered secret, so the update is acknowledged with
// 200 {"ok": true} and dropped without reaching the pipeline.
package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HeaderWebhookSecret carries the secret_token registered with setWebhook.
const HeaderWebhookSecret = "X-Telegram-Bot-Api-Secret-Token"

const ctxKeyWebhookSecret = "webhook.secret"

var webhookSecretRejects = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "bizbot_webhook_secret_rejects_total",
	Help: "Webhook deliveries dropped for a malformed secret header.",
})

func init() {
	prometheus.MustRegister(webhookSecretRejects)
}

// WebhookSecretOptions configures WebhookSecret.
type WebhookSecretOptions struct {
	// MaxLen caps the header length. Values <= 0 default to 256.
	MaxLen int
	// Pattern restricts allowed characters. Nil means ^[A-Za-z0-9_-]+$.
	Pattern *regexp.Regexp
}

// GetWebhookSecret returns the validated secret header, if any.
func GetWebhookSecret(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyWebhookSecret)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// WebhookSecret validates the secret header when present and stashes it.
// An absent header passes through; tenant resolution decides whether the
// tenant requires one.
func WebhookSecret(opts WebhookSecretOptions) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 256
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	}

	return func(c *gin.Context) {
		secret := strings.TrimSpace(c.GetHeader(HeaderWebhookSecret))
		if secret == "" {
			c.Next()
			return
		}
		if len(secret) > maxLen || !pat.MatchString(secret) {
			webhookSecretRejects.Inc()
			LoggerFrom(c).Warn().Int("len", len(secret)).Msg("malformed webhook secret, update dropped")
			c.AbortWithStatusJSON(http.StatusOK, gin.H{"ok": true})
			return
		}
		c.Set(ctxKeyWebhookSecret, secret)
		c.Next()
	}
}
