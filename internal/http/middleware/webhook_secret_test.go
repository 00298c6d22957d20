package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newSecretRouter(opts WebhookSecretOptions, seen *string, reached *bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WebhookSecret(opts))
	r.POST("/hook", func(c *gin.Context) {
		*reached = true
		*seen, _ = GetWebhookSecret(c)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestWebhookSecret(t *testing.T) {
	cases := []struct {
		name        string
		header      string
		wantReached bool
		wantSecret  string
	}{
		{"absent", "", true, ""},
		{"valid", "s3cr3t_TOKEN-1", true, "s3cr3t_TOKEN-1"},
		{"trimmed", "  abc  ", true, "abc"},
		{"bad chars", "abc$def", false, ""},
		{"too long", strings.Repeat("a", 257), false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			var reached bool
			r := newSecretRouter(WebhookSecretOptions{}, &seen, &reached)

			before := testutil.ToFloat64(webhookSecretRejects)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/hook", nil)
			if tc.header != "" {
				req.Header.Set(HeaderWebhookSecret, tc.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"ok":true}` {
				t.Fatalf("webhook must always be acknowledged, got %d %s", w.Code, w.Body.String())
			}
			if reached != tc.wantReached || seen != tc.wantSecret {
				t.Fatalf("reached=%v secret=%q, want %v %q", reached, seen, tc.wantReached, tc.wantSecret)
			}
			rejected := testutil.ToFloat64(webhookSecretRejects) - before
			if (rejected == 1) == tc.wantReached {
				t.Fatalf("unexpected reject count delta %v", rejected)
			}
		})
	}
}

func TestWebhookSecret_CustomMaxLen(t *testing.T) {
	var seen string
	var reached bool
	r := newSecretRouter(WebhookSecretOptions{MaxLen: 4}, &seen, &reached)
	req := httptest.NewRequest(http.MethodPost, "/hook", nil)
	req.Header.Set(HeaderWebhookSecret, "abcde")
	r.ServeHTTP(httptest.NewRecorder(), req)
	if reached {
		t.Fatalf("secret over MaxLen must be dropped")
	}
}
