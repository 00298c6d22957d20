package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedactingLogger_InfoAndRedactions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Header(requestIDHeader, "rid-resp")
		c.Next()
	})
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.GET("/users/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	q := "email=a.b@example.com&phone=+1-555-123-4567&id=123e4567-e89b-12d3-a456-426614174000&token=abc"
	req := httptest.NewRequest(http.MethodGet, "/users/123?"+q, nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Cookie", "sid=topsecret")
	req.Header.Set("X-Api-Key", "shhh")
	req.Header.Set(HeaderWebhookSecret, "hook-secret")
	req.Header.Set("X-Custom", "email a@b.com id=123e4567-e89b-12d3-a456-426614174000 phone 555-123-4567")
	req.Header.Set(requestIDHeader, "rid-req")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	logs := buf.String()
	for _, want := range []string{
		`"level":"info"`,
		`"path":"/users/:id"`,
		`"request_id":"rid-resp"`,
		`[REDACTED:email]`,
		`[REDACTED:phone]`,
		`[REDACTED:id]`,
		`token=[REDACTED]`,
		`"Authorization":"[REDACTED]"`,
		`"Cookie":"[REDACTED]"`,
		`"X-Api-Key":"[REDACTED]"`,
		`"X-Telegram-Bot-Api-Secret-Token":"[REDACTED]"`,
		`"X-Custom":"email [REDACTED:email] id=[REDACTED:id] phone [REDACTED:phone]"`,
	} {
		if !strings.Contains(logs, want) {
			t.Fatalf("expected %s in log, got: %s", want, logs)
		}
	}
	if strings.Contains(logs, "hook-secret") || strings.Contains(logs, "token=abc") {
		t.Fatalf("secret leaked: %s", logs)
	}
}

func TestRedactingLogger_WarnAndErrorLevels_RequestIDFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/warn", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/error", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	reqWarn := httptest.NewRequest(http.MethodGet, "/warn", nil)
	reqWarn.Header.Set(requestIDHeader, "rid-warn")
	r.ServeHTTP(httptest.NewRecorder(), reqWarn)

	reqErr := httptest.NewRequest(http.MethodGet, "/error", nil)
	reqErr.Header.Set(requestIDHeader, "rid-err")
	r.ServeHTTP(httptest.NewRecorder(), reqErr)

	logs := buf.String()
	if !strings.Contains(logs, `"level":"warn"`) || !strings.Contains(logs, `"request_id":"rid-warn"`) {
		t.Fatalf("warn log not found or missing request_id fallback: %s", logs)
	}
	if !strings.Contains(logs, `"level":"error"`) || !strings.Contains(logs, `"request_id":"rid-err"`) {
		t.Fatalf("error log not found or missing request_id fallback: %s", logs)
	}
}

func TestRedact_BotToken(t *testing.T) {
	in := "url=/bot123456789:AAH4x_secretPart-abcdefghijk/sendMessage"
	got := redact(in)
	if strings.Contains(got, "AAH4x") || !strings.Contains(got, "[REDACTED:token]") {
		t.Fatalf("bot token not redacted: %q", got)
	}
}

func TestRedactQuery_MaskedParamsAndUnparsable(t *testing.T) {
	masked := lowerSet([]string{"secret"}, []string{"X-Extra"})
	if got := redactQuery("Secret=abc&page=2", masked); !strings.Contains(got, "Secret=[REDACTED]") || !strings.Contains(got, "page=2") {
		t.Fatalf("unexpected redacted query %q", got)
	}
	if got := redactQuery("x-extra=1", masked); got != "x-extra=[REDACTED]" {
		t.Fatalf("extra param not masked: %q", got)
	}
	if got := redactQuery("bad=%zz&mail=a@b.com", masked); !strings.Contains(got, "[REDACTED:email]") {
		t.Fatalf("unparsable query should still be pattern-redacted: %q", got)
	}
	if redactQuery("", masked) != "" {
		t.Fatalf("empty query must stay empty")
	}
}
