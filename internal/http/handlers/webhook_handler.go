package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bizbot-backend/internal/http/middleware"
	"github.com/tbourn/go-bizbot-backend/internal/services"
)

// TestSendResponse is the body of the diagnostic send endpoint.
type TestSendResponse struct {
	OK         bool                 `json:"ok"`
	TenantID   string               `json:"tenant_id,omitempty"`
	Mode       services.ResolveMode `json:"mode,omitempty"`
	Credential string               `json:"credential,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// TelegramWebhook godoc
// @ID          telegramWebhook
// @Summary     Receive a Telegram update
// @Description Runs the update through the conversation pipeline. Always answers 200 {"ok": true} so the platform never retries.
// @Tags        Telegram
// @Accept      json
// @Produce     json
//
// @Param       X-Telegram-Bot-Api-Secret-Token  header  string  false  "Secret registered with setWebhook"
// @Param       tenant  path  string  false  "Tenant id (tenant-scoped route only)"
//
// @Success     200  {object}  map[string]bool
// @Router      /telegram/webhook [post]
// @Router      /telegram/webhook/{tenant} [post]
func (h *Handlers) TelegramWebhook(c *gin.Context) {
	lg := middleware.LoggerFrom(c)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		lg.Warn().Err(err).Msg("webhook body unreadable, update dropped")
		ack(c)
		return
	}

	secret, _ := middleware.GetWebhookSecret(c)
	out := h.webhook.Handle(c.Request.Context(), services.WebhookRoute{
		TenantID:    strings.TrimSpace(c.Param("tenant")),
		SecretToken: secret,
	}, body)

	lg.Info().
		Str("outcome", out.Status).
		Int64("update_id", out.UpdateID).
		Str("tenant_id", out.TenantID).
		Str("mode", string(out.Mode)).
		Str("intent", string(out.Intent)).
		Str("source", string(out.Source)).
		Bool("delivered", out.Delivered).
		Msg("webhook handled")
	ack(c)
}

// TestSend godoc
// @ID          telegramTestSend
// @Summary     Send a diagnostic message
// @Description Sends message to chat_id through the tenant's bot credential, bypassing the conversation pipeline.
// @Tags        Telegram
// @Produce     json
//
// @Param       chat_id  query  int     true   "Target chat id"
// @Param       message  query  string  false  "Text to send"  default(Test message)
// @Param       tenant   query  string  false  "Tenant id (falls back to X-Tenant-ID)"
//
// @Success     200  {object}  handlers.TestSendResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /telegram/test-send [post]
func (h *Handlers) TestSend(c *gin.Context) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(c.Query("chat_id")), 10, 64)
	if err != nil || chatID == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat_id must be a non-zero integer")
		return
	}
	text := strings.TrimSpace(c.Query("message"))
	if text == "" {
		text = "Test message"
	}
	tenant := strings.TrimSpace(c.Query("tenant"))
	if tenant == "" {
		tenant = tenantID(c)
	}

	res, err := h.webhook.TestSend(c.Request.Context(), services.WebhookRoute{TenantID: tenant}, chatID, text)
	resp := TestSendResponse{
		OK:         err == nil,
		TenantID:   res.TenantID,
		Mode:       res.Mode,
		Credential: res.Credential,
	}
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Int64("chat_id", chatID).Msg("test send failed")
		resp.Error = err.Error()
	}
	ok(c, http.StatusOK, resp)
}
