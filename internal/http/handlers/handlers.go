// Package handlers exposes the HTTP endpoints of the bot backend:
//   - POST   /telegram/webhook[/:tenant]                     (platform webhook)
//   - POST   /telegram/test-send                             (diagnostic send)
//   - GET    /api/v1/conversations                           (history, ETag)
//   - GET    /api/v1/memory/:user_id, DELETE same            (memory admin)
//   - POST   /api/v1/integrations/telegram                   (register bot)
//   - GET    /api/v1/integrations/telegram/:tenant/status    (credential status)
//   - GET    /health
//
// Handlers are transport-thin: they validate input, call services and map
// results to HTTP responses.
package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
	"github.com/tbourn/go-bizbot-backend/internal/http/middleware"
	"github.com/tbourn/go-bizbot-backend/internal/knowledge"
	"github.com/tbourn/go-bizbot-backend/internal/services"
)

// WebhookService runs inbound updates through the pipeline.
type WebhookService interface {
	Handle(ctx context.Context, route services.WebhookRoute, body []byte) services.WebhookOutcome
	TestSend(ctx context.Context, route services.WebhookRoute, chatID int64, text string) (services.TestSendResult, error)
}

// ConversationService lists persisted exchanges.
type ConversationService interface {
	ListPage(ctx context.Context, tenantID, userID string, page, pageSize int) ([]domain.Conversation, int64, error)
	Stats(ctx context.Context, tenantID, userID string) (int64, *time.Time, error)
}

// MemoryService reads and clears per-user conversation memory.
type MemoryService interface {
	Get(ctx context.Context, tenantID, userID string) (*services.MemorySnapshot, error)
	Clear(ctx context.Context, tenantID, userID string) error
}

// CredentialService manages bot credentials.
type CredentialService interface {
	Register(ctx context.Context, in services.RegisterCredentialInput) (*services.Registration, error)
	Status(ctx context.Context, tenantID string) (*services.CredentialStatus, error)
	Deactivate(ctx context.Context, tenantID, name string) error
}

// KnowledgeStats reports the loaded knowledge base.
type KnowledgeStats interface {
	Count() int
	Stats() knowledge.LoadStats
}

// Deps are the services behind the handlers. Ping may be nil.
type Deps struct {
	Webhook       WebhookService
	Conversations ConversationService
	Memory        MemoryService
	Credentials   CredentialService
	Knowledge     KnowledgeStats
	Ping          func(ctx context.Context) error
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	webhook WebhookService
	conv    ConversationService
	mem     MemoryService
	creds   CredentialService
	kb      KnowledgeStats
	ping    func(ctx context.Context) error
}

// New constructs Handlers bound to d.
func New(d Deps) *Handlers {
	return &Handlers{
		webhook: d.Webhook,
		conv:    d.Conversations,
		mem:     d.Memory,
		creds:   d.Credentials,
		kb:      d.Knowledge,
		ping:    d.Ping,
	}
}

// tenantID reads the tenant of an admin request from X-Tenant-ID.
func tenantID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(middleware.TenantHeader))
}
