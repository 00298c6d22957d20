// Package services – ConversationService
//
// ConversationService records every processed exchange and serves the
// paginated history endpoint. Recording is called by the webhook flow after
// dispatch; a failure there is logged by the caller and never surfaces to
// the platform.
package services

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
	"github.com/tbourn/go-bizbot-backend/internal/utils"
)

// ConversationRepo defines the repository contract required by ConversationService.
type ConversationRepo interface {
	CreateConversation(ctx context.Context, db *gorm.DB, c *domain.Conversation) error
	CountConversations(ctx context.Context, db *gorm.DB, tenantID, userID string) (int64, error)
	ListConversationsPage(ctx context.Context, db *gorm.DB, tenantID, userID string, offset, limit int) ([]domain.Conversation, error)
	ConversationsStats(ctx context.Context, db *gorm.DB, tenantID, userID string) (int64, *time.Time, error)
}

// ConversationService persists and lists conversation records.
type ConversationService struct {
	DB   *gorm.DB
	Repo ConversationRepo

	// MaxPageSize caps page sizes; <= 0 means 100.
	MaxPageSize int
}

// NewConversationService constructs a ConversationService.
func NewConversationService(db *gorm.DB, r ConversationRepo) *ConversationService {
	return &ConversationService{DB: db, Repo: r, MaxPageSize: 100}
}

// Record persists one exchange.
func (s *ConversationService) Record(ctx context.Context, c *domain.Conversation) error {
	ctx, span := otel.Tracer("services/ConversationService").Start(ctx, "Record",
		trace.WithAttributes(
			attribute.String("tenant.id", c.TenantID),
			attribute.Bool("delivered", c.Delivered),
		))
	defer span.End()
	if err := s.Repo.CreateConversation(ctx, s.DB, c); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// ListPage returns a page of records for tenantID, optionally narrowed to
// userID, newest first, together with the total count.
func (s *ConversationService) ListPage(ctx context.Context, tenantID, userID string, page, pageSize int) ([]domain.Conversation, int64, error) {
	ctx, span := otel.Tracer("services/ConversationService").Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		))
	defer span.End()

	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, 0, ErrTenantRequired
	}
	page, pageSize = s.clampPage(page, pageSize)

	total, err := s.Repo.CountConversations(ctx, s.DB, tenantID, strings.TrimSpace(userID))
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Conversation{}, 0, nil
	}
	items, err := s.Repo.ListConversationsPage(ctx, s.DB, tenantID, strings.TrimSpace(userID), utils.PageOffset(page, pageSize), pageSize)
	return items, total, err
}

// Stats returns the count and latest update time used for ETags.
func (s *ConversationService) Stats(ctx context.Context, tenantID, userID string) (int64, *time.Time, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return 0, nil, ErrTenantRequired
	}
	return s.Repo.ConversationsStats(ctx, s.DB, tenantID, strings.TrimSpace(userID))
}

func (s *ConversationService) clampPage(page, pageSize int) (int, int) {
	maxSize := s.MaxPageSize
	if maxSize <= 0 {
		maxSize = 100
	}
	return utils.ClampPage(page, pageSize, 20, maxSize)
}
