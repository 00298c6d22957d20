package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
)

// Store exposes the package functions as methods so services can depend on
// small repository interfaces and tests can substitute fakes.
type Store struct{}

func (Store) CreateConversation(ctx context.Context, db *gorm.DB, c *domain.Conversation) error {
	return CreateConversation(ctx, db, c)
}

func (Store) CountConversations(ctx context.Context, db *gorm.DB, tenantID, userID string) (int64, error) {
	return CountConversations(ctx, db, tenantID, userID)
}

func (Store) ListConversationsPage(ctx context.Context, db *gorm.DB, tenantID, userID string, offset, limit int) ([]domain.Conversation, error) {
	return ListConversationsPage(ctx, db, tenantID, userID, offset, limit)
}

func (Store) ConversationsStats(ctx context.Context, db *gorm.DB, tenantID, userID string) (int64, *time.Time, error) {
	return ConversationsStats(ctx, db, tenantID, userID)
}

func (Store) EnsureTenant(ctx context.Context, db *gorm.DB, id, name string) (*domain.Tenant, error) {
	return EnsureTenant(ctx, db, id, name)
}

func (Store) GetTenant(ctx context.Context, db *gorm.DB, id string) (*domain.Tenant, error) {
	return GetTenant(ctx, db, id)
}

func (Store) UpsertCredential(ctx context.Context, db *gorm.DB, c *domain.ChannelCredential) (*domain.ChannelCredential, error) {
	return UpsertCredential(ctx, db, c)
}

func (Store) ListActiveCredentials(ctx context.Context, db *gorm.DB, channel domain.Channel) ([]domain.ChannelCredential, error) {
	return ListActiveCredentials(ctx, db, channel)
}

func (Store) ListTenantCredentials(ctx context.Context, db *gorm.DB, tenantID string, channel domain.Channel) ([]domain.ChannelCredential, error) {
	return ListTenantCredentials(ctx, db, tenantID, channel)
}

func (Store) FindCredentialBySecret(ctx context.Context, db *gorm.DB, channel domain.Channel, secret string) (*domain.ChannelCredential, error) {
	return FindCredentialBySecret(ctx, db, channel, secret)
}

func (Store) DeactivateCredential(ctx context.Context, db *gorm.DB, tenantID string, channel domain.Channel, name string) error {
	return DeactivateCredential(ctx, db, tenantID, channel, name)
}

func (Store) ClaimUpdate(ctx context.Context, db *gorm.DB, scope string, updateID int64, ttl time.Duration, now time.Time) (*domain.ProcessedUpdate, error) {
	return ClaimUpdate(ctx, db, scope, updateID, ttl, now)
}

func (Store) PurgeExpiredUpdates(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	return PurgeExpiredUpdates(ctx, db, now)
}
