// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model: the per-message record written after dispatch.
//
// Functions:
//
//   - CreateConversation(ctx, db, c) -> error
//     Inserts c, assigning a UUID primary key and UTC timestamps when unset.
//
//   - CountConversations(ctx, db, tenantID, userID) -> (int64, error)
//
//   - ListConversationsPage(ctx, db, tenantID, userID, offset, limit) -> []domain.Conversation, error
//     Newest first. Use CountConversations for pagination metadata.
//
// An empty tenantID matches conversations recorded without a tenant; an
// empty userID matches every user of the tenant.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
)

// CreateConversation inserts a conversation record.
func CreateConversation(ctx context.Context, db *gorm.DB, c *domain.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.ReceivedAt.IsZero() {
		c.ReceivedAt = now
	}
	if c.Intent == "" {
		c.Intent = domain.IntentUnknown
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return db.WithContext(ctx).Create(c).Error
}

func conversationScope(db *gorm.DB, tenantID, userID string) *gorm.DB {
	q := db.Model(&domain.Conversation{}).Where("tenant_id = ?", tenantID)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	return q
}

// CountConversations returns how many records exist for the tenant, optionally
// narrowed to one user.
func CountConversations(ctx context.Context, db *gorm.DB, tenantID, userID string) (int64, error) {
	var total int64
	err := conversationScope(db.WithContext(ctx), tenantID, userID).Count(&total).Error
	return total, err
}

// ListConversationsPage returns a page of records for the user of a tenant,
// most recent first.
func ListConversationsPage(ctx context.Context, db *gorm.DB, tenantID, userID string, offset, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := conversationScope(db.WithContext(ctx), tenantID, userID).
		Order("created_at desc").
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
