// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// ConversationsStats returns the number of records for the user of a tenant
// and the greatest UpdatedAt among them. When there are no rows, count is 0
// and maxUpdatedAt is nil.
func ConversationsStats(ctx context.Context, db *gorm.DB, tenantID, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := conversationScope(db.WithContext(ctx), tenantID, userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = conversationScope(db.WithContext(ctx), tenantID, userID).
		Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
