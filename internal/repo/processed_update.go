// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the update-dedup ledger: a webhook
// claims (scope, update_id) before processing so platform redeliveries are
// acknowledged without producing a second reply.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
)

// ErrDuplicate indicates that a unique record already exists, e.g. an update
// that was already claimed.
var ErrDuplicate = errors.New("duplicate")

// ClaimUpdate records (scope, updateID) as processed until now+ttl. It
// returns ErrDuplicate when a live claim already exists. An expired claim
// for the same key is replaced.
func ClaimUpdate(ctx context.Context, db *gorm.DB, scope string, updateID int64, ttl time.Duration, now time.Time) (*domain.ProcessedUpdate, error) {
	now = now.UTC()
	rec := &domain.ProcessedUpdate{
		ID:        uuid.NewString(),
		Scope:     scope,
		UpdateID:  updateID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("scope = ? AND update_id = ? AND expires_at <= ?", scope, updateID, now).
			Delete(&domain.ProcessedUpdate{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredUpdates deletes claims that expired at or before now.
func PurgeExpiredUpdates(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&domain.ProcessedUpdate{})
	return res.RowsAffected, res.Error
}
