// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for tenants and
// their channel credentials.
//
// Error semantics follow the rest of the package: a missing row yields
// ErrNotFound, other failures propagate the raw gorm error.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// EnsureTenant creates the tenant if it does not exist. An existing tenant
// keeps its name unless it was blank.
func EnsureTenant(ctx context.Context, db *gorm.DB, id, name string) (*domain.Tenant, error) {
	now := time.Now().UTC()
	t := &domain.Tenant{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(t).Error; err != nil {
		return nil, err
	}
	var out domain.Tenant
	if err := db.WithContext(ctx).Where("id = ?", id).First(&out).Error; err != nil {
		return nil, err
	}
	if out.Name == "" && name != "" {
		if err := db.WithContext(ctx).Model(&domain.Tenant{}).Where("id = ?", id).Update("name", name).Error; err != nil {
			return nil, err
		}
		out.Name = name
	}
	return &out, nil
}

// GetTenant fetches a tenant by id.
func GetTenant(ctx context.Context, db *gorm.DB, id string) (*domain.Tenant, error) {
	var t domain.Tenant
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// UpsertCredential stores c keyed by (tenant, channel, name), creating the
// tenant when needed. An existing row, including a soft-deleted one, is
// overwritten and reactivated.
func UpsertCredential(ctx context.Context, db *gorm.DB, c *domain.ChannelCredential) (*domain.ChannelCredential, error) {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = "default"
	}
	var out domain.ChannelCredential
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := EnsureTenant(ctx, tx, c.TenantID, ""); err != nil {
			return err
		}
		now := time.Now().UTC()
		var existing domain.ChannelCredential
		err := tx.Unscoped().
			Where("tenant_id = ? AND channel = ? AND name = ?", c.TenantID, c.Channel, c.Name).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			out = *c
			out.ID = uuid.NewString()
			out.IsActive = true
			out.CreatedAt = now
			out.UpdatedAt = now
			return tx.Omit(clause.Associations).Create(&out).Error
		case err != nil:
			return err
		}
		if err := tx.Unscoped().Model(&existing).Updates(map[string]any{
			"bot_token":      c.BotToken,
			"webhook_secret": c.WebhookSecret,
			"is_active":      true,
			"deleted_at":     nil,
			"updated_at":     now,
		}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", existing.ID).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListActiveCredentials returns active credentials for channel, oldest first.
// This is the probing order of the dispatcher.
func ListActiveCredentials(ctx context.Context, db *gorm.DB, channel domain.Channel) ([]domain.ChannelCredential, error) {
	var out []domain.ChannelCredential
	err := db.WithContext(ctx).
		Where("channel = ? AND is_active = ?", channel, true).
		Order("created_at asc").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// ListTenantCredentials returns the active credentials of one tenant for
// channel, oldest first.
func ListTenantCredentials(ctx context.Context, db *gorm.DB, tenantID string, channel domain.Channel) ([]domain.ChannelCredential, error) {
	var out []domain.ChannelCredential
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND channel = ? AND is_active = ?", tenantID, channel, true).
		Order("created_at asc").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// FindCredentialBySecret returns the active credential whose webhook secret
// equals secret. A blank secret never matches.
func FindCredentialBySecret(ctx context.Context, db *gorm.DB, channel domain.Channel, secret string) (*domain.ChannelCredential, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNotFound
	}
	var c domain.ChannelCredential
	err := db.WithContext(ctx).
		Where("channel = ? AND webhook_secret = ? AND is_active = ?", channel, secret, true).
		Order("created_at asc").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeactivateCredential marks the named credential inactive. It returns
// ErrNotFound when no row matched.
func DeactivateCredential(ctx context.Context, db *gorm.DB, tenantID string, channel domain.Channel, name string) error {
	res := db.WithContext(ctx).
		Model(&domain.ChannelCredential{}).
		Where("tenant_id = ? AND channel = ? AND name = ?", tenantID, channel, name).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
