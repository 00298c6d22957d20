package domain

import "time"

// ProcessedUpdate records that a platform update was claimed for processing,
// keyed by (scope, update_id). Scope is the tenant id when the webhook route
// resolved one, or the channel name otherwise. Platforms redeliver updates
// they consider unacknowledged; a second claim on the same key is rejected.
type ProcessedUpdate struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Scope     string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_scope_update,priority:1"`
	UpdateID  int64     `gorm:"not null;uniqueIndex:ux_scope_update,priority:2"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedUpdate) TableName() string { return "processed_updates" }
