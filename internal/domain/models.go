// Package domain defines the persistence models for tenants, channel
// credentials, and conversation history. These types are mapped with GORM and
// form the Business Data Store touched by the conversation pipeline.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Tenant is a business account owning channel credentials and conversation
// history.
type Tenant struct {
	ID        string         `json:"id"         gorm:"type:varchar(64);primaryKey"`
	Name      string         `json:"name"       gorm:"type:varchar(255);not null;default:''"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Tenant.
func (Tenant) TableName() string { return "tenants" }

// ChannelCredential is a bot credential for one channel of one tenant.
//
// Fields:
//   - TenantID + Channel + Name: unique per tenant (a tenant may run several bots).
//   - BotToken: the platform API token used by the Reply Dispatcher.
//   - WebhookSecret: optional per-credential secret echoed by the platform on
//     every webhook call; used for deterministic tenant resolution.
//   - IsActive: inactive credentials are never resolved.
type ChannelCredential struct {
	ID            string         `json:"id"             gorm:"type:char(36);primaryKey"`
	TenantID      string         `json:"tenant_id"      gorm:"type:varchar(64);not null;uniqueIndex:ux_cred_tenant_channel_name,priority:1"`
	Channel       Channel        `json:"channel"        gorm:"type:varchar(16);not null;uniqueIndex:ux_cred_tenant_channel_name,priority:2;index:idx_cred_channel_active,priority:1"`
	Name          string         `json:"name"           gorm:"type:varchar(128);not null;default:'default';uniqueIndex:ux_cred_tenant_channel_name,priority:3"`
	BotToken      string         `json:"-"              gorm:"type:text;not null"`
	WebhookSecret string         `json:"-"              gorm:"type:varchar(256);index"`
	IsActive      bool           `json:"is_active"      gorm:"not null;default:true;index:idx_cred_channel_active,priority:2"`
	CreatedAt     time.Time      `json:"created_at"     gorm:"index:idx_cred_channel_active,priority:3"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-"              gorm:"index"`

	Tenant Tenant `json:"-" gorm:"foreignKey:TenantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChannelCredential.
func (ChannelCredential) TableName() string { return "channel_credentials" }

// Conversation is one persisted exchange: the inbound user message and the
// reply the bot attempted to deliver. Delivered is false when dispatch failed;
// the row is still written for debuggability.
type Conversation struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	TenantID    string    `json:"tenant_id"    gorm:"type:varchar(64);not null;default:'';index:idx_conv_tenant_user,priority:1"`
	Channel     Channel   `json:"channel"      gorm:"type:varchar(16);not null"`
	UserID      string    `json:"user_id"      gorm:"type:varchar(64);not null;index:idx_conv_tenant_user,priority:2"`
	ChatID      string    `json:"chat_id"      gorm:"type:varchar(64);not null;default:''"`
	UserMessage string    `json:"user_message" gorm:"type:text;not null"`
	BotReply    string    `json:"bot_reply"    gorm:"type:text;not null"`
	Intent      Intent    `json:"intent"       gorm:"type:varchar(16);not null;default:'unknown'"`
	Delivered   bool      `json:"delivered"    gorm:"not null;default:false"`
	ReceivedAt  time.Time `json:"received_at"`
	CreatedAt   time.Time `json:"created_at"   gorm:"index:idx_conv_tenant_user,priority:3"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }
