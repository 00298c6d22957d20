package domain

import (
	"strings"
	"time"
)

// Channel identifies the messaging platform a message arrived on.
type Channel string

const (
	ChannelTelegram  Channel = "telegram"
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelInstagram Channel = "instagram"
)

// Valid reports whether c is one of the supported channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelTelegram, ChannelWhatsApp, ChannelInstagram:
		return true
	}
	return false
}

// Intent is the coarse purpose of a user message.
type Intent string

// The intent set is closed. Detection order is human, help, pricing, greeting.
const (
	IntentGreeting Intent = "greeting"
	IntentHelp     Intent = "help"
	IntentPricing  Intent = "pricing"
	IntentHuman    Intent = "human"
	IntentUnknown  Intent = "unknown"
)

// Metadata keys populated by channel normalizers.
const (
	MetaUpdateID         = "update_id"
	MetaChatID           = "chat_id"
	MetaMessageID        = "message_id"
	MetaChatType         = "chat_type"
	MetaReplyToMessageID = "reply_to_message_id"
	MetaForwardFromID    = "forward_from_id"
	MetaTenantID         = "tenant_id"
)

// NormalizedMessage is the platform-agnostic envelope produced once per
// inbound webhook call. It is never mutated after normalization.
type NormalizedMessage struct {
	Channel   Channel
	UserID    string
	Text      string
	Timestamp time.Time
	Language  string
	Metadata  map[string]string
}

// Meta returns the metadata value for key, or "" when absent.
func (m NormalizedMessage) Meta(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// ChatID returns the routing chat identifier.
func (m NormalizedMessage) ChatID() string { return m.Meta(MetaChatID) }

// TenantID returns the tenant resolved for the inbound route, if any.
func (m NormalizedMessage) TenantID() string { return m.Meta(MetaTenantID) }

// StateKey is the key used for per-user conversational state. Users are
// scoped by tenant when the tenant is known.
func (m NormalizedMessage) StateKey() string { return StateKey(m.TenantID(), m.UserID) }

// StateKey builds the conversational state key of userID within tenantID.
func StateKey(tenantID, userID string) string {
	if t := strings.TrimSpace(tenantID); t != "" {
		return t + ":" + userID
	}
	return userID
}

// WithMeta returns a copy of m with key set to value.
func (m NormalizedMessage) WithMeta(key, value string) NormalizedMessage {
	md := make(map[string]string, len(m.Metadata)+1)
	for k, v := range m.Metadata {
		md[k] = v
	}
	md[key] = value
	m.Metadata = md
	return m
}
