package services

import (
	"context"
	"strings"
	"time"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
	"github.com/tbourn/go-bizbot-backend/internal/state"
)

// MemoryState is the slice of the conversation state the admin API touches.
type MemoryState interface {
	Get(ctx context.Context, key string) (state.Memory, error)
	Clear(ctx context.Context, key string) error
	UnknownStreak(key string) int
}

// MemorySnapshot is the admin view of one user's conversation memory.
type MemorySnapshot struct {
	TenantID           string        `json:"tenant_id,omitempty"`
	UserID             string        `json:"user_id"`
	LastIntent         domain.Intent `json:"last_intent,omitempty"`
	MessageCount       int           `json:"message_count"`
	UnknownIntentCount int           `json:"unknown_intent_count"`
	UnknownStreak      int           `json:"unknown_streak"`
	UpdatedAt          *time.Time    `json:"updated_at,omitempty"`
}

// MemoryService reads and clears per-user conversation state.
type MemoryService struct {
	State MemoryState
}

// Get returns the memory of userID within tenantID (empty tenant means unscoped).
func (s *MemoryService) Get(ctx context.Context, tenantID, userID string) (*MemorySnapshot, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	key := domain.StateKey(tenantID, userID)
	m, err := s.State.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	out := &MemorySnapshot{
		TenantID:           strings.TrimSpace(tenantID),
		UserID:             userID,
		LastIntent:         m.LastIntent,
		MessageCount:       m.MessageCount,
		UnknownIntentCount: m.UnknownIntentCount,
		UnknownStreak:      s.State.UnknownStreak(key),
	}
	if !m.UpdatedAt.IsZero() {
		at := m.UpdatedAt
		out.UpdatedAt = &at
	}
	return out, nil
}

// Clear forgets memory, spam history and unknown streak of userID.
func (s *MemoryService) Clear(ctx context.Context, tenantID, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}
	return s.State.Clear(ctx, domain.StateKey(tenantID, userID))
}
