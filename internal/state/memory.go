// Package state owns the per-user conversational state of the pipeline:
// conversation memory, the spam tracker, and the unknown-intent streak
// tracker. ConversationState is built once at startup and injected into the
// brain; nothing in this package is a package-level global.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
)

// ErrEmptyKey is returned for operations on an empty state key.
var ErrEmptyKey = errors.New("state: empty key")

// Memory is the short-term context kept for one user.
type Memory struct {
	LastIntent         domain.Intent `json:"last_intent,omitempty"`
	MessageCount       int           `json:"message_count"`
	UnknownIntentCount int           `json:"unknown_intent_count"`
	UpdatedAt          time.Time     `json:"updated_at,omitempty"`
}

// Record returns m after one processed message with the given intent.
// MessageCount only grows; UnknownIntentCount counts consecutive unknowns.
func (m Memory) Record(intent domain.Intent, now time.Time) Memory {
	m.LastIntent = intent
	m.MessageCount++
	if intent == domain.IntentUnknown {
		m.UnknownIntentCount++
	} else {
		m.UnknownIntentCount = 0
	}
	m.UpdatedAt = now.UTC()
	return m
}

// MemoryStore keeps Memory per key. Get on an unknown key returns the zero
// Memory and no error.
type MemoryStore interface {
	Get(ctx context.Context, key string) (Memory, error)
	Update(ctx context.Context, key string, intent domain.Intent) (Memory, error)
	Clear(ctx context.Context, key string) error
}

// InMemoryStore is a process-local MemoryStore with TTL and LRU bounds.
type InMemoryStore struct {
	m   *lruMap[Memory]
	now func() time.Time
}

// NewInMemoryStore returns a store evicting entries not updated for ttl and
// keeping at most maxEntries (0 = unbounded).
func NewInMemoryStore(ttl time.Duration, maxEntries int) *InMemoryStore {
	return &InMemoryStore{m: newLRUMap[Memory](ttl, maxEntries), now: time.Now}
}

func (s *InMemoryStore) Get(_ context.Context, key string) (Memory, error) {
	if key == "" {
		return Memory{}, ErrEmptyKey
	}
	mem, _ := s.m.get(key)
	return mem, nil
}

func (s *InMemoryStore) Update(_ context.Context, key string, intent domain.Intent) (Memory, error) {
	if key == "" {
		return Memory{}, ErrEmptyKey
	}
	now := s.now()
	return s.m.update(key, func(cur Memory, _ bool) Memory {
		return cur.Record(intent, now)
	}), nil
}

func (s *InMemoryStore) Clear(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.m.delete(key)
	return nil
}

// All returns a copy of every live memory entry.
func (s *InMemoryStore) All() map[string]Memory { return s.m.snapshot() }

// Len returns the number of tracked keys, including expired ones not yet dropped.
func (s *InMemoryStore) Len() int { return s.m.len() }

// Sweep returns how many entries expired or overflowed since the last call.
func (s *InMemoryStore) Sweep() int { return s.m.drainEvicted() }
