package state

import (
	"context"
	"time"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
)

// Options configures a ConversationState.
type Options struct {
	// Memory overrides the memory store; nil means an InMemoryStore built from TTL and MaxEntries.
	Memory     MemoryStore
	TTL        time.Duration
	MaxEntries int
	Spam       SpamPolicy
	// Now is the clock used for spam windows and memory timestamps. Entry
	// expiry runs on wall time. Defaults to time.Now.
	Now func() time.Time
}

// SweepStats reports how many keys each map evicted since the previous sweep.
type SweepStats struct {
	Memory  int
	Spam    int
	Unknown int
}

// ConversationState bundles every piece of per-user state used by the brain.
type ConversationState struct {
	memory  MemoryStore
	spam    *SpamTracker
	unknown *UnknownTracker
	now     func() time.Time
}

// New builds a ConversationState.
func New(opts Options) *ConversationState {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	mem := opts.Memory
	if mem == nil {
		ims := NewInMemoryStore(opts.TTL, opts.MaxEntries)
		ims.now = now
		mem = ims
	}
	return &ConversationState{
		memory:  mem,
		spam:    NewSpamTracker(opts.Spam, opts.MaxEntries),
		unknown: NewUnknownTracker(opts.TTL, opts.MaxEntries),
		now:     now,
	}
}

// Now returns the state clock.
func (s *ConversationState) Now() time.Time { return s.now() }

// Get returns the memory for key.
func (s *ConversationState) Get(ctx context.Context, key string) (Memory, error) {
	return s.memory.Get(ctx, key)
}

// Update records one processed message with intent for key.
func (s *ConversationState) Update(ctx context.Context, key string, intent domain.Intent) (Memory, error) {
	return s.memory.Update(ctx, key, intent)
}

// Clear resets memory and both trackers for key.
func (s *ConversationState) Clear(ctx context.Context, key string) error {
	s.spam.Reset(key)
	s.unknown.Reset(key)
	return s.memory.Clear(ctx, key)
}

// CheckSpam runs the spam tracker for key at the state clock.
func (s *ConversationState) CheckSpam(key string) (bool, string) {
	return s.spam.Check(key, s.now())
}

// TrackUnknown updates the unknown-intent streak and returns it.
func (s *ConversationState) TrackUnknown(key string, intent domain.Intent) int {
	return s.unknown.Track(key, intent)
}

// UnknownStreak returns the current unknown-intent streak for key.
func (s *ConversationState) UnknownStreak(key string) int {
	return s.unknown.Count(key)
}

// Sweep collects the eviction counts of every process-local map since the
// previous call. Redis-backed memory expires on its own and is skipped.
func (s *ConversationState) Sweep() SweepStats {
	st := SweepStats{
		Spam:    s.spam.Sweep(),
		Unknown: s.unknown.Sweep(),
	}
	if ims, ok := s.memory.(*InMemoryStore); ok {
		st.Memory = ims.Sweep()
	}
	return st
}
