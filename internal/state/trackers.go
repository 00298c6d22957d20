package state

import (
	"fmt"
	"time"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
)

// SpamPolicy configures the spam tracker.
type SpamPolicy struct {
	Window      time.Duration // sliding window length
	MinGap      time.Duration // minimum spacing between accepted messages
	MaxMessages int           // messages within Window that count as spam, current one included
}

// DefaultSpamPolicy is 5 messages per 10 s with at least 2 s between messages.
var DefaultSpamPolicy = SpamPolicy{Window: 10 * time.Second, MinGap: 2 * time.Second, MaxMessages: 5}

// SpamTracker keeps a sliding window of accepted message times per key.
type SpamTracker struct {
	policy SpamPolicy
	m      *lruMap[[]time.Time]
}

// NewSpamTracker returns a tracker; entries disappear after a full window of
// inactivity and at most maxEntries keys are kept.
func NewSpamTracker(p SpamPolicy, maxEntries int) *SpamTracker {
	if p.Window <= 0 {
		p.Window = DefaultSpamPolicy.Window
	}
	if p.MaxMessages < 1 {
		p.MaxMessages = DefaultSpamPolicy.MaxMessages
	}
	if p.MinGap < 0 {
		p.MinGap = 0
	}
	return &SpamTracker{policy: p, m: newLRUMap[[]time.Time](p.Window, maxEntries)}
}

// Check reports whether a message from key at now is spam, with a reason.
// Accepted messages are recorded; rejected ones are not.
func (t *SpamTracker) Check(key string, now time.Time) (spam bool, reason string) {
	if key == "" {
		return false, ""
	}
	t.m.update(key, func(cur []time.Time, _ bool) []time.Time {
		kept := cur[:0:0]
		for _, ts := range cur {
			if now.Sub(ts) < t.policy.Window {
				kept = append(kept, ts)
			}
		}
		switch {
		case len(kept)+1 >= t.policy.MaxMessages:
			spam, reason = true, fmt.Sprintf("too many messages (%d) in %s", len(kept)+1, t.policy.Window)
		case len(kept) > 0 && now.Sub(kept[len(kept)-1]) < t.policy.MinGap:
			spam, reason = true, fmt.Sprintf("messages sent too rapidly (%s apart)", now.Sub(kept[len(kept)-1]))
		default:
			kept = append(kept, now)
		}
		return kept
	})
	return spam, reason
}

// Reset forgets key.
func (t *SpamTracker) Reset(key string) { t.m.delete(key) }

// Sweep returns how many idle keys were evicted since the last call.
func (t *SpamTracker) Sweep() int { return t.m.drainEvicted() }

// Len returns the number of tracked keys.
func (t *SpamTracker) Len() int { return t.m.len() }

// UnknownTracker counts consecutive unknown intents per key.
type UnknownTracker struct {
	m *lruMap[int]
}

// NewUnknownTracker returns a tracker with the given idle TTL and key cap.
func NewUnknownTracker(ttl time.Duration, maxEntries int) *UnknownTracker {
	return &UnknownTracker{m: newLRUMap[int](ttl, maxEntries)}
}

// Track records intent for key and returns the resulting streak.
func (t *UnknownTracker) Track(key string, intent domain.Intent) int {
	if key == "" {
		return 0
	}
	return t.m.update(key, func(cur int, _ bool) int {
		if intent == domain.IntentUnknown {
			return cur + 1
		}
		return 0
	})
}

// Count returns the current streak for key.
func (t *UnknownTracker) Count(key string) int {
	n, _ := t.m.get(key)
	return n
}

// Reset forgets key.
func (t *UnknownTracker) Reset(key string) { t.m.delete(key) }

// Sweep returns how many idle keys were evicted since the last call.
func (t *UnknownTracker) Sweep() int { return t.m.drainEvicted() }

// Len returns the number of tracked keys.
func (t *UnknownTracker) Len() int { return t.m.len() }
