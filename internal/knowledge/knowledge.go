// Package knowledge provides the FAQ lookup consulted before intent-based
// replies. A Base holds an immutable snapshot of entries loaded from a JSON
// array; reloads build a new snapshot and swap it in atomically, so lookups
// never block and never observe a half-loaded table.
//
// Matching order, first hit wins:
//  1. an entry keyword occurs in the input text
//  2. an entry question occurs in the input text
//  3. the input text occurs in an entry question
//
// All comparisons are case-insensitive. The library does not log; loaders
// report skipped entries through LoadStats.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
)

// ErrNoSource is returned by Reload when the Base has no file path.
var ErrNoSource = errors.New("knowledge: no source path configured")

// Entry is one element of the knowledge source file.
type Entry struct {
	Question string   `json:"question" validate:"notblank,max=1000"`
	Answer   string   `json:"answer"   validate:"notblank,max=4000"`
	Keywords []string `json:"keywords,omitempty" validate:"omitempty,max=64,dive,max=200"`
	Intent   string   `json:"intent,omitempty"   validate:"omitempty,max=32"`
	// IsActive defaults to true when omitted.
	IsActive *bool `json:"is_active,omitempty"`
}

func (e Entry) active() bool { return e.IsActive == nil || *e.IsActive }

// LoadStats summarizes a load.
type LoadStats struct {
	Loaded   int
	Skipped  int
	Inactive int
	LoadedAt time.Time
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	path       string
	maxEntries int
	validate   *validator.Validate
	now        func() time.Time
}

func defaultConfig() config {
	return config{now: time.Now}
}

// WithPath sets the file used by Reload.
func WithPath(path string) Option {
	return func(c *config) { c.path = strings.TrimSpace(path) }
}

// WithMaxEntries caps the number of active entries kept per load (0 = no cap).
func WithMaxEntries(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithValidator replaces the entry validator. It must have the "notblank"
// validation registered.
func WithValidator(v *validator.Validate) Option {
	return func(c *config) {
		if v != nil {
			c.validate = v
		}
	}
}

// NewValidator returns a validator with the rules used for entries.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// ----------------------------------------------------------------------------
// Implementation

type entry struct {
	question string // folded
	answer   string // trimmed, original case
	keywords []string
}

type snapshot struct {
	entries []entry
	stats   LoadStats
}

// Base is a concurrency-safe knowledge table.
type Base struct {
	cfg  config
	snap atomic.Pointer[snapshot]
	sf   singleflight.Group
}

// New returns an empty Base. FindAnswer on an empty Base always misses.
func New(opts ...Option) *Base {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.validate == nil {
		cfg.validate = NewValidator()
	}
	b := &Base{cfg: cfg}
	b.snap.Store(&snapshot{})
	return b
}

// NewFromFile returns a Base loaded from path. The path is remembered for Reload.
func NewFromFile(path string, opts ...Option) (*Base, LoadStats, error) {
	b := New(append(opts, WithPath(path))...)
	st, err := b.Reload(context.Background())
	return b, st, err
}

// Load replaces the whole table with the entries read from r. r must hold a
// JSON array; elements that fail to decode or validate are skipped. On error
// the previous table stays in place.
func (b *Base) Load(r io.Reader) (LoadStats, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return LoadStats{}, fmt.Errorf("knowledge: read: %w", err)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(raw), &items); err != nil {
		return LoadStats{}, fmt.Errorf("knowledge: source must be a JSON array: %w", err)
	}

	fold := cases.Fold()
	st := LoadStats{LoadedAt: b.cfg.now().UTC()}
	out := make([]entry, 0, len(items))
	for _, it := range items {
		var e Entry
		if err := json.Unmarshal(it, &e); err != nil {
			st.Skipped++
			continue
		}
		if err := b.cfg.validate.Struct(e); err != nil {
			st.Skipped++
			continue
		}
		if !e.active() {
			st.Inactive++
			continue
		}
		if b.cfg.maxEntries > 0 && len(out) >= b.cfg.maxEntries {
			st.Skipped++
			continue
		}
		kws := make([]string, 0, len(e.Keywords))
		for _, k := range e.Keywords {
			if k = strings.TrimSpace(fold.String(k)); k != "" {
				kws = append(kws, k)
			}
		}
		out = append(out, entry{
			question: strings.TrimSpace(fold.String(e.Question)),
			answer:   strings.TrimSpace(e.Answer),
			keywords: kws,
		})
	}
	st.Loaded = len(out)
	b.snap.Store(&snapshot{entries: out, stats: st})
	return st, nil
}

// LoadFile replaces the table with the contents of path.
func (b *Base) LoadFile(path string) (LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return LoadStats{}, fmt.Errorf("knowledge: open: %w", err)
	}
	defer f.Close()
	return b.Load(f)
}

// Reload re-reads the configured path. Concurrent calls share one load.
func (b *Base) Reload(ctx context.Context) (LoadStats, error) {
	if b.cfg.path == "" {
		return LoadStats{}, ErrNoSource
	}
	ch := b.sf.DoChan("reload", func() (any, error) {
		return b.LoadFile(b.cfg.path)
	})
	select {
	case <-ctx.Done():
		return LoadStats{}, ctx.Err()
	case res := <-ch:
		st, _ := res.Val.(LoadStats)
		return st, res.Err
	}
}

// Count returns the number of active entries.
func (b *Base) Count() int { return len(b.snap.Load().entries) }

// Stats returns the statistics of the last successful load.
func (b *Base) Stats() LoadStats { return b.snap.Load().stats }

// FindAnswer returns the answer of the first entry matching text.
func (b *Base) FindAnswer(text string) (string, bool) {
	q := strings.TrimSpace(cases.Fold().String(text))
	if q == "" {
		return "", false
	}
	entries := b.snap.Load().entries

	for _, e := range entries {
		for _, k := range e.keywords {
			if strings.Contains(q, k) {
				return e.answer, true
			}
		}
	}
	for _, e := range entries {
		if e.question != "" && strings.Contains(q, e.question) {
			return e.answer, true
		}
	}
	for _, e := range entries {
		if strings.Contains(e.question, q) {
			return e.answer, true
		}
	}
	return "", false
}
