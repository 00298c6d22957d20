package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-bizbot-backend/internal/knowledge"
	"github.com/tbourn/go-bizbot-backend/internal/repo"
	"github.com/tbourn/go-bizbot-backend/internal/state"
)

// Job names.
const (
	JobStateSweep      = "state_sweep"
	JobKnowledgeReload = "knowledge_reload"
	JobUpdatePurge     = "update_purge"
)

// Sweeper reports conversation state evicted since the last call.
type Sweeper interface {
	Sweep() state.SweepStats
}

// Reloader re-reads the knowledge base from its source.
type Reloader interface {
	Reload(ctx context.Context) (knowledge.LoadStats, error)
}

// StateSweepJob logs memory, spam and unknown-streak entries evicted by
// TTL or capacity since the previous run.
func StateSweepJob(st Sweeper, every time.Duration) Job {
	return Job{
		Name:  JobStateSweep,
		Every: every,
		Run: func(ctx context.Context) error {
			stats := st.Sweep()
			if stats.Memory+stats.Spam+stats.Unknown > 0 {
				zerolog.Ctx(ctx).Info().
					Int("memory", stats.Memory).
					Int("spam", stats.Spam).
					Int("unknown", stats.Unknown).
					Msg("state evicted")
			}
			return nil
		},
	}
}

// KnowledgeReloadJob reloads kb. A failed reload keeps the previous entries.
func KnowledgeReloadJob(kb Reloader, every time.Duration) Job {
	return Job{
		Name:  JobKnowledgeReload,
		Every: every,
		Run: func(ctx context.Context) error {
			stats, err := kb.Reload(ctx)
			if err != nil {
				return err
			}
			zerolog.Ctx(ctx).Info().
				Int("loaded", stats.Loaded).
				Int("skipped", stats.Skipped).
				Int("inactive", stats.Inactive).
				Msg("knowledge reloaded")
			return nil
		},
	}
}

// UpdatePurgeJob deletes expired update claims.
func UpdatePurgeJob(db *gorm.DB, every time.Duration, now func() time.Time) Job {
	if now == nil {
		now = time.Now
	}
	return Job{
		Name:  JobUpdatePurge,
		Every: every,
		Run: func(ctx context.Context) error {
			n, err := repo.PurgeExpiredUpdates(ctx, db, now())
			if err != nil {
				return err
			}
			if n > 0 {
				zerolog.Ctx(ctx).Info().Int64("purged", n).Msg("expired update claims purged")
			}
			return nil
		},
	}
}
