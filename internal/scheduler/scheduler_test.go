package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
	"github.com/tbourn/go-bizbot-backend/internal/knowledge"
	"github.com/tbourn/go-bizbot-backend/internal/repo"
	"github.com/tbourn/go-bizbot-backend/internal/state"
)

func newScheduler(t *testing.T) (*Scheduler, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	s, err := New(zerolog.New(&buf))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })
	return s, &buf
}

func TestAdd_Validation(t *testing.T) {
	s, _ := newScheduler(t)
	noop := func(context.Context) error { return nil }

	assert.Error(t, s.Add(Job{Every: time.Second, Run: noop}))
	assert.Error(t, s.Add(Job{Name: "x", Every: time.Second}))
	assert.Error(t, s.Add(Job{Name: "x", Run: noop}))
	require.NoError(t, s.Add(Job{Name: "x", Every: time.Second, Run: noop}))
	assert.Equal(t, []string{"x"}, s.Jobs())
}

func TestScheduler_RunsJobs(t *testing.T) {
	s, _ := newScheduler(t)
	var calls atomic.Int32
	require.NoError(t, s.Add(Job{
		Name:  "tick",
		Every: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
	}))
	s.Start()

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestRun_ErrorsAndPanicsAreContained(t *testing.T) {
	s, buf := newScheduler(t)

	failing := Job{Name: "failing_job", Run: func(context.Context) error { return errors.New("nope") }}
	before := testutil.ToFloat64(jobRuns.WithLabelValues("failing_job", "error"))
	s.run(failing)
	assert.Equal(t, before+1, testutil.ToFloat64(jobRuns.WithLabelValues("failing_job", "error")))
	assert.Contains(t, buf.String(), "job failed")

	panicking := Job{Name: "panicking_job", Run: func(context.Context) error { panic("boom") }}
	assert.NotPanics(t, func() { s.run(panicking) })
	assert.Equal(t, 1.0, testutil.ToFloat64(jobRuns.WithLabelValues("panicking_job", "panic")))
	assert.Contains(t, buf.String(), "job panicked")
}

func TestRun_UsesTimeoutAndLogger(t *testing.T) {
	s, _ := newScheduler(t)
	var deadline time.Time
	var hasLogger bool
	s.run(Job{
		Name:    "inspect",
		Timeout: time.Minute,
		Run: func(ctx context.Context) error {
			deadline, _ = ctx.Deadline()
			hasLogger = zerolog.Ctx(ctx).GetLevel() != zerolog.Disabled
			return nil
		},
	})
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
	assert.True(t, hasLogger)
}

func TestShutdown_CancelsJobContext(t *testing.T) {
	s, err := New(zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Shutdown())
	assert.Error(t, s.ctx.Err())
}

func TestGocronLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewGocronLogger(zerolog.New(&buf))
	l.Info("job ran", "name", "tick", "dangling")
	out := buf.String()
	assert.Contains(t, out, `"component":"gocron"`)
	assert.Contains(t, out, `"name":"tick"`)
	assert.Contains(t, out, `"dangling":"(MISSING)"`)
	assert.Contains(t, out, `"message":"job ran"`)
}

type fakeSweeper struct {
	stats state.SweepStats
	calls int
}

func (f *fakeSweeper) Sweep() state.SweepStats {
	f.calls++
	return f.stats
}

func TestStateSweepJob(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	idle := &fakeSweeper{}
	job := StateSweepJob(idle, time.Minute)
	assert.Equal(t, JobStateSweep, job.Name)
	require.NoError(t, job.Run(ctx))
	assert.Equal(t, 1, idle.calls)
	assert.Empty(t, buf.String())

	busy := &fakeSweeper{stats: state.SweepStats{Memory: 2, Spam: 1}}
	require.NoError(t, StateSweepJob(busy, time.Minute).Run(ctx))
	assert.Contains(t, buf.String(), `"memory":2`)
}

func TestStateSweepJob_RealState(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st := state.New(state.Options{
		TTL:        time.Minute,
		MaxEntries: 10,
		Spam:       state.DefaultSpamPolicy,
		Now:        func() time.Time { return now },
	})
	st.CheckSpam("t:u")
	now = now.Add(time.Hour)
	assert.NoError(t, StateSweepJob(st, time.Minute).Run(context.Background()))
}

type fakeReloader struct {
	stats knowledge.LoadStats
	err   error
	calls int
}

func (f *fakeReloader) Reload(context.Context) (knowledge.LoadStats, error) {
	f.calls++
	return f.stats, f.err
}

func TestKnowledgeReloadJob(t *testing.T) {
	ok := &fakeReloader{stats: knowledge.LoadStats{Loaded: 3}}
	require.NoError(t, KnowledgeReloadJob(ok, time.Minute).Run(context.Background()))
	assert.Equal(t, 1, ok.calls)

	bad := &fakeReloader{err: errors.New("bad json")}
	assert.EqualError(t, KnowledgeReloadJob(bad, time.Minute).Run(context.Background()), "bad json")
}

func TestUpdatePurgeJob(t *testing.T) {
	dsn := fmt.Sprintf("file:sched_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()
	_, err = repo.ClaimUpdate(ctx, db, "acme", 1, time.Minute, now)
	require.NoError(t, err)
	_, err = repo.ClaimUpdate(ctx, db, "acme", 2, time.Hour, now)
	require.NoError(t, err)

	later := now.Add(10 * time.Minute)
	job := UpdatePurgeJob(db, time.Minute, func() time.Time { return later })
	require.NoError(t, job.Run(ctx))

	var left []domain.ProcessedUpdate
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, int64(2), left[0].UpdateID)

	_, err = repo.ClaimUpdate(ctx, db, "acme", 2, time.Minute, later)
	assert.ErrorIs(t, err, repo.ErrDuplicate)
}
