// Package scheduler runs the periodic housekeeping jobs of the bot backend
// (state eviction, knowledge reloads, update-claim purges) on top of gocron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// DefaultJobTimeout bounds a single job run when Job.Timeout is unset.
const DefaultJobTimeout = 30 * time.Second

var jobRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bizbot_scheduler_job_runs_total",
		Help: "Scheduled job runs by job and result",
	},
	[]string{"job", "result"},
)

func init() {
	prometheus.MustRegister(jobRuns)
}

// Job is a named task executed every Every.
type Job struct {
	Name    string
	Every   time.Duration
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler owns a gocron scheduler and the context its jobs run under.
type Scheduler struct {
	s      gocron.Scheduler
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	names []string
}

// New creates a stopped scheduler that logs through log.
func New(log zerolog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(NewGocronLogger(log)),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(log.WithContext(context.Background()))
	return &Scheduler{s: s, log: log, ctx: ctx, cancel: cancel}, nil
}

// Add registers j. A job never runs concurrently with itself.
func (s *Scheduler) Add(j Job) error {
	if j.Name == "" || j.Run == nil {
		return errors.New("scheduler: job needs a name and a run func")
	}
	if j.Every <= 0 {
		return fmt.Errorf("scheduler: job %q: interval must be > 0", j.Name)
	}
	_, err := s.s.NewJob(
		gocron.DurationJob(j.Every),
		gocron.NewTask(func() { s.run(j) }),
		gocron.WithName(j.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule job %q: %w", j.Name, err)
	}
	s.mu.Lock()
	s.names = append(s.names, j.Name)
	s.mu.Unlock()
	s.log.Info().Str("job", j.Name).Dur("every", j.Every).Msg("job scheduled")
	return nil
}

// Jobs returns the registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...)
}

// Start begins executing jobs.
func (s *Scheduler) Start() { s.s.Start() }

// Shutdown cancels running jobs and waits for them to return.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	if err := s.s.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}

// run executes one job invocation, never letting a failure escape into gocron.
func (s *Scheduler) run(j Job) {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	log := s.log.With().Str("job", j.Name).Logger()
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			jobRuns.WithLabelValues(j.Name, "panic").Inc()
			log.Error().Interface("panic", rec).Bytes("stack", debug.Stack()).Msg("job panicked")
		}
	}()

	if err := j.Run(log.WithContext(ctx)); err != nil {
		jobRuns.WithLabelValues(j.Name, "error").Inc()
		log.Warn().Err(err).Dur("took", time.Since(start)).Msg("job failed")
		return
	}
	jobRuns.WithLabelValues(j.Name, "ok").Inc()
	log.Debug().Dur("took", time.Since(start)).Msg("job done")
}
