// package scheduler triggers dynamic playlist configs on cron schedules.
//
// Scheduled runs bypass review: the engine applies the full computed result. The engine enforces one
// in-flight run per config, so a tick that lands on a busy config records a skipped run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/repositories"
	"github.com/desertthunder/plx/internal/shared"
	"github.com/desertthunder/plx/internal/tasks"
)

// Runner is the part of the engine the scheduler drives.
type Runner interface {
	RunNow(ctx context.Context, configRef string, trigger models.Trigger, progress chan<- tasks.ProgressUpdate) (*models.RunHistory, error)
	ReconcileInterrupted() (int64, error)
}

// Scheduler polls due schedules and starts their runs.
type Scheduler struct {
	runner Runner
	store  *repositories.Store
	logger *log.Logger
	tick   time.Duration
	now    func() time.Time

	wg sync.WaitGroup
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithTick sets the polling interval.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithClock overrides the scheduler clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a scheduler over runner and store
func New(runner Runner, store *repositories.Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner: runner,
		store:  store,
		logger: shared.NewLogger(nil),
		tick:   time.Minute,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add creates a schedule for a config. The config must exist.
func (s *Scheduler) Add(configRef, expr string, enabled bool) (*models.Schedule, error) {
	cfg, err := s.store.Configs.Resolve(configRef)
	if err != nil {
		return nil, err
	}
	if _, err := Parse(expr); err != nil {
		return nil, err
	}

	sched := &models.Schedule{ConfigID: cfg.ID, CronExpression: expr, Enabled: enabled}
	if err := s.plan(sched, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.Schedules.Create(sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// SetEnabled toggles a schedule, recomputing its next run from now.
func (s *Scheduler) SetEnabled(id string, enabled bool) (*models.Schedule, error) {
	sched, err := s.store.Schedules.Get(id)
	if err != nil {
		return nil, err
	}
	sched.Enabled = enabled
	if err := s.plan(sched, s.now()); err != nil {
		return nil, err
	}
	return sched, s.store.Schedules.Update(sched)
}

// SetExpression replaces a schedule's cron expression, recomputing its next run from now.
func (s *Scheduler) SetExpression(id, expr string) (*models.Schedule, error) {
	if _, err := Parse(expr); err != nil {
		return nil, err
	}
	sched, err := s.store.Schedules.Get(id)
	if err != nil {
		return nil, err
	}
	sched.CronExpression = expr
	if err := s.plan(sched, s.now()); err != nil {
		return nil, err
	}
	return sched, s.store.Schedules.Update(sched)
}

// Remove deletes a schedule
func (s *Scheduler) Remove(id string) error {
	return s.store.Schedules.Delete(id)
}

// plan sets NextRun for an enabled schedule and clears it for a disabled one.
func (s *Scheduler) plan(sched *models.Schedule, from time.Time) error {
	if !sched.Enabled {
		sched.NextRun = nil
		return nil
	}
	next, err := Next(sched.CronExpression, from)
	if err != nil {
		return err
	}
	sched.NextRun = &next
	return nil
}

// Prepare closes runs interrupted by a previous process and replans every enabled schedule whose
// next run is missing or already past. Missed activations are not run.
func (s *Scheduler) Prepare() error {
	if _, err := s.runner.ReconcileInterrupted(); err != nil {
		return fmt.Errorf("failed to reconcile interrupted runs: %w", err)
	}

	now := s.now()
	schedules, err := s.store.Schedules.List(map[string]any{"enabled": true})
	if err != nil {
		return err
	}
	for _, sched := range schedules {
		if sched.NextRun != nil && sched.NextRun.After(now) {
			continue
		}
		if err := s.plan(sched, now); err != nil {
			s.logger.Warn("schedule has an invalid expression", "schedule", sched.ID, "error", err)
			continue
		}
		if err := s.store.Schedules.Update(sched); err != nil {
			return err
		}
	}
	return nil
}

// Tick starts a run for every due schedule and returns how many were started.
//
// lastRun and nextRun are advanced before the run starts so an overlapping tick cannot fire the same
// schedule twice. Runs execute concurrently; call [Scheduler.Wait] to wait for them.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.store.Schedules.Due(now)
	if err != nil {
		return 0, err
	}

	started := 0
	for _, sched := range due {
		last := now
		sched.LastRun = &last
		if err := s.plan(sched, now); err != nil {
			s.logger.Warn("schedule has an invalid expression", "schedule", sched.ID, "error", err)
			sched.Enabled, sched.NextRun = false, nil
		}
		if err := s.store.Schedules.Update(sched); err != nil {
			return started, err
		}
		if !sched.Enabled {
			continue
		}

		cfg, err := s.store.Configs.Get(sched.ConfigID)
		if err != nil {
			s.logger.Warn("schedule points at a missing config", "schedule", sched.ID, "config", sched.ConfigID)
			continue
		}
		if !cfg.Enabled {
			s.logger.Debug("config disabled, not running", "config", cfg.Name)
			continue
		}

		started++
		s.wg.Add(1)
		go func(configID string) {
			defer s.wg.Done()
			run, err := s.runner.RunNow(ctx, configID, models.TriggerSchedule, nil)
			switch {
			case err != nil && errors.Is(err, context.Canceled):
				s.logger.Info("scheduled run cancelled", "config", configID)
			case err != nil:
				s.logger.Error("scheduled run failed", "config", configID, "error", err)
			case run != nil && run.Status == models.RunSkipped:
				s.logger.Warn("scheduled run skipped", "config", configID, "reason", run.ErrorMessage)
			}
		}(cfg.ID)
	}
	return started, nil
}

// Start prepares the schedules and ticks until ctx is done, then waits for in-flight runs.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Prepare(); err != nil {
		return err
	}

	s.logger.Info("scheduler started", "tick", s.tick)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil {
			s.logger.Error("scheduler tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			s.Wait()
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Wait blocks until every run started by Tick has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Upcoming lists enabled schedules ordered by next run.
func (s *Scheduler) Upcoming(limit int) ([]*models.Schedule, error) {
	schedules, err := s.store.Schedules.List(map[string]any{"enabled": true})
	if err != nil {
		return nil, err
	}
	out := make([]*models.Schedule, 0, len(schedules))
	for _, sched := range schedules {
		if sched.NextRun != nil {
			out = append(out, sched)
		}
	}
	slices.SortFunc(out, func(a, b *models.Schedule) int { return a.NextRun.Compare(*b.NextRun) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
