// Package scheduler implements the Scheduler component: an in-memory map of
// ScheduledTask backed by a periodically-rewritten JSON file, driven by a
// single-threaded cooperative tick loop grounded in the functional-options /
// injectable-clock / tick-driven idiom of a cron-style scheduler.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// DefaultTickInterval is the scheduler's default cooperative tick period.
// The spec caps this at 30s; WithTickInterval enforces the cap.
const DefaultTickInterval = 30 * time.Second

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Callback is invoked for every due task. A panic or error is logged but
// never disables the task; only a persistence failure after firing is
// fatal for that tick.
type Callback func(ctx context.Context, task *models.ScheduledTask) error

// Scheduler runs ScheduledTasks against an injected Callback.
type Scheduler struct {
	store        *FileStore
	callback     Callback
	logger       *observability.Logger
	metrics      *observability.Metrics
	now          func() time.Time
	tickInterval time.Duration

	mu      sync.Mutex
	tasks   map[string]*models.ScheduledTask
	started bool
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger overrides the scheduler's logger. Every subsystem logs through
// this redacting wrapper, never the raw slog package, so secrets embedded in
// a task's prompt text or a callback error never reach stdout unredacted.
func WithLogger(logger *observability.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches a Prometheus metrics sink. nil disables instrumentation.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = metrics
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTickInterval overrides the tick period, clamped to 30s.
func WithTickInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		if interval > 0 && interval <= 30*time.Second {
			s.tickInterval = interval
		}
	}
}

// New builds a Scheduler backed by store, loading and recomputing next_run
// for every persisted task.
func New(store *FileStore, callback Callback, opts ...Option) (*Scheduler, error) {
	if store == nil {
		return nil, errors.New("scheduler: store is required")
	}
	if callback == nil {
		return nil, errors.New("scheduler: callback is required")
	}

	s := &Scheduler{
		store:        store,
		callback:     callback,
		logger:       observability.NewLogger(observability.LogConfig{}).WithFields("component", "scheduler"),
		now:          time.Now,
		tickInterval: DefaultTickInterval,
		tasks:        make(map[string]*models.ScheduledTask),
	}
	for _, opt := range opts {
		opt(s)
	}

	loaded, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("scheduler: load tasks: %w", err)
	}
	now := s.now()
	for _, t := range loaded {
		if t == nil {
			continue
		}
		recomputeNextRun(t, now)
		s.tasks[t.ID] = t
	}

	return s, nil
}

// Start runs the tick loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Stop blocks until the tick loop exits.
func (s *Scheduler) Stop() {
	s.wg.Wait()
}

// Tick fires every due task once, synchronously. Exported so tests and a
// "run now" admin action can drive it directly.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	due := make([]*models.ScheduledTask, 0)
	for _, t := range s.tasks {
		if isDue(t, now) {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		s.fire(ctx, t, now)
	}
	return len(due)
}

func isDue(t *models.ScheduledTask, now time.Time) bool {
	if t == nil || !t.Enabled || t.NextRun == nil {
		return false
	}
	if now.Before(*t.NextRun) {
		return false
	}
	return t.ActiveWindow.Contains(now.Hour())
}

// fire invokes the callback (recovering a panic as a logged, non-fatal
// failure), then updates last_run/next_run and persists the whole task set.
// A persistence failure is fatal only for this tick: the in-memory state
// still advanced, so the next tick will not re-fire the same task.
func (s *Scheduler) fire(ctx context.Context, t *models.ScheduledTask, now time.Time) {
	status := "success"
	func() {
		defer func() {
			if r := recover(); r != nil {
				status = "panic"
				s.logger.Error(ctx, "scheduled task panicked", "task_id", t.ID, "panic", r)
			}
		}()
		if err := s.callback(ctx, t); err != nil {
			status = "error"
			s.logger.Warn(ctx, "scheduled task callback failed", "task_id", t.ID, "error", err)
		}
	}()
	if s.metrics != nil {
		s.metrics.RecordSchedulerFire(string(t.Kind), status)
	}

	s.mu.Lock()
	last := now
	t.LastRun = &last
	switch t.Kind {
	case models.TaskOneShot, models.TaskReminder:
		t.Enabled = false
		t.NextRun = nil
	default:
		recomputeNextRun(t, now)
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.store.Save(snapshot); err != nil {
		s.logger.Error(ctx, "scheduler persistence failed, skipping this tick's write", "task_id", t.ID, "error", err)
	}
}

// recomputeNextRun sets t.NextRun from t.Kind and t.CronExpr / t.ScheduledAt,
// expanding a cron schedule forward until a time inside ActiveWindow is
// found, or giving up (NextRun = nil) if no candidate exists.
func recomputeNextRun(t *models.ScheduledTask, now time.Time) {
	switch t.Kind {
	case models.TaskOneShot, models.TaskReminder:
		if t.ScheduledAt == nil {
			t.NextRun = nil
			return
		}
		next := *t.ScheduledAt
		t.NextRun = &next

	case models.TaskCron, models.TaskDailyBriefing, models.TaskHeartbeat:
		if strings.TrimSpace(t.CronExpr) == "" {
			t.NextRun = nil
			return
		}
		schedule, err := cronParser.Parse(t.CronExpr)
		if err != nil {
			t.NextRun = nil
			return
		}
		candidate := now
		for i := 0; i < 10000; i++ {
			candidate = schedule.Next(candidate)
			if candidate.IsZero() {
				t.NextRun = nil
				return
			}
			if t.ActiveWindow.Contains(candidate.Hour()) {
				next := candidate
				t.NextRun = &next
				return
			}
		}
		t.NextRun = nil

	default:
		t.NextRun = nil
	}
}

func (s *Scheduler) snapshotLocked() []*models.ScheduledTask {
	out := make([]*models.ScheduledTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out
}

// Add registers a new task, computes its initial next_run, and persists.
func (s *Scheduler) Add(t *models.ScheduledTask) (*models.ScheduledTask, error) {
	if t == nil {
		return nil, errors.New("scheduler: task is required")
	}
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.NewString()
	}
	t.Enabled = true

	now := s.now()
	recomputeNextRun(t, now)

	s.mu.Lock()
	s.tasks[t.ID] = t
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.store.Save(snapshot); err != nil {
		return nil, fmt.Errorf("scheduler: persist task: %w", err)
	}
	return t, nil
}

// Remove deletes a task by id and persists.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	if _, ok := s.tasks[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: task %s not found", id)
	}
	delete(s.tasks, id)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	return s.store.Save(snapshot)
}

// List returns a snapshot of every known task.
func (s *Scheduler) List() []*models.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Get returns one task by id.
func (s *Scheduler) Get(id string) (*models.ScheduledTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}
