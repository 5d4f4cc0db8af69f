// Package scheduler drives the system's recurring jobs: daily billing,
// hourly retry sweeps, and the daily expiring/trial-ending scans.
// Grounded on original_source/scheduler/task_scheduler.py's
// TaskScheduler/SubscriptionScheduler, reworked to fix the cancellation
// defect spec.md §9 flags: the original's cancel_task only flips an
// is_active flag that the underlying `schedule` library's job loop never
// consults before re-queuing the job, so a "cancelled" task keeps firing
// forever. Here cancellation is a real context.CancelFunc paired with an
// atomic active flag checked immediately before every dispatch.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerflow/subscriptions/pkg/clock"
	"go.uber.org/zap"
)

// taskTimeout bounds a single dispatched task run, mirroring the
// original's future.result(timeout=300).
const taskTimeout = 300 * time.Second

// pollInterval is how often the driver loop checks for due tasks,
// mirroring the original's time.sleep(1) inside _run_scheduler.
const pollInterval = time.Second

// errorBackoff is the pause after a dispatch-loop exception, mirroring
// the original's time.sleep(5) in the except branch.
const errorBackoff = 5 * time.Second

// ScheduleType distinguishes a daily wall-clock job from a fixed-interval
// recurring job.
type ScheduleType string

const (
	ScheduleDaily    ScheduleType = "daily"
	ScheduleInterval ScheduleType = "interval"
)

// Status is a snapshot of one scheduled task's run history, mirroring
// the original's get_task_status dict.
type Status struct {
	ID           string
	ScheduleType ScheduleType
	LastRun      *time.Time
	NextRun      time.Time
	Active       bool
}

type task struct {
	id           string
	fn           func(context.Context)
	scheduleType ScheduleType
	hour, minute int
	interval     time.Duration
	nextRun      time.Time
	lastRun      *time.Time
	active       int32 // atomic bool
	cancel       context.CancelFunc
	overlapping  int32 // atomic bool: a run is currently in flight
}

// Scheduler is a bounded-worker-pool task runner driven by a single
// driver loop polling the clock once per pollInterval, dispatching due
// tasks into a semaphore-bounded goroutine pool — the Go translation of
// the original's schedule.Scheduler + ThreadPoolExecutor pairing.
type Scheduler struct {
	clock      clock.Clock
	logger     *zap.Logger
	maxWorkers int

	mu    sync.Mutex
	tasks map[string]*task

	sem chan struct{}

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

func New(clk clock.Clock, maxWorkers int, logger *zap.Logger) *Scheduler {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	return &Scheduler{
		clock:      clk,
		logger:     logger,
		maxWorkers: maxWorkers,
		tasks:      make(map[string]*task),
		sem:        make(chan struct{}, maxWorkers),
	}
}

// ScheduleDailyTask runs fn once per day at hour:minute (in the clock's
// timezone). Returns a task ID usable with Cancel.
func (s *Scheduler) ScheduleDailyTask(fn func(context.Context), hour, minute int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	t := &task{
		id:           id,
		fn:           fn,
		scheduleType: ScheduleDaily,
		hour:         hour,
		minute:       minute,
		active:       1,
	}
	t.nextRun = nextDailyRun(s.clock.Now(), hour, minute)
	s.tasks[id] = t
	s.logger.Info("scheduled daily task", zap.String("task_id", id), zap.Int("hour", hour), zap.Int("minute", minute))
	return id
}

// ScheduleRecurringTask runs fn every interval, starting one interval
// from now.
func (s *Scheduler) ScheduleRecurringTask(fn func(context.Context), interval time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	t := &task{
		id:           id,
		fn:           fn,
		scheduleType: ScheduleInterval,
		interval:     interval,
		active:       1,
		nextRun:      s.clock.Now().Add(interval),
	}
	s.tasks[id] = t
	s.logger.Info("scheduled recurring task", zap.String("task_id", id), zap.Duration("interval", interval))
	return id
}

// Cancel marks a task inactive and cancels its in-flight run (if any).
// Unlike the original, this is a real cancellation: the task is removed
// from future dispatch consideration and an in-flight invocation's
// context is cancelled immediately.
func (s *Scheduler) Cancel(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		s.logger.Warn("cancel requested for unknown task", zap.String("task_id", taskID))
		return false
	}
	atomic.StoreInt32(&t.active, 0)
	if t.cancel != nil {
		t.cancel()
	}
	s.logger.Info("cancelled task", zap.String("task_id", taskID))
	return true
}

// Status returns a point-in-time snapshot of a task's run history.
func (s *Scheduler) Status(taskID string) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return Status{}, false
	}
	return Status{
		ID:           t.id,
		ScheduleType: t.scheduleType,
		LastRun:      t.lastRun,
		NextRun:      t.nextRun,
		Active:       atomic.LoadInt32(&t.active) == 1,
	}, true
}

// Start begins the driver loop in a new goroutine. Stop must be called
// to release it.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.runCancel != nil {
		s.mu.Unlock()
		s.logger.Warn("scheduler already running")
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.runCtx = runCtx
	s.runCancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.driverLoop(runCtx)
	s.logger.Info("scheduler started")
}

// Stop cancels the driver loop and every in-flight run's context, then
// waits, with no deadline, for the driver loop and the dispatched runs to
// return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.runCancel
	s.runCancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) driverLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := s.clock.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if err := s.dispatchDue(ctx); err != nil {
				s.logger.Error("scheduler dispatch loop error", zap.Error(err))
				s.clock.Sleep(errorBackoff)
			}
		}
	}
}

// dispatchDue finds tasks whose nextRun has elapsed and hands each to a
// pool worker. A task already running when its next tick arrives is
// skipped for that tick (overlap-drop semantics) rather than queued.
func (s *Scheduler) dispatchDue(ctx context.Context) error {
	now := s.clock.Now()

	s.mu.Lock()
	var due []*task
	for _, t := range s.tasks {
		if atomic.LoadInt32(&t.active) == 0 {
			continue
		}
		if !t.nextRun.After(now) {
			due = append(due, t)
			t.nextRun = s.computeNextRun(t, now)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		t := t
		if !atomic.CompareAndSwapInt32(&t.overlapping, 0, 1) {
			s.logger.Warn("skipping overlapping run", zap.String("task_id", t.id))
			continue
		}

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			atomic.StoreInt32(&t.overlapping, 0)
			return nil
		}

		s.wg.Add(1)
		go s.runTask(ctx, t)
	}
	return nil
}

func (s *Scheduler) computeNextRun(t *task, now time.Time) time.Time {
	switch t.scheduleType {
	case ScheduleDaily:
		return nextDailyRun(now, t.hour, t.minute)
	default:
		return now.Add(t.interval)
	}
}

func (s *Scheduler) runTask(ctx context.Context, t *task) {
	defer s.wg.Done()
	defer func() { <-s.sem }()
	defer atomic.StoreInt32(&t.overlapping, 0)

	taskCtx, cancel := context.WithTimeout(ctx, taskTimeout)
	s.mu.Lock()
	t.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	if atomic.LoadInt32(&t.active) == 0 {
		return
	}

	start := s.clock.Now()
	s.logger.Info("starting task", zap.String("task_id", t.id))

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.fn(taskCtx)
	}()

	select {
	case <-done:
		elapsed := s.clock.Now().Sub(start)
		s.logger.Info("task completed", zap.String("task_id", t.id), zap.Duration("elapsed", elapsed))
	case <-taskCtx.Done():
		s.logger.Error("task timed out or was cancelled", zap.String("task_id", t.id), zap.Error(taskCtx.Err()))
	}

	now := s.clock.Now()
	s.mu.Lock()
	t.lastRun = &now
	t.cancel = nil
	s.mu.Unlock()
}

func nextDailyRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
