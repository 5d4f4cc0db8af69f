package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ledgerflow/subscriptions/pkg/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler_DailyTaskFiresAtScheduledTime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewMockClock(start)
	s := New(clk, 2, zap.NewNop())

	var runs int32
	s.ScheduleDailyTask(func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
	}, 2, 0) // 02:00

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	// advance just short of 02:00: must not have fired yet
	advanceAndSettle(clk, 90*time.Minute)
	require.EqualValues(t, 0, atomic.LoadInt32(&runs))

	// cross 02:00
	advanceAndSettle(clk, 40*time.Minute)
	require.EqualValues(t, 1, atomic.LoadInt32(&runs))

	// advance a full day: fires again exactly once
	advanceAndSettle(clk, 24*time.Hour)
	require.EqualValues(t, 2, atomic.LoadInt32(&runs))
}

func TestScheduler_RecurringTaskFiresEveryInterval(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewMockClock(start)
	s := New(clk, 2, zap.NewNop())

	var runs int32
	s.ScheduleRecurringTask(func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
	}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	// advance one interval at a time: each crossing fires exactly once.
	// a single large jump instead fires only once for the whole jump —
	// the driver dispatches on poll ticks, not on every interval
	// boundary crossed within a tick, by design (no replay of missed runs).
	advanceAndSettle(clk, time.Hour)
	advanceAndSettle(clk, time.Hour)
	advanceAndSettle(clk, time.Hour)
	require.EqualValues(t, 3, atomic.LoadInt32(&runs))
}

func TestScheduler_CancelStopsFutureRuns(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewMockClock(start)
	s := New(clk, 2, zap.NewNop())

	var runs int32
	id := s.ScheduleRecurringTask(func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
	}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	advanceAndSettle(clk, time.Hour+time.Minute)
	require.EqualValues(t, 1, atomic.LoadInt32(&runs))

	require.True(t, s.Cancel(id))
	status, ok := s.Status(id)
	require.True(t, ok)
	require.False(t, status.Active)

	advanceAndSettle(clk, 5*time.Hour)
	require.EqualValues(t, 1, atomic.LoadInt32(&runs), "a cancelled task must never fire again")
}

func TestScheduler_CancelUnknownTaskReturnsFalse(t *testing.T) {
	s := New(clock.NewMockClock(time.Now().UTC()), 1, zap.NewNop())
	require.False(t, s.Cancel("does-not-exist"))
}

// advanceAndSettle moves the mock clock forward and then yields to the
// driver goroutine a few times so dispatched tasks (which run on their
// own goroutines) get a chance to complete before the next assertion.
func advanceAndSettle(clk *clock.MockClock, d time.Duration) {
	clk.Advance(d)
	for i := 0; i < 20; i++ {
		time.Sleep(time.Millisecond)
	}
}
