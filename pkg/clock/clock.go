// Package clock provides an injectable time source so lifecycle, billing,
// and scheduler logic can be driven deterministically in tests (advance
// N days, flip the gateway success rate, assert the resulting state)
// without sleeping real wall-clock time.
package clock

import (
	"sync"
	"time"

	"github.com/ledgerflow/subscriptions/pkg/timeutil"
)

// Clock abstracts time.Now, time.After, and time.NewTicker.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTicker(d time.Duration) Ticker
	Sleep(d time.Duration)
}

// Ticker abstracts *time.Ticker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock delegates to the standard library, always normalized to UTC.
type RealClock struct{}

func NewRealClock() *RealClock { return &RealClock{} }

func (RealClock) Now() time.Time                       { return timeutil.Now() }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Sleep(d time.Duration)                 { time.Sleep(d) }

func (RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// MockClock is a manually-advanced clock for tests. Now() is fixed until
// Advance or Set is called; After channels fire once the mock time
// reaches their deadline.
type MockClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []waiter
}

// waiter fires ch once now reaches deadline. If repeat > 0 the waiter
// re-arms itself for the new now+repeat instead of being removed, giving
// mockTicker periodic-tick semantics under Advance/Set; a single jump past
// several periods fires it once.
type waiter struct {
	deadline time.Time
	repeat   time.Duration
	ch       chan time.Time
	stopped  *bool
}

func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *MockClock) After(d time.Duration) <-chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan time.Time, 1)
	deadline := m.now.Add(d)
	if !deadline.After(m.now) {
		ch <- m.now
		return ch
	}
	m.waiters = append(m.waiters, waiter{deadline: deadline, ch: ch})
	return ch
}

func (m *MockClock) Sleep(d time.Duration) {
	<-m.After(d)
}

func (m *MockClock) NewTicker(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	stopped := false
	ch := make(chan time.Time, 1)
	m.waiters = append(m.waiters, waiter{deadline: m.now.Add(d), repeat: d, ch: ch, stopped: &stopped})
	return &mockTicker{ch: ch, stopped: &stopped}
}

// Advance moves the mock clock forward by d, firing any waiters (including
// repeating tickers) whose deadline has now elapsed.
func (m *MockClock) Advance(d time.Duration) {
	m.Set(m.Now().Add(d))
}

// Set moves the mock clock to an absolute time, firing elapsed waiters.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	remaining := m.waiters[:0]
	for _, w := range m.waiters {
		if w.stopped != nil && *w.stopped {
			continue
		}
		if !w.deadline.After(t) {
			select {
			case w.ch <- t:
			default:
			}
			if w.repeat > 0 {
				w.deadline = t.Add(w.repeat)
				remaining = append(remaining, w)
			}
		} else {
			remaining = append(remaining, w)
		}
	}
	m.waiters = remaining
	m.mu.Unlock()
}

type mockTicker struct {
	ch      chan time.Time
	stopped *bool
}

func (t *mockTicker) C() <-chan time.Time { return t.ch }

func (t *mockTicker) Stop() {
	*t.stopped = true
}
