package billing

import "sync"

// SubscriptionLocks is a sharded mutex map keyed by subscription_id,
// grounded on spec.md §9's explicit instruction: a single global lock
// would serialize all concurrent charges across the whole billing scan,
// which spec.md §5 forbids ("no two workers may charge or mutate the
// same subscription concurrently... across subscriptions, no ordering is
// guaranteed"). Entries are reclaimed when the refcount drops to zero so
// the map does not grow unbounded across the subscription's lifetime.
type SubscriptionLocks struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu  sync.Mutex
	ref int
}

func NewSubscriptionLocks() *SubscriptionLocks {
	return &SubscriptionLocks{locks: make(map[string]*entry)}
}

// TryLock attempts to acquire the lock for subscriptionID without
// blocking, returning false if another worker currently holds it
// (spec.md §4.6.a: "If unavailable, skip and report locked").
func (l *SubscriptionLocks) TryLock(subscriptionID string) (func(), bool) {
	l.mu.Lock()
	e, ok := l.locks[subscriptionID]
	if !ok {
		e = &entry{}
		l.locks[subscriptionID] = e
	}
	e.ref++
	l.mu.Unlock()

	if !e.mu.TryLock() {
		l.release(subscriptionID, e)
		return nil, false
	}

	return func() {
		e.mu.Unlock()
		l.release(subscriptionID, e)
	}, true
}

func (l *SubscriptionLocks) release(subscriptionID string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.ref--
	if e.ref == 0 {
		delete(l.locks, subscriptionID)
	}
}
