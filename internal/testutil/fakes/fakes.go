// Package fakes provides an in-memory implementation of every
// domain/ports repository and collaborator interface, shared across
// package-level unit tests the way the teacher's internal/testutil/mocks
// package shares testify-style doubles across its integration suite.
package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerflow/subscriptions/internal/domain"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// TxManager runs fn under a single mutex, giving the fakes below a
// serialization point without real rollback semantics — the package-level
// unit tests in this repo assert on end states, not isolation.
type TxManager struct {
	mu sync.Mutex
}

func (f *TxManager) WithTx(ctx context.Context, fn func(tx ports.DBTX) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(nil)
}

type Subscriptions struct {
	mu   sync.Mutex
	ByID map[string]*domain.Subscription
}

func NewSubscriptions() *Subscriptions {
	return &Subscriptions{ByID: make(map[string]*domain.Subscription)}
}

func (f *Subscriptions) Create(ctx context.Context, tx ports.DBTX, s *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ByID[s.ID] = s
	return nil
}
func (f *Subscriptions) Update(ctx context.Context, tx ports.DBTX, s *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ByID[s.ID] = s
	return nil
}
func (f *Subscriptions) GetByID(ctx context.Context, tx ports.DBTX, id string) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ByID[id], nil
}
func (f *Subscriptions) FindActiveForUserPlan(ctx context.Context, tx ports.DBTX, userID, planID string) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.ByID {
		if s.UserID == userID && s.PlanID == planID && (s.Status == domain.SubscriptionStatusActive || s.Status == domain.SubscriptionStatusTrial || s.Status == domain.SubscriptionStatusPastDue) {
			return s, nil
		}
	}
	return nil, nil
}
func (f *Subscriptions) DueForPayment(ctx context.Context, tx ports.DBTX, now time.Time) ([]*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Subscription
	for _, s := range f.ByID {
		if s.DueForBilling(now) {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *Subscriptions) EligibleForRetry(ctx context.Context, tx ports.DBTX, now time.Time, maxRetries int) ([]*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Subscription
	for _, s := range f.ByID {
		if s.Status == domain.SubscriptionStatusPastDue && s.RetryAt != nil && !now.Before(*s.RetryAt) {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *Subscriptions) ExpiringWithin(ctx context.Context, tx ports.DBTX, now time.Time, within time.Duration) ([]*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Subscription
	for _, s := range f.ByID {
		if s.Status == domain.SubscriptionStatusActive && !s.CurrentPeriodEnd.Before(now) && s.CurrentPeriodEnd.Before(now.Add(within)) {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *Subscriptions) TrialsEndingWithin(ctx context.Context, tx ports.DBTX, now time.Time, within time.Duration) ([]*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Subscription
	for _, s := range f.ByID {
		if s.Status == domain.SubscriptionStatusTrial && s.TrialEnd != nil && !s.TrialEnd.Before(now) && s.TrialEnd.Before(now.Add(within)) {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *Subscriptions) TrialsDueForConversion(ctx context.Context, tx ports.DBTX, now time.Time) ([]*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Subscription
	for _, s := range f.ByID {
		if s.TrialExpired(now) {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *Subscriptions) PendingExpiration(ctx context.Context, tx ports.DBTX, now time.Time) ([]*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Subscription
	for _, s := range f.ByID {
		if s.Status == domain.SubscriptionStatusActive && s.CancelAtPeriodEnd && !s.CurrentPeriodEnd.After(now) {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *Subscriptions) CountActive(ctx context.Context, tx ports.DBTX) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, s := range f.ByID {
		if s.Status == domain.SubscriptionStatusActive {
			count++
		}
	}
	return count, nil
}

type Plans struct {
	ByID map[string]*domain.Plan
}

func NewPlans() *Plans {
	return &Plans{ByID: make(map[string]*domain.Plan)}
}

func (f *Plans) GetByID(ctx context.Context, tx ports.DBTX, id string) (*domain.Plan, error) {
	return f.ByID[id], nil
}

type Users struct {
	mu   sync.Mutex
	ByID map[string]*domain.User
}

func NewUsers() *Users {
	return &Users{ByID: make(map[string]*domain.User)}
}

func (f *Users) GetByID(ctx context.Context, tx ports.DBTX, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.ByID[id]; ok {
		return u, nil
	}
	return &domain.User{ID: id, Email: "user@example.com", Currency: "USD", Active: true}, nil
}
func (f *Users) AdjustBalance(ctx context.Context, tx ports.DBTX, userID string, delta decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.ByID[userID]; ok {
		u.Balance = u.Balance.Add(delta)
	}
	return nil
}

type Transactions struct {
	mu   sync.Mutex
	ByID map[string]*domain.Transaction
}

func NewTransactions() *Transactions {
	return &Transactions{ByID: make(map[string]*domain.Transaction)}
}
func (f *Transactions) Create(ctx context.Context, tx ports.DBTX, t *domain.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ByID[t.ID] = t
	return nil
}
func (f *Transactions) Update(ctx context.Context, tx ports.DBTX, t *domain.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ByID[t.ID] = t
	return nil
}
func (f *Transactions) GetByID(ctx context.Context, tx ports.DBTX, id string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ByID[id], nil
}
func (f *Transactions) LatestCompletedForSubscription(ctx context.Context, tx ports.DBTX, subscriptionID string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domain.Transaction
	for _, t := range f.ByID {
		if t.SubscriptionID != nil && *t.SubscriptionID == subscriptionID && t.IsCompleted() {
			if latest == nil || t.UpdatedAt.After(latest.UpdatedAt) {
				latest = t
			}
		}
	}
	return latest, nil
}
func (f *Transactions) GetByIdempotencyKey(ctx context.Context, tx ports.DBTX, key string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.ByID {
		if t.IdempotencyKey == key {
			return t, nil
		}
	}
	return nil, nil
}

type Audit struct {
	mu      sync.Mutex
	Entries []domain.AuditEntry
}

func NewAudit() *Audit { return &Audit{} }

func (f *Audit) Append(ctx context.Context, tx ports.DBTX, entry domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Entries = append(f.Entries, entry)
	return nil
}

// PromoCodes is a settable in-memory promo store; tests populate ByCode
// and Redemptions directly rather than through a constructor.
type PromoCodes struct {
	mu         sync.Mutex
	ByCode     map[string]*domain.PromoCode
	Redeemed   map[string]bool // key: code+"|"+userID
	Redemptions []domain.PromoRedemption
}

func NewPromoCodes() *PromoCodes {
	return &PromoCodes{ByCode: make(map[string]*domain.PromoCode), Redeemed: make(map[string]bool)}
}

func (f *PromoCodes) GetByCode(ctx context.Context, tx ports.DBTX, code string) (*domain.PromoCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ByCode[code], nil
}
func (f *PromoCodes) IncrementUsage(ctx context.Context, tx ports.DBTX, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.ByCode[code]; ok {
		p.UsedCount++
	}
	return nil
}
func (f *PromoCodes) HasRedeemed(ctx context.Context, tx ports.DBTX, code, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Redeemed[code+"|"+userID], nil
}
func (f *PromoCodes) RecordRedemption(ctx context.Context, tx ports.DBTX, r domain.PromoRedemption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Redeemed[r.Code+"|"+r.UserID] = true
	f.Redemptions = append(f.Redemptions, r)
	return nil
}

type Notifier struct {
	mu     sync.Mutex
	Events []ports.EventType
}

func NewNotifier() *Notifier { return &Notifier{} }

func (f *Notifier) Send(ctx context.Context, userID string, event ports.EventType, data map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = append(f.Events, event)
}

func (f *Notifier) Count(event ports.EventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.Events {
		if e == event {
			n++
		}
	}
	return n
}
