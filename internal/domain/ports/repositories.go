package ports

import (
	"context"
	"time"

	"github.com/ledgerflow/subscriptions/internal/domain"
	"github.com/shopspring/decimal"
)

// DBTX is satisfied by both a pgxpool.Pool and a pgx.Tx, letting a
// repository run against either a pooled connection or an open
// transaction without duplicating query code — the same shape the
// teacher's sqlc.Querier abstraction gives for free; hand-rolled here
// since the generated sqlc package is not available (see DESIGN.md).
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// Row and Rows narrow pgx.Row / pgx.Rows to what repositories need,
// keeping the port package free of a pgx import.
type Row interface {
	Scan(dest ...any) error
}

type Rows interface {
	Row
	Next() bool
	Close()
	Err() error
}

// TransactionManager runs fn inside a single database transaction,
// committing on nil error and rolling back otherwise — mirrors the
// teacher's database.TransactionManager.WithTx.
type TransactionManager interface {
	WithTx(ctx context.Context, fn func(tx DBTX) error) error
}

type SubscriptionRepository interface {
	Create(ctx context.Context, tx DBTX, s *domain.Subscription) error
	Update(ctx context.Context, tx DBTX, s *domain.Subscription) error
	GetByID(ctx context.Context, tx DBTX, id string) (*domain.Subscription, error)
	FindActiveForUserPlan(ctx context.Context, tx DBTX, userID, planID string) (*domain.Subscription, error)
	DueForPayment(ctx context.Context, tx DBTX, now time.Time) ([]*domain.Subscription, error)
	EligibleForRetry(ctx context.Context, tx DBTX, now time.Time, maxRetries int) ([]*domain.Subscription, error)
	ExpiringWithin(ctx context.Context, tx DBTX, now time.Time, within time.Duration) ([]*domain.Subscription, error)
	TrialsEndingWithin(ctx context.Context, tx DBTX, now time.Time, within time.Duration) ([]*domain.Subscription, error)
	TrialsDueForConversion(ctx context.Context, tx DBTX, now time.Time) ([]*domain.Subscription, error)
	PendingExpiration(ctx context.Context, tx DBTX, now time.Time) ([]*domain.Subscription, error)
	CountActive(ctx context.Context, tx DBTX) (int, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, tx DBTX, t *domain.Transaction) error
	Update(ctx context.Context, tx DBTX, t *domain.Transaction) error
	GetByID(ctx context.Context, tx DBTX, id string) (*domain.Transaction, error)
	LatestCompletedForSubscription(ctx context.Context, tx DBTX, subscriptionID string) (*domain.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, tx DBTX, key string) (*domain.Transaction, error)
}

type PlanRepository interface {
	GetByID(ctx context.Context, tx DBTX, id string) (*domain.Plan, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, tx DBTX, id string) (*domain.User, error)
	AdjustBalance(ctx context.Context, tx DBTX, userID string, delta decimal.Decimal) error
}

type PaymentMethodRepository interface {
	GetByID(ctx context.Context, tx DBTX, id string) (*domain.PaymentMethod, error)
	Create(ctx context.Context, tx DBTX, pm *domain.PaymentMethod) error
}

type PromoCodeRepository interface {
	GetByCode(ctx context.Context, tx DBTX, code string) (*domain.PromoCode, error)
	IncrementUsage(ctx context.Context, tx DBTX, code string) error
	HasRedeemed(ctx context.Context, tx DBTX, code, userID string) (bool, error)
	RecordRedemption(ctx context.Context, tx DBTX, r domain.PromoRedemption) error
}

type AuditRepository interface {
	Append(ctx context.Context, tx DBTX, entry domain.AuditEntry) error
}
