package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/ledgerflow/subscriptions/internal/domain"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
)

// SubscriptionRepository implements ports.SubscriptionRepository over raw
// pgx SQL. Grounded on the teacher's sqlc-based
// adapters/postgres/subscription_repository.go (same Create/GetByID/
// Update/toDomainModel shape, same nullText helper) with the sqlc.Queries
// layer removed and decimal.Decimal scanned directly via its
// sql.Scanner/Valuer implementation instead of pgtype.Numeric
// conversion helpers — see DESIGN.md.
type SubscriptionRepository struct{}

func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{}
}

func (r *SubscriptionRepository) Create(ctx context.Context, tx ports.DBTX, s *domain.Subscription) error {
	var trialEnd, retryAt, cancelledAt pgtype.Timestamptz
	if s.TrialEnd != nil {
		trialEnd = pgtype.Timestamptz{Time: *s.TrialEnd, Valid: true}
	}
	if s.RetryAt != nil {
		retryAt = pgtype.Timestamptz{Time: *s.RetryAt, Valid: true}
	}
	if s.CancelledAt != nil {
		cancelledAt = pgtype.Timestamptz{Time: *s.CancelledAt, Valid: true}
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO subscriptions (
			id, user_id, plan_id, status, current_period_start, current_period_end,
			trial_end, payment_method_id, cancel_at_period_end, retry_count,
			auto_renew, retry_at, cancelled_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		s.ID, s.UserID, s.PlanID, string(s.Status), s.CurrentPeriodStart, s.CurrentPeriodEnd,
		trialEnd, nullText(s.PaymentMethodID), s.CancelAtPeriodEnd, s.RetryCount,
		s.AutoRenew, retryAt, cancelledAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) Update(ctx context.Context, tx ports.DBTX, s *domain.Subscription) error {
	var trialEnd, retryAt, cancelledAt pgtype.Timestamptz
	if s.TrialEnd != nil {
		trialEnd = pgtype.Timestamptz{Time: *s.TrialEnd, Valid: true}
	}
	if s.RetryAt != nil {
		retryAt = pgtype.Timestamptz{Time: *s.RetryAt, Valid: true}
	}
	if s.CancelledAt != nil {
		cancelledAt = pgtype.Timestamptz{Time: *s.CancelledAt, Valid: true}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE subscriptions SET
			status = $2, current_period_start = $3, current_period_end = $4,
			trial_end = $5, payment_method_id = $6, cancel_at_period_end = $7,
			retry_count = $8, auto_renew = $9, retry_at = $10, cancelled_at = $11,
			updated_at = $12
		WHERE id = $1`,
		s.ID, string(s.Status), s.CurrentPeriodStart, s.CurrentPeriodEnd,
		trialEnd, nullText(s.PaymentMethodID), s.CancelAtPeriodEnd,
		s.RetryCount, s.AutoRenew, retryAt, cancelledAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag == 0 {
		return fmt.Errorf("update subscription: %w", pgx.ErrNoRows)
	}
	return nil
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, tx ports.DBTX, id string) (*domain.Subscription, error) {
	row := tx.QueryRow(ctx, subscriptionSelectCols+` FROM subscriptions WHERE id = $1`, id)
	return scanSubscription(row)
}

func (r *SubscriptionRepository) FindActiveForUserPlan(ctx context.Context, tx ports.DBTX, userID, planID string) (*domain.Subscription, error) {
	row := tx.QueryRow(ctx, subscriptionSelectCols+`
		FROM subscriptions
		WHERE user_id = $1 AND plan_id = $2 AND status IN ('pending','trial','active','past_due')
		ORDER BY created_at DESC LIMIT 1`, userID, planID)
	return scanSubscription(row)
}

func (r *SubscriptionRepository) DueForPayment(ctx context.Context, tx ports.DBTX, now time.Time) ([]*domain.Subscription, error) {
	return r.query(ctx, tx, subscriptionSelectCols+`
		FROM subscriptions
		WHERE status = 'active' AND auto_renew = true AND current_period_end <= $1`, now)
}

func (r *SubscriptionRepository) EligibleForRetry(ctx context.Context, tx ports.DBTX, now time.Time, maxRetries int) ([]*domain.Subscription, error) {
	return r.query(ctx, tx, subscriptionSelectCols+`
		FROM subscriptions
		WHERE status = 'past_due' AND retry_count <= $2 AND retry_at IS NOT NULL AND retry_at <= $1`, now, maxRetries)
}

// ExpiringWithin selects subscriptions that have been marked to lapse at
// period end (rather than auto-renew) and whose period_end falls inside
// the notification window. Filters on cancel_at_period_end directly
// rather than auto_renew=false: a subscription might have auto_renew
// unset for other reasons, but cancel_at_period_end is the field the
// deferred-cancel path actually sets.
func (r *SubscriptionRepository) ExpiringWithin(ctx context.Context, tx ports.DBTX, now time.Time, within time.Duration) ([]*domain.Subscription, error) {
	return r.query(ctx, tx, subscriptionSelectCols+`
		FROM subscriptions
		WHERE status = 'active' AND cancel_at_period_end = true
		AND current_period_end BETWEEN $1 AND $2`, now, now.Add(within))
}

func (r *SubscriptionRepository) TrialsEndingWithin(ctx context.Context, tx ports.DBTX, now time.Time, within time.Duration) ([]*domain.Subscription, error) {
	return r.query(ctx, tx, subscriptionSelectCols+`
		FROM subscriptions
		WHERE status = 'trial' AND trial_end IS NOT NULL
		AND trial_end BETWEEN $1 AND $2`, now, now.Add(within))
}

// TrialsDueForConversion selects trial subscriptions that have crossed
// trial_end and are due the automatic first charge that moves them to
// active (spec.md §3's "crossing trial_end transitions to active with an
// immediate charge attempt").
func (r *SubscriptionRepository) TrialsDueForConversion(ctx context.Context, tx ports.DBTX, now time.Time) ([]*domain.Subscription, error) {
	return r.query(ctx, tx, subscriptionSelectCols+`
		FROM subscriptions
		WHERE status = 'trial' AND trial_end IS NOT NULL AND trial_end <= $1`, now)
}

// PendingExpiration selects active subscriptions that were cancelled for
// end-of-period lapse and whose period has now elapsed, due to transition
// to expired rather than renew.
func (r *SubscriptionRepository) PendingExpiration(ctx context.Context, tx ports.DBTX, now time.Time) ([]*domain.Subscription, error) {
	return r.query(ctx, tx, subscriptionSelectCols+`
		FROM subscriptions
		WHERE status = 'active' AND cancel_at_period_end = true AND current_period_end <= $1`, now)
}

// CountActive reports how many subscriptions currently hold the active
// status, feeding the active-subscription gauge that cmd/server's
// refreshActiveSubscriptionGauge refreshes once a minute.
func (r *SubscriptionRepository) CountActive(ctx context.Context, tx ports.DBTX) (int, error) {
	row := tx.QueryRow(ctx, `SELECT count(*) FROM subscriptions WHERE status = 'active'`)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count active subscriptions: %w", err)
	}
	return count, nil
}

func (r *SubscriptionRepository) query(ctx context.Context, tx ports.DBTX, sql string, args ...any) ([]*domain.Subscription, error) {
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

const subscriptionSelectCols = `SELECT
	id, user_id, plan_id, status, current_period_start, current_period_end,
	trial_end, payment_method_id, cancel_at_period_end, retry_count,
	auto_renew, retry_at, cancelled_at, created_at, updated_at`

// rowScanner is satisfied by both ports.Row and ports.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*domain.Subscription, error) {
	var s domain.Subscription
	var status string
	var trialEnd, retryAt, cancelledAt pgtype.Timestamptz
	var paymentMethodID pgtype.Text

	if err := row.Scan(
		&s.ID, &s.UserID, &s.PlanID, &status, &s.CurrentPeriodStart, &s.CurrentPeriodEnd,
		&trialEnd, &paymentMethodID, &s.CancelAtPeriodEnd, &s.RetryCount,
		&s.AutoRenew, &retryAt, &cancelledAt, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}

	s.Status = domain.SubscriptionStatus(status)
	s.PaymentMethodID = paymentMethodID.String
	if trialEnd.Valid {
		s.TrialEnd = &trialEnd.Time
	}
	if retryAt.Valid {
		s.RetryAt = &retryAt.Time
	}
	if cancelledAt.Valid {
		s.CancelledAt = &cancelledAt.Time
	}
	return &s, nil
}
