// Package billing implements the scheduled and on-demand charge scans of
// spec.md §4.6: recurring billing, failed-payment retries, and invoice
// generation. Grounded on original_source/subscription/billing/__init__.py's
// BillingEngine (ThreadPoolExecutor-driven scan over due subscriptions),
// translated into a bounded goroutine pool guarded by the per-subscription
// sharded lock in locks.go (spec.md §9 forbids a single global lock).
package billing

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerflow/subscriptions/internal/domain"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
	"github.com/ledgerflow/subscriptions/internal/services/lifecycle"
	"github.com/ledgerflow/subscriptions/internal/services/payment"
	"github.com/ledgerflow/subscriptions/internal/services/plan"
	"github.com/ledgerflow/subscriptions/pkg/clock"
	"github.com/ledgerflow/subscriptions/pkg/observability"
	"go.uber.org/zap"
)

const defaultMaxWorkers = 5

// gatewayRetryDelay is the fixed backoff applied when a charge fails with
// a gateway/infrastructure error rather than a declined card: spec.md
// §4.6 requires these to be retried soon (not counted against
// retry_count) with an admin alert, rather than following the day-scale
// RETRY_DELAY_DAYS schedule used for declines.
const gatewayRetryDelay = time.Hour

// Engine implements ports.BillingEngine. It does not duplicate the
// lifecycle manager's per-subscription state transitions; instead it
// scans for due subscriptions and drives a lifecycle.Manager charge-
// attempt verb (Renew for the recurring and retry scans, ConvertTrial for
// trial conversions) concurrently, one worker per subscription, bounded by
// MaxWorkers.
type Engine struct {
	subscriptions ports.SubscriptionRepository
	plans         ports.PlanRepository
	users         ports.UserRepository
	transactions  ports.TransactionRepository
	audit         ports.AuditRepository
	calculator    *plan.Calculator
	processor     *payment.Processor
	manager       *lifecycle.Manager
	notifier      ports.Notifier
	invoices      ports.InvoiceRenderer
	txMgr         ports.TransactionManager
	clock         clock.Clock
	locks         *SubscriptionLocks
	maxWorkers    int
	retrySchedule []int
	logger        *zap.Logger
}

func NewEngine(
	subscriptions ports.SubscriptionRepository,
	plans ports.PlanRepository,
	users ports.UserRepository,
	transactions ports.TransactionRepository,
	audit ports.AuditRepository,
	calculator *plan.Calculator,
	processor *payment.Processor,
	manager *lifecycle.Manager,
	notifier ports.Notifier,
	invoices ports.InvoiceRenderer,
	txMgr ports.TransactionManager,
	clk clock.Clock,
	maxWorkers int,
	retrySchedule []int,
	logger *zap.Logger,
) *Engine {
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}
	return &Engine{
		subscriptions: subscriptions,
		plans:         plans,
		users:         users,
		transactions:  transactions,
		audit:         audit,
		calculator:    calculator,
		processor:     processor,
		manager:       manager,
		notifier:      notifier,
		invoices:      invoices,
		txMgr:         txMgr,
		clock:         clk,
		locks:         NewSubscriptionLocks(),
		maxWorkers:    maxWorkers,
		retrySchedule: retrySchedule,
		logger:        logger,
	}
}

// ProcessRecurringPayments scans for subscriptions due for billing
// (current_period_end <= now, active, auto_renew) and renews each
// concurrently, one goroutine per subscription bounded by maxWorkers.
func (e *Engine) ProcessRecurringPayments(ctx context.Context) ([]ports.BillingResult, error) {
	start := e.clock.Now()
	now := start
	var due []*domain.Subscription
	err := e.txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		d, err := e.subscriptions.DueForPayment(ctx, tx, now)
		if err != nil {
			return err
		}
		due = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := e.runConcurrent(ctx, due, func(ctx context.Context, s *domain.Subscription) ports.BillingResult {
		return e.processOne(ctx, "recurring", s, e.manager.Renew)
	})
	observability.RecordBillingRunDuration("recurring", e.clock.Now().Sub(start).Seconds())
	return results, nil
}

// ProcessTrialConversions scans trial subscriptions whose trial_end has
// elapsed and attempts the automatic first charge that converts each to
// active (spec.md §3, §8 scenario 6), reusing the same concurrent,
// per-subscription-locked scan shape as ProcessRecurringPayments.
func (e *Engine) ProcessTrialConversions(ctx context.Context) ([]ports.BillingResult, error) {
	start := e.clock.Now()
	now := start
	var due []*domain.Subscription
	err := e.txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		d, err := e.subscriptions.TrialsDueForConversion(ctx, tx, now)
		if err != nil {
			return err
		}
		due = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := e.runConcurrent(ctx, due, func(ctx context.Context, s *domain.Subscription) ports.BillingResult {
		return e.processOne(ctx, "trial_conversion", s, e.manager.ConvertTrial)
	})
	observability.RecordBillingRunDuration("trial_conversion", e.clock.Now().Sub(start).Seconds())
	return results, nil
}

// ProcessExpirations scans active subscriptions deferred for
// end-of-period lapse (cancel_at_period_end) whose period has elapsed,
// and transitions each to expired instead of renewing (spec.md §4.5's
// active --cancel_at_period_end && period_end reached--> expired edge).
func (e *Engine) ProcessExpirations(ctx context.Context) ([]ports.BillingResult, error) {
	start := e.clock.Now()
	now := start
	var due []*domain.Subscription
	err := e.txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		d, err := e.subscriptions.PendingExpiration(ctx, tx, now)
		if err != nil {
			return err
		}
		due = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := e.runConcurrent(ctx, due, func(ctx context.Context, s *domain.Subscription) ports.BillingResult {
		summary, err := e.manager.Expire(ctx, s.ID)
		if err != nil {
			observability.RecordSubscriptionBilling("expiration", "failed")
			return ports.BillingResult{SubscriptionID: s.ID, Success: false, Error: err.Error()}
		}
		observability.RecordSubscriptionBilling("expiration", "expired")
		return ports.BillingResult{SubscriptionID: summary.Subscription.ID, Success: true}
	})
	observability.RecordBillingRunDuration("expiration", e.clock.Now().Sub(start).Seconds())
	return results, nil
}

// RetryFailedPayments scans past_due subscriptions whose retry_at has
// elapsed and retries each. Subscriptions whose retry_count has reached
// maxRetries are cancelled instead of retried (spec.md §4.6.b).
func (e *Engine) RetryFailedPayments(ctx context.Context, maxRetries int) ([]ports.BillingResult, error) {
	start := e.clock.Now()
	now := start
	var eligible []*domain.Subscription
	err := e.txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		s, err := e.subscriptions.EligibleForRetry(ctx, tx, now, maxRetries)
		if err != nil {
			return err
		}
		eligible = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := e.runConcurrent(ctx, eligible, func(ctx context.Context, s *domain.Subscription) ports.BillingResult {
		if s.ExceedsMaxRetries(maxRetries) {
			return e.cancelExhausted(ctx, s)
		}
		return e.processOne(ctx, "retry", s, e.manager.Renew)
	})
	observability.RecordBillingRunDuration("retry", e.clock.Now().Sub(start).Seconds())
	return results, nil
}

// runConcurrent fans work out over a bounded pool, one worker per
// subscription, skipping any subscription another worker currently holds
// (spec.md §5: no two workers may mutate the same subscription
// concurrently; no cross-subscription ordering is guaranteed).
func (e *Engine) runConcurrent(ctx context.Context, subs []*domain.Subscription, work func(context.Context, *domain.Subscription) ports.BillingResult) []ports.BillingResult {
	results := make([]ports.BillingResult, 0, len(subs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for _, s := range subs {
		s := s
		unlock, ok := e.locks.TryLock(s.ID)
		if !ok {
			mu.Lock()
			results = append(results, ports.BillingResult{SubscriptionID: s.ID, Success: false, Error: "locked"})
			mu.Unlock()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer unlock()

			res := work(ctx, s)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}()
	}

	wg.Wait()
	return results
}

// processOne drives a single subscription through a lifecycle-manager
// charge-attempt verb (Renew for a recurring/retry scan, ConvertTrial for
// a trial-conversion scan). A declined charge keeps the retry the manager
// scheduled (cancellation at max retries happens in a later
// RetryFailedPayments sweep, not here); a gateway error is turned into a
// short fixed-delay retry with an admin alert, mirroring
// original_source's distinction between insufficient_funds and
// gateway/connection failures.
func (e *Engine) processOne(ctx context.Context, trigger string, s *domain.Subscription, action func(context.Context, string) (ports.SubscriptionSummary, error)) ports.BillingResult {
	summary, err := action(ctx, s.ID)
	if err == nil {
		observability.RecordSubscriptionBilling(trigger, "success")
		return ports.BillingResult{
			SubscriptionID:  s.ID,
			Success:         true,
			TransactionID:   summary.TransactionID,
			NextBillingDate: summary.NextBillingDate,
		}
	}

	if domain.IsKind(err, domain.KindPaymentGatewayError) && !domain.IsKind(err, domain.KindInsufficientFunds) {
		e.logger.Warn("gateway error during billing scan, scheduling short retry",
			zap.String("subscription_id", s.ID), zap.Error(err))
		e.notifier.Send(ctx, s.UserID, ports.EventPaymentFailed, map[string]any{
			"subscription_id": s.ID,
			"reason":          "gateway_error",
			"admin_alert":     true,
		})
		e.rescheduleRetry(ctx, s.ID, gatewayRetryDelay)
		observability.RecordSubscriptionBilling(trigger, "retrying")
		return ports.BillingResult{SubscriptionID: s.ID, Success: false, TransactionID: summary.TransactionID, Error: err.Error(), RetryScheduled: true}
	}

	observability.RecordSubscriptionBilling(trigger, "failed")
	return ports.BillingResult{
		SubscriptionID: s.ID,
		Success:        false,
		TransactionID:  summary.TransactionID,
		Error:          err.Error(),
		RetryScheduled: true,
	}
}

// rescheduleRetry overrides retry_at to a short fixed delay without
// incrementing retry_count, since a gateway/infrastructure failure is not
// the customer's fault and must not count against their retry budget.
func (e *Engine) rescheduleRetry(ctx context.Context, subscriptionID string, delay time.Duration) {
	err := e.txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		s, err := e.subscriptions.GetByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if s == nil {
			return nil
		}
		retryAt := e.clock.Now().Add(delay)
		s.RetryAt = &retryAt
		s.UpdatedAt = e.clock.Now()
		return e.subscriptions.Update(ctx, tx, s)
	})
	if err != nil {
		e.logger.Error("failed to reschedule gateway-error retry", zap.String("subscription_id", subscriptionID), zap.Error(err))
	}
}

func (e *Engine) cancelExhausted(ctx context.Context, s *domain.Subscription) ports.BillingResult {
	now := e.clock.Now()
	err := e.txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		old := map[string]any{"status": s.Status, "retry_count": s.RetryCount}
		s.Status = domain.SubscriptionStatusCancelled
		s.CancelledAt = &now
		s.UpdatedAt = now
		if err := e.subscriptions.Update(ctx, tx, s); err != nil {
			return err
		}
		entry := domain.AuditEntry{
			ID:             s.ID + "-exhausted-" + now.Format(time.RFC3339Nano),
			SubscriptionID: s.ID,
			Action:         "cancel_retries_exhausted",
			OldValues:      old,
			NewValues:      map[string]any{"status": s.Status},
			Actor:          "system",
			CreatedAt:      now,
		}
		return e.audit.Append(ctx, tx, entry)
	})
	if err != nil {
		e.logger.Error("failed to cancel exhausted subscription", zap.String("subscription_id", s.ID), zap.Error(err))
		return ports.BillingResult{SubscriptionID: s.ID, Success: false, Error: err.Error()}
	}
	observability.RecordSubscriptionBilling("retry", "cancelled")
	e.notifier.Send(ctx, s.UserID, ports.EventSubscriptionCancelled, map[string]any{"subscription_id": s.ID, "reason": "max_retries_exceeded"})
	return ports.BillingResult{SubscriptionID: s.ID, Success: false, Cancelled: true}
}

// GenerateInvoice assembles InvoiceData for a completed transaction and
// delegates rendering to the out-of-scope collaborator (spec.md §1). A
// missing or not-completed transaction yields ErrTransactionNotFound.
func (e *Engine) GenerateInvoice(ctx context.Context, transactionID string) ([]byte, error) {
	var data ports.InvoiceData
	err := e.txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		txn, err := e.transactions.GetByID(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if txn == nil || !txn.IsCompleted() {
			return domain.ErrTransactionNotFound
		}
		user, err := e.users.GetByID(ctx, tx, txn.UserID)
		if err != nil {
			return err
		}
		data.Transaction = txn
		data.User = user

		if txn.SubscriptionID != nil {
			sub, err := e.subscriptions.GetByID(ctx, tx, *txn.SubscriptionID)
			if err != nil {
				return err
			}
			data.Subscription = sub
			if sub != nil {
				planObj, err := e.plans.GetByID(ctx, tx, sub.PlanID)
				if err != nil {
					return err
				}
				data.Plan = planObj
			}
		}
		return nil
	})
	if err != nil {
		observability.RecordInvoiceGenerated("failed")
		return nil, err
	}
	bytes, err := e.invoices.Render(ctx, data)
	if err != nil {
		observability.RecordInvoiceGenerated("failed")
		return nil, err
	}
	observability.RecordInvoiceGenerated("success")
	return bytes, nil
}
