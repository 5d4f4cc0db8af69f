// Package lifecycle implements the subscription state machine of
// spec.md §4.5: create/cancel/upgrade/renew, grounded on
// original_source/subscription/lifecycle/__init__.py's
// SubscriptionLifecycleManager and the teacher's subscriptionService Go
// shape (constructor over repositories + gateway + clock, every mutating
// operation inside TransactionManager.WithTx).
package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerflow/subscriptions/internal/domain"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
	"github.com/ledgerflow/subscriptions/internal/services/payment"
	"github.com/ledgerflow/subscriptions/internal/services/plan"
	"github.com/ledgerflow/subscriptions/pkg/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// defaultRetrySchedule is the RETRY_DELAY_DAYS day schedule NewManager
// falls back to when it is given an empty one; retryDelay prefers the
// schedule over pure exponential backoff when computing retry_at for
// every failed charge.
var defaultRetrySchedule = []int{1, 3, 7}

// Manager implements ports.LifecycleManager.
type Manager struct {
	subscriptions ports.SubscriptionRepository
	plans         ports.PlanRepository
	users         ports.UserRepository
	transactions  ports.TransactionRepository
	audit         ports.AuditRepository
	calculator    *plan.Calculator
	processor     *payment.Processor
	notifier      ports.Notifier
	txMgr         ports.TransactionManager
	clock         clock.Clock
	retrySchedule []int
	logger        *zap.Logger
}

func NewManager(
	subscriptions ports.SubscriptionRepository,
	plans ports.PlanRepository,
	users ports.UserRepository,
	transactions ports.TransactionRepository,
	audit ports.AuditRepository,
	calculator *plan.Calculator,
	processor *payment.Processor,
	notifier ports.Notifier,
	txMgr ports.TransactionManager,
	clk clock.Clock,
	retrySchedule []int,
	logger *zap.Logger,
) *Manager {
	if len(retrySchedule) == 0 {
		retrySchedule = defaultRetrySchedule
	}
	return &Manager{
		subscriptions: subscriptions,
		plans:         plans,
		users:         users,
		transactions:  transactions,
		audit:         audit,
		calculator:    calculator,
		processor:     processor,
		notifier:      notifier,
		txMgr:         txMgr,
		clock:         clk,
		retrySchedule: retrySchedule,
		logger:        logger,
	}
}

func (m *Manager) writeAudit(ctx context.Context, tx ports.DBTX, subID, action string, oldValues, newValues map[string]any, actor string) {
	entry := domain.AuditEntry{
		ID:             uuid.NewString(),
		SubscriptionID: subID,
		Action:         action,
		OldValues:      oldValues,
		NewValues:      newValues,
		Actor:          actor,
		CreatedAt:      m.clock.Now(),
	}
	if err := m.audit.Append(ctx, tx, entry); err != nil {
		m.logger.Error("failed to write audit entry", zap.String("subscription_id", subID), zap.Error(err))
	}
}

// retryDelay computes the retry schedule for attempt n (1-indexed),
// preferring the configured day schedule and falling back to exponential
// backoff (1 * 2^(n-1) days, capped at 24 days) past the schedule's length.
func (m *Manager) retryDelay(attempt int) time.Duration {
	if attempt >= 1 && attempt <= len(m.retrySchedule) {
		return time.Duration(m.retrySchedule[attempt-1]) * 24 * time.Hour
	}
	days := 1
	for i := 1; i < attempt; i++ {
		days *= 2
		if days > 24 {
			days = 24
			break
		}
	}
	return time.Duration(days) * 24 * time.Hour
}

// Create implements spec.md §4.5's create operation.
func (m *Manager) Create(ctx context.Context, req ports.CreateSubscriptionRequest) (ports.SubscriptionSummary, error) {
	now := m.clock.Now()

	var (
		sub        *domain.Subscription
		txnID      string
		createErr  error
	)

	err := m.txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		existing, err := m.subscriptions.FindActiveForUserPlan(ctx, tx, req.UserID, req.PlanID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrSubscriptionAlreadyExists
		}

		planObj, err := m.plans.GetByID(ctx, tx, req.PlanID)
		if err != nil {
			return err
		}
		if planObj == nil || !planObj.Active {
			return domain.ErrPlanNotFound
		}

		discount, err := m.calculator.ApplyPromo(ctx, tx, req.PromoCode, planObj, req.UserID, now)
		if err != nil {
			return err
		}
		chargeAmount, err := planObj.Price.Sub(discount)
		if err != nil {
			return err
		}
		chargeAmount = chargeAmount.Clamp()

		sub = &domain.Subscription{
			ID:                 uuid.NewString(),
			UserID:             req.UserID,
			PlanID:             req.PlanID,
			PaymentMethodID:    req.PaymentMethodID,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   now.AddDate(0, 0, planObj.BillingCycleDays),
			AutoRenew:          true,
			CreatedAt:          now,
			UpdatedAt:          now,
		}

		if planObj.HasTrial() {
			trialEnd := now.AddDate(0, 0, planObj.TrialPeriodDays)
			sub.Status = domain.SubscriptionStatusTrial
			sub.TrialEnd = &trialEnd

			if err := m.subscriptions.Create(ctx, tx, sub); err != nil {
				return err
			}
			if err := m.calculator.RedeemPromo(ctx, tx, req.PromoCode, req.UserID, now); err != nil {
				return err
			}
			m.writeAudit(ctx, tx, sub.ID, "create", nil, map[string]any{"status": sub.Status}, req.UserID)
			return nil
		}

		sub.Status = domain.SubscriptionStatusPending
		if err := m.subscriptions.Create(ctx, tx, sub); err != nil {
			return err
		}
		if err := m.calculator.RedeemPromo(ctx, tx, req.PromoCode, req.UserID, now); err != nil {
			return err
		}
		m.writeAudit(ctx, tx, sub.ID, "create", nil, map[string]any{"status": sub.Status}, req.UserID)

		txn, chargeErr := m.processor.Charge(ctx, payment.ChargeRequest{
			UserID:          req.UserID,
			SubscriptionID:  &sub.ID,
			Amount:          chargeAmount,
			PaymentMethodID: req.PaymentMethodID,
			Type:            domain.TransactionTypeInitial,
			Description:     "initial subscription charge",
		})
		if txn != nil {
			txnID = txn.ID
		}
		if chargeErr != nil {
			sub.RetryCount = 1
			retryAt := now.Add(m.retryDelay(1))
			sub.RetryAt = &retryAt
			createErr = chargeErr
			if err := m.subscriptions.Update(ctx, tx, sub); err != nil {
				return err
			}
			m.writeAudit(ctx, tx, sub.ID, "create_charge_failed", nil, map[string]any{"retry_count": sub.RetryCount}, "system")
			return nil
		}

		sub.Status = domain.SubscriptionStatusActive
		return m.subscriptions.Update(ctx, tx, sub)
	})
	if err != nil {
		return ports.SubscriptionSummary{}, err
	}

	if createErr == nil {
		m.notifier.Send(ctx, req.UserID, ports.EventSubscriptionCreated, map[string]any{"subscription_id": sub.ID})
	}

	summary := ports.SubscriptionSummary{Subscription: sub, TransactionID: txnID}
	if sub.TrialEnd != nil {
		summary.TrialEndsAt = sub.TrialEnd.Format(time.RFC3339)
	}
	summary.NextBillingDate = sub.CurrentPeriodEnd.Format(time.RFC3339)
	return summary, createErr
}

// Cancel implements spec.md §4.5's cancel operation.
func (m *Manager) Cancel(ctx context.Context, subscriptionID string, immediate bool) (ports.SubscriptionSummary, error) {
	now := m.clock.Now()
	var sub *domain.Subscription

	err := m.txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		s, err := m.subscriptions.GetByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if s == nil {
			return domain.ErrSubscriptionNotFound
		}
		if s.IsTerminal() {
			return domain.ErrAlreadyCancelled
		}
		sub = s

		if !immediate {
			old := map[string]any{"cancel_at_period_end": s.CancelAtPeriodEnd, "auto_renew": s.AutoRenew}
			s.CancelAtPeriodEnd = true
			s.AutoRenew = false
			s.UpdatedAt = now
			if err := m.subscriptions.Update(ctx, tx, s); err != nil {
				return err
			}
			m.writeAudit(ctx, tx, s.ID, "cancel_at_period_end", old, map[string]any{"cancel_at_period_end": true, "auto_renew": false}, "user")
			return nil
		}

		planObj, err := m.plans.GetByID(ctx, tx, s.PlanID)
		if err != nil {
			return err
		}
		if planObj == nil {
			return domain.ErrPlanNotFound
		}

		remaining := s.RemainingDays(now)
		total := s.PeriodDays()
		var refundAmount domain.Money
		if total > 0 {
			fraction := decimal.NewFromInt(int64(remaining)).Div(decimal.NewFromInt(int64(total)))
			refundAmount = planObj.Price.Mul(fraction).Clamp()
		} else {
			refundAmount = domain.ZeroMoney(planObj.Price.Currency)
		}

		latest, err := m.transactions.LatestCompletedForSubscription(ctx, tx, s.ID)
		if err != nil {
			return err
		}

		var gatewayRef string
		if latest != nil {
			gatewayRef = latest.GatewayRef
		}

		if !refundAmount.IsZero() {
			_, refundErr := m.processor.Refund(ctx, s.UserID, &s.ID, gatewayRef, refundAmount)
			if refundErr != nil {
				return refundErr
			}
		}

		old := map[string]any{"status": s.Status}
		s.Status = domain.SubscriptionStatusCancelled
		s.CancelledAt = &now
		s.UpdatedAt = now
		if err := m.subscriptions.Update(ctx, tx, s); err != nil {
			return err
		}
		m.writeAudit(ctx, tx, s.ID, "cancel_immediate", old, map[string]any{"status": s.Status}, "user")
		return nil
	})
	if err != nil {
		return ports.SubscriptionSummary{}, err
	}

	m.notifier.Send(ctx, sub.UserID, ports.EventSubscriptionCancelled, map[string]any{"subscription_id": sub.ID, "immediate": immediate})
	return ports.SubscriptionSummary{Subscription: sub}, nil
}

// Upgrade implements spec.md §4.5's upgrade operation.
func (m *Manager) Upgrade(ctx context.Context, subscriptionID, newPlanID string) (ports.SubscriptionSummary, error) {
	now := m.clock.Now()
	var (
		sub   *domain.Subscription
		txnID string
	)

	err := m.txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		s, err := m.subscriptions.GetByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if s == nil {
			return domain.ErrSubscriptionNotFound
		}
		if s.Status != domain.SubscriptionStatusActive && s.Status != domain.SubscriptionStatusTrial {
			return domain.NewError(domain.KindInvalidInput, "subscription must be active or in trial to upgrade")
		}

		currentPlan, err := m.plans.GetByID(ctx, tx, s.PlanID)
		if err != nil {
			return err
		}
		newPlan, err := m.plans.GetByID(ctx, tx, newPlanID)
		if err != nil {
			return err
		}
		if newPlan == nil || !newPlan.Active {
			return domain.ErrPlanNotFound
		}
		greater, err := newPlan.Price.GreaterThan(currentPlan.Price)
		if err != nil {
			return err
		}
		if !greater {
			return domain.ErrInvalidUpgrade
		}

		amountDue := plan.Prorate(s, currentPlan, newPlan, now)
		if !amountDue.IsZero() {
			txn, chargeErr := m.processor.Charge(ctx, payment.ChargeRequest{
				UserID:          s.UserID,
				SubscriptionID:  &s.ID,
				Amount:          amountDue,
				PaymentMethodID: s.PaymentMethodID,
				Type:            domain.TransactionTypeUpgrade,
				Description:     "plan upgrade proration",
			})
			if txn != nil {
				txnID = txn.ID
			}
			if chargeErr != nil {
				return chargeErr
			}
		}

		old := map[string]any{"plan_id": s.PlanID, "retry_count": s.RetryCount}
		s.PlanID = newPlanID
		s.RetryCount = 0
		s.UpdatedAt = now
		sub = s
		if err := m.subscriptions.Update(ctx, tx, s); err != nil {
			return err
		}
		m.writeAudit(ctx, tx, s.ID, "upgrade", old, map[string]any{"plan_id": newPlanID}, "user")
		return nil
	})
	if err != nil {
		return ports.SubscriptionSummary{}, err
	}

	m.notifier.Send(ctx, sub.UserID, ports.EventUpgradeCompleted, map[string]any{"subscription_id": sub.ID, "new_plan_id": newPlanID})
	return ports.SubscriptionSummary{Subscription: sub, TransactionID: txnID}, nil
}

// Renew implements spec.md §4.5's manual renew operation. It also drives
// the billing engine's retry sweep, so a past_due subscription is accepted
// too: a successful charge returns it to active via ExtendPeriod, a failed
// one keeps it past_due with the next retry scheduled.
func (m *Manager) Renew(ctx context.Context, subscriptionID string) (ports.SubscriptionSummary, error) {
	now := m.clock.Now()
	var (
		sub      *domain.Subscription
		txnID    string
		chargeFailed error
	)

	renewErr := m.txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		s, err := m.subscriptions.GetByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if s == nil {
			return domain.ErrSubscriptionNotFound
		}
		if s.Status != domain.SubscriptionStatusActive && s.Status != domain.SubscriptionStatusPastDue {
			return domain.NewError(domain.KindInvalidInput, "subscription must be active or past_due to renew")
		}
		sub = s

		planObj, err := m.plans.GetByID(ctx, tx, s.PlanID)
		if err != nil {
			return err
		}
		if planObj == nil {
			return domain.ErrPlanNotFound
		}

		txn, chargeErr := m.processor.Charge(ctx, payment.ChargeRequest{
			UserID:          s.UserID,
			SubscriptionID:  &s.ID,
			Amount:          planObj.Price,
			PaymentMethodID: s.PaymentMethodID,
			Type:            domain.TransactionTypeRenewal,
			Description:     "manual renewal",
		})
		if txn != nil {
			txnID = txn.ID
		}

		old := map[string]any{"status": s.Status, "current_period_end": s.CurrentPeriodEnd}
		if chargeErr != nil {
			chargeFailed = chargeErr
			s.RetryCount++
			s.Status = domain.SubscriptionStatusPastDue
			retryAt := now.Add(m.retryDelay(s.RetryCount))
			s.RetryAt = &retryAt
			s.UpdatedAt = now
			if err := m.subscriptions.Update(ctx, tx, s); err != nil {
				return err
			}
			m.writeAudit(ctx, tx, s.ID, "renew_failed", old, map[string]any{"status": s.Status}, "user")
			return nil
		}

		s.ExtendPeriod(planObj.BillingCycleDays)
		s.UpdatedAt = now
		if err := m.subscriptions.Update(ctx, tx, s); err != nil {
			return err
		}
		m.writeAudit(ctx, tx, s.ID, "renew", old, map[string]any{"status": s.Status, "current_period_end": s.CurrentPeriodEnd}, "user")
		return nil
	})
	if renewErr != nil {
		return ports.SubscriptionSummary{}, renewErr
	}
	if chargeFailed != nil {
		m.notifier.Send(ctx, sub.UserID, ports.EventPaymentFailed, map[string]any{"subscription_id": sub.ID})
		return ports.SubscriptionSummary{Subscription: sub, TransactionID: txnID}, chargeFailed
	}

	m.notifier.Send(ctx, sub.UserID, ports.EventPaymentSuccess, map[string]any{"subscription_id": sub.ID})
	return ports.SubscriptionSummary{Subscription: sub, TransactionID: txnID, NextBillingDate: sub.CurrentPeriodEnd.Format(time.RFC3339)}, nil
}

// ConvertTrial implements spec.md §3's "crossing trial_end transitions to
// active with an immediate charge attempt" and the state table's
// trial --trial_end reached--> active edge. current_period_end was fixed
// at creation time to the full billing cycle, so a successful conversion
// does not extend the period (spec.md §8 scenario 6); a failed one drops
// the subscription into past_due on the same retry schedule a failed
// renewal would.
func (m *Manager) ConvertTrial(ctx context.Context, subscriptionID string) (ports.SubscriptionSummary, error) {
	now := m.clock.Now()
	var (
		sub          *domain.Subscription
		txnID        string
		chargeFailed error
	)

	convertErr := m.txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		s, err := m.subscriptions.GetByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if s == nil {
			return domain.ErrSubscriptionNotFound
		}
		if s.Status != domain.SubscriptionStatusTrial {
			return domain.NewError(domain.KindInvalidInput, "subscription must be in trial to convert")
		}
		sub = s

		planObj, err := m.plans.GetByID(ctx, tx, s.PlanID)
		if err != nil {
			return err
		}
		if planObj == nil {
			return domain.ErrPlanNotFound
		}

		txn, chargeErr := m.processor.Charge(ctx, payment.ChargeRequest{
			UserID:          s.UserID,
			SubscriptionID:  &s.ID,
			Amount:          planObj.Price,
			PaymentMethodID: s.PaymentMethodID,
			Type:            domain.TransactionTypeInitial,
			Description:     "trial conversion charge",
		})
		if txn != nil {
			txnID = txn.ID
		}

		old := map[string]any{"status": s.Status}
		if chargeErr != nil {
			chargeFailed = chargeErr
			s.RetryCount++
			s.Status = domain.SubscriptionStatusPastDue
			retryAt := now.Add(m.retryDelay(s.RetryCount))
			s.RetryAt = &retryAt
			s.UpdatedAt = now
			if err := m.subscriptions.Update(ctx, tx, s); err != nil {
				return err
			}
			m.writeAudit(ctx, tx, s.ID, "trial_conversion_failed", old, map[string]any{"status": s.Status}, "system")
			return nil
		}

		s.Status = domain.SubscriptionStatusActive
		s.RetryCount = 0
		s.UpdatedAt = now
		if err := m.subscriptions.Update(ctx, tx, s); err != nil {
			return err
		}
		m.writeAudit(ctx, tx, s.ID, "trial_converted", old, map[string]any{"status": s.Status}, "system")
		return nil
	})
	if convertErr != nil {
		return ports.SubscriptionSummary{}, convertErr
	}
	if chargeFailed != nil {
		m.notifier.Send(ctx, sub.UserID, ports.EventPaymentFailed, map[string]any{"subscription_id": sub.ID})
		return ports.SubscriptionSummary{Subscription: sub, TransactionID: txnID}, chargeFailed
	}

	m.notifier.Send(ctx, sub.UserID, ports.EventPaymentSuccess, map[string]any{"subscription_id": sub.ID})
	return ports.SubscriptionSummary{Subscription: sub, TransactionID: txnID, NextBillingDate: sub.CurrentPeriodEnd.Format(time.RFC3339)}, nil
}

// Expire implements spec.md §4.5's
// active --cancel_at_period_end && period_end reached--> expired edge: a
// subscription deferred for end-of-period lapse (Cancel with
// immediate=false) has now reached its period end with no further charge
// attempted, unlike a plain renewal failure which goes to past_due.
func (m *Manager) Expire(ctx context.Context, subscriptionID string) (ports.SubscriptionSummary, error) {
	now := m.clock.Now()
	var sub *domain.Subscription

	err := m.txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		s, err := m.subscriptions.GetByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if s == nil {
			return domain.ErrSubscriptionNotFound
		}
		if s.IsTerminal() {
			return domain.ErrAlreadyCancelled
		}
		if !s.CancelAtPeriodEnd {
			return domain.NewError(domain.KindInvalidInput, "subscription is not marked to lapse at period end")
		}
		sub = s

		old := map[string]any{"status": s.Status}
		s.Status = domain.SubscriptionStatusExpired
		s.UpdatedAt = now
		if err := m.subscriptions.Update(ctx, tx, s); err != nil {
			return err
		}
		m.writeAudit(ctx, tx, s.ID, "expire", old, map[string]any{"status": s.Status}, "system")
		return nil
	})
	if err != nil {
		return ports.SubscriptionSummary{}, err
	}
	return ports.SubscriptionSummary{Subscription: sub}, nil
}
