package scheduler

import (
	"context"
	"time"

	"github.com/ledgerflow/subscriptions/internal/domain"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
	"go.uber.org/zap"
)

// expiringWithin and trialEndingWithin match original_source's
// SubscriptionScheduler._check_expiring_subscriptions(days=3) and
// _send_trial_notifications(days=2).
const (
	expiringWithin     = 3 * 24 * time.Hour
	trialEndingWithin  = 2 * 24 * time.Hour
)

// JobConfig names the wall-clock hour/minute for the daily jobs, sourced
// from config's BILLING_HOUR/BILLING_MINUTE (spec.md §6); the expiring
// and trial-ending scans keep the original's fixed 09:00/10:00 slots.
type JobConfig struct {
	BillingHour     int
	BillingMinute   int
	RetryInterval   time.Duration
	MaxRetries      int
}

// RegisterSubscriptionJobs wires the four recurring jobs spec.md §6 and
// §9 name onto s, grounded on original_source's
// SubscriptionScheduler.setup_scheduled_tasks: daily billing,
// hourly-by-default retry sweep, daily 09:00 expiration scan, daily 10:00
// trial-ending scan. Returns the four task IDs in that order. The daily
// billing slot also drives the trial --trial_end reached--> active
// conversion scan and the active --cancel_at_period_end && period_end
// reached--> expired scan (spec.md §3, §4.5): both are charge-scan-shaped
// work the billing engine owns, not a notification-only query, and
// spec.md §6 names no separate wall-clock slot for them.
func RegisterSubscriptionJobs(s *Scheduler, billing ports.BillingEngine, subscriptions ports.SubscriptionRepository, txMgr ports.TransactionManager, plans ports.PlanRepository, notifier ports.Notifier, cfg JobConfig, logger *zap.Logger) [4]string {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Hour
	}

	billingID := s.ScheduleDailyTask(func(ctx context.Context) {
		results, err := billing.ProcessRecurringPayments(ctx)
		if err != nil {
			logger.Error("scheduled billing run failed", zap.Error(err))
		} else {
			logger.Info("scheduled billing run completed", zap.Int("processed", len(results)))
		}

		conversions, err := billing.ProcessTrialConversions(ctx)
		if err != nil {
			logger.Error("scheduled trial conversion scan failed", zap.Error(err))
		} else {
			logger.Info("scheduled trial conversion scan completed", zap.Int("converted", len(conversions)))
		}

		expirations, err := billing.ProcessExpirations(ctx)
		if err != nil {
			logger.Error("scheduled expiration scan failed", zap.Error(err))
		} else {
			logger.Info("scheduled expiration scan completed", zap.Int("expired", len(expirations)))
		}
	}, cfg.BillingHour, cfg.BillingMinute)

	retryID := s.ScheduleRecurringTask(func(ctx context.Context) {
		results, err := billing.RetryFailedPayments(ctx, cfg.MaxRetries)
		if err != nil {
			logger.Error("scheduled retry sweep failed", zap.Error(err))
			return
		}
		logger.Info("scheduled retry sweep completed", zap.Int("retried", len(results)))
	}, cfg.RetryInterval)

	expirationID := s.ScheduleDailyTask(func(ctx context.Context) {
		checkExpiringSubscriptions(ctx, subscriptions, txMgr, plans, notifier, s.clock.Now(), logger)
	}, 9, 0)

	trialID := s.ScheduleDailyTask(func(ctx context.Context) {
		sendTrialNotifications(ctx, subscriptions, txMgr, plans, notifier, s.clock.Now(), logger)
	}, 10, 0)

	return [4]string{billingID, retryID, expirationID, trialID}
}

func checkExpiringSubscriptions(ctx context.Context, subscriptions ports.SubscriptionRepository, txMgr ports.TransactionManager, plans ports.PlanRepository, notifier ports.Notifier, now time.Time, logger *zap.Logger) {
	var expiring []*domain.Subscription
	err := txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		s, err := subscriptions.ExpiringWithin(ctx, tx, now, expiringWithin)
		if err != nil {
			return err
		}
		expiring = s
		return nil
	})
	if err != nil {
		logger.Error("expiring-subscription scan failed", zap.Error(err))
		return
	}

	for _, sub := range expiring {
		data := map[string]any{
			"subscription_id": sub.ID,
			"expires_at":      sub.CurrentPeriodEnd.Format(time.RFC3339),
		}
		var planName string
		_ = txMgr.WithTx(ctx, func(tx ports.DBTX) error {
			p, err := plans.GetByID(ctx, tx, sub.PlanID)
			if err == nil && p != nil {
				planName = p.Name
			}
			return nil
		})
		if planName != "" {
			data["plan_name"] = planName
		}
		notifier.Send(ctx, sub.UserID, ports.EventSubscriptionExpiring, data)
	}
	logger.Info("sent expiration notifications", zap.Int("count", len(expiring)))
}

func sendTrialNotifications(ctx context.Context, subscriptions ports.SubscriptionRepository, txMgr ports.TransactionManager, plans ports.PlanRepository, notifier ports.Notifier, now time.Time, logger *zap.Logger) {
	var ending []*domain.Subscription
	err := txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		s, err := subscriptions.TrialsEndingWithin(ctx, tx, now, trialEndingWithin)
		if err != nil {
			return err
		}
		ending = s
		return nil
	})
	if err != nil {
		logger.Error("trial-ending scan failed", zap.Error(err))
		return
	}

	for _, sub := range ending {
		if sub.TrialEnd == nil {
			continue
		}
		daysLeft := int(sub.TrialEnd.Sub(now).Hours() / 24)
		data := map[string]any{
			"subscription_id": sub.ID,
			"trial_ends_at":   sub.TrialEnd.Format(time.RFC3339),
			"days_left":       daysLeft,
		}
		notifier.Send(ctx, sub.UserID, ports.EventTrialEnding, data)
	}
	logger.Info("sent trial notifications", zap.Int("count", len(ending)))
}
