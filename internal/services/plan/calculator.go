// Package plan implements pure computation over plan metadata: lookup,
// promo application, and proration (spec.md §4.4).
package plan

import (
	"context"
	"time"

	"github.com/ledgerflow/subscriptions/internal/domain"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// Calculator is grounded on original_source's PlanCalculator /
// _calculate_prorated_amount and the teacher's decimal arithmetic idiom
// (decimal.NewFromInt(...).Div(...)). Promo application is implemented in
// full per spec.md §4.4, even though original_source stubs it at zero.
type Calculator struct {
	plans  ports.PlanRepository
	promos ports.PromoCodeRepository
	txMgr  ports.TransactionManager
}

func NewCalculator(plans ports.PlanRepository, promos ports.PromoCodeRepository, txMgr ports.TransactionManager) *Calculator {
	return &Calculator{plans: plans, promos: promos, txMgr: txMgr}
}

// GetPlan looks up a plan, failing with NotFound if it is missing or
// inactive.
func (c *Calculator) GetPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	var plan *domain.Plan
	err := c.txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		p, err := c.plans.GetByID(ctx, tx, planID)
		if err != nil {
			return err
		}
		plan = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if plan == nil || !plan.Active {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}

// ApplyPromo validates a promo code against now and the target plan/user,
// and returns the discount amount (never exceeding the plan's price). It
// does NOT increment used_count or record the redemption — the caller
// commits that inside the same transaction as subscription creation, so a
// failed create does not burn a promo use.
func (c *Calculator) ApplyPromo(ctx context.Context, tx ports.DBTX, code string, plan *domain.Plan, userID string, now time.Time) (domain.Money, error) {
	if code == "" {
		return domain.ZeroMoney(plan.Price.Currency), nil
	}

	promo, err := c.promos.GetByCode(ctx, tx, code)
	if err != nil {
		return domain.Money{}, err
	}
	if promo == nil {
		return domain.Money{}, domain.ErrPromoCodeNotFound
	}
	if !promo.IsValidAt(now) {
		return domain.Money{}, domain.ErrPromoExpired
	}
	if !promo.HasUsesRemaining() {
		return domain.Money{}, domain.ErrPromoExhausted
	}
	if !promo.AppliesToPlan(plan.ID) {
		return domain.Money{}, domain.ErrPromoNotAllowedForPlan
	}
	used, err := c.promos.HasRedeemed(ctx, tx, code, userID)
	if err != nil {
		return domain.Money{}, err
	}
	if used {
		return domain.Money{}, domain.ErrPromoAlreadyUsed
	}

	var discount decimal.Decimal
	switch promo.DiscountType {
	case domain.DiscountTypePercent:
		discount = plan.Price.Amount.Mul(promo.DiscountAmount).Div(decimal.NewFromInt(100)).Round(2)
	default:
		discount = promo.DiscountAmount.Round(2)
	}
	if discount.GreaterThan(plan.Price.Amount) {
		discount = plan.Price.Amount
	}
	return domain.NewMoney(discount, plan.Price.Currency), nil
}

// RedeemPromo records the used_count increment and per-user redemption;
// called by the lifecycle manager inside the same transaction as the
// subscription create it protects.
func (c *Calculator) RedeemPromo(ctx context.Context, tx ports.DBTX, code, userID string, now time.Time) error {
	if code == "" {
		return nil
	}
	if err := c.promos.IncrementUsage(ctx, tx, code); err != nil {
		return err
	}
	return c.promos.RecordRedemption(ctx, tx, domain.PromoRedemption{Code: code, UserID: userID, RedeemedAt: now})
}

// Prorate computes the amount due on an upgrade mid-period (spec.md
// §4.4): the remaining days' worth of the new plan minus the used days'
// worth of the current plan, clamped to a non-negative amount (the
// system never issues credit on upgrade).
func Prorate(sub *domain.Subscription, currentPlan, newPlan *domain.Plan, now time.Time) domain.Money {
	currency := newPlan.Price.Currency
	total := sub.PeriodDays()
	if total <= 0 {
		return domain.ZeroMoney(currency)
	}

	used := domain.ClampDays(domain.DaysBetween(sub.CurrentPeriodStart, now), total)
	remaining := total - used

	totalD := decimal.NewFromInt(int64(total))
	remainingD := decimal.NewFromInt(int64(remaining))
	usedD := decimal.NewFromInt(int64(used))

	newDaily := newPlan.Price.Amount.Div(totalD)
	currentDaily := currentPlan.Price.Amount.Div(totalD)

	owedForRemaining := newDaily.Mul(remainingD)
	creditForUsed := currentDaily.Mul(usedD)

	amountDue := owedForRemaining.Sub(creditForUsed).Round(2)
	if amountDue.IsNegative() {
		amountDue = decimal.Zero
	}
	return domain.NewMoney(amountDue, currency)
}
