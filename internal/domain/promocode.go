package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType distinguishes a percentage discount from a flat amount.
type DiscountType string

const (
	DiscountTypePercent DiscountType = "percent"
	DiscountTypeFixed   DiscountType = "fixed"
)

// PromoCode is a discount rule applied at subscription creation time.
// used_count is incremented exactly once per successful application and
// enforced alongside a per-user redemption record (PromoRedemption).
type PromoCode struct {
	Code           string
	DiscountType   DiscountType
	DiscountAmount decimal.Decimal // percent in [0,100], or a flat Money amount
	ValidFrom      time.Time
	ValidTo        time.Time
	MaxUses        *int
	UsedCount      int
	AllowedPlanIDs []string // empty = all plans
}

// IsValidAt reports whether now falls within the promo's validity window.
func (p *PromoCode) IsValidAt(now time.Time) bool {
	return !now.Before(p.ValidFrom) && !now.After(p.ValidTo)
}

// HasUsesRemaining reports whether the promo can still be applied.
func (p *PromoCode) HasUsesRemaining() bool {
	return p.MaxUses == nil || p.UsedCount < *p.MaxUses
}

// AppliesToPlan reports whether the promo's allow-list (if any) permits planID.
func (p *PromoCode) AppliesToPlan(planID string) bool {
	if len(p.AllowedPlanIDs) == 0 {
		return true
	}
	for _, id := range p.AllowedPlanIDs {
		if id == planID {
			return true
		}
	}
	return false
}

// PromoRedemption records that a user has already consumed a promo code,
// enforcing the per-user single-use invariant from spec.md §3.
type PromoRedemption struct {
	Code       string
	UserID     string
	RedeemedAt time.Time
}
