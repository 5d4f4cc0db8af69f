package domain

// Plan is a billable product tier. Immutable once referenced by any
// active subscription — the lifecycle manager never mutates a Plan, it
// only swaps which Plan a Subscription points at.
type Plan struct {
	ID               string
	Name             string
	Price            Money
	BillingCycleDays int
	TrialPeriodDays  int
	MaxRetries       int
	Active           bool
}

// HasTrial reports whether the plan grants a trial period before the
// first charge.
func (p *Plan) HasTrial() bool {
	return p.TrialPeriodDays > 0
}
