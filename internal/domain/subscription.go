package domain

import "time"

// SubscriptionStatus represents the subscription lifecycle state (spec §3).
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// Subscription is the central billing entity: a user's standing commitment
// to a plan, tracked through trial/active/past_due/terminal states.
type Subscription struct {
	ID                 string
	UserID             string
	PlanID             string
	Status             SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	TrialEnd           *time.Time
	PaymentMethodID    string
	CancelAtPeriodEnd  bool
	RetryCount         int
	AutoRenew          bool
	RetryAt            *time.Time
	CancelledAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsActive reports whether the subscription currently grants access and
// participates in the scheduled billing scan.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// IsTerminal reports whether the subscription is in a terminal state; no
// further field mutation is permitted except audit fields.
func (s *Subscription) IsTerminal() bool {
	return s.Status == SubscriptionStatusCancelled || s.Status == SubscriptionStatusExpired
}

// InTrial reports whether now still falls within the trial window.
func (s *Subscription) InTrial(now time.Time) bool {
	return s.Status == SubscriptionStatusTrial && s.TrialEnd != nil && !now.After(*s.TrialEnd)
}

// TrialExpired reports whether a trial subscription has crossed trial_end
// and should transition to active with an immediate charge attempt.
func (s *Subscription) TrialExpired(now time.Time) bool {
	return s.Status == SubscriptionStatusTrial && s.TrialEnd != nil && now.After(*s.TrialEnd)
}

// DueForBilling reports whether the subscription is an active,
// auto-renewing subscription whose period has elapsed.
func (s *Subscription) DueForBilling(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.AutoRenew && !now.Before(s.CurrentPeriodEnd)
}

// ExceedsMaxRetries reports whether retry_count has reached the plan's
// configured ceiling, forcing a terminal transition.
func (s *Subscription) ExceedsMaxRetries(maxRetries int) bool {
	return s.RetryCount >= maxRetries
}

// ExtendPeriod advances the current period by cycleDays and resets the
// retry counter, mirroring a successful scheduled or manual renewal.
func (s *Subscription) ExtendPeriod(cycleDays int) {
	s.CurrentPeriodStart = s.CurrentPeriodEnd
	s.CurrentPeriodEnd = s.CurrentPeriodEnd.AddDate(0, 0, cycleDays)
	s.RetryCount = 0
	s.RetryAt = nil
	s.Status = SubscriptionStatusActive
}

// PeriodDays returns the whole-day length of the current billing period.
func (s *Subscription) PeriodDays() int {
	return DaysBetween(s.CurrentPeriodStart, s.CurrentPeriodEnd)
}

// RemainingDays returns the whole days left in the current period as of
// now, clamped to [0, PeriodDays()].
func (s *Subscription) RemainingDays(now time.Time) int {
	total := s.PeriodDays()
	used := ClampDays(DaysBetween(s.CurrentPeriodStart, now), total)
	return total - used
}
