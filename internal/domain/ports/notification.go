package ports

import "context"

// EventType enumerates the notification events the core fires
// fire-and-forget, per spec.md §6.
type EventType string

const (
	EventSubscriptionCreated  EventType = "subscription_created"
	EventTrialEnding          EventType = "trial_ending"
	EventSubscriptionExpiring EventType = "subscription_expiring"
	EventPaymentSuccess       EventType = "payment_success"
	EventPaymentFailed        EventType = "payment_failed"
	EventSubscriptionCancelled EventType = "subscription_cancelled"
	EventUpgradeCompleted     EventType = "upgrade_completed"
)

// Notifier dispatches a user-facing event. Retries and delivery channel
// selection are out of scope for the core (spec.md §1); implementations
// must not block or fail the caller.
type Notifier interface {
	Send(ctx context.Context, userID string, event EventType, data map[string]any)
}
