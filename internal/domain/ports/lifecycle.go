package ports

import (
	"context"

	"github.com/ledgerflow/subscriptions/internal/domain"
)

// CreateSubscriptionRequest is the input to LifecycleManager.Create.
type CreateSubscriptionRequest struct {
	UserID          string
	PlanID          string
	PaymentMethodID string
	PromoCode       string // empty if none
}

// SubscriptionSummary is what the out-of-scope HTTP layer would render
// back to a caller (spec.md §6); the core returns it directly.
type SubscriptionSummary struct {
	Subscription    *domain.Subscription
	TransactionID   string
	TrialEndsAt     string
	NextBillingDate string
}

// LifecycleManager exposes the state-machine verbs of spec.md §4.5 as a
// plain Go interface — the HTTP/Connect/gRPC transport that would wrap
// this is the out-of-scope collaborator spec.md §1 names.
type LifecycleManager interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (SubscriptionSummary, error)
	Cancel(ctx context.Context, subscriptionID string, immediate bool) (SubscriptionSummary, error)
	Upgrade(ctx context.Context, subscriptionID, newPlanID string) (SubscriptionSummary, error)
	Renew(ctx context.Context, subscriptionID string) (SubscriptionSummary, error)
	ConvertTrial(ctx context.Context, subscriptionID string) (SubscriptionSummary, error)
	Expire(ctx context.Context, subscriptionID string) (SubscriptionSummary, error)
}
