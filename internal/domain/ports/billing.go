package ports

import "context"

// BillingResult is the per-subscription outcome of one billing attempt,
// returned in batches by ProcessRecurringPayments/RetryFailedPayments.
type BillingResult struct {
	SubscriptionID  string
	Success         bool
	TransactionID   string
	Error           string
	Cancelled       bool
	RetryScheduled  bool
	NextBillingDate string
}

// BillingEngine drives the scheduled and retry charge scans of spec.md
// §4.6.
type BillingEngine interface {
	ProcessRecurringPayments(ctx context.Context) ([]BillingResult, error)
	RetryFailedPayments(ctx context.Context, maxRetries int) ([]BillingResult, error)
	ProcessTrialConversions(ctx context.Context) ([]BillingResult, error)
	ProcessExpirations(ctx context.Context) ([]BillingResult, error)
	GenerateInvoice(ctx context.Context, transactionID string) ([]byte, error)
}
