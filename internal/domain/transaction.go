package domain

import "time"

// TransactionStatus represents the current state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// TransactionType classifies why a transaction was created.
type TransactionType string

const (
	TransactionTypeInitial TransactionType = "initial"
	TransactionTypeRenewal TransactionType = "renewal"
	TransactionTypeUpgrade TransactionType = "upgrade"
	TransactionTypeRefund  TransactionType = "refund"
	TransactionTypeManual  TransactionType = "manual"
)

// Transaction is a single monetary event against the gateway: a charge or
// a refund, always linked to the user and usually to a subscription.
type Transaction struct {
	ID              string
	UserID          string
	SubscriptionID  *string
	Amount          Money
	Status          TransactionStatus
	Type            TransactionType
	Gateway         string
	GatewayRef      string
	ErrorMessage    string
	IdempotencyKey  string
	PaymentMethodID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsCompleted reports whether the charge/refund was accepted by the gateway.
func (t *Transaction) IsCompleted() bool {
	return t.Status == TransactionStatusCompleted
}

// MarkCompleted transitions a pending transaction to completed, recording
// the gateway reference. A completed transaction must carry a reference
// (spec.md §3 invariant).
func (t *Transaction) MarkCompleted(gatewayRef string) {
	t.Status = TransactionStatusCompleted
	t.GatewayRef = gatewayRef
}

// MarkFailed transitions a pending transaction to failed with a reason.
func (t *Transaction) MarkFailed(reason string) {
	t.Status = TransactionStatusFailed
	t.ErrorMessage = reason
}

// IsRefund reports whether this transaction represents money returned to
// the user (negative amount, Type = refund).
func (t *Transaction) IsRefund() bool {
	return t.Type == TransactionTypeRefund
}
