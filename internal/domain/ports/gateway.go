package ports

import (
	"context"

	"github.com/ledgerflow/subscriptions/internal/domain"
)

// ChargeRequest is the payload for a single charge attempt.
type ChargeRequest struct {
	Amount          domain.Money
	PaymentMethodID string
	CustomerID      string
	IdempotencyKey  string
}

// ChargeResult is the gateway's verdict on a charge attempt. On a declined
// charge, Insufficient distinguishes a funds-related decline from any
// other gateway failure; payment.Processor maps the two to
// KindInsufficientFunds and KindPaymentGatewayError.
type ChargeResult struct {
	OK            bool
	GatewayRef    string
	FailureReason string
	Insufficient  bool
}

// RefundResult is the gateway's verdict on a refund attempt.
type RefundResult struct {
	OK            bool
	RefundRef     string
	FailureReason string
}

// RegisterResult is the gateway's verdict on registering a tokenized
// payment method.
type RegisterResult struct {
	OK         bool
	ExternalID string
	Detail     string
}

// PaymentGateway is the uniform capability spec.md §4.2 requires over
// heterogeneous external providers: charge, refund, register a payment
// method, and verify an inbound webhook signature.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Refund(ctx context.Context, gatewayRef string, amount domain.Money) (RefundResult, error)
	RegisterMethod(ctx context.Context, token string, customerData map[string]string) (RegisterResult, error)
	VerifyWebhook(payload []byte, signature string) bool
}
