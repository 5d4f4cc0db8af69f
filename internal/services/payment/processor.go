// Package payment implements the idempotent single-payment execution
// pipeline of spec.md §4.3.
package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/ledgerflow/subscriptions/internal/domain"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
	"github.com/ledgerflow/subscriptions/pkg/clock"
	"github.com/ledgerflow/subscriptions/pkg/observability"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// idempotencyNamespace roots the deterministic idempotency keys this
// processor derives from a transaction ID, grounded on the teacher's
// uuid.NewSHA1(uuid.NameSpaceOID, ...) pattern in
// processSubscriptionBilling.
var idempotencyNamespace = uuid.NameSpaceOID

// Processor accepts a charge request and runs the full pipeline: persist
// pending, invoke the gateway, persist the final state. Grounded on the
// teacher's WithTx-wrapped create/update pattern in
// subscription_service.go, adapted to a hand-rolled repository since the
// sqlc-generated package is unavailable (see DESIGN.md).
type Processor struct {
	transactions ports.TransactionRepository
	gateway      ports.PaymentGateway
	txMgr        ports.TransactionManager
	clock        clock.Clock
	logger       *zap.Logger
}

func NewProcessor(transactions ports.TransactionRepository, gateway ports.PaymentGateway, txMgr ports.TransactionManager, clk clock.Clock, logger *zap.Logger) *Processor {
	return &Processor{transactions: transactions, gateway: gateway, txMgr: txMgr, clock: clk, logger: logger}
}

// ChargeRequest is the processor's input (spec.md §4.3).
type ChargeRequest struct {
	UserID          string
	SubscriptionID  *string
	Amount          domain.Money
	PaymentMethodID string
	Type            domain.TransactionType
	Description     string
	Metadata        map[string]any
}

// Charge runs the full pipeline and returns the resulting Transaction. A
// failed charge still returns a non-nil Transaction (status=failed) so
// the caller can inspect gateway failure details, alongside a
// domain.Error classifying the failure kind.
func (p *Processor) Charge(ctx context.Context, req ChargeRequest) (*domain.Transaction, error) {
	if req.Amount.IsZero() {
		return nil, domain.ErrZeroAmount
	}

	now := p.clock.Now()
	txn := &domain.Transaction{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		SubscriptionID:  req.SubscriptionID,
		Amount:          req.Amount,
		Status:          domain.TransactionStatusPending,
		Type:            req.Type,
		PaymentMethodID: req.PaymentMethodID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	txn.IdempotencyKey = uuid.NewSHA1(idempotencyNamespace, []byte(txn.ID)).String()

	if err := p.txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		return p.transactions.Create(ctx, tx, txn)
	}); err != nil {
		return nil, domain.Wrap(domain.KindInternal, "failed to persist pending transaction", err)
	}

	result, err := p.gateway.Charge(ctx, ports.ChargeRequest{
		Amount:          req.Amount,
		PaymentMethodID: req.PaymentMethodID,
		CustomerID:      req.UserID,
		IdempotencyKey:  txn.IdempotencyKey,
	})

	txn.UpdatedAt = p.clock.Now()

	if err != nil {
		txn.MarkFailed(err.Error())
		p.persistFinal(ctx, txn)
		return txn, domain.Wrap(domain.KindPaymentGatewayError, "gateway call failed", err)
	}

	if result.OK {
		txn.MarkCompleted(result.GatewayRef)
		p.persistFinal(ctx, txn)
		p.logger.Info("charge completed",
			zap.String("transaction_id", txn.ID),
			zap.String("gateway_ref", result.GatewayRef),
		)
		cents, _ := req.Amount.Amount.Mul(decimal.NewFromInt(100)).Round(0).Float64()
		observability.RecordRevenue(int64(cents), req.Amount.Currency)
		return txn, nil
	}

	txn.MarkFailed(result.FailureReason)
	p.persistFinal(ctx, txn)

	if result.Insufficient {
		return txn, domain.NewError(domain.KindInsufficientFunds, result.FailureReason)
	}
	return txn, domain.NewError(domain.KindPaymentGatewayError, result.FailureReason)
}

func (p *Processor) persistFinal(ctx context.Context, txn *domain.Transaction) {
	if err := p.txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		return p.transactions.Update(ctx, tx, txn)
	}); err != nil {
		p.logger.Error("failed to persist final transaction state",
			zap.String("transaction_id", txn.ID),
			zap.Error(err),
		)
	}
}

// Refund runs a refund against the most recent completed transaction for
// a subscription.
func (p *Processor) Refund(ctx context.Context, userID string, subscriptionID *string, gatewayRef string, amount domain.Money) (*domain.Transaction, error) {
	now := p.clock.Now()
	txn := &domain.Transaction{
		ID:             uuid.NewString(),
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Amount:         amount.Mul(decimal.NewFromInt(-1)),
		Status:         domain.TransactionStatusPending,
		Type:           domain.TransactionTypeRefund,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	result, err := p.gateway.Refund(ctx, gatewayRef, amount)
	txn.UpdatedAt = p.clock.Now()
	if err != nil {
		txn.MarkFailed(err.Error())
		p.persistCreate(ctx, txn)
		return txn, domain.Wrap(domain.KindPaymentGatewayError, "gateway refund failed", err)
	}
	if !result.OK {
		txn.MarkFailed(result.FailureReason)
		p.persistCreate(ctx, txn)
		return txn, domain.NewError(domain.KindPaymentGatewayError, result.FailureReason)
	}
	txn.MarkCompleted(result.RefundRef)
	p.persistCreate(ctx, txn)
	return txn, nil
}

func (p *Processor) persistCreate(ctx context.Context, txn *domain.Transaction) {
	if err := p.txMgr.WithTx(ctx, func(tx ports.DBTX) error {
		return p.transactions.Create(ctx, tx, txn)
	}); err != nil {
		p.logger.Error("failed to persist refund transaction", zap.Error(err))
	}
}

