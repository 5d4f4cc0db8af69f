package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"math/rand"
	"sync"

	"github.com/ledgerflow/subscriptions/internal/domain"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
	"go.uber.org/zap"
)

// mockFailureReasons is the fixed catalog spec.md §4.2 requires for a
// simulated decline, ported directly from original_source's
// MockPaymentGateway.charge.
var mockFailureReasons = []string{
	"Insufficient funds",
	"Card expired",
	"Gateway timeout",
	"Invalid payment method",
}

// MockGateway is a deterministic-parametric payment gateway: each charge
// succeeds with probability SuccessRate and otherwise fails with a reason
// drawn from mockFailureReasons. Successful charges are held in-memory
// keyed by a monotonic counter, mirroring original_source's
// MockPaymentGateway.transactions dict.
type MockGateway struct {
	SuccessRate float64

	mu           sync.Mutex
	counter      int
	transactions map[string]ports.ChargeRequest

	logger *zap.Logger
}

func NewMockGateway(successRate float64, logger *zap.Logger) *MockGateway {
	return &MockGateway{
		SuccessRate:  successRate,
		transactions: make(map[string]ports.ChargeRequest),
		logger:       logger,
	}
}

func (g *MockGateway) Charge(ctx context.Context, req ports.ChargeRequest) (ports.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.counter++
	ref := fmt.Sprintf("mock_tx_%d", g.counter)

	if rand.Float64() > g.SuccessRate {
		reason := mockFailureReasons[rand.Intn(len(mockFailureReasons))]
		g.logger.Info("mock gateway declined charge",
			zap.String("customer_id", req.CustomerID),
			zap.String("reason", reason),
		)
		return ports.ChargeResult{
			OK:            false,
			FailureReason: reason,
			Insufficient:  reason == "Insufficient funds",
		}, nil
	}

	g.transactions[ref] = req
	return ports.ChargeResult{OK: true, GatewayRef: ref}, nil
}

func (g *MockGateway) Refund(ctx context.Context, gatewayRef string, amount domain.Money) (ports.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.transactions[gatewayRef]; !ok {
		return ports.RefundResult{OK: false, FailureReason: "transaction not found"}, nil
	}
	g.counter++
	return ports.RefundResult{OK: true, RefundRef: fmt.Sprintf("mock_refund_%d", g.counter)}, nil
}

func (g *MockGateway) RegisterMethod(ctx context.Context, token string, customerData map[string]string) (ports.RegisterResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return ports.RegisterResult{
		OK:         true,
		ExternalID: fmt.Sprintf("mock_pm_%d", g.counter),
		Detail:     "mock payment method created",
	}, nil
}

// VerifyWebhook always succeeds for the mock gateway, as in
// original_source's MockPaymentGateway.verify_webhook.
func (g *MockGateway) VerifyWebhook(payload []byte, signature string) bool {
	return true
}

// hmacSHA256Hex computes the hex HMAC-SHA256 digest the real gateway's
// webhook verification compares against; the mock gateway does not use it.
func hmacSHA256Hex(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return fmt.Sprintf("%x", mac.Sum(nil))
}
