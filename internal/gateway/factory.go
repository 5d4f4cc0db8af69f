package gateway

import (
	"context"
	"fmt"

	"github.com/ledgerflow/subscriptions/internal/domain/ports"
	"github.com/ledgerflow/subscriptions/pkg/resilience"
	"go.uber.org/zap"
)

// Config configures gateway construction. cmd/server fills it from
// config.GatewayConfig (Provider, MockSuccessRate, YooMoneySecretRef and
// the retry tuning) and the GATEWAY_BASE_URL environment variable.
type Config struct {
	Tag         string // "mock" or "yoomoney"
	SuccessRate float64
	BaseURL     string
	SecretPath  string // path into SecretManager for API credentials
	Retry       resilience.ExponentialBackoff
}

// NewGateway maps a config tag to a concrete ports.PaymentGateway,
// mirroring original_source's PaymentGatewayFactory.create_gateway:
// unknown tag fails construction.
func NewGateway(ctx context.Context, cfg Config, secrets ports.SecretManager, timeouts *resilience.TimeoutConfig, logger *zap.Logger) (ports.PaymentGateway, error) {
	switch cfg.Tag {
	case "mock":
		return NewMockGateway(cfg.SuccessRate, logger), nil
	case "yoomoney":
		secret, err := secrets.GetSecret(ctx, cfg.SecretPath)
		if err != nil {
			return nil, fmt.Errorf("loading gateway credentials: %w", err)
		}
		apiKey := secret.Metadata["api_key"]
		return NewHTTPGateway(cfg.BaseURL, apiKey, secret.Value, timeouts, cfg.Retry, logger), nil
	default:
		return nil, fmt.Errorf("unknown gateway type: %s", cfg.Tag)
	}
}
