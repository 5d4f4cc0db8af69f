package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerflow/subscriptions/internal/domain"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
	"github.com/ledgerflow/subscriptions/pkg/resilience"
	"go.uber.org/zap"
)

// HTTPGateway is the real-provider variant of spec.md §4.2: an HTTP
// client over an external payment provider, with a 30s request timeout,
// basic-auth credentials, a per-request idempotency key, HMAC-SHA256
// webhook verification, and a circuit breaker guarding the HTTP call.
type HTTPGateway struct {
	BaseURL    string
	APIKey     string
	SecretKey  string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	backoff    *resilience.ExponentialBackoff
	logger     *zap.Logger
}

// maxPostAttempts bounds the retries post applies to a transient (5xx or
// network-level) failure before surfacing it to the circuit breaker.
const maxPostAttempts = 3

// NewHTTPGateway builds the real-provider gateway. retry tunes the
// per-post() backoff (see GatewayConfig's doc comment for why this
// service runs it faster than resilience's generic default): a
// zero-value retry falls back to DefaultExponentialBackoff so callers
// that don't care still get a sane retry curve.
func NewHTTPGateway(baseURL, apiKey, secretKey string, timeouts *resilience.TimeoutConfig, retry resilience.ExponentialBackoff, logger *zap.Logger) *HTTPGateway {
	if retry.BaseDelay <= 0 || retry.Multiplier <= 0 {
		retry = *resilience.DefaultExponentialBackoff()
	}
	return &HTTPGateway{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		SecretKey: secretKey,
		httpClient: &http.Client{
			Timeout: timeouts.ExternalAPI,
		},
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		backoff: &retry,
		logger:  logger,
	}
}

type providerChargeRequest struct {
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	PaymentMethod  string `json:"payment_method_id"`
	CustomerID     string `json:"customer_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

type providerChargeResponse struct {
	Status      string `json:"status"`
	ID          string `json:"id"`
	Description string `json:"description"`
}

func (g *HTTPGateway) Charge(ctx context.Context, req ports.ChargeRequest) (ports.ChargeResult, error) {
	var result ports.ChargeResult

	err := g.breaker.Call(func() error {
		body := providerChargeRequest{
			Amount:         req.Amount.Amount.StringFixed(2),
			Currency:       req.Amount.Currency,
			PaymentMethod:  req.PaymentMethodID,
			CustomerID:     req.CustomerID,
			IdempotencyKey: req.IdempotencyKey,
		}
		var resp providerChargeResponse
		if err := g.post(ctx, "/charges", req.IdempotencyKey, body, &resp); err != nil {
			return err
		}
		if resp.Status == "succeeded" {
			result = ports.ChargeResult{OK: true, GatewayRef: resp.ID}
			return nil
		}
		result = ports.ChargeResult{
			OK:            false,
			FailureReason: resp.Description,
			Insufficient:  resp.Description == "insufficient_funds",
		}
		return nil
	})

	if err != nil {
		g.logger.Error("gateway charge failed", zap.Error(err))
		return ports.ChargeResult{}, domain.Wrap(domain.KindPaymentGatewayError, "gateway charge request failed", err)
	}
	return result, nil
}

func (g *HTTPGateway) Refund(ctx context.Context, gatewayRef string, amount domain.Money) (ports.RefundResult, error) {
	var result ports.RefundResult
	err := g.breaker.Call(func() error {
		body := map[string]string{
			"payment_id": gatewayRef,
			"amount":     amount.Amount.StringFixed(2),
			"currency":   amount.Currency,
		}
		var resp providerChargeResponse
		if err := g.post(ctx, "/refunds", uuid.NewString(), body, &resp); err != nil {
			return err
		}
		if resp.Status == "succeeded" {
			result = ports.RefundResult{OK: true, RefundRef: resp.ID}
			return nil
		}
		result = ports.RefundResult{OK: false, FailureReason: resp.Description}
		return nil
	})
	if err != nil {
		return ports.RefundResult{}, domain.Wrap(domain.KindPaymentGatewayError, "gateway refund request failed", err)
	}
	return result, nil
}

func (g *HTTPGateway) RegisterMethod(ctx context.Context, token string, customerData map[string]string) (ports.RegisterResult, error) {
	var result ports.RegisterResult
	err := g.breaker.Call(func() error {
		body := map[string]any{"token": token, "customer": customerData}
		var resp struct {
			ID      string `json:"id"`
			Message string `json:"message"`
		}
		if err := g.post(ctx, "/payment_methods", uuid.NewString(), body, &resp); err != nil {
			return err
		}
		result = ports.RegisterResult{OK: true, ExternalID: resp.ID, Detail: resp.Message}
		return nil
	})
	if err != nil {
		return ports.RegisterResult{}, domain.Wrap(domain.KindPaymentGatewayError, "gateway register_method request failed", err)
	}
	return result, nil
}

// VerifyWebhook computes HMAC-SHA256 of payload with the shared secret
// and constant-time-compares against signature.
func (g *HTTPGateway) VerifyWebhook(payload []byte, signature string) bool {
	computed := hmacSHA256Hex([]byte(g.SecretKey), payload)
	return hmac.Equal([]byte(computed), []byte(signature))
}

// post sends the request, retrying a transient (5xx or network-level)
// failure up to maxPostAttempts times with exponential backoff before
// returning the error to the circuit breaker. The idempotency key makes
// a retried POST safe to repeat against the same provider operation.
func (g *HTTPGateway) post(ctx context.Context, path, idempotencyKey string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < maxPostAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(g.backoff.NextDelay(attempt - 1)):
			}
		}

		lastErr = g.doPost(ctx, path, idempotencyKey, buf, out)
		if lastErr == nil {
			return nil
		}
		g.logger.Warn("gateway request attempt failed",
			zap.String("path", path), zap.Int("attempt", attempt), zap.Error(lastErr))
	}
	return lastErr
}

func (g *HTTPGateway) doPost(ctx context.Context, path, idempotencyKey string, buf []byte, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	httpReq.SetBasicAuth(g.APIKey, g.SecretKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return json.Unmarshal(respBody, out)
}
