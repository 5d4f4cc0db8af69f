package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/ledgerflow/subscriptions/internal/domain"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
)

// TransactionRepository implements ports.TransactionRepository over raw
// pgx SQL, the same way SubscriptionRepository replaces the teacher's
// sqlc-based adapters/postgres/transaction_repository.go.
type TransactionRepository struct{}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{}
}

func (r *TransactionRepository) Create(ctx context.Context, tx ports.DBTX, t *domain.Transaction) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (
			id, user_id, subscription_id, amount, currency, status, type,
			gateway, gateway_ref, error_message, idempotency_key,
			payment_method_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		t.ID, t.UserID, nullableString(t.SubscriptionID), t.Amount.Amount, t.Amount.Currency,
		string(t.Status), string(t.Type), t.Gateway, nullText(t.GatewayRef),
		nullText(t.ErrorMessage), nullText(t.IdempotencyKey), nullText(t.PaymentMethodID),
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) Update(ctx context.Context, tx ports.DBTX, t *domain.Transaction) error {
	tag, err := tx.Exec(ctx, `
		UPDATE transactions SET
			status = $2, gateway_ref = $3, error_message = $4, updated_at = $5
		WHERE id = $1`,
		t.ID, string(t.Status), nullText(t.GatewayRef), nullText(t.ErrorMessage), t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag == 0 {
		return fmt.Errorf("update transaction: %w", pgx.ErrNoRows)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, tx ports.DBTX, id string) (*domain.Transaction, error) {
	row := tx.QueryRow(ctx, transactionSelectCols+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, tx ports.DBTX, key string) (*domain.Transaction, error) {
	row := tx.QueryRow(ctx, transactionSelectCols+` FROM transactions WHERE idempotency_key = $1`, key)
	return scanTransaction(row)
}

func (r *TransactionRepository) LatestCompletedForSubscription(ctx context.Context, tx ports.DBTX, subscriptionID string) (*domain.Transaction, error) {
	row := tx.QueryRow(ctx, transactionSelectCols+`
		FROM transactions
		WHERE subscription_id = $1 AND status = 'completed'
		ORDER BY updated_at DESC LIMIT 1`, subscriptionID)
	return scanTransaction(row)
}

const transactionSelectCols = `SELECT
	id, user_id, subscription_id, amount, currency, status, type,
	gateway, gateway_ref, error_message, idempotency_key,
	payment_method_id, created_at, updated_at`

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var status, txType string
	var subscriptionID, gatewayRef, errorMessage, idempotencyKey, paymentMethodID pgtype.Text

	if err := row.Scan(
		&t.ID, &t.UserID, &subscriptionID, &t.Amount.Amount, &t.Amount.Currency, &status, &txType,
		&t.Gateway, &gatewayRef, &errorMessage, &idempotencyKey,
		&paymentMethodID, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	t.Status = domain.TransactionStatus(status)
	t.Type = domain.TransactionType(txType)
	if subscriptionID.Valid {
		t.SubscriptionID = &subscriptionID.String
	}
	t.GatewayRef = gatewayRef.String
	t.ErrorMessage = errorMessage.String
	t.IdempotencyKey = idempotencyKey.String
	t.PaymentMethodID = paymentMethodID.String
	return &t, nil
}

func nullableString(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return nullText(*s)
}
