package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/ledgerflow/subscriptions/internal/domain"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
)

// PaymentMethodRepository implements ports.PaymentMethodRepository.
type PaymentMethodRepository struct{}

func NewPaymentMethodRepository() *PaymentMethodRepository {
	return &PaymentMethodRepository{}
}

func (r *PaymentMethodRepository) Create(ctx context.Context, tx ports.DBTX, pm *domain.PaymentMethod) error {
	var expiresAt pgtype.Timestamptz
	if pm.ExpiresAt != nil {
		expiresAt = pgtype.Timestamptz{Time: *pm.ExpiresAt, Valid: true}
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO payment_methods (id, user_id, gateway, external_id, valid, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		pm.ID, pm.UserID, pm.Gateway, pm.ExternalID, pm.Valid, expiresAt, pm.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create payment method: %w", err)
	}
	return nil
}

func (r *PaymentMethodRepository) GetByID(ctx context.Context, tx ports.DBTX, id string) (*domain.PaymentMethod, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, user_id, gateway, external_id, valid, expires_at, created_at
		FROM payment_methods WHERE id = $1`, id)

	var pm domain.PaymentMethod
	var expiresAt pgtype.Timestamptz
	if err := row.Scan(&pm.ID, &pm.UserID, &pm.Gateway, &pm.ExternalID, &pm.Valid, &expiresAt, &pm.CreatedAt); err != nil {
		return nil, fmt.Errorf("get payment method by id: %w", err)
	}
	if expiresAt.Valid {
		pm.ExpiresAt = &expiresAt.Time
	}
	return &pm, nil
}
