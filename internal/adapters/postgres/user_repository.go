package postgres

import (
	"context"
	"fmt"

	"github.com/ledgerflow/subscriptions/internal/domain"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// UserRepository implements ports.UserRepository.
type UserRepository struct{}

func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

func (r *UserRepository) GetByID(ctx context.Context, tx ports.DBTX, id string) (*domain.User, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, email, role, balance, currency, active FROM users WHERE id = $1`, id)

	var u domain.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &role, &u.Balance, &u.Currency, &u.Active); err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	u.Role = domain.UserRole(role)
	return &u, nil
}

// AdjustBalance atomically moves a user's wallet balance by delta,
// positive to credit (e.g. a refund) and negative to debit.
func (r *UserRepository) AdjustBalance(ctx context.Context, tx ports.DBTX, userID string, delta decimal.Decimal) error {
	tag, err := tx.Exec(ctx, `UPDATE users SET balance = balance + $2 WHERE id = $1`, userID, delta)
	if err != nil {
		return fmt.Errorf("adjust user balance: %w", err)
	}
	if tag == 0 {
		return fmt.Errorf("adjust user balance: user %s not found", userID)
	}
	return nil
}
