package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/ledgerflow/subscriptions/internal/domain"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
)

// PromoCodeRepository implements ports.PromoCodeRepository, backing the
// promo code validation/redemption flow plan.Calculator performs
// (see DESIGN.md's "Supplemented features").
type PromoCodeRepository struct{}

func NewPromoCodeRepository() *PromoCodeRepository {
	return &PromoCodeRepository{}
}

func (r *PromoCodeRepository) GetByCode(ctx context.Context, tx ports.DBTX, code string) (*domain.PromoCode, error) {
	row := tx.QueryRow(ctx, `
		SELECT code, discount_type, discount_amount, valid_from, valid_to,
			max_uses, used_count, allowed_plan_ids
		FROM promo_codes WHERE code = $1`, code)

	var p domain.PromoCode
	var discountType string
	var maxUses *int
	if err := row.Scan(
		&p.Code, &discountType, &p.DiscountAmount, &p.ValidFrom, &p.ValidTo,
		&maxUses, &p.UsedCount, &p.AllowedPlanIDs,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get promo code: %w", err)
	}
	p.DiscountType = domain.DiscountType(discountType)
	p.MaxUses = maxUses
	return &p, nil
}

func (r *PromoCodeRepository) IncrementUsage(ctx context.Context, tx ports.DBTX, code string) error {
	tag, err := tx.Exec(ctx, `UPDATE promo_codes SET used_count = used_count + 1 WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("increment promo usage: %w", err)
	}
	if tag == 0 {
		return fmt.Errorf("increment promo usage: code %s not found", code)
	}
	return nil
}

func (r *PromoCodeRepository) HasRedeemed(ctx context.Context, tx ports.DBTX, code, userID string) (bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM promo_redemptions WHERE code = $1 AND user_id = $2)`, code, userID)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check promo redemption: %w", err)
	}
	return exists, nil
}

func (r *PromoCodeRepository) RecordRedemption(ctx context.Context, tx ports.DBTX, redemption domain.PromoRedemption) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO promo_redemptions (code, user_id, redeemed_at) VALUES ($1,$2,$3)`,
		redemption.Code, redemption.UserID, redemption.RedeemedAt,
	)
	if err != nil {
		return fmt.Errorf("record promo redemption: %w", err)
	}
	return nil
}
