package postgres

import (
	"context"
	"fmt"

	"github.com/ledgerflow/subscriptions/internal/domain"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
)

// PlanRepository implements ports.PlanRepository. Plans are read-only
// from the core's perspective (see domain.Plan's doc comment), so this
// repository only needs a lookup.
type PlanRepository struct{}

func NewPlanRepository() *PlanRepository {
	return &PlanRepository{}
}

func (r *PlanRepository) GetByID(ctx context.Context, tx ports.DBTX, id string) (*domain.Plan, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, name, price_amount, price_currency, billing_cycle_days,
			trial_period_days, max_retries, active
		FROM plans WHERE id = $1`, id)

	var p domain.Plan
	if err := row.Scan(
		&p.ID, &p.Name, &p.Price.Amount, &p.Price.Currency,
		&p.BillingCycleDays, &p.TrialPeriodDays, &p.MaxRetries, &p.Active,
	); err != nil {
		return nil, fmt.Errorf("get plan by id: %w", err)
	}
	return &p, nil
}
