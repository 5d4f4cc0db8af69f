package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerflow/subscriptions/internal/adapters/postgres"
	"github.com/ledgerflow/subscriptions/internal/domain"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionRepository_CreateAndGetByID(t *testing.T) {
	db, cleanup := setupTestDB(t)
	if db == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := postgres.NewSubscriptionRepository()
	now := time.Now().UTC().Truncate(time.Second)

	sub := &domain.Subscription{
		ID:                 uuid.NewString(),
		UserID:             uuid.NewString(),
		PlanID:             uuid.NewString(),
		Status:             domain.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 0, 30),
		PaymentMethodID:    "pm_123",
		AutoRenew:          true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	require.NoError(t, db.WithTx(ctx, func(tx ports.DBTX) error {
		return repo.Create(ctx, tx, sub)
	}))

	var retrieved *domain.Subscription
	require.NoError(t, db.WithTx(ctx, func(tx ports.DBTX) error {
		var err error
		retrieved, err = repo.GetByID(ctx, tx, sub.ID)
		return err
	}))

	assert.Equal(t, sub.UserID, retrieved.UserID)
	assert.Equal(t, sub.Status, retrieved.Status)
	assert.Equal(t, sub.PaymentMethodID, retrieved.PaymentMethodID)
	assert.True(t, sub.CurrentPeriodEnd.Equal(retrieved.CurrentPeriodEnd))
}

func TestSubscriptionRepository_DueForPayment(t *testing.T) {
	db, cleanup := setupTestDB(t)
	if db == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := postgres.NewSubscriptionRepository()
	planRepo := postgres.NewPlanRepository()
	now := time.Now().UTC().Truncate(time.Second)

	planID := uuid.NewString()
	require.NoError(t, db.WithTx(ctx, func(tx ports.DBTX) error {
		_, err := tx.Exec(ctx, `INSERT INTO plans (id, name, price_amount, price_currency, billing_cycle_days, trial_period_days, max_retries, active)
			VALUES ($1,'Basic',$2,'USD',30,0,3,true)`, planID, decimal.NewFromInt(10))
		return err
	}))

	due := &domain.Subscription{
		ID: uuid.NewString(), UserID: uuid.NewString(), PlanID: planID,
		Status: domain.SubscriptionStatusActive, AutoRenew: true,
		CurrentPeriodStart: now.AddDate(0, 0, -30), CurrentPeriodEnd: now.Add(-time.Hour),
		CreatedAt: now, UpdatedAt: now,
	}
	notDue := &domain.Subscription{
		ID: uuid.NewString(), UserID: uuid.NewString(), PlanID: planID,
		Status: domain.SubscriptionStatusActive, AutoRenew: true,
		CurrentPeriodStart: now, CurrentPeriodEnd: now.AddDate(0, 0, 30),
		CreatedAt: now, UpdatedAt: now,
	}

	require.NoError(t, db.WithTx(ctx, func(tx ports.DBTX) error {
		if err := repo.Create(ctx, tx, due); err != nil {
			return err
		}
		return repo.Create(ctx, tx, notDue)
	}))

	var results []*domain.Subscription
	require.NoError(t, db.WithTx(ctx, func(tx ports.DBTX) error {
		var err error
		results, err = repo.DueForPayment(ctx, tx, now)
		return err
	}))

	ids := make([]string, len(results))
	for i, s := range results {
		ids[i] = s.ID
	}
	assert.Contains(t, ids, due.ID)
	assert.NotContains(t, ids, notDue.ID)

	_ = planRepo
}
