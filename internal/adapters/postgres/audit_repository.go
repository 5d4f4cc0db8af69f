package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ledgerflow/subscriptions/internal/domain"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
)

// AuditRepository implements ports.AuditRepository, persisting the
// append-only trail domain.AuditEntry describes.
type AuditRepository struct{}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Append(ctx context.Context, tx ports.DBTX, entry domain.AuditEntry) error {
	oldValues, err := json.Marshal(entry.OldValues)
	if err != nil {
		return fmt.Errorf("marshal old values: %w", err)
	}
	newValues, err := json.Marshal(entry.NewValues)
	if err != nil {
		return fmt.Errorf("marshal new values: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_entries (id, subscription_id, action, old_values, new_values, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		entry.ID, entry.SubscriptionID, entry.Action, oldValues, newValues, entry.Actor, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}
