package domain

import "time"

// AuditEntry is an append-only record of a subscription state transition,
// written by every lifecycle operation (spec.md §4.5: "All transitions
// write an audit record"). This promotes the teacher's structured-logging
// calls (zap.String("subscription_id", ...)) into a queryable record kept
// alongside the log line, not instead of it.
type AuditEntry struct {
	ID             string
	SubscriptionID string
	Action         string
	OldValues      map[string]any
	NewValues      map[string]any
	Actor          string
	CreatedAt      time.Time
}
