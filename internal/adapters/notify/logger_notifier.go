// Package notify provides Notifier implementations. Actual delivery
// (email, push, SMS) is an external collaborator outside this system's
// scope; loggerNotifier stands in for it in development and as the
// default until a real delivery adapter is wired in front of it.
package notify

import (
	"context"

	"github.com/ledgerflow/subscriptions/internal/domain/ports"
	"github.com/ledgerflow/subscriptions/pkg/observability"
	"go.uber.org/zap"
)

// loggerNotifier implements ports.Notifier by logging the event.
// Send is fire-and-forget by contract, so it never returns an error;
// failures to notify must never fail the caller's billing operation.
type loggerNotifier struct {
	logger *zap.Logger
}

func NewLoggerNotifier(logger *zap.Logger) ports.Notifier {
	return &loggerNotifier{logger: logger}
}

func (n *loggerNotifier) Send(ctx context.Context, userID string, event ports.EventType, data map[string]any) {
	fields := make([]zap.Field, 0, len(data)+2)
	fields = append(fields,
		zap.String("user_id", userID),
		zap.String("event", string(event)),
	)
	for k, v := range data {
		fields = append(fields, zap.Any(k, v))
	}
	n.logger.Info("notification", fields...)
	observability.RecordNotificationSent(string(event))
}
