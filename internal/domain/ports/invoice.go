package ports

import (
	"context"

	"github.com/ledgerflow/subscriptions/internal/domain"
)

// InvoiceData is every field the out-of-scope rendering collaborator
// needs to produce an HTML→PDF invoice for a completed transaction.
type InvoiceData struct {
	Transaction  *domain.Transaction
	User         *domain.User
	Subscription *domain.Subscription
	Plan         *domain.Plan
}

// InvoiceRenderer turns InvoiceData into PDF bytes. The core only depends
// on this interface; spec.md §1 treats the rendering engine itself as an
// external collaborator.
type InvoiceRenderer interface {
	Render(ctx context.Context, data InvoiceData) ([]byte, error)
}
