// Package invoice implements the invoice-rendering collaborator:
// billing data in, PDF bytes out. A full PDF engine is out of scope
// for this system — htmlTemplateRenderer renders the invoice as a
// self-contained PDF document using the minimal single-page writer in
// pdf.go, built directly on the standard library since the example
// pack carries no PDF or HTML-templating dependency worth adopting
// for this.
package invoice

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/ledgerflow/subscriptions/internal/domain/ports"
	"go.uber.org/zap"
)

const invoiceTemplate = `INVOICE
Transaction: {{.Transaction.ID}}
Date: {{.Transaction.CreatedAt.Format "2006-01-02"}}

Bill to: {{.User.Email}}

Plan: {{.Plan.Name}}
Billing period: {{.Subscription.CurrentPeriodStart.Format "2006-01-02"}} - {{.Subscription.CurrentPeriodEnd.Format "2006-01-02"}}

Amount: {{.Transaction.Amount.Amount}} {{.Transaction.Amount.Currency}}
Status: {{.Transaction.Status}}
Gateway reference: {{.Transaction.GatewayRef}}
`

type htmlTemplateRenderer struct {
	tmpl   *template.Template
	logger *zap.Logger
}

func NewHTMLTemplateRenderer(logger *zap.Logger) (ports.InvoiceRenderer, error) {
	tmpl, err := template.New("invoice").Parse(invoiceTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse invoice template: %w", err)
	}
	return &htmlTemplateRenderer{tmpl: tmpl, logger: logger}, nil
}

func (r *htmlTemplateRenderer) Render(ctx context.Context, data ports.InvoiceData) ([]byte, error) {
	if data.Transaction == nil || data.User == nil || data.Subscription == nil || data.Plan == nil {
		return nil, fmt.Errorf("invoice render: incomplete data")
	}

	var body bytes.Buffer
	if err := r.tmpl.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("execute invoice template: %w", err)
	}

	pdf, err := renderTextPDF(body.String())
	if err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}

	r.logger.Info("invoice rendered",
		zap.String("transaction_id", data.Transaction.ID),
		zap.Int("bytes", len(pdf)),
	)
	return pdf, nil
}
