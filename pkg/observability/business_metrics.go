package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Subscription billing metrics
	subscriptionBillingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_billings_total",
		Help: "Total subscription billing attempts",
	}, []string{
		"trigger", // recurring, retry, trial_conversion, expiration
		"status",  // success, failed, retrying, cancelled, expired
	})

	subscriptionRevenueCents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_revenue_cents_total",
		Help: "Total subscription revenue in cents",
	}, []string{"currency"})

	billingRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_run_duration_seconds",
		Help:    "Time to complete a full billing scan",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"trigger"})

	// Notification dispatch metrics
	notificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total notifications dispatched",
	}, []string{"event_type"})

	// Invoice rendering metrics
	invoicesGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invoices_generated_total",
		Help: "Total invoices rendered",
	}, []string{"status"})

	activeSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_subscriptions",
		Help: "Number of subscriptions currently in the active state",
	})
)

// RecordSubscriptionBilling records one subscription billing attempt.
func RecordSubscriptionBilling(trigger, status string) {
	subscriptionBillingsTotal.WithLabelValues(trigger, status).Inc()
}

// RecordRevenue records a completed charge's amount toward the revenue
// counter. Called from the payment processor, which is the component
// that actually knows the charged amount.
func RecordRevenue(amountCents int64, currency string) {
	subscriptionRevenueCents.WithLabelValues(currency).Add(float64(amountCents))
}

// RecordBillingRunDuration records how long one full billing scan took.
func RecordBillingRunDuration(trigger string, seconds float64) {
	billingRunDuration.WithLabelValues(trigger).Observe(seconds)
}

// RecordNotificationSent records one fire-and-forget notification dispatch.
func RecordNotificationSent(eventType string) {
	notificationsSentTotal.WithLabelValues(eventType).Inc()
}

// RecordInvoiceGenerated records one invoice render attempt.
func RecordInvoiceGenerated(status string) {
	invoicesGeneratedTotal.WithLabelValues(status).Inc()
}

// UpdateActiveSubscriptions sets the current active-subscription gauge.
func UpdateActiveSubscriptions(count float64) {
	activeSubscriptions.Set(count)
}
