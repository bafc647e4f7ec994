package services

import "github.com/prometheus/client_golang/prometheus"

var (
	paymentsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_created_total",
			Help: "Payments accepted by the gateway",
		},
	)
	paymentWebhooks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhooks_total",
			Help: "Gateway webhooks by outcome",
		},
		[]string{"outcome"},
	)
	welcomeEmails = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "welcome_emails_total",
			Help: "Welcome emails by result",
		},
		[]string{"result"},
	)
	subscriptionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Subscribers deactivated by the expiry sweep",
		},
	)
)

// RegisterMetrics registers the domain counters. Call this from main.go
func RegisterMetrics() {
	prometheus.MustRegister(paymentsCreated)
	prometheus.MustRegister(paymentWebhooks)
	prometheus.MustRegister(welcomeEmails)
	prometheus.MustRegister(subscriptionsExpired)
}
