package services

import "github.com/prometheus/client_golang/prometheus"

var (
	purchasesConfirmed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "purchases_confirmed_total",
			Help: "Purchases written to both stores.",
		},
	)

	persistFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_persist_failures_total",
			Help: "Confirmation attempts that failed to write a store.",
		},
		[]string{"store"},
	)

	validationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_validation_failures_total",
			Help: "Confirmation attempts rejected by account validation.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(purchasesConfirmed, persistFailures, validationFailures)
}
