package payout

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prn_payout_requests_total",
			Help: "Payout requests by outcome.",
		},
		[]string{"outcome"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prn_payout_transitions_total",
			Help: "Payout status transitions.",
		},
		[]string{"from", "to"},
	)

	debitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prn_payout_debited_amount_total",
			Help: "Sum of completed payout amounts debited from balances.",
		},
	)
)
