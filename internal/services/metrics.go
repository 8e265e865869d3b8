package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atm",
			Subsystem: "auth",
			Name:      "pin_validations_total",
			Help:      "PIN validations by outcome",
		},
		[]string{"outcome"},
	)

	accountLockouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "atm",
			Subsystem: "auth",
			Name:      "lockouts_total",
			Help:      "Accounts locked after reaching the failed attempt limit",
		},
	)

	transactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atm",
			Name:      "transactions_total",
			Help:      "Terminal operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	cashDispensed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "atm",
			Name:      "cash_dispensed_cents_total",
			Help:      "Cash handed out by withdrawals and fast cash, in cents",
		},
	)
)
