package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settlementTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rata_settlement_transitions_total",
			Help: "Member payment status transitions",
		},
		[]string{"from", "to", "trigger"},
	)

	invitationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rata_invitations_total",
			Help: "Invitation lifecycle events",
		},
		[]string{"event"},
	)

	expensesAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rata_expenses_added_total",
			Help: "Expenses appended to group ledgers",
		},
	)

	webhookOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rata_payment_webhook_outcomes_total",
			Help: "Payment webhook reconciliation outcomes",
		},
		[]string{"outcome"},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rata_notifications_total",
			Help: "Notification deliveries by channel and result",
		},
		[]string{"channel", "result"},
	)
)
