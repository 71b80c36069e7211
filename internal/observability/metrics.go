package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActionsExecuted counts finished actions by type and terminal status.
	ActionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_actions_executed_total",
		Help: "Total number of actions executed, by action type and terminal status",
	}, []string{"action_type", "status"})

	// PairingRedemptions counts redemption attempts by outcome.
	PairingRedemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_pairing_redemptions_total",
		Help: "Total number of pairing code redemption attempts, by outcome",
	}, []string{"outcome"})

	// EscalationNotices counts escalation fan-outs by tier label.
	EscalationNotices = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_escalation_notices_total",
		Help: "Total number of escalation notifications dispatched, by tier",
	}, []string{"tier"})

	// AlertsIngested counts alerts created from agent events.
	AlertsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_alerts_ingested_total",
		Help: "Total number of alerts created from agent events, by severity",
	}, []string{"severity"})
)
