// Package metrics holds the Prometheus collectors for the economy service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AccrualTicks counts passive-earning ticks by outcome ("ok", "error").
var AccrualTicks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "browbux",
	Subsystem: "accrual",
	Name:      "ticks_total",
	Help:      "Passive accrual ticks by result.",
}, []string{"result"})

// ActiveSessions is the number of sessions with a running accrual job.
var ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "browbux",
	Subsystem: "accrual",
	Name:      "active_sessions",
	Help:      "Sessions currently accruing passive earnings.",
})

// LevelUps counts levels gained across all users.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "browbux",
	Name:      "level_ups_total",
	Help:      "Levels gained by users.",
})

// TaskCompletions counts task completion attempts by outcome
// ("applied", "duplicate", "error").
var TaskCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "browbux",
	Subsystem: "tasks",
	Name:      "completions_total",
	Help:      "Daily task completion attempts by result.",
}, []string{"result"})

// Withdrawals counts withdrawal submissions by outcome
// ("submitted", "invalid", "error").
var Withdrawals = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "browbux",
	Subsystem: "withdrawals",
	Name:      "requests_total",
	Help:      "Withdrawal requests by result.",
}, []string{"result"})

// WithdrawalTransitions counts status changes by target status.
var WithdrawalTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "browbux",
	Subsystem: "withdrawals",
	Name:      "transitions_total",
	Help:      "Withdrawal status transitions by new status.",
}, []string{"status"})

// EscrowedRobux tracks Robux debited into pending withdrawals.
var EscrowedRobux = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "browbux",
	Subsystem: "withdrawals",
	Name:      "escrowed_robux_total",
	Help:      "Robux debited at withdrawal submission.",
})

// Searches counts AI search lookups by outcome ("hit", "miss", "error", "disabled").
var Searches = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "browbux",
	Subsystem: "search",
	Name:      "queries_total",
	Help:      "AI search queries by cache/result outcome.",
}, []string{"result"})
