// Package metrics defines and registers all custom Prometheus metrics for the
// session gateway. It is the single source of truth for metric names, labels,
// and help strings. Metrics register with the default registry at import time
// via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "session_gateway"

// LoginsTotal counts login attempts by resolved role and outcome.
// Labels:
//   - role: the canonical role the session resolved to, or "none" on failure
//   - outcome: "success", "invalid_credentials", "role_forbidden",
//     "rate_limited", "unknown_role", "upstream_error", "network_error",
//     "malformed_response"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by role and outcome.",
	},
	[]string{"role", "outcome"},
)

// LoginDuration measures end-to-end login latency including the backend call.
// Label:
//   - outcome: "success" or "error"
var LoginDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "login_duration_seconds",
		Help:      "Duration of login resolution including the backend round trip.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"outcome"},
)

// GuardDecisionsTotal counts route-guard evaluations by resulting state.
// Label:
//   - state: "loading", "unauthenticated", "authorized", "denied"
var GuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Total number of route guard evaluations, by decision state.",
	},
	[]string{"state"},
)

// ActiveSessions tracks the number of roles currently holding a session.
var ActiveSessions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Number of roles with a live session.",
	},
)

// LogoutsTotal counts logout operations.
// Label:
//   - scope: "role" for a single-role logout, "all" for logout-all
var LogoutsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logouts_total",
		Help:      "Total number of logout operations, by scope.",
	},
	[]string{"scope"},
)
