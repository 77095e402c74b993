// Package metrics defines and registers all custom Prometheus metrics for the
// account recovery service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package init
// and exposed by the router on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "account_recovery"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthRequestsTotal counts requests handled by the auth endpoints.
// Labels:
//   - operation: "register", "login", "request_password_reset", "set_new_password"
//   - outcome: "ok" or a short failure reason (e.g. "email_taken", "invalid_token")
var AuthRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_requests_total",
		Help:      "Total number of auth requests, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// ResetTokensTotal counts reset-token transitions.
// Label:
//   - state: "issued", "consumed", "expired" or "no_token" (redeem attempt for an unknown token)
var ResetTokensTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reset_tokens_total",
		Help:      "Total number of reset token transitions, by resulting state.",
	},
	[]string{"state"},
)

// ResetTokensSwept counts expired tokens removed by the in-memory sweeper.
var ResetTokensSwept = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reset_tokens_swept_total",
		Help:      "Total number of expired reset tokens evicted by the sweeper.",
	},
)

// ── Notice metrics ────────────────────────────────────────────────────────────

// NoticesQueueDepth tracks the current number of notices waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var NoticesQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notices_queue_depth",
		Help:      "Current number of reset notices pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// NoticesDeliveredTotal counts delivery attempts.
// Label:
//   - result: "ok", "error" or "dropped" (queue full)
var NoticesDeliveredTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notices_delivered_total",
		Help:      "Total number of reset notice deliveries, by result.",
	},
	[]string{"result"},
)

// NoticeDeliveryDuration measures how long a single notifier call takes.
var NoticeDeliveryDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "notice_delivery_duration_seconds",
		Help:      "Duration of a reset notice delivery from dequeue to notifier return.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
)
