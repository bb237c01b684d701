// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Entitlement metrics
var (
	EntitlementDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_decisions_total",
			Help: "Access decisions by outcome (allowed, denied, undecided)",
		},
		[]string{"outcome"},
	)

	RoleResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "role_resolutions_total",
			Help: "Role resolutions by winning source and role",
		},
		[]string{"source", "role"},
	)

	RoleLookupFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "role_lookup_failures_total",
			Help: "Backing role lookup failures by kind (credential, timeout, other)",
		},
		[]string{"kind"},
	)

	SubscriptionReadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subscription_read_failures_total",
			Help: "Subscription reads that degraded to no subscription",
		},
	)

	SessionStaleResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_stale_results_total",
			Help: "Fetch results discarded because the session moved to another account",
		},
	)
)

// Payout metrics
var (
	PayoutRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payout_requests_total",
			Help: "Payout request attempts by result code",
		},
		[]string{"result"},
	)

	PayoutTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payout_transitions_total",
			Help: "Applied payout status transitions",
		},
		[]string{"from", "to"},
	)
)
