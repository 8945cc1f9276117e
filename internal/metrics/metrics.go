// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiambond_http_requests_total",
		Help: "HTTP requests by method, route template and status code.",
	}, []string{"method", "route", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fiambond_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route template.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	LoanTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiambond_loan_transitions_total",
		Help: "Committed loan state machine actions.",
	}, []string{"action"})

	GoalConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiambond_goal_conflicts_total",
		Help: "Expenses that hit an active goal, by outcome (blocked or forced).",
	}, []string{"outcome"})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiambond_job_runs_total",
		Help: "Scheduled job executions by job and result.",
	}, []string{"job", "result"})
)

// Loan transition actions.
const (
	ActionCreate  = "create"
	ActionConfirm = "confirm"
	ActionSubmit  = "submit_repayment"
	ActionApprove = "approve_repayment"
	ActionRecord  = "record_repayment"
)

// Goal conflict outcomes.
const (
	OutcomeBlocked = "blocked"
	OutcomeForced  = "forced"
)
