// Package metrics holds the Prometheus instruments for the validation area.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the validation pipeline and queue.
type Metrics struct {
	JobsProcessed    prometheus.Counter
	JobsCompleted    prometheus.Counter
	JobsRescheduled  prometheus.Counter
	JobsDeadLettered prometheus.Counter
	AutoApproved     prometheus.Counter
	Rejected         prometheus.Counter
	NeedsReview      prometheus.Counter
	PipelineDuration prometheus.Histogram
}

// New creates and registers all validation metrics on the default registerer.
func New() *Metrics {
	return &Metrics{
		JobsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docgate_jobs_processed_total",
			Help: "Total validation jobs claimed by the worker",
		}),
		JobsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docgate_jobs_completed_total",
			Help: "Total validation jobs that finished successfully",
		}),
		JobsRescheduled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docgate_jobs_rescheduled_total",
			Help: "Total validation jobs returned to pending with backoff",
		}),
		JobsDeadLettered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docgate_jobs_dead_lettered_total",
			Help: "Total validation jobs moved to the dead-letter state",
		}),
		AutoApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docgate_documents_auto_approved_total",
			Help: "Total documents verified without human review",
		}),
		Rejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docgate_documents_rejected_total",
			Help: "Total documents rejected by the decision engine",
		}),
		NeedsReview: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docgate_documents_needs_review_total",
			Help: "Total documents routed to human review",
		}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "docgate_pipeline_duration_seconds",
			Help:    "Wall time of one full pipeline run",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
