// Package metrics defines the prometheus collectors exported by the batch
// ingestion service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "batchingest"

var (
	// IngestionsSubmitted counts accepted ingestion requests.
	IngestionsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingestions_submitted_total",
		Help:      "The total number of accepted ingestion requests",
	}, []string{"priority"})

	// BatchesDispatched counts batches handed to a worker.
	BatchesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_dispatched_total",
		Help:      "The total number of batches dispatched to a worker",
	}, []string{"priority"})

	// BatchesCompleted counts batches that were ingested successfully.
	BatchesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_completed_total",
		Help:      "The total number of batches that were ingested successfully",
	}, []string{"priority"})

	// BatchesFailed counts batches whose ingestion operation failed.
	BatchesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_failed_total",
		Help:      "The total number of batches whose ingestion operation failed",
	}, []string{"priority"})

	// PendingJobs tracks the number of jobs waiting in the scheduler.
	PendingJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scheduler_pending_jobs",
		Help:      "The number of batch jobs waiting to be dispatched",
	})

	// BatchDuration observes the time spent in the ingestion operation.
	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "batch_duration_seconds",
		Help:      "The time spent ingesting a single batch",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	})
)
