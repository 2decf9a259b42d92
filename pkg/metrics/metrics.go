// Package metrics provides Prometheus metrics for the sync.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRunsTotal tracks pipeline runs by stream and outcome
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by stream and status",
		},
		[]string{"stream", "status"},
	)

	// PipelineRunDuration tracks pipeline run duration in seconds
	PipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 1800},
		},
		[]string{"stream"},
	)

	// PipelineStateTransitions tracks state machine transitions
	PipelineStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "pipeline",
			Name:      "state_transitions_total",
			Help:      "Number of pipeline state transitions by target state",
		},
		[]string{"stream", "state"},
	)

	// DocumentsLoaded tracks documents confirmed by the sink
	DocumentsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "loader",
			Name:      "documents_total",
			Help:      "Total number of documents written to the index",
		},
		[]string{"index"},
	)

	// BulkRequestDuration tracks bulk write latency
	BulkRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "loader",
			Name:      "bulk_duration_seconds",
			Help:      "Duration of bulk writes in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"index", "status"},
	)

	// RetriesTotal tracks transient failures that were retried
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Total number of retried operations by stream",
		},
		[]string{"stream"},
	)

	// WatermarkTimestamp exposes the last committed watermark per stream
	WatermarkTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fern",
			Subsystem: "watermark",
			Name:      "timestamp_seconds",
			Help:      "Unix time of the last committed watermark",
		},
		[]string{"stream"},
	)

	// SchedulerRunsTotal tracks scheduled sync invocations by kind and outcome
	SchedulerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Total number of scheduled sync invocations by outcome",
		},
		[]string{"kind", "status"},
	)

	// KafkaMessagesPublished tracks sync events published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of Kafka messages published",
		},
		[]string{"topic", "status"},
	)
)

// RecordPipelineRun records a finished pipeline run
func RecordPipelineRun(stream, status string, durationSeconds float64) {
	PipelineRunsTotal.WithLabelValues(stream, status).Inc()
	PipelineRunDuration.WithLabelValues(stream).Observe(durationSeconds)
}

// RecordState records a state transition
func RecordState(stream, state string) {
	PipelineStateTransitions.WithLabelValues(stream, state).Inc()
}

// RecordBulk records a bulk write attempt
func RecordBulk(index, status string, documents int, durationSeconds float64) {
	BulkRequestDuration.WithLabelValues(index, status).Observe(durationSeconds)
	if status == "success" {
		DocumentsLoaded.WithLabelValues(index).Add(float64(documents))
	}
}

// RecordRetry records a retried operation
func RecordRetry(stream string) {
	RetriesTotal.WithLabelValues(stream).Inc()
}

// RecordWatermark records a committed watermark
func RecordWatermark(stream string, unixSeconds float64) {
	WatermarkTimestamp.WithLabelValues(stream).Set(unixSeconds)
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}

// RecordScheduledRun records the outcome of a scheduled invocation
func RecordScheduledRun(kind, status string) {
	SchedulerRunsTotal.WithLabelValues(kind, status).Inc()
}
