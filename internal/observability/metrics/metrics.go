// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "audiobook_transcription"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Job metrics
	JobsTotal     prometheus.Counter
	JobsActive    prometheus.Gauge
	JobsCompleted prometheus.Counter
	JobsFailed    *prometheus.CounterVec
	JobsResumed   prometheus.Counter
	JobRetries    prometheus.Counter
	StageDuration *prometheus.HistogramVec

	// Polling metrics
	PollsTotal   prometheus.Counter
	PollFailures prometheus.Counter

	// Upload metrics
	UploadBytes prometheus.Counter

	// Segmentation metrics
	SegmentsPerTranscript prometheus.Histogram
	TokensPerTranscript   prometheus.Histogram

	// STT request metrics
	STTRequestLatency *prometheus.HistogramVec
	STTRequestErrors  *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		JobsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of transcription jobs started",
		}),
		JobsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Number of currently active transcription jobs",
		}),
		JobsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs that completed successfully",
		}),
		JobsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Total number of jobs that failed permanently",
		}, []string{"kind"}),
		JobsResumed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_resumed_total",
			Help:      "Total number of jobs re-attached after restart",
		}),
		JobRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_retries_total",
			Help:      "Total number of automatic retry attempts",
		}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 900, 1800},
		}, []string{"stage"}),

		PollsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Total number of remote status polls",
		}),
		PollFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_failures_total",
			Help:      "Total number of failed remote status polls",
		}),

		UploadBytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Total audio bytes uploaded to the STT service",
		}),

		SegmentsPerTranscript: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "segments_per_transcript",
			Help:      "Number of segments produced per transcript",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		TokensPerTranscript: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tokens_per_transcript",
			Help:      "Number of tokens returned per transcript",
			Buckets:   []float64{10, 100, 500, 1000, 5000, 10000, 50000},
		}),

		STTRequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stt_request_latency_seconds",
			Help:      "Latency of STT API requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
		}, []string{"operation"}),
		STTRequestErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_request_errors_total",
			Help:      "Total number of failed STT API requests",
		}, []string{"operation"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordJobStart records a new job entering the pipeline.
func (m *Metrics) RecordJobStart() {
	m.JobsTotal.Inc()
	m.JobsActive.Inc()
}

// RecordJobEnd records a job leaving the pipeline.
func (m *Metrics) RecordJobEnd(failedKind string) {
	m.JobsActive.Dec()
	if failedKind == "" {
		m.JobsCompleted.Inc()
	} else {
		m.JobsFailed.WithLabelValues(failedKind).Inc()
	}
}

// RecordJobResumed records a job re-attached during crash recovery.
func (m *Metrics) RecordJobResumed() {
	m.JobsResumed.Inc()
}

// RecordRetry records an automatic retry attempt.
func (m *Metrics) RecordRetry() {
	m.JobRetries.Inc()
}

// RecordStageDuration records how long a pipeline stage took.
func (m *Metrics) RecordStageDuration(stage string, seconds float64) {
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordPoll records one remote status poll.
func (m *Metrics) RecordPoll(err error) {
	m.PollsTotal.Inc()
	if err != nil {
		m.PollFailures.Inc()
	}
}

// RecordUploadBytes records audio bytes uploaded.
func (m *Metrics) RecordUploadBytes(n int64) {
	m.UploadBytes.Add(float64(n))
}

// RecordTranscript records the size of a finished transcript.
func (m *Metrics) RecordTranscript(segments, tokens int) {
	m.SegmentsPerTranscript.Observe(float64(segments))
	m.TokensPerTranscript.Observe(float64(tokens))
}

// RecordSTTRequest records one STT API request.
func (m *Metrics) RecordSTTRequest(operation string, err error, latencySeconds float64) {
	m.STTRequestLatency.WithLabelValues(operation).Observe(latencySeconds)
	if err != nil {
		m.STTRequestErrors.WithLabelValues(operation).Inc()
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
