package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every metric of the service, exposed on /metrics.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

var (
	// HTTP request metrics
	httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "user_role"},
	)

	httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	// Business metrics
	transactionsEnqueuedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transactions_enqueued_total",
			Help: "Total number of transactions accepted or rejected at enqueue",
		},
		[]string{"queue_name", "kind", "status"},
	)

	// Queue metrics
	queueSize = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_size",
			Help: "Current queue size",
		},
		[]string{"queue_name"},
	)

	queueCommitsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_commits_total",
			Help: "Total number of commit attempts",
		},
		[]string{"queue_name", "status"},
	)

	queueProcessingDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_processing_duration_seconds",
			Help:    "Commit duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue_name", "status"},
	)

	queueRetriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_retries_total",
			Help: "Total number of transactions requeued after a failed commit",
		},
		[]string{"queue_name"},
	)

	queueDeadLettersTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_dead_letters_total",
			Help: "Total number of transactions dropped after too many failed commits",
		},
		[]string{"queue_name"},
	)

	// Durable store metrics
	recordOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_record_operations_total",
			Help: "Total number of durable record writes and purges",
		},
		[]string{"queue_name", "operation", "status"},
	)

	// Authentication metrics
	authAttemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "status"},
	)

	systemErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "system_errors_total",
			Help: "Total number of system errors",
		},
		[]string{"error_type", "component"},
	)
)

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failed"
}

// HTTP Metrics
func RecordHTTPRequest(method, endpoint, statusCode, userRole string, duration float64) {
	httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, userRole).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, statusCode).Observe(duration)
}

// Transaction Metrics
func RecordEnqueue(queueName, kind string, accepted bool) {
	transactionsEnqueuedTotal.WithLabelValues(queueName, kind, status(accepted)).Inc()
}

// Queue Metrics
func SetQueueSize(queueName string, size float64) {
	queueSize.WithLabelValues(queueName).Set(size)
}

func RecordQueueProcessing(queueName, status string, duration float64) {
	queueCommitsTotal.WithLabelValues(queueName, status).Inc()
	queueProcessingDuration.WithLabelValues(queueName, status).Observe(duration)
}

// Authentication Metrics
func RecordAuthAttempt(method, status string) {
	authAttemptsTotal.WithLabelValues(method, status).Inc()
}

func RecordSystemError(errorType, component string) {
	systemErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// QueueRecorder reports commit engine and durable queue events for one queue.
// It satisfies engine.Metrics and queue.Observer.
type QueueRecorder struct {
	name string
}

// NewQueueRecorder creates a recorder labelled with the queue name
func NewQueueRecorder(queueName string) *QueueRecorder {
	return &QueueRecorder{name: queueName}
}

func (r *QueueRecorder) ObserveCommit(success bool, duration time.Duration) {
	RecordQueueProcessing(r.name, status(success), duration.Seconds())
}

func (r *QueueRecorder) AddRetry() {
	queueRetriesTotal.WithLabelValues(r.name).Inc()
}

func (r *QueueRecorder) AddDeadLetter() {
	queueDeadLettersTotal.WithLabelValues(r.name).Inc()
}

func (r *QueueRecorder) SetDepth(depth int) {
	SetQueueSize(r.name, float64(depth))
}

func (r *QueueRecorder) RecordWritten(err error) {
	recordOperationsTotal.WithLabelValues(r.name, "write", status(err == nil)).Inc()
}

func (r *QueueRecorder) RecordPurged(err error) {
	recordOperationsTotal.WithLabelValues(r.name, "purge", status(err == nil)).Inc()
}
