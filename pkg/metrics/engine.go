package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records outcomes of credit engine operations. Operations are
// labelled issue/transfer/redeem.
type EngineMetrics struct {
	duration   *prometheus.HistogramVec
	success    *prometheus.CounterVec
	failure    *prometheus.CounterVec
	txnRetries *prometheus.CounterVec
}

// NewEngineMetrics registers the engine metrics on the provided registerer.
// A nil registerer yields a no-op recorder, which tests rely on.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cardhaven",
		Subsystem: "credit",
		Name:      "operation_duration_seconds",
		Help:      "Duration of credit engine operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardhaven",
		Subsystem: "credit",
		Name:      "operation_success",
		Help:      "Successful credit engine operations.",
	}, []string{"operation"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardhaven",
		Subsystem: "credit",
		Name:      "operation_failure",
		Help:      "Failed credit engine operations, labelled by error code.",
	}, []string{"operation", "code"})
	txnRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardhaven",
		Subsystem: "credit",
		Name:      "txn_retries",
		Help:      "Transaction attempts retried after a transient conflict.",
	}, []string{"operation"})
	reg.MustRegister(duration, success, failure, txnRetries)
	return &EngineMetrics{
		duration:   duration,
		success:    success,
		failure:    failure,
		txnRetries: txnRetries,
	}
}

// ObserveDuration records the duration for the named operation.
func (m *EngineMetrics) ObserveDuration(operation string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named operation.
func (m *EngineMetrics) IncSuccess(operation string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncFailure increments the failure counter for the named operation and code.
func (m *EngineMetrics) IncFailure(operation, code string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(operation), normalizeLabel(code)).Inc()
}

// IncTxnRetry increments the retry counter for the named operation.
func (m *EngineMetrics) IncTxnRetry(operation string) {
	if m == nil || m.txnRetries == nil {
		return
	}
	m.txnRetries.WithLabelValues(normalizeLabel(operation)).Inc()
}
