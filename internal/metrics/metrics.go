// Package metrics provides Prometheus metrics for amberfile.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "amberfile"
)

// Metrics contains all Prometheus metrics for the toolkit.
type Metrics struct {
	// Operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationErrors   *prometheus.CounterVec
	OperationLatency  *prometheus.HistogramVec

	// Block-stream metrics
	BlocksWritten  *prometheus.CounterVec
	BlocksRead     *prometheus.CounterVec
	BytesWritten   *prometheus.CounterVec
	BytesRead      *prometheus.CounterVec
	BlockAuthFails prometheus.Counter

	// Header / key-agreement metrics
	HeadersParsed    *prometheus.CounterVec
	RecipientsPerMsg prometheus.Histogram
	KDFLatency       prometheus.Histogram

	// Hide/reveal metrics
	HideCapacityBytes prometheus.Gauge
	HideOperations    prometheus.Counter
	RevealOperations  prometheus.Counter

	// Key store metrics
	KeystoreKeysLoaded  prometheus.Gauge
	KeystoreRejected    prometheus.Counter
	KeystoreSaveLatency prometheus.Histogram
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the default metrics instance.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total operations performed, by verb (encrypt, decrypt, sign, verify, hide, reveal, pack)",
		}, []string{"operation"}),
		OperationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Total operation failures, by verb and error type",
		}, []string{"operation", "error_type"}),
		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Histogram of end-to-end operation latency",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"operation"}),

		BlocksWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_written_total",
			Help:      "Total block-stream blocks written, by block type",
		}, []string{"block_type"}),
		BlocksRead: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_read_total",
			Help:      "Total block-stream blocks read, by block type",
		}, []string{"block_type"}),
		BytesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Total plaintext bytes written, by operation",
		}, []string{"operation"}),
		BytesRead: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_read_total",
			Help:      "Total plaintext bytes read, by operation",
		}, []string{"operation"}),
		BlockAuthFails: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_auth_failures_total",
			Help:      "Total block-stream authentication failures",
		}),

		HeadersParsed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "headers_parsed_total",
			Help:      "Total file headers parsed, by kind (password, public)",
		}, []string{"kind"}),
		RecipientsPerMsg: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recipients_per_message",
			Help:      "Histogram of recipient count per encrypted message",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		KDFLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kdf_latency_seconds",
			Help:      "Histogram of password-KDF derivation latency",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		HideCapacityBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hide_capacity_bytes",
			Help:      "Usable filler capacity of the last carrier file measured",
		}),
		HideOperations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hide_operations_total",
			Help:      "Total hide operations performed",
		}),
		RevealOperations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reveal_operations_total",
			Help:      "Total reveal operations performed",
		}),

		KeystoreKeysLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "keystore_keys_loaded",
			Help:      "Number of keys currently loaded from the key ring",
		}),
		KeystoreRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keystore_records_rejected_total",
			Help:      "Total key-ring records rejected for a bad self-signature",
		}),
		KeystoreSaveLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "keystore_save_latency_seconds",
			Help:      "Histogram of key-ring save latency",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}

	return m
}

// RecordOperation records a completed operation and its latency.
func (m *Metrics) RecordOperation(operation string, latencySeconds float64) {
	m.OperationsTotal.WithLabelValues(operation).Inc()
	m.OperationLatency.WithLabelValues(operation).Observe(latencySeconds)
}

// RecordOperationError records a failed operation.
func (m *Metrics) RecordOperationError(operation, errorType string) {
	m.OperationErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordBlockWritten records a block-stream block written.
func (m *Metrics) RecordBlockWritten(blockType string) {
	m.BlocksWritten.WithLabelValues(blockType).Inc()
}

// RecordBlockRead records a block-stream block read.
func (m *Metrics) RecordBlockRead(blockType string) {
	m.BlocksRead.WithLabelValues(blockType).Inc()
}

// RecordBytesWritten records plaintext bytes written for an operation.
func (m *Metrics) RecordBytesWritten(operation string, n int) {
	m.BytesWritten.WithLabelValues(operation).Add(float64(n))
}

// RecordBytesRead records plaintext bytes read for an operation.
func (m *Metrics) RecordBytesRead(operation string, n int) {
	m.BytesRead.WithLabelValues(operation).Add(float64(n))
}

// RecordBlockAuthFail records a block-stream authentication failure.
func (m *Metrics) RecordBlockAuthFail() {
	m.BlockAuthFails.Inc()
}

// RecordHeaderParsed records a header parse, by kind.
func (m *Metrics) RecordHeaderParsed(kind string) {
	m.HeadersParsed.WithLabelValues(kind).Inc()
}

// RecordRecipients records the recipient count of an encrypted message.
func (m *Metrics) RecordRecipients(n int) {
	m.RecipientsPerMsg.Observe(float64(n))
}

// RecordKDFLatency records password-KDF derivation latency.
func (m *Metrics) RecordKDFLatency(latencySeconds float64) {
	m.KDFLatency.Observe(latencySeconds)
}

// RecordHide records a hide operation and the carrier's usable capacity.
func (m *Metrics) RecordHide(capacityBytes int) {
	m.HideOperations.Inc()
	m.HideCapacityBytes.Set(float64(capacityBytes))
}

// RecordReveal records a reveal operation.
func (m *Metrics) RecordReveal() {
	m.RevealOperations.Inc()
}

// SetKeystoreKeysLoaded sets the current key-ring size.
func (m *Metrics) SetKeystoreKeysLoaded(n int) {
	m.KeystoreKeysLoaded.Set(float64(n))
}

// RecordKeystoreRejected records a rejected key-ring record.
func (m *Metrics) RecordKeystoreRejected(n int) {
	m.KeystoreRejected.Add(float64(n))
}

// RecordKeystoreSave records key-ring save latency.
func (m *Metrics) RecordKeystoreSave(latencySeconds float64) {
	m.KeystoreSaveLatency.Observe(latencySeconds)
}
