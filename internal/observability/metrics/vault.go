package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics contains Prometheus metrics for file operations on the vault
type VaultMetrics struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	bytesWritten      *prometheus.CounterVec
	templatesApplied  prometheus.Counter
	foldersRemoved    prometheus.Counter
}

// NewVaultMetrics creates and registers new vault metrics
func NewVaultMetrics(registry *prometheus.Registry) (*VaultMetrics, error) {
	m := &VaultMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *VaultMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_file_operations_total",
			Help: "Total number of file operations",
		},
		[]string{"operation", "status"}, // operation: read, write, move, delete; status: success, error
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vault_file_operation_duration_seconds",
			Help:    "Time taken for file operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12), // 0.1ms to ~200ms
		},
		[]string{"operation"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_file_operation_errors_total",
			Help: "Total number of failed file operations by reason",
		},
		[]string{"operation", "reason"}, // reason: invalid_request, not_found, permission_denied, unknown
	)

	m.bytesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_bytes_written_total",
			Help: "Total number of bytes written to the vault",
		},
		[]string{"mode"}, // mode: overwrite, append
	)

	m.templatesApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vault_templates_applied_total",
			Help: "Total number of writes rendered from a template",
		},
	)

	m.foldersRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vault_empty_folders_removed_total",
			Help: "Total number of folders removed after their last file was deleted",
		},
	)
}

// Describe implements the prometheus.Collector interface
func (m *VaultMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.operationDuration.Describe(ch)
	m.errorsTotal.Describe(ch)
	m.bytesWritten.Describe(ch)
	m.templatesApplied.Describe(ch)
	m.foldersRemoved.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *VaultMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDuration.Collect(ch)
	m.errorsTotal.Collect(ch)
	m.bytesWritten.Collect(ch)
	m.templatesApplied.Collect(ch)
	m.foldersRemoved.Collect(ch)
}

// RecordOperation records a file operation with its status
func (m *VaultMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration records the duration of a file operation
func (m *VaultMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError records a failed operation with the reason it failed
func (m *VaultMetrics) RecordError(operation, reason string) {
	m.errorsTotal.WithLabelValues(operation, reason).Inc()
}

// RecordBytesWritten adds n bytes to the written counter for mode
func (m *VaultMetrics) RecordBytesWritten(mode string, n int) {
	m.bytesWritten.WithLabelValues(mode).Add(float64(n))
}

// RecordTemplateApplied counts a template-based write
func (m *VaultMetrics) RecordTemplateApplied() {
	m.templatesApplied.Inc()
}

// RecordFolderRemoved counts an emptied folder removed by a delete
func (m *VaultMetrics) RecordFolderRemoved() {
	m.foldersRemoved.Inc()
}

var _ Recorder = (*VaultMetrics)(nil)
