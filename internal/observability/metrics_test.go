package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/vaultd/internal/observability/metrics"
)

// findMetric returns the sample of family name whose labels include all of want.
func findMetric(t *testing.T, families []*dto.MetricFamily, name string, want map[string]string) *dto.Metric {
	t.Helper()

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			matched := true
			for k, v := range want {
				if labels[k] != v {
					matched = false
					break
				}
			}
			if matched {
				return m
			}
		}
	}
	return nil
}

func TestNewMetricsConcurrency(t *testing.T) {
	t.Parallel()

	const numGoroutines = 20

	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Go(func() {
			m, err := NewMetrics()
			if !assert.NoError(t, err) {
				return
			}
			assert.NotNil(t, m.Registry())
			assert.NotNil(t, m.Vault)
			assert.NotNil(t, m.HTTP)
		})
	}
	wg.Wait()
}

func TestVaultMetricsRecorded(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Vault.RecordOperation(metrics.OpWrite, metrics.StatusSuccess)
	m.Vault.RecordOperation(metrics.OpWrite, metrics.StatusSuccess)
	m.Vault.RecordOperation(metrics.OpRead, metrics.StatusError)
	m.Vault.RecordError(metrics.OpRead, "not_found")
	m.Vault.RecordDuration(metrics.OpWrite, 0.002)
	m.Vault.RecordBytesWritten("append", 128)
	m.Vault.RecordTemplateApplied()
	m.Vault.RecordFolderRemoved()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	writes := findMetric(t, families, "vault_file_operations_total", map[string]string{"operation": "write", "status": "success"})
	require.NotNil(t, writes)
	assert.InDelta(t, 2, writes.GetCounter().GetValue(), 0)

	notFound := findMetric(t, families, "vault_file_operation_errors_total", map[string]string{"operation": "read", "reason": "not_found"})
	require.NotNil(t, notFound)
	assert.InDelta(t, 1, notFound.GetCounter().GetValue(), 0)

	bytes := findMetric(t, families, "vault_bytes_written_total", map[string]string{"mode": "append"})
	require.NotNil(t, bytes)
	assert.InDelta(t, 128, bytes.GetCounter().GetValue(), 0)

	duration := findMetric(t, families, "vault_file_operation_duration_seconds", map[string]string{"operation": "write"})
	require.NotNil(t, duration)
	assert.Equal(t, uint64(1), duration.GetHistogram().GetSampleCount())

	assert.NotNil(t, findMetric(t, families, "vault_templates_applied_total", nil))
	assert.NotNil(t, findMetric(t, families, "vault_empty_folders_removed_total", nil))
}

func TestHandlerServesExposition(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.HTTP.RequestStarted()
	m.HTTP.RecordRequest(http.MethodGet, "/api/file", "200", 0.01, 512)
	m.HTTP.RequestFinished()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `http_requests_total{method="GET",path="/api/file",status_code="200"} 1`)
	assert.Contains(t, string(body), "http_requests_in_flight 0")
	assert.Contains(t, string(body), "go_goroutines")
}
