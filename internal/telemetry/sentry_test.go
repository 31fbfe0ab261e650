package telemetry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/vaultd/internal/conf"
	"github.com/tphakala/vaultd/internal/errors"
)

// mockTransport implements sentry.Transport and keeps events in memory.
type mockTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *mockTransport) Configure(sentry.ClientOptions) {}

func (t *mockTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *mockTransport) Flush(time.Duration) bool { return true }

func (t *mockTransport) FlushWithContext(context.Context) bool { return true }

func (t *mockTransport) Close() {}

func (t *mockTransport) Events() []*sentry.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*sentry.Event(nil), t.events...)
}

func enabledSettings() *conf.Settings {
	return &conf.Settings{
		Telemetry: conf.TelemetrySettings{Enabled: true, DSN: "https://public@sentry.example.com/1"},
		Version:   "1.2.3",
	}
}

func TestInitSentryDisabled(t *testing.T) {
	errors.SetTelemetryReporter(nil)

	require.NoError(t, InitSentry(&conf.Settings{}))
	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestInitSentryRejectsBadDSN(t *testing.T) {
	t.Cleanup(func() { errors.SetTelemetryReporter(nil) })

	settings := enabledSettings()
	settings.Telemetry.DSN = "not a dsn"
	require.Error(t, initSentry(settings, &mockTransport{}))
	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestReportedErrorsAreScrubbedAndFiltered(t *testing.T) {
	t.Cleanup(func() { errors.SetTelemetryReporter(nil) })

	transport := &mockTransport{}
	require.NoError(t, initSentry(enabledSettings(), transport))
	require.NotNil(t, errors.GetTelemetryReporter())

	errors.New(fmt.Errorf("open /home/alice/vault/private/diary.md: input/output error")).
		Component("vault").
		Category(errors.CategoryFileIO).
		Context("operation", "write").
		Build()

	errors.Newf("filePath is required").
		Component("vault").
		Category(errors.CategoryValidation).
		Build()

	errors.New(fmt.Errorf("stat /x: no such file")).
		Component("vault").
		Category(errors.CategoryNotFound).
		Build()

	events := transport.Events()
	require.Len(t, events, 1, "only unexpected failures are reported")

	event := events[0]
	assert.NotContains(t, event.Message, "alice")
	assert.Contains(t, event.Message, "[PATH]")
	assert.Equal(t, "vault", event.Tags["component"])
	assert.Equal(t, "file-io", event.Tags["category"])
	assert.Empty(t, event.ServerName)
	assert.Equal(t, "vaultd@1.2.3", event.Release)

	Flush()
	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestApplyPrivacyFilters(t *testing.T) {
	t.Parallel()

	event := sentry.NewEvent()
	event.User = sentry.User{ID: "42", IPAddress: "10.0.0.1"}
	event.ServerName = "notes-host"
	event.Request = &sentry.Request{URL: "http://notes-host/api/file"}
	event.Contexts = map[string]sentry.Context{
		"os":     {"name": "linux"},
		"device": {"arch": "arm64"},
		"vault":  {"value": "kept"},
	}
	event.Tags = map[string]string{"hostname": "notes-host", "component": "vault"}

	out := applyPrivacyFilters(event)
	assert.True(t, out.User.IsEmpty())
	assert.Empty(t, out.ServerName)
	assert.Nil(t, out.Request)
	assert.NotContains(t, out.Contexts, "os")
	assert.NotContains(t, out.Contexts, "device")
	assert.Contains(t, out.Contexts, "vault")
	assert.Equal(t, map[string]string{"component": "vault"}, out.Tags)
}
