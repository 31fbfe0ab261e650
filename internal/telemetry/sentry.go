// Package telemetry wires optional Sentry error reporting into the
// enhanced error system. Reporting is opt-in and privacy filtered.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/vaultd/internal/conf"
	"github.com/tphakala/vaultd/internal/errors"
	"github.com/tphakala/vaultd/internal/logger"
)

// FlushTimeout bounds how long Flush waits for queued events.
const FlushTimeout = 2 * time.Second

// ignoredCategories are client mistakes and expected outcomes, not faults.
var ignoredCategories = map[errors.ErrorCategory]bool{
	errors.CategoryValidation:   true,
	errors.CategoryNotFound:     true,
	errors.CategoryPermission:   true,
	errors.CategoryCancellation: true,
}

// GetLogger returns the telemetry package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}

// filteringReporter drops expected failures before they reach Sentry.
type filteringReporter struct {
	next errors.TelemetryReporter
}

func (r *filteringReporter) IsEnabled() bool {
	return r.next.IsEnabled()
}

func (r *filteringReporter) ReportError(ee *errors.EnhancedError) {
	if ignoredCategories[ee.Category] {
		return
	}
	r.next.ReportError(ee)
}

// InitSentry initializes Sentry and installs the error reporter. It does
// nothing unless telemetry is explicitly enabled.
func InitSentry(settings *conf.Settings) error {
	return initSentry(settings, nil)
}

// initSentry is InitSentry with an injectable transport for tests.
func initSentry(settings *conf.Settings, transport sentry.Transport) error {
	if !settings.Telemetry.Enabled {
		GetLogger().Debug("telemetry disabled")
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Telemetry.DSN,
		SampleRate:       1.0,
		Debug:            false,
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "", // never leak the hostname
		Release:          fmt.Sprintf("vaultd@%s", settings.Version),
		Transport:        transport,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	errors.SetTelemetryReporter(&filteringReporter{next: errors.NewSentryReporter(true)})

	GetLogger().Info("telemetry enabled", logger.String("release", "vaultd@"+settings.Version))
	return nil
}

// applyPrivacyFilters strips identifying data from an event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Request = nil

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}

// Flush waits for queued events and detaches the reporter.
func Flush() {
	if errors.GetTelemetryReporter() == nil {
		return
	}
	sentry.Flush(FlushTimeout)
	errors.SetTelemetryReporter(nil)
}
