package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry configures the global Sentry client. An empty dsn leaves reporting disabled.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

// FlushSentry waits for buffered events to be delivered.
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// Reporter forwards errors to an error tracker.
type Reporter interface {
	Report(err error, tags map[string]string)
}

// SentryReporter reports through a Sentry hub. With no client bound to the hub
// reports are dropped.
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter returns a reporter backed by the current global hub.
func NewSentryReporter() *SentryReporter {
	return &SentryReporter{hub: sentry.CurrentHub()}
}

// NewSentryReporterWithHub returns a reporter bound to hub.
func NewSentryReporterWithHub(hub *sentry.Hub) *SentryReporter {
	return &SentryReporter{hub: hub}
}

func (r *SentryReporter) Report(err error, tags map[string]string) {
	if err == nil || r.hub == nil || r.hub.Client() == nil {
		return
	}

	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		r.hub.CaptureException(err)
	})
}
