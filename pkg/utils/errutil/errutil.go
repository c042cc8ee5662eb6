package errutil

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Handle logs err and, when Sentry is configured, reports it. It never
// swallows the error for the caller; propagation is up to them.
func Handle(ctx context.Context, msg string, err error) {
	if err == nil {
		return
	}

	attrs := []any{slog.Any("error", err)}
	if e := goerr.Unwrap(err); e != nil {
		for k, v := range e.Values() {
			attrs = append(attrs, slog.Any(k, v))
		}
	}

	if hub := sentry.CurrentHub(); hub.Client() != nil {
		hub = hub.Clone()
		hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetTag("message", msg)
			if e := goerr.Unwrap(err); e != nil {
				scope.SetContext("values", e.Values())
			}
		})
		if evID := hub.CaptureException(err); evID != nil {
			attrs = append(attrs, slog.String("sentry_event_id", string(*evID)))
		}
	}

	ctxlog.From(ctx).Error(msg, attrs...)
}
