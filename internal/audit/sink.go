package audit

import (
	"context"
	"log/slog"
)

// LogSink writes audit records to the structured log. Used when no queue is
// configured, and as the worker-side fallback in tests.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Emit logs the record.
func (s *LogSink) Emit(_ context.Context, rec Record) {
	s.logger.Info("audit",
		slog.String("event", rec.Event),
		slog.String("tenant_id", rec.TenantID.String()),
		slog.String("actor_id", rec.ActorID.String()),
		slog.String("permission", rec.Permission),
		slog.String("decision", rec.Decision),
		slog.String("reason", rec.Reason),
	)
}
