package jobs

import (
	"context"
	"log/slog"

	"github.com/tessera-pm/tessera/internal/audit"
)

// AuditSink delivers audit records through the job queue. Enqueue failures
// are logged and swallowed: audit delivery is best-effort and must never
// block or change an authorization decision.
type AuditSink struct {
	client *Client
	logger *slog.Logger
}

// NewAuditSink constructs an AuditSink.
func NewAuditSink(client *Client, logger *slog.Logger) *AuditSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditSink{client: client, logger: logger}
}

// Emit enqueues the record for asynchronous persistence.
func (s *AuditSink) Emit(ctx context.Context, rec audit.Record) {
	task, err := NewAuditRecordTask(rec)
	if err != nil {
		s.logger.Error("audit task build", slog.Any("error", err))
		return
	}
	if _, err := s.client.Enqueue(ctx, task); err != nil {
		s.logger.Warn("audit task enqueue", slog.Any("error", err))
	}
}
