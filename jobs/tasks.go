package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/tessera-pm/tessera/internal/audit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAuditRecord is the task type for persisting audit records.
	TaskTypeAuditRecord = "audit:record"
)

// NewAuditRecordTask constructs an Asynq task carrying one audit record.
func NewAuditRecordTask(rec audit.Record) (*asynq.Task, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditRecord, data), nil
}

// AuditStore persists audit records on the worker side.
type AuditStore interface {
	Insert(ctx context.Context, rec audit.Record) error
}

// NewAuditRecordHandler returns the handler that persists audit records.
// A malformed payload is dropped rather than retried; a store failure is
// retried by asynq with its default backoff.
func NewAuditRecordHandler(store AuditStore, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var rec audit.Record
		if err := json.Unmarshal(t.Payload(), &rec); err != nil {
			if logger != nil {
				logger.Error("audit record payload", slog.Any("error", err))
			}
			return asynq.SkipRetry
		}
		return store.Insert(ctx, rec)
	}
}
