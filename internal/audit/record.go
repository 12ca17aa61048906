// Package audit emits and stores authorization audit records.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event names for audit records.
const (
	// EventDecision is an allow/deny verdict from the authorization gate.
	EventDecision = "decision"
	// EventBypass is a successful tenant-filter bypass by a super-admin.
	EventBypass = "bypass"
	// EventBypassDenied is a rejected bypass attempt.
	EventBypassDenied = "bypass_denied"
)

// Record is one audit entry. SubjectID is the user whose permissions were
// checked; ActorID is the caller (they differ when a service checks on behalf
// of a user).
type Record struct {
	At         time.Time  `json:"at"`
	Event      string     `json:"event"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	ActorID    uuid.UUID  `json:"actor_id"`
	SubjectID  *uuid.UUID `json:"subject_id,omitempty"`
	Permission string     `json:"permission,omitempty"`
	ProjectID  *uuid.UUID `json:"project_id,omitempty"`
	Decision   string     `json:"decision,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// Sink accepts audit records. Delivery is best-effort: implementations must
// never let a delivery failure propagate into the authorization decision.
type Sink interface {
	Emit(ctx context.Context, rec Record)
}
