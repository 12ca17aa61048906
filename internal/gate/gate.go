// Package gate is the single authorization entry point for the application.
package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-pm/tessera/internal/audit"
	"github.com/tessera-pm/tessera/internal/catalog"
	"github.com/tessera-pm/tessera/internal/observability"
	"github.com/tessera-pm/tessera/internal/resolver"
	"github.com/tessera-pm/tessera/internal/tenancy"
)

// Outcome is the verdict of a permission check.
type Outcome string

const (
	// OutcomeAllowed grants the operation.
	OutcomeAllowed Outcome = "allowed"
	// OutcomeDenied rejects the operation. Denial is a normal return value,
	// not an error.
	OutcomeDenied Outcome = "denied"
)

// Denial reasons.
const (
	ReasonNotGranted = "not_granted"
)

// Decision is the gate's answer to one check.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// Allowed reports whether the decision grants the operation.
func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllowed }

// Gate answers permission checks. It is stateless and safe for concurrent
// use; each check re-reads through the resolver.
type Gate struct {
	catalog  *catalog.Catalog
	resolver *resolver.Resolver
	sink     audit.Sink
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// New constructs a Gate. sink and metrics may be nil.
func New(cat *catalog.Catalog, res *resolver.Resolver, sink audit.Sink, metrics *observability.Metrics, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{catalog: cat, resolver: res, sink: sink, metrics: metrics, logger: logger}
}

// Check decides whether subjectID may exercise the permission in the given
// context. An unregistered code is a configuration defect and surfaces as an
// error, not a denial, so monitoring can tell "misconfigured" from
// "forbidden". Every decision is audited; audit delivery never blocks or
// alters the verdict.
func (g *Gate) Check(ctx context.Context, actor tenancy.Actor, subjectID uuid.UUID, rawCode string, rc resolver.Context) (Decision, error) {
	code, err := catalog.ParseCode(rawCode)
	if err != nil {
		return Decision{}, err
	}
	if _, err := g.catalog.Lookup(code); err != nil {
		return Decision{}, err
	}

	start := time.Now()
	set, err := g.resolver.Resolve(ctx, actor, subjectID, rc)
	if err != nil {
		return Decision{}, err
	}
	g.metrics.ObserveResolve(time.Since(start))

	decision := Decision{Outcome: OutcomeDenied, Reason: ReasonNotGranted}
	if set.Has(code) {
		decision = Decision{Outcome: OutcomeAllowed}
	}
	g.metrics.CountDecision(string(decision.Outcome))
	g.emit(ctx, actor, subjectID, code, rc, decision)
	return decision, nil
}

func (g *Gate) emit(ctx context.Context, actor tenancy.Actor, subjectID uuid.UUID, code catalog.Code, rc resolver.Context, decision Decision) {
	if g.sink == nil {
		return
	}
	subject := subjectID
	g.sink.Emit(ctx, audit.Record{
		At:         time.Now().UTC(),
		Event:      audit.EventDecision,
		TenantID:   rc.TenantID,
		ActorID:    actor.ID,
		SubjectID:  &subject,
		Permission: string(code),
		ProjectID:  rc.ProjectID,
		Decision:   string(decision.Outcome),
		Reason:     decision.Reason,
	})
}
