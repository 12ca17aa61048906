package tenancy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tessera-pm/tessera/internal/audit"
	"github.com/tessera-pm/tessera/internal/shared"
)

// Scope is a tenant filter attached to a query. The zero value is unusable;
// scopes are obtained from the Guard so that the filter-free variant only
// exists behind the super-admin check.
type Scope struct {
	tenantID string
	all      bool
}

// AllTenants reports whether the scope spans tenants.
func (s Scope) AllTenants() bool { return s.all }

// Clause appends the tenant filter for the given column to args and returns
// the SQL fragment. The fragment is always safe to AND into a WHERE clause.
func (s Scope) Clause(column string, args []any) (string, []any) {
	if s.all {
		return "TRUE", args
	}
	args = append(args, s.tenantID)
	return fmt.Sprintf("%s = $%d", column, len(args)), args
}

// TenantID returns the tenant the scope is pinned to, or "" for the bypass scope.
func (s Scope) TenantID() string { return s.tenantID }

// Guard issues tenant scopes. Bypass attempts, successful or not, are audited.
type Guard struct {
	sink   audit.Sink
	logger *slog.Logger
}

// NewGuard constructs a Guard. The sink may be nil in tests.
func NewGuard(sink audit.Sink, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{sink: sink, logger: logger}
}

// Scoped returns a scope pinned to the actor's own tenant.
func (g *Guard) Scoped(actor Actor) Scope {
	return Scope{tenantID: actor.TenantID.String()}
}

// ScopedTo returns a scope pinned to the given tenant. Non-super-admin actors
// only ever receive their own tenant; asking for another one yields their own,
// which makes cross-tenant reads return nothing rather than fail loudly.
func (g *Guard) ScopedTo(actor Actor, tenantID string) Scope {
	if actor.IsSuperAdmin {
		return Scope{tenantID: tenantID}
	}
	return Scope{tenantID: actor.TenantID.String()}
}

// Unscoped returns the filter-free scope. Only super-admins may hold it; every
// attempt is written to the audit sink regardless of outcome.
func (g *Guard) Unscoped(ctx context.Context, actor Actor) (Scope, error) {
	if !actor.IsSuperAdmin {
		g.emit(ctx, actor, audit.EventBypassDenied)
		g.logger.Warn("tenant filter bypass denied",
			slog.String("actor_id", actor.ID.String()),
			slog.String("tenant_id", actor.TenantID.String()))
		return Scope{}, fmt.Errorf("tenancy: actor %s: %w", actor.ID, shared.ErrUnauthorizedBypass)
	}
	g.emit(ctx, actor, audit.EventBypass)
	return Scope{all: true}, nil
}

func (g *Guard) emit(ctx context.Context, actor Actor, event string) {
	if g.sink == nil {
		return
	}
	g.sink.Emit(ctx, audit.Record{
		At:       time.Now().UTC(),
		Event:    event,
		TenantID: actor.TenantID,
		ActorID:  actor.ID,
	})
}
