package tenancy

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tessera-pm/tessera/internal/audit"
	"github.com/tessera-pm/tessera/internal/shared"
)

type recordingSink struct {
	mu      sync.Mutex
	records []audit.Record
}

func (s *recordingSink) Emit(_ context.Context, rec audit.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func (s *recordingSink) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Event)
	}
	return out
}

func testActor(super bool) Actor {
	return Actor{ID: uuid.New(), TenantID: uuid.New(), IsSuperAdmin: super}
}

func TestScopeClause(t *testing.T) {
	guard := NewGuard(nil, nil)
	actor := testActor(false)

	scope := guard.Scoped(actor)
	clause, args := scope.Clause("tenant_id", []any{uuid.New()})
	require.Equal(t, "tenant_id = $2", clause)
	require.Len(t, args, 2)
	require.Equal(t, actor.TenantID.String(), args[1])
}

func TestScopedToIgnoresForeignTenantForRegularActors(t *testing.T) {
	guard := NewGuard(nil, nil)
	actor := testActor(false)
	other := uuid.New().String()

	scope := guard.ScopedTo(actor, other)
	require.Equal(t, actor.TenantID.String(), scope.TenantID())

	super := testActor(true)
	scope = guard.ScopedTo(super, other)
	require.Equal(t, other, scope.TenantID())
}

func TestUnscopedRequiresSuperAdmin(t *testing.T) {
	sink := &recordingSink{}
	guard := NewGuard(sink, nil)
	ctx := context.Background()

	_, err := guard.Unscoped(ctx, testActor(false))
	require.ErrorIs(t, err, shared.ErrUnauthorizedBypass)
	require.Equal(t, []string{audit.EventBypassDenied}, sink.events())

	scope, err := guard.Unscoped(ctx, testActor(true))
	require.NoError(t, err)
	require.True(t, scope.AllTenants())
	require.Equal(t, []string{audit.EventBypassDenied, audit.EventBypass}, sink.events())
}

func TestUnscopedClauseIsFilterFree(t *testing.T) {
	guard := NewGuard(&recordingSink{}, nil)
	scope, err := guard.Unscoped(context.Background(), testActor(true))
	require.NoError(t, err)

	clause, args := scope.Clause("tenant_id", nil)
	require.Equal(t, "TRUE", clause)
	require.Empty(t, args)
}
