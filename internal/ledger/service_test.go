package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tessera-pm/tessera/internal/roles"
	"github.com/tessera-pm/tessera/internal/shared"
	"github.com/tessera-pm/tessera/internal/tenancy"
)

type memoryLedgerStore struct {
	assignments map[uuid.UUID]Assignment
	now         func() time.Time
}

func newMemoryLedgerStore() *memoryLedgerStore {
	return &memoryLedgerStore{
		assignments: make(map[uuid.UUID]Assignment),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryLedgerStore) visible(scope tenancy.Scope, a Assignment) bool {
	return scope.AllTenants() || a.TenantID.String() == scope.TenantID()
}

func (s *memoryLedgerStore) Insert(_ context.Context, a Assignment) error {
	s.assignments[a.ID] = a
	return nil
}

func (s *memoryLedgerStore) Revoke(_ context.Context, scope tenancy.Scope, id uuid.UUID) (uuid.UUID, error) {
	a, ok := s.assignments[id]
	if !ok || !s.visible(scope, a) {
		return uuid.Nil, shared.ErrNotFound
	}
	a.IsActive = false
	s.assignments[id] = a
	return a.UserID, nil
}

func (s *memoryLedgerStore) Get(_ context.Context, scope tenancy.Scope, id uuid.UUID) (Assignment, error) {
	a, ok := s.assignments[id]
	if !ok || !s.visible(scope, a) {
		return Assignment{}, shared.ErrNotFound
	}
	return a, nil
}

func (s *memoryLedgerStore) EffectiveFor(_ context.Context, scope tenancy.Scope, userID uuid.UUID, kind Kind, projectID *uuid.UUID) ([]Assignment, error) {
	if kind == KindProject && projectID == nil {
		return nil, nil
	}
	now := s.now()
	var out []Assignment
	for _, a := range s.assignments {
		if !s.visible(scope, a) || a.UserID != userID || a.Kind != kind || !a.Effective(now) {
			continue
		}
		if kind == KindProject && (a.ProjectID == nil || *a.ProjectID != *projectID) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *memoryLedgerStore) ListFor(_ context.Context, scope tenancy.Scope, userID uuid.UUID) ([]Assignment, error) {
	var out []Assignment
	for _, a := range s.assignments {
		if s.visible(scope, a) && a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

type stubRoleDir struct {
	roles map[uuid.UUID]roles.Role
}

func (d stubRoleDir) GetRole(_ context.Context, scope tenancy.Scope, id uuid.UUID) (roles.Role, error) {
	role, ok := d.roles[id]
	if !ok || (!scope.AllTenants() && role.TenantID.String() != scope.TenantID()) {
		return roles.Role{}, shared.ErrNotFound
	}
	return role, nil
}

type stubProjects struct {
	projects map[uuid.UUID]Project
}

func (p stubProjects) Project(_ context.Context, id uuid.UUID) (Project, error) {
	project, ok := p.projects[id]
	if !ok {
		return Project{}, shared.ErrNotFound
	}
	return project, nil
}

type recordingInvalidator struct {
	calls []uuid.UUID
}

func (r *recordingInvalidator) Invalidate(_ context.Context, _, userID uuid.UUID) error {
	r.calls = append(r.calls, userID)
	return nil
}

type ledgerFixture struct {
	store       *memoryLedgerStore
	roleDir     stubRoleDir
	projects    stubProjects
	invalidator *recordingInvalidator
	svc         *Service
	actor       tenancy.Actor
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		store:       newMemoryLedgerStore(),
		roleDir:     stubRoleDir{roles: make(map[uuid.UUID]roles.Role)},
		projects:    stubProjects{projects: make(map[uuid.UUID]Project)},
		invalidator: &recordingInvalidator{},
		actor:       tenancy.Actor{ID: uuid.New(), TenantID: uuid.New()},
	}
	f.svc = NewService(f.store, f.roleDir, f.projects, tenancy.NewGuard(nil, nil), f.invalidator, nil)
	return f
}

func (f *ledgerFixture) addRole(scope roles.RoleScope) roles.Role {
	role := roles.Role{ID: uuid.New(), TenantID: f.actor.TenantID, Name: string(scope) + " role", Scope: scope}
	f.roleDir.roles[role.ID] = role
	return role
}

func (f *ledgerFixture) addProject(tenantID uuid.UUID) Project {
	project := Project{ID: uuid.New(), TenantID: tenantID}
	f.projects.projects[project.ID] = project
	return project
}

func TestAssignSystemRole(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	role := f.addRole(roles.ScopeSystem)
	userID := uuid.New()

	a, err := f.svc.Assign(ctx, f.actor, AssignParams{Kind: KindSystem, UserID: userID, RoleID: role.ID})
	require.NoError(t, err)
	require.Equal(t, f.actor.TenantID, a.TenantID)
	require.Equal(t, f.actor.ID, a.AssignedBy)
	require.Nil(t, a.ProjectID)
	require.True(t, a.IsActive)
	require.Equal(t, []uuid.UUID{userID}, f.invalidator.calls)
}

func TestAssignRejectsScopeMismatch(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	projectRole := f.addRole(roles.ScopeProject)

	_, err := f.svc.Assign(ctx, f.actor, AssignParams{Kind: KindSystem, UserID: uuid.New(), RoleID: projectRole.ID})
	require.ErrorIs(t, err, shared.ErrRoleScopeMismatch)
	require.Empty(t, f.store.assignments)
	require.Empty(t, f.invalidator.calls)
}

func TestAssignProjectValidatesTenant(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	role := f.addRole(roles.ScopeProject)
	foreign := f.addProject(uuid.New())

	_, err := f.svc.Assign(ctx, f.actor, AssignParams{
		Kind: KindProject, UserID: uuid.New(), RoleID: role.ID, ProjectID: &foreign.ID,
	})
	require.ErrorIs(t, err, shared.ErrTenantMismatch)
	require.Empty(t, f.store.assignments)

	local := f.addProject(f.actor.TenantID)
	a, err := f.svc.Assign(ctx, f.actor, AssignParams{
		Kind: KindProject, UserID: uuid.New(), RoleID: role.ID, ProjectID: &local.ID,
	})
	require.NoError(t, err)
	require.Equal(t, local.ID, *a.ProjectID)
}

func TestAssignRejectsProjectIDOnOtherKinds(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	role := f.addRole(roles.ScopeSystem)
	projectID := uuid.New()

	_, err := f.svc.Assign(ctx, f.actor, AssignParams{
		Kind: KindSystem, UserID: uuid.New(), RoleID: role.ID, ProjectID: &projectID,
	})
	require.ErrorIs(t, err, shared.ErrRoleScopeMismatch)

	projRole := f.addRole(roles.ScopeProject)
	_, err = f.svc.Assign(ctx, f.actor, AssignParams{Kind: KindProject, UserID: uuid.New(), RoleID: projRole.ID})
	require.Error(t, err)
}

func TestRevokeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	role := f.addRole(roles.ScopeSystem)
	userID := uuid.New()

	a, err := f.svc.Assign(ctx, f.actor, AssignParams{Kind: KindSystem, UserID: userID, RoleID: role.ID})
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, f.actor, a.ID))
	stored, err := f.svc.Get(ctx, f.actor, a.ID)
	require.NoError(t, err)
	require.False(t, stored.IsActive)

	// Second revoke succeeds and changes nothing.
	require.NoError(t, f.svc.Revoke(ctx, f.actor, a.ID))
	require.Equal(t, []uuid.UUID{userID, userID, userID}, f.invalidator.calls)
}

func TestRevokeUnknownAssignment(t *testing.T) {
	f := newLedgerFixture(t)
	err := f.svc.Revoke(context.Background(), f.actor, uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestEffectiveAssignmentsExcludeExpiredAndRevoked(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	role := f.addRole(roles.ScopeSystem)
	userID := uuid.New()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return base }
	f.store.now = func() time.Time { return base }

	expiry := base.Add(time.Hour)
	expiring, err := f.svc.Assign(ctx, f.actor, AssignParams{
		Kind: KindSystem, UserID: userID, RoleID: role.ID, ExpiresAt: &expiry,
	})
	require.NoError(t, err)
	permanent, err := f.svc.Assign(ctx, f.actor, AssignParams{Kind: KindSystem, UserID: userID, RoleID: role.ID})
	require.NoError(t, err)
	revoked, err := f.svc.Assign(ctx, f.actor, AssignParams{Kind: KindSystem, UserID: userID, RoleID: role.ID})
	require.NoError(t, err)
	require.NoError(t, f.svc.Revoke(ctx, f.actor, revoked.ID))

	effective, err := f.svc.EffectiveAssignmentsFor(ctx, f.actor, userID, KindSystem, nil)
	require.NoError(t, err)
	require.Len(t, effective, 2)

	// The clock passes the expiry and the assignment lapses without any write.
	f.store.now = func() time.Time { return base.Add(2 * time.Hour) }
	effective, err = f.svc.EffectiveAssignmentsFor(ctx, f.actor, userID, KindSystem, nil)
	require.NoError(t, err)
	require.Len(t, effective, 1)
	require.Equal(t, permanent.ID, effective[0].ID)

	// The lapsed record itself is untouched in the ledger.
	stored, err := f.svc.Get(ctx, f.actor, expiring.ID)
	require.NoError(t, err)
	require.True(t, stored.IsActive)

	all, err := f.svc.AssignmentsFor(ctx, f.actor, userID)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestAssignmentEffective(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	require.True(t, Assignment{IsActive: true}.Effective(now))
	require.True(t, Assignment{IsActive: true, ExpiresAt: &future}.Effective(now))
	require.False(t, Assignment{IsActive: true, ExpiresAt: &past}.Effective(now))
	require.False(t, Assignment{IsActive: true, ExpiresAt: &now}.Effective(now))
	require.False(t, Assignment{IsActive: false}.Effective(now))
}
