package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-pm/tessera/internal/catalog"
	"github.com/tessera-pm/tessera/internal/shared"
	"github.com/tessera-pm/tessera/internal/tenancy"
)

// Store abstracts role persistence for the service.
type Store interface {
	CreateRole(ctx context.Context, role Role) error
	GetRole(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Role, error)
	ListRoles(ctx context.Context, scope tenancy.Scope) ([]Role, error)
	UpdateName(ctx context.Context, scope tenancy.Scope, id uuid.UUID, name string) (Role, error)
	DeleteRole(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (int64, error)
	UpsertGrant(ctx context.Context, roleID uuid.UUID, code catalog.Code, allowOverride bool) error
	DeleteGrant(ctx context.Context, roleID uuid.UUID, code catalog.Code) (int64, error)
	ListGrants(ctx context.Context, roleID uuid.UUID) ([]Grant, error)
}

// AssignmentChecker reports whether any assignment still references a role.
// Implemented by the ledger repository.
type AssignmentChecker interface {
	RoleReferenced(ctx context.Context, roleID uuid.UUID) (bool, error)
}

// Service orchestrates role management. All operations run within the acting
// user's tenant; there is no cross-tenant role access.
type Service struct {
	store       Store
	catalog     *catalog.Catalog
	guard       *tenancy.Guard
	assignments AssignmentChecker
	logger      *slog.Logger
}

// NewService constructs a Service.
func NewService(store Store, cat *catalog.Catalog, guard *tenancy.Guard, assignments AssignmentChecker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, catalog: cat, guard: guard, assignments: assignments, logger: logger}
}

// CreateRole creates a role with an immutable scope tag.
func (s *Service) CreateRole(ctx context.Context, actor tenancy.Actor, name string, scope RoleScope, allowOverride bool) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("roles: role name required")
	}
	if _, err := ParseRoleScope(string(scope)); err != nil {
		return Role{}, err
	}
	now := time.Now().UTC()
	role := Role{
		ID:            uuid.New(),
		TenantID:      actor.TenantID,
		Name:          name,
		Scope:         scope,
		AllowOverride: allowOverride,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateRole(ctx, role); err != nil {
		return Role{}, err
	}
	return role, nil
}

// GetRole fetches a role in the actor's tenant.
func (s *Service) GetRole(ctx context.Context, actor tenancy.Actor, id uuid.UUID) (Role, error) {
	return s.store.GetRole(ctx, s.guard.Scoped(actor), id)
}

// ListRoles returns the tenant's roles.
func (s *Service) ListRoles(ctx context.Context, actor tenancy.Actor) ([]Role, error) {
	return s.store.ListRoles(ctx, s.guard.Scoped(actor))
}

// UpdateRole applies mutable fields. Scope is immutable: a params.Scope that
// differs from the stored scope fails, matching params.Scope is a no-op.
func (s *Service) UpdateRole(ctx context.Context, actor tenancy.Actor, id uuid.UUID, params UpdateParams) (Role, error) {
	scope := s.guard.Scoped(actor)
	role, err := s.store.GetRole(ctx, scope, id)
	if err != nil {
		return Role{}, err
	}
	if params.Scope != nil && *params.Scope != role.Scope {
		return Role{}, fmt.Errorf("roles: role %s is %s-scoped: %w", id, role.Scope, shared.ErrImmutableScope)
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return Role{}, errors.New("roles: role name required")
	}
	return s.store.UpdateName(ctx, scope, id, name)
}

// DeleteRole removes a role once nothing references it.
func (s *Service) DeleteRole(ctx context.Context, actor tenancy.Actor, id uuid.UUID) error {
	scope := s.guard.Scoped(actor)
	role, err := s.store.GetRole(ctx, scope, id)
	if err != nil {
		return err
	}
	referenced, err := s.assignments.RoleReferenced(ctx, role.ID)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("roles: role %s: %w", id, shared.ErrRoleInUse)
	}
	deleted, err := s.store.DeleteRole(ctx, scope, id)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return fmt.Errorf("roles: role %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

// Grant attaches a catalog permission to a role. The code must exist in the
// catalog; the edge-level override flag is only honored when the role itself
// allows overrides.
func (s *Service) Grant(ctx context.Context, actor tenancy.Actor, roleID uuid.UUID, rawCode string, allowOverride bool) error {
	code, err := catalog.ParseCode(rawCode)
	if err != nil {
		return err
	}
	if _, err := s.catalog.Lookup(code); err != nil {
		return err
	}
	role, err := s.store.GetRole(ctx, s.guard.Scoped(actor), roleID)
	if err != nil {
		return err
	}
	if allowOverride && !role.AllowOverride {
		s.logger.Warn("grant override flag ignored, role does not allow overrides",
			slog.String("role_id", roleID.String()),
			slog.String("permission", string(code)))
	}
	return s.store.UpsertGrant(ctx, role.ID, code, allowOverride)
}

// RevokeGrant detaches a permission from a role.
func (s *Service) RevokeGrant(ctx context.Context, actor tenancy.Actor, roleID uuid.UUID, rawCode string) error {
	code, err := catalog.ParseCode(rawCode)
	if err != nil {
		return err
	}
	role, err := s.store.GetRole(ctx, s.guard.Scoped(actor), roleID)
	if err != nil {
		return err
	}
	deleted, err := s.store.DeleteGrant(ctx, role.ID, code)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return fmt.Errorf("roles: grant %s on role %s: %w", code, roleID, shared.ErrNotFound)
	}
	return nil
}

// PermissionsOf returns the role's grants with the combined overridable rule
// applied.
func (s *Service) PermissionsOf(ctx context.Context, actor tenancy.Actor, roleID uuid.UUID) ([]Grant, error) {
	role, err := s.store.GetRole(ctx, s.guard.Scoped(actor), roleID)
	if err != nil {
		return nil, err
	}
	grants, err := s.store.ListGrants(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	for i := range grants {
		grants[i].Overridable = role.AllowOverride && grants[i].AllowOverride
	}
	return grants, nil
}
