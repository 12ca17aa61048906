package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-pm/tessera/internal/roles"
	"github.com/tessera-pm/tessera/internal/shared"
	"github.com/tessera-pm/tessera/internal/tenancy"
)

// Store abstracts assignment persistence for the service.
type Store interface {
	Insert(ctx context.Context, a Assignment) error
	Revoke(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (uuid.UUID, error)
	Get(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Assignment, error)
	EffectiveFor(ctx context.Context, scope tenancy.Scope, userID uuid.UUID, kind Kind, projectID *uuid.UUID) ([]Assignment, error)
	ListFor(ctx context.Context, scope tenancy.Scope, userID uuid.UUID) ([]Assignment, error)
}

// RoleDirectory is the slice of the role store the ledger needs.
type RoleDirectory interface {
	GetRole(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (roles.Role, error)
}

// Invalidator drops cached permission sets for a user after a mutation.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID, userID uuid.UUID) error
}

// Service orchestrates assignment lifecycle operations.
type Service struct {
	store       Store
	roleDir     RoleDirectory
	projects    ProjectRegistry
	guard       *tenancy.Guard
	invalidator Invalidator
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs a Service. invalidator may be nil when no resolver
// cache is configured.
func NewService(store Store, roleDir RoleDirectory, projects ProjectRegistry, guard *tenancy.Guard, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       store,
		roleDir:     roleDir,
		projects:    projects,
		guard:       guard,
		invalidator: invalidator,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Assign creates a new assignment after validating the role scope against the
// kind and, for project assignments, the project's tenant against the actor's.
// Nothing is written when validation fails.
func (s *Service) Assign(ctx context.Context, actor tenancy.Actor, params AssignParams) (Assignment, error) {
	if _, err := ParseKind(string(params.Kind)); err != nil {
		return Assignment{}, err
	}
	role, err := s.roleDir.GetRole(ctx, s.guard.Scoped(actor), params.RoleID)
	if err != nil {
		return Assignment{}, err
	}
	if role.Scope != params.Kind.RoleScope() {
		return Assignment{}, fmt.Errorf("ledger: role %s has scope %s, assignment kind is %s: %w",
			role.ID, role.Scope, params.Kind, shared.ErrRoleScopeMismatch)
	}

	var projectID *uuid.UUID
	if params.Kind == KindProject {
		if params.ProjectID == nil {
			return Assignment{}, errors.New("ledger: project assignment requires a project id")
		}
		project, err := s.projects.Project(ctx, *params.ProjectID)
		if err != nil {
			return Assignment{}, err
		}
		if project.TenantID != actor.TenantID {
			return Assignment{}, fmt.Errorf("ledger: project %s: %w", project.ID, shared.ErrTenantMismatch)
		}
		projectID = params.ProjectID
	} else if params.ProjectID != nil {
		return Assignment{}, fmt.Errorf("ledger: %s assignment cannot carry a project id: %w", params.Kind, shared.ErrRoleScopeMismatch)
	}

	assignment := Assignment{
		ID:         uuid.New(),
		Kind:       params.Kind,
		TenantID:   actor.TenantID,
		UserID:     params.UserID,
		RoleID:     role.ID,
		ProjectID:  projectID,
		AssignedBy: actor.ID,
		AssignedAt: s.now(),
		ExpiresAt:  params.ExpiresAt,
		IsActive:   true,
	}
	if err := s.store.Insert(ctx, assignment); err != nil {
		return Assignment{}, err
	}
	s.invalidate(ctx, actor.TenantID, params.UserID)
	return assignment, nil
}

// Revoke deactivates an assignment. Idempotent: revoking twice succeeds
// exactly like revoking once. The record stays in the ledger for audit.
func (s *Service) Revoke(ctx context.Context, actor tenancy.Actor, id uuid.UUID) error {
	userID, err := s.store.Revoke(ctx, s.guard.Scoped(actor), id)
	if err != nil {
		return err
	}
	s.invalidate(ctx, actor.TenantID, userID)
	return nil
}

// Get fetches one assignment in the actor's tenant.
func (s *Service) Get(ctx context.Context, actor tenancy.Actor, id uuid.UUID) (Assignment, error) {
	return s.store.Get(ctx, s.guard.Scoped(actor), id)
}

// EffectiveAssignmentsFor lists the user's currently effective assignments of
// one kind.
func (s *Service) EffectiveAssignmentsFor(ctx context.Context, actor tenancy.Actor, userID uuid.UUID, kind Kind, projectID *uuid.UUID) ([]Assignment, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	return s.store.EffectiveFor(ctx, s.guard.Scoped(actor), userID, kind, projectID)
}

// AssignmentsFor lists every assignment of a user, revoked and expired
// included.
func (s *Service) AssignmentsFor(ctx context.Context, actor tenancy.Actor, userID uuid.UUID) ([]Assignment, error) {
	return s.store.ListFor(ctx, s.guard.Scoped(actor), userID)
}

func (s *Service) invalidate(ctx context.Context, tenantID, userID uuid.UUID) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, tenantID, userID); err != nil {
		s.logger.Warn("resolver cache invalidation failed",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
	}
}
