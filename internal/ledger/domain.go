// Package ledger records role assignments and answers effectiveness queries.
//
// The three assignment kinds (system, project, custom) share one record shape
// with a kind discriminant. Effectiveness is never stored: a record is
// effective when it is active and not expired, evaluated against the clock at
// read time. Records are never hard-deleted; revoke flips is_active once.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-pm/tessera/internal/roles"
	"github.com/tessera-pm/tessera/internal/shared"
)

// Kind discriminates the three assignment variants.
type Kind string

const (
	// KindSystem assignments grant a system-scoped role tenant-wide.
	KindSystem Kind = "system"
	// KindProject assignments grant a project-scoped role on one project.
	KindProject Kind = "project"
	// KindCustom assignments grant a custom-scoped role ad hoc.
	KindCustom Kind = "custom"
)

// ParseKind validates a raw kind string.
func ParseKind(raw string) (Kind, error) {
	switch kind := Kind(strings.TrimSpace(strings.ToLower(raw))); kind {
	case KindSystem, KindProject, KindCustom:
		return kind, nil
	default:
		return "", fmt.Errorf("ledger: invalid assignment kind %q: %w", raw, shared.ErrRoleScopeMismatch)
	}
}

// RoleScope returns the role scope a kind accepts.
func (k Kind) RoleScope() roles.RoleScope {
	switch k {
	case KindSystem:
		return roles.ScopeSystem
	case KindProject:
		return roles.ScopeProject
	default:
		return roles.ScopeCustom
	}
}

// Assignment links a user to a role. ProjectID is set only for the project
// kind. RoleID, AssignedAt and ExpiresAt are immutable after creation;
// IsActive is the single mutable field and only transitions active→inactive.
type Assignment struct {
	ID         uuid.UUID  `json:"id"`
	Kind       Kind       `json:"kind"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	UserID     uuid.UUID  `json:"user_id"`
	RoleID     uuid.UUID  `json:"role_id"`
	ProjectID  *uuid.UUID `json:"project_id,omitempty"`
	AssignedBy uuid.UUID  `json:"assigned_by"`
	AssignedAt time.Time  `json:"assigned_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	IsActive   bool       `json:"is_active"`
}

// Effective reports whether the assignment counts at the given instant.
func (a Assignment) Effective(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// Project is the slice of the external project registry this package needs.
type Project struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

// ProjectRegistry resolves projects for tenant validation at assignment time.
type ProjectRegistry interface {
	Project(ctx context.Context, id uuid.UUID) (Project, error)
}

// AssignParams describes a new assignment.
type AssignParams struct {
	Kind      Kind
	UserID    uuid.UUID
	RoleID    uuid.UUID
	ProjectID *uuid.UUID
	ExpiresAt *time.Time
}
