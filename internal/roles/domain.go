// Package roles manages roles and their permission grants.
package roles

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-pm/tessera/internal/catalog"
	"github.com/tessera-pm/tessera/internal/shared"
)

// RoleScope tags the assignment context a role is valid for. Set at creation,
// immutable afterwards.
type RoleScope string

const (
	// ScopeSystem roles apply tenant-wide through system assignments.
	ScopeSystem RoleScope = "system"
	// ScopeProject roles apply to a single project through project assignments.
	ScopeProject RoleScope = "project"
	// ScopeCustom roles apply ad hoc through custom assignments.
	ScopeCustom RoleScope = "custom"
)

// ParseRoleScope validates a raw scope string.
func ParseRoleScope(raw string) (RoleScope, error) {
	switch scope := RoleScope(strings.TrimSpace(strings.ToLower(raw))); scope {
	case ScopeSystem, ScopeProject, ScopeCustom:
		return scope, nil
	default:
		return "", fmt.Errorf("roles: invalid scope %q: %w", raw, shared.ErrRoleScopeMismatch)
	}
}

// Role is a named permission grouping within one tenant.
type Role struct {
	ID            uuid.UUID `json:"id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	Name          string    `json:"name"`
	Scope         RoleScope `json:"scope"`
	AllowOverride bool      `json:"allow_override"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Grant is one role→permission edge. Overridable holds the combined rule:
// both the role flag and the edge flag must be set.
type Grant struct {
	Permission    catalog.Code `json:"permission"`
	AllowOverride bool         `json:"allow_override"`
	Overridable   bool         `json:"overridable"`
}

// UpdateParams carries mutable role fields. A non-nil Scope differing from the
// stored scope is rejected; scope never changes after creation.
type UpdateParams struct {
	Name  string
	Scope *RoleScope
}
