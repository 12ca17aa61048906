// Package tenancy enforces tenant isolation on every data access.
//
// All repository reads and writes take a Scope produced by the Guard. A scope
// carries the tenant filter; the only way to obtain a filter-free scope is the
// audited super-admin bypass.
package tenancy

import "github.com/google/uuid"

// Actor is the authenticated principal on whose behalf a call executes.
// It is threaded explicitly through every service call; nothing in this
// codebase resolves the current tenant from ambient state.
type Actor struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	IsSuperAdmin bool
}
