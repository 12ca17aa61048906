package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicatePermission occurs when a permission code is registered twice.
	ErrDuplicatePermission = errors.New("duplicate permission code")
	// ErrUnknownPermission occurs when a permission code is absent from the catalog.
	ErrUnknownPermission = errors.New("unknown permission code")
	// ErrImmutableScope occurs on an attempt to change a role's scope after creation.
	ErrImmutableScope = errors.New("role scope is immutable")
	// ErrRoleScopeMismatch occurs when a role is assigned through the wrong assignment kind.
	ErrRoleScopeMismatch = errors.New("role scope does not match assignment kind")
	// ErrTenantMismatch occurs when a project assignment crosses tenant boundaries.
	ErrTenantMismatch = errors.New("project and user belong to different tenants")
	// ErrUnauthorizedBypass occurs when a non-super-admin requests an unscoped query.
	ErrUnauthorizedBypass = errors.New("unauthorized tenant filter bypass")
	// ErrRoleInUse occurs when deleting a role that assignments still reference.
	ErrRoleInUse = errors.New("role is referenced by assignments")
	// ErrDuplicateRole occurs when a role name already exists within the tenant.
	ErrDuplicateRole = errors.New("duplicate role name")
)
