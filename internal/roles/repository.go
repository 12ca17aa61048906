package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tessera-pm/tessera/internal/catalog"
	"github.com/tessera-pm/tessera/internal/shared"
	"github.com/tessera-pm/tessera/internal/tenancy"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = "id, tenant_id, name, scope, allow_override, created_at, updated_at"

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, role Role) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO roles (id, tenant_id, name, scope, allow_override, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		role.ID, role.TenantID, role.Name, string(role.Scope), role.AllowOverride, role.CreatedAt, role.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("roles: %s: %w", role.Name, shared.ErrDuplicateRole)
	}
	if err != nil {
		return fmt.Errorf("roles: create role: %w", err)
	}
	return nil
}

// GetRole fetches a role by id within the scope.
func (r *Repository) GetRole(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Role, error) {
	args := []any{id}
	clause, args := scope.Clause("tenant_id", args)
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM roles WHERE id = $1 AND %s`, roleColumns, clause), args...)
	role, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, fmt.Errorf("roles: role %s: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Role{}, fmt.Errorf("roles: get role: %w", err)
	}
	return role, nil
}

// ListRoles returns all roles within the scope ordered by name.
func (r *Repository) ListRoles(ctx context.Context, scope tenancy.Scope) ([]Role, error) {
	args := []any{}
	clause, args := scope.Clause("tenant_id", args)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM roles WHERE %s ORDER BY name`, roleColumns, clause), args...)
	if err != nil {
		return nil, fmt.Errorf("roles: list roles: %w", err)
	}
	defer rows.Close()
	var result []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("roles: scan role: %w", err)
		}
		result = append(result, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles: list roles: %w", err)
	}
	return result, nil
}

// UpdateName renames a role within the scope.
func (r *Repository) UpdateName(ctx context.Context, scope tenancy.Scope, id uuid.UUID, name string) (Role, error) {
	args := []any{id, name}
	clause, args := scope.Clause("tenant_id", args)
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE roles SET name = $2, updated_at = NOW()
		WHERE id = $1 AND %s
		RETURNING %s`, clause, roleColumns), args...)
	role, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, fmt.Errorf("roles: role %s: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Role{}, fmt.Errorf("roles: update role: %w", err)
	}
	return role, nil
}

// DeleteRole removes a role and its grants within the scope. Returns the
// number of role rows deleted.
func (r *Repository) DeleteRole(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (int64, error) {
	args := []any{id}
	clause, args := scope.Clause("tenant_id", args)
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM roles WHERE id = $1 AND %s`, clause), args...)
	if err != nil {
		return 0, fmt.Errorf("roles: delete role: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpsertGrant attaches a permission to a role, updating the override flag on
// conflict.
func (r *Repository) UpsertGrant(ctx context.Context, roleID uuid.UUID, code catalog.Code, allowOverride bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_code, allow_override, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (role_id, permission_code) DO UPDATE SET allow_override = EXCLUDED.allow_override`,
		roleID, string(code), allowOverride,
	)
	if err != nil {
		return fmt.Errorf("roles: upsert grant: %w", err)
	}
	return nil
}

// DeleteGrant detaches a permission from a role.
func (r *Repository) DeleteGrant(ctx context.Context, roleID uuid.UUID, code catalog.Code) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_code = $2`, roleID, string(code))
	if err != nil {
		return 0, fmt.Errorf("roles: delete grant: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListGrants returns the permission edges of a role.
func (r *Repository) ListGrants(ctx context.Context, roleID uuid.UUID) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT permission_code, allow_override FROM role_permissions
		WHERE role_id = $1 ORDER BY permission_code`, roleID)
	if err != nil {
		return nil, fmt.Errorf("roles: list grants: %w", err)
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var code string
		var allowOverride bool
		if err := rows.Scan(&code, &allowOverride); err != nil {
			return nil, fmt.Errorf("roles: scan grant: %w", err)
		}
		grants = append(grants, Grant{Permission: catalog.Code(code), AllowOverride: allowOverride})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles: list grants: %w", err)
	}
	return grants, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (Role, error) {
	var role Role
	var scope string
	if err := row.Scan(&role.ID, &role.TenantID, &role.Name, &scope, &role.AllowOverride, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return Role{}, err
	}
	role.Scope = RoleScope(scope)
	return role, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
