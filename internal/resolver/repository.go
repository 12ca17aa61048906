package resolver

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tessera-pm/tessera/internal/catalog"
	"github.com/tessera-pm/tessera/internal/ledger"
	"github.com/tessera-pm/tessera/internal/tenancy"
)

// Repository answers granted-code queries with a single join per kind.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GrantedCodes returns the distinct permission codes granted to the user
// through effective assignments of the given kind. The effectiveness
// predicate and the tenant filter both run in SQL.
func (r *Repository) GrantedCodes(ctx context.Context, scope tenancy.Scope, userID uuid.UUID, kind ledger.Kind, projectID *uuid.UUID) ([]catalog.Code, error) {
	args := []any{userID, string(kind)}
	clause, args := scope.Clause("a.tenant_id", args)
	query := fmt.Sprintf(`
		SELECT DISTINCT rp.permission_code
		FROM assignments a
		JOIN role_permissions rp ON rp.role_id = a.role_id
		WHERE a.user_id = $1 AND a.kind = $2 AND %s
		  AND a.is_active AND (a.expires_at IS NULL OR a.expires_at > NOW())`, clause)
	if kind == ledger.KindProject {
		if projectID == nil {
			return nil, nil
		}
		args = append(args, *projectID)
		query += fmt.Sprintf(" AND a.project_id = $%d", len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("resolver: granted codes: %w", err)
	}
	defer rows.Close()
	var codes []catalog.Code
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("resolver: scan code: %w", err)
		}
		codes = append(codes, catalog.Code(code))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resolver: granted codes: %w", err)
	}
	return codes, nil
}
