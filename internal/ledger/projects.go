package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tessera-pm/tessera/internal/shared"
)

// PgProjectRegistry reads the project registry's table directly. The registry
// itself is owned by the project module; this package only needs id and
// tenant for assignment-time validation.
type PgProjectRegistry struct {
	pool *pgxpool.Pool
}

// NewPgProjectRegistry constructs the registry adapter.
func NewPgProjectRegistry(pool *pgxpool.Pool) *PgProjectRegistry {
	return &PgProjectRegistry{pool: pool}
}

// Project fetches a project's tenant binding.
func (r *PgProjectRegistry) Project(ctx context.Context, id uuid.UUID) (Project, error) {
	var project Project
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id FROM projects WHERE id = $1`, id).Scan(&project.ID, &project.TenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, fmt.Errorf("ledger: project %s: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Project{}, fmt.Errorf("ledger: get project: %w", err)
	}
	return project, nil
}
