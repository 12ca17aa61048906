package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tessera-pm/tessera/internal/platform/db"
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

const assignmentColumns = "id, kind, tenant_id, user_id, role_id, project_id, assigned_by, assigned_at, expires_at, is_active"

// Insert writes a new assignment row inside a transaction.
func (r *Repository) Insert(ctx context.Context, a Assignment) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO assignments (id, kind, tenant_id, user_id, role_id, project_id, assigned_by, assigned_at, expires_at, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			a.ID, string(a.Kind), a.TenantID, a.UserID, a.RoleID, a.ProjectID, a.AssignedBy, a.AssignedAt, a.ExpiresAt, a.IsActive,
		)
		if err != nil {
			return fmt.Errorf("ledger: insert assignment: %w", err)
		}
		return nil
	})
}

// Revoke sets is_active to false within the scope. Idempotent: revoking an
// already-inactive assignment succeeds. Returns the subject user id for cache
// invalidation.
func (r *Repository) Revoke(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (uuid.UUID, error) {
	var userID uuid.UUID
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		args := []any{id}
		clause, args := scope.Clause("tenant_id", args)
		row := tx.QueryRow(ctx, fmt.Sprintf(`
			UPDATE assignments SET is_active = FALSE
			WHERE id = $1 AND %s
			RETURNING user_id`, clause), args...)
		if err := row.Scan(&userID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("ledger: assignment %s: %w", id, shared.ErrNotFound)
			}
			return fmt.Errorf("ledger: revoke assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return userID, nil
}

// Get fetches one assignment within the scope.
func (r *Repository) Get(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Assignment, error) {
	args := []any{id}
	clause, args := scope.Clause("tenant_id", args)
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM assignments WHERE id = $1 AND %s`, assignmentColumns, clause), args...)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Assignment{}, fmt.Errorf("ledger: assignment %s: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Assignment{}, fmt.Errorf("ledger: get assignment: %w", err)
	}
	return a, nil
}

// EffectiveFor returns the user's effective assignments of one kind. The
// effectiveness predicate runs in SQL against the database clock, so expiry
// needs no background sweep. Project-kind queries are further pinned to the
// given project.
func (r *Repository) EffectiveFor(ctx context.Context, scope tenancy.Scope, userID uuid.UUID, kind Kind, projectID *uuid.UUID) ([]Assignment, error) {
	args := []any{userID, string(kind)}
	clause, args := scope.Clause("tenant_id", args)
	query := fmt.Sprintf(`
		SELECT %s FROM assignments
		WHERE user_id = $1 AND kind = $2 AND %s
		  AND is_active AND (expires_at IS NULL OR expires_at > NOW())`, assignmentColumns, clause)
	if kind == KindProject {
		if projectID == nil {
			return nil, nil
		}
		args = append(args, *projectID)
		query += fmt.Sprintf(" AND project_id = $%d", len(args))
	}
	rows, err := r.pool.Query(ctx, query+" ORDER BY assigned_at", args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: effective assignments: %w", err)
	}
	defer rows.Close()
	var result []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan assignment: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: effective assignments: %w", err)
	}
	return result, nil
}

// ListFor returns every assignment of a user within the scope, revoked and
// expired included, for the management surface.
func (r *Repository) ListFor(ctx context.Context, scope tenancy.Scope, userID uuid.UUID) ([]Assignment, error) {
	args := []any{userID}
	clause, args := scope.Clause("tenant_id", args)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM assignments WHERE user_id = $1 AND %s ORDER BY assigned_at DESC`, assignmentColumns, clause), args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list assignments: %w", err)
	}
	defer rows.Close()
	var result []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan assignment: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: list assignments: %w", err)
	}
	return result, nil
}

// RoleReferenced reports whether any assignment row, active or not, points at
// the role. Satisfies roles.AssignmentChecker.
func (r *Repository) RoleReferenced(ctx context.Context, roleID uuid.UUID) (bool, error) {
	var referenced bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM assignments WHERE role_id = $1)`, roleID).Scan(&referenced)
	if err != nil {
		return false, fmt.Errorf("ledger: role referenced: %w", err)
	}
	return referenced, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (Assignment, error) {
	var a Assignment
	var kind string
	if err := row.Scan(&a.ID, &kind, &a.TenantID, &a.UserID, &a.RoleID, &a.ProjectID, &a.AssignedBy, &a.AssignedAt, &a.ExpiresAt, &a.IsActive); err != nil {
		return Assignment{}, err
	}
	a.Kind = Kind(kind)
	return a, nil
}
