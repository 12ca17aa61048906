package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store menyimpan audit record ke tabel authz_audit.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore membuat store audit baru.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert menulis satu record audit.
func (s *Store) Insert(ctx context.Context, rec Record) error {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO authz_audit (at, event, tenant_id, actor_id, subject_id, permission, project_id, decision, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.At, rec.Event, rec.TenantID, rec.ActorID, rec.SubjectID, nullableText(rec.Permission), rec.ProjectID, nullableText(rec.Decision), nullableText(rec.Reason),
	)
	if err != nil {
		return fmt.Errorf("audit: insert record: %w", err)
	}
	return nil
}

// TimelineFilters membatasi hasil timeline audit.
type TimelineFilters struct {
	TenantID   uuid.UUID
	AllTenants bool
	Event      string
	From       time.Time
	To         time.Time
	Page       int
	PageSize   int
}

// PagingInfo menjelaskan posisi halaman hasil.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result membungkus hasil timeline dengan informasi paging.
type Result struct {
	Rows   []Record
	Paging PagingInfo
}

// Timeline mengambil record audit dengan paging, terbaru lebih dulu.
func (s *Store) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	args := []any{}
	where := "TRUE"
	if !filters.AllTenants {
		args = append(args, filters.TenantID)
		where = fmt.Sprintf("tenant_id = $%d", len(args))
	}
	if filters.Event != "" {
		args = append(args, filters.Event)
		where += fmt.Sprintf(" AND event = $%d", len(args))
	}
	if !filters.From.IsZero() {
		args = append(args, filters.From)
		where += fmt.Sprintf(" AND at >= $%d", len(args))
	}
	if !filters.To.IsZero() {
		args = append(args, filters.To)
		where += fmt.Sprintf(" AND at < $%d", len(args))
	}
	args = append(args, pageSize+1, offset)
	query := fmt.Sprintf(`
		SELECT at, event, tenant_id, actor_id, subject_id, permission, project_id, decision, reason
		FROM authz_audit
		WHERE %s
		ORDER BY at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return Result{}, fmt.Errorf("audit: timeline: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var permission, decision, reason *string
		if err := rows.Scan(&rec.At, &rec.Event, &rec.TenantID, &rec.ActorID, &rec.SubjectID, &permission, &rec.ProjectID, &decision, &reason); err != nil {
			return Result{}, fmt.Errorf("audit: scan record: %w", err)
		}
		rec.Permission = deref(permission)
		rec.Decision = deref(decision)
		rec.Reason = deref(reason)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("audit: timeline rows: %w", err)
	}

	hasNext := len(records) > pageSize
	if hasNext {
		records = records[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: records, Paging: paging}, nil
}

func nullableText(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
