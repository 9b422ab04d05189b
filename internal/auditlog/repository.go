package auditlog

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/domstore/admin-backend/internal/models"
)

// Repository handles audit_log persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts an entry.
func (r *Repository) Record(ctx context.Context, e *models.AuditEntry) error {
	const q = `INSERT INTO audit_log (id, session_id, action, resource_id, detail, created_at)
		VALUES ($1, $2, $3, NULLIF($4::text, ''), NULLIF($5::text, ''), $6)`
	_, err := r.pool.Exec(ctx, q, e.ID, e.SessionID, e.Action, e.ResourceID, e.Detail, e.CreatedAt)
	return err
}

// List returns entries newest first, optionally restricted to one action.
func (r *Repository) List(ctx context.Context, action string, limit int) ([]*models.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	const q = `SELECT id, session_id, action, resource_id, detail, created_at
		FROM audit_log
		WHERE ($1::text = '' OR action = $1::text)
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, q, action, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var resourceID, detail *string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Action, &resourceID, &detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		if resourceID != nil {
			e.ResourceID = *resourceID
		}
		if detail != nil {
			e.Detail = *detail
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
