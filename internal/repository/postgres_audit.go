package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

// insertAuditSQL appends one audit entry. Shared with the dismissal
// transaction; there is no UPDATE or DELETE for this table anywhere.
const insertAuditSQL = `
	INSERT INTO dismissal_audit (record_id, action, actor, reason, outcome)
	VALUES ($1, $2, $3, $4, $5)
`

// PostgresAuditRepository implements AuditRepository on Postgres.
type PostgresAuditRepository struct {
	db *sql.DB
}

func NewPostgresAuditRepository(db *sql.DB) *PostgresAuditRepository {
	return &PostgresAuditRepository{db: db}
}

var _ AuditRepository = (*PostgresAuditRepository)(nil)

func (r *PostgresAuditRepository) ListByRecord(ctx context.Context, recordID string) ([]*domain.DismissalAudit, error) {
	query := `
		SELECT
			audit_id::text,
			record_id::text,
			action,
			actor,
			reason,
			outcome,
			created_at
		FROM dismissal_audit
		WHERE record_id = $1
		ORDER BY created_at, audit_id
	`

	rows, err := r.db.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.DismissalAudit
	for rows.Next() {
		var entry domain.DismissalAudit
		var action, outcome string
		err := rows.Scan(
			&entry.AuditID,
			&entry.RecordID,
			&action,
			&entry.Actor,
			&entry.Reason,
			&outcome,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Action = domain.AuditAction(action)
		entry.Outcome = domain.AuditOutcome(outcome)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}

	return entries, nil
}
