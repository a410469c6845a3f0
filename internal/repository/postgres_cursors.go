package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

// PostgresCursorsRepository implements CursorsRepository on Postgres.
type PostgresCursorsRepository struct {
	db *sql.DB
}

func NewPostgresCursorsRepository(db *sql.DB) *PostgresCursorsRepository {
	return &PostgresCursorsRepository{db: db}
}

var _ CursorsRepository = (*PostgresCursorsRepository)(nil)

func (r *PostgresCursorsRepository) GetCursor(ctx context.Context, propertyID, dataset string) (*domain.SyncCursor, error) {
	query := `
		SELECT
			property_id::text,
			dataset,
			last_synced_at,
			last_error,
			page_offset,
			updated_at
		FROM sync_cursors
		WHERE property_id = $1 AND dataset = $2
	`

	cursor, err := scanCursor(r.db.QueryRowContext(ctx, query, propertyID, dataset))
	if err == sql.ErrNoRows {
		// First contact with this dataset: start from the top.
		return &domain.SyncCursor{PropertyID: propertyID, Dataset: dataset}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor: %w", err)
	}
	return cursor, nil
}

func (r *PostgresCursorsRepository) MarkSuccess(ctx context.Context, propertyID, dataset string, offset int) error {
	query := `
		INSERT INTO sync_cursors (property_id, dataset, last_synced_at, last_error, page_offset, updated_at)
		VALUES ($1, $2, NOW(), NULL, $3, NOW())
		ON CONFLICT (property_id, dataset) DO UPDATE SET
			last_synced_at = NOW(),
			last_error     = NULL,
			page_offset    = EXCLUDED.page_offset,
			updated_at     = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, propertyID, dataset, offset); err != nil {
		return fmt.Errorf("failed to mark cursor success: %w", err)
	}
	return nil
}

// MarkError keeps last_synced_at from the last clean pass; only the error
// text and resume offset move.
func (r *PostgresCursorsRepository) MarkError(ctx context.Context, propertyID, dataset, errText string, offset int) error {
	query := `
		INSERT INTO sync_cursors (property_id, dataset, last_error, page_offset, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (property_id, dataset) DO UPDATE SET
			last_error  = EXCLUDED.last_error,
			page_offset = EXCLUDED.page_offset,
			updated_at  = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, propertyID, dataset, errText, offset); err != nil {
		return fmt.Errorf("failed to mark cursor error: %w", err)
	}
	return nil
}

func (r *PostgresCursorsRepository) ListByProperty(ctx context.Context, propertyID string) ([]*domain.SyncCursor, error) {
	query := `
		SELECT
			property_id::text,
			dataset,
			last_synced_at,
			last_error,
			page_offset,
			updated_at
		FROM sync_cursors
		WHERE property_id = $1
		ORDER BY dataset
	`

	rows, err := r.db.QueryContext(ctx, query, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cursors: %w", err)
	}
	defer rows.Close()

	var cursors []*domain.SyncCursor
	for rows.Next() {
		cursor, err := scanCursor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cursor: %w", err)
		}
		cursors = append(cursors, cursor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cursors: %w", err)
	}

	return cursors, nil
}

func scanCursor(s rowScanner) (*domain.SyncCursor, error) {
	var cursor domain.SyncCursor
	var lastSyncedAt sql.NullTime

	err := s.Scan(
		&cursor.PropertyID,
		&cursor.Dataset,
		&lastSyncedAt,
		&cursor.LastError,
		&cursor.PageOffset,
		&cursor.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastSyncedAt.Valid {
		cursor.LastSyncedAt = &lastSyncedAt.Time
	}
	return &cursor, nil
}
