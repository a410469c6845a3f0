package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
	"github.com/propplyai/propply-ai-sub002/internal/sources"
)

// upsertRecordSQL lands one normalized record. The conflict arm refreshes
// only source-reported columns; active and the dismissed_* columns belong to
// the dismissal transaction and are deliberately absent from the SET list.
// xmax is zero only for rows created by this statement, which is how the
// caller tells inserts from refreshes.
const upsertRecordSQL = `
	INSERT INTO source_records (
		property_id, family, dataset, external_id, category,
		class, severity, status, issued_at, inspected_at, description, raw_payload
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb)
	ON CONFLICT (dataset, external_id) DO UPDATE SET
		category     = EXCLUDED.category,
		class        = EXCLUDED.class,
		severity     = EXCLUDED.severity,
		status       = EXCLUDED.status,
		issued_at    = EXCLUDED.issued_at,
		inspected_at = EXCLUDED.inspected_at,
		description  = EXCLUDED.description,
		raw_payload  = EXCLUDED.raw_payload,
		last_seen_at = NOW()
	RETURNING (xmax = 0)
`

const selectRecordColumns = `
		record_id::text,
		property_id::text,
		family,
		dataset,
		external_id,
		category,
		class,
		severity,
		status,
		issued_at,
		inspected_at,
		description,
		raw_payload,
		active,
		dismissed_by,
		dismissed_at,
		dismiss_reason,
		first_seen_at,
		last_seen_at`

// listActiveRecordsSQL is shared with the dismissal transaction, which
// re-reads the working set under the property lock.
const listActiveRecordsSQL = `
	SELECT` + selectRecordColumns + `
	FROM source_records
	WHERE property_id = $1 AND active = TRUE
	ORDER BY first_seen_at, record_id
`

// PostgresRecordsRepository implements RecordsRepository on Postgres.
type PostgresRecordsRepository struct {
	db *sql.DB
}

func NewPostgresRecordsRepository(db *sql.DB) *PostgresRecordsRepository {
	return &PostgresRecordsRepository{db: db}
}

var _ RecordsRepository = (*PostgresRecordsRepository)(nil)

func (r *PostgresRecordsRepository) UpsertRecords(ctx context.Context, propertyID string, records []sources.NormalizedRecord) (*UpsertStats, error) {
	stats := &UpsertStats{}
	if len(records) == 0 {
		return stats, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range records {
		rec := &records[i]

		args := []any{
			propertyID,
			string(rec.Family),
			rec.Dataset,
			rec.ExternalID,
			string(rec.Category),
			ptrStringToAny(rec.Class),
			ptrStringToAny(rec.Severity),
			string(rec.Status),
			rec.IssuedAt,
			rec.InspectedAt,
			ptrStringToAny(rec.Description),
			rawToAny(rec.Raw),
		}

		var inserted bool
		if err := tx.QueryRowContext(ctx, upsertRecordSQL, args...).Scan(&inserted); err != nil {
			return nil, fmt.Errorf("failed to upsert record %s/%s: %w", rec.Dataset, rec.ExternalID, err)
		}
		if inserted {
			stats.Inserted++
		} else {
			stats.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit record batch: %w", err)
	}

	return stats, nil
}

func (r *PostgresRecordsRepository) GetRecord(ctx context.Context, recordID string) (*domain.SourceRecord, error) {
	query := `
	SELECT` + selectRecordColumns + `
	FROM source_records
	WHERE record_id = $1
`

	record, err := scanSourceRecord(r.db.QueryRowContext(ctx, query, recordID))
	if err == sql.ErrNoRows {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return record, nil
}

func (r *PostgresRecordsRepository) ListRecords(ctx context.Context, propertyID string, filters RecordFilters) ([]*domain.SourceRecord, error) {
	query := `
	SELECT` + selectRecordColumns + `
	FROM source_records
	WHERE property_id = $1`
	args := []any{propertyID}

	if filters.Category != nil {
		query += ` AND category = $2`
		args = append(args, string(*filters.Category))
	}
	if !filters.IncludeDismissed {
		query += ` AND active = TRUE`
	}
	query += `
	ORDER BY first_seen_at DESC, record_id
`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*domain.SourceRecord
	for rows.Next() {
		record, err := scanSourceRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return records, nil
}

func (r *PostgresRecordsRepository) ListActiveRecords(ctx context.Context, propertyID string) ([]domain.SourceRecord, error) {
	rows, err := r.db.QueryContext(ctx, listActiveRecordsSQL, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active records: %w", err)
	}
	defer rows.Close()

	return collectActiveRecords(rows)
}

// collectActiveRecords drains a listActiveRecordsSQL result set. Shared with
// the dismissal transaction.
func collectActiveRecords(rows *sql.Rows) ([]domain.SourceRecord, error) {
	var records []domain.SourceRecord
	for rows.Next() {
		record, err := scanSourceRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSourceRecord(s rowScanner) (*domain.SourceRecord, error) {
	var record domain.SourceRecord
	var family, category, status string
	var issuedAt, inspectedAt, dismissedAt sql.NullTime
	var rawPayload sql.NullString

	err := s.Scan(
		&record.RecordID,
		&record.PropertyID,
		&family,
		&record.Dataset,
		&record.ExternalID,
		&category,
		&record.Class,
		&record.Severity,
		&status,
		&issuedAt,
		&inspectedAt,
		&record.Description,
		&rawPayload,
		&record.Active,
		&record.DismissedBy,
		&dismissedAt,
		&record.DismissReason,
		&record.FirstSeenAt,
		&record.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}

	record.Family = domain.SourceFamily(family)
	record.Category = domain.Category(category)
	record.Status = domain.RecordStatus(status)
	if issuedAt.Valid {
		record.IssuedAt = &issuedAt.Time
	}
	if inspectedAt.Valid {
		record.InspectedAt = &inspectedAt.Time
	}
	if dismissedAt.Valid {
		record.DismissedAt = &dismissedAt.Time
	}
	if rawPayload.Valid {
		record.RawPayload = json.RawMessage(rawPayload.String)
	}

	return &record, nil
}

func ptrStringToAny(p *string) any {
	if p != nil {
		return *p
	}
	return nil
}

func rawToAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
