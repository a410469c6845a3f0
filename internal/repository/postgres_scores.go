package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

// upsertSnapshotSQL replaces a property's snapshot whole. Shared with the
// dismissal transaction.
const upsertSnapshotSQL = `
	INSERT INTO score_snapshots (
		property_id, overall_score, risk_level, categories, computed_at
	) VALUES ($1, $2, $3, $4::jsonb, $5)
	ON CONFLICT (property_id) DO UPDATE SET
		overall_score = EXCLUDED.overall_score,
		risk_level    = EXCLUDED.risk_level,
		categories    = EXCLUDED.categories,
		computed_at   = EXCLUDED.computed_at
`

func snapshotArgs(snapshot *domain.ScoreSnapshot) ([]any, error) {
	categories, err := json.Marshal(snapshot.Categories)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal categories: %w", err)
	}
	return []any{
		snapshot.PropertyID,
		snapshot.OverallScore,
		string(snapshot.RiskLevel),
		string(categories),
		snapshot.ComputedAt,
	}, nil
}

// PostgresScoresRepository implements ScoresRepository on Postgres.
type PostgresScoresRepository struct {
	db *sql.DB
}

func NewPostgresScoresRepository(db *sql.DB) *PostgresScoresRepository {
	return &PostgresScoresRepository{db: db}
}

var _ ScoresRepository = (*PostgresScoresRepository)(nil)

func (r *PostgresScoresRepository) RecomputeSnapshot(ctx context.Context, propertyID string, rescore RescoreFunc) (*domain.ScoreSnapshot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockProperty(ctx, tx, propertyID); err != nil {
		return nil, fmt.Errorf("failed to lock property: %w", err)
	}

	rows, err := tx.QueryContext(ctx, listActiveRecordsSQL, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active records: %w", err)
	}
	active, err := collectActiveRecords(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	snapshot, err := rescore(propertyID, active)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute score: %w", err)
	}

	args, err := snapshotArgs(snapshot)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, upsertSnapshotSQL, args...); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return snapshot, nil
}

func (r *PostgresScoresRepository) GetSnapshot(ctx context.Context, propertyID string) (*domain.ScoreSnapshot, error) {
	query := `
		SELECT
			property_id::text,
			overall_score,
			risk_level,
			categories,
			computed_at
		FROM score_snapshots
		WHERE property_id = $1
	`

	var snapshot domain.ScoreSnapshot
	var riskLevel string
	var categories []byte

	err := r.db.QueryRowContext(ctx, query, propertyID).Scan(
		&snapshot.PropertyID,
		&snapshot.OverallScore,
		&riskLevel,
		&categories,
		&snapshot.ComputedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	snapshot.RiskLevel = domain.RiskLevel(riskLevel)
	if err := json.Unmarshal(categories, &snapshot.Categories); err != nil {
		return nil, fmt.Errorf("failed to unmarshal categories: %w", err)
	}

	return &snapshot, nil
}
