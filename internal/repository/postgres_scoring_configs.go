package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
	"github.com/propplyai/propply-ai-sub002/internal/scoring"
)

// PostgresScoringConfigsRepository implements ScoringConfigsRepository on
// Postgres. One JSONB row per municipality.
type PostgresScoringConfigsRepository struct {
	db *sql.DB
}

func NewPostgresScoringConfigsRepository(db *sql.DB) *PostgresScoringConfigsRepository {
	return &PostgresScoringConfigsRepository{db: db}
}

var _ ScoringConfigsRepository = (*PostgresScoringConfigsRepository)(nil)

func (r *PostgresScoringConfigsRepository) GetConfig(ctx context.Context, municipality domain.Municipality) (*scoring.Config, error) {
	query := `SELECT config FROM scoring_configs WHERE municipality = $1`

	var raw []byte
	err := r.db.QueryRowContext(ctx, query, string(municipality)).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scoring config: %w", err)
	}

	var cfg scoring.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scoring config: %w", err)
	}
	return &cfg, nil
}

func (r *PostgresScoringConfigsRepository) SaveConfig(ctx context.Context, cfg *scoring.Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal scoring config: %w", err)
	}

	query := `
		INSERT INTO scoring_configs (municipality, config, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (municipality) DO UPDATE SET
			config     = EXCLUDED.config,
			updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, string(cfg.Municipality), string(raw)); err != nil {
		return fmt.Errorf("failed to save scoring config: %w", err)
	}
	return nil
}
