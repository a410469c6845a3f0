package repository

import (
	"context"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
	"github.com/propplyai/propply-ai-sub002/internal/scoring"
)

// ScoringConfigsRepository stores per-municipality scoring config
// overrides. Municipalities without a stored row fall back to the
// compiled-in defaults.
type ScoringConfigsRepository interface {
	// GetConfig returns the stored override for a municipality, or nil
	// when none exists.
	GetConfig(ctx context.Context, municipality domain.Municipality) (*scoring.Config, error)

	// SaveConfig stores or replaces a municipality's override. The config
	// must already be validated.
	SaveConfig(ctx context.Context, cfg *scoring.Config) error
}
