package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
	"github.com/propplyai/propply-ai-sub002/internal/repository"
	"github.com/propplyai/propply-ai-sub002/internal/scoring"
)

// Scorer binds the pure scoring engine to the stored per-municipality
// policy. Every recompute in the system (sync, dismissal, rebuild) funnels
// through Compute so they all score identically.
type Scorer struct {
	configsRepo repository.ScoringConfigsRepository
	logger      *zap.Logger
	now         func() time.Time
}

func NewScorer(configsRepo repository.ScoringConfigsRepository, logger *zap.Logger) *Scorer {
	return &Scorer{
		configsRepo: configsRepo,
		logger:      logger,
		now:         time.Now,
	}
}

// ConfigFor returns the stored override for a municipality, falling back to
// the compiled-in defaults when none exists or the stored row no longer
// validates.
func (s *Scorer) ConfigFor(ctx context.Context, municipality domain.Municipality) (*scoring.Config, error) {
	stored, err := s.configsRepo.GetConfig(ctx, municipality)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		if err := stored.Validate(); err != nil {
			s.logger.Warn("stored scoring config is invalid, using defaults",
				zap.String("municipality", string(municipality)),
				zap.Error(err),
			)
		} else {
			return stored, nil
		}
	}
	return scoring.DefaultConfig(municipality)
}

// Compute scores a property's active records under its municipality policy.
func (s *Scorer) Compute(ctx context.Context, propertyID string, municipality domain.Municipality, active []domain.SourceRecord) (*domain.ScoreSnapshot, error) {
	cfg, err := s.ConfigFor(ctx, municipality)
	if err != nil {
		return nil, err
	}
	now := s.now()
	input := scoring.BuildInput(propertyID, active, now, cfg)
	return scoring.Compute(cfg, input, now), nil
}
