package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
	"github.com/propplyai/propply-ai-sub002/internal/events"
	"github.com/propplyai/propply-ai-sub002/internal/repository"
	"github.com/propplyai/propply-ai-sub002/internal/store"
)

// ScoreService reads and rebuilds score snapshots.
type ScoreService interface {
	// GetScore returns the current snapshot, cache first. Returns
	// domain.ErrSnapshotNotFound before the first completed sync.
	GetScore(ctx context.Context, propertyID string) (*domain.ScoreSnapshot, error)

	// RebuildScore recomputes the snapshot from stored records without
	// contacting any source. Used by the rebuild tool after a scoring
	// policy change.
	RebuildScore(ctx context.Context, propertyID string) (*domain.ScoreSnapshot, error)
}

type scoreService struct {
	propertiesRepo repository.PropertiesRepository
	scoresRepo     repository.ScoresRepository
	scorer         *Scorer
	cache          *store.SnapshotCache
	notify         *notifier
	logger         *zap.Logger
}

func NewScoreService(
	propertiesRepo repository.PropertiesRepository,
	scoresRepo repository.ScoresRepository,
	scorer *Scorer,
	cache *store.SnapshotCache,
	publisher events.Publisher,
	logger *zap.Logger,
) ScoreService {
	return &scoreService{
		propertiesRepo: propertiesRepo,
		scoresRepo:     scoresRepo,
		scorer:         scorer,
		cache:          cache,
		notify:         newNotifier(cache, publisher, logger),
		logger:         logger,
	}
}

func (s *scoreService) GetScore(ctx context.Context, propertyID string) (*domain.ScoreSnapshot, error) {
	if cached, err := s.cache.Get(ctx, propertyID); err != nil {
		// Cache trouble never blocks a read; Postgres has the truth.
		s.logger.Warn("snapshot cache read failed", zap.String("property_id", propertyID), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	snapshot, err := s.scoresRepo.GetSnapshot(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, snapshot); err != nil {
		s.logger.Warn("snapshot cache write failed", zap.String("property_id", propertyID), zap.Error(err))
	}
	return snapshot, nil
}

func (s *scoreService) RebuildScore(ctx context.Context, propertyID string) (*domain.ScoreSnapshot, error) {
	property, err := s.propertiesRepo.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	rescore := func(propertyID string, active []domain.SourceRecord) (*domain.ScoreSnapshot, error) {
		return s.scorer.Compute(ctx, propertyID, property.Municipality, active)
	}
	snapshot, err := s.scoresRepo.RecomputeSnapshot(ctx, propertyID, rescore)
	if err != nil {
		return nil, err
	}

	s.notify.snapshotStored(ctx, snapshot, events.TriggerRebuild)
	return snapshot, nil
}
