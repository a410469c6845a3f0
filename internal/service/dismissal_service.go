package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
	"github.com/propplyai/propply-ai-sub002/internal/events"
	"github.com/propplyai/propply-ai-sub002/internal/repository"
	"github.com/propplyai/propply-ai-sub002/internal/store"
)

// DismissalService applies review decisions to findings. A dismissed finding
// stops counting toward scores but stays stored, auditable, and restorable.
type DismissalService interface {
	// DismissFinding marks a finding dismissed and returns the recomputed
	// snapshot. Returns domain.ErrRecordNotFound or
	// domain.ErrAlreadyDismissed on guard failures.
	DismissFinding(ctx context.Context, recordID, actor, reason string) (*domain.ScoreSnapshot, error)

	// RestoreFinding reverses a dismissal and returns the recomputed
	// snapshot. Returns domain.ErrRecordNotFound or domain.ErrNotDismissed
	// on guard failures.
	RestoreFinding(ctx context.Context, recordID, actor string) (*domain.ScoreSnapshot, error)

	// GetAuditTrail returns every dismiss/restore attempt against a
	// record, oldest first, rejected attempts included.
	GetAuditTrail(ctx context.Context, recordID string) ([]*domain.DismissalAudit, error)
}

type dismissalService struct {
	recordsRepo    repository.RecordsRepository
	propertiesRepo repository.PropertiesRepository
	dismissalsRepo repository.DismissalsRepository
	auditRepo      repository.AuditRepository
	scorer         *Scorer
	notify         *notifier
	logger         *zap.Logger
}

func NewDismissalService(
	recordsRepo repository.RecordsRepository,
	propertiesRepo repository.PropertiesRepository,
	dismissalsRepo repository.DismissalsRepository,
	auditRepo repository.AuditRepository,
	scorer *Scorer,
	cache *store.SnapshotCache,
	publisher events.Publisher,
	logger *zap.Logger,
) DismissalService {
	return &dismissalService{
		recordsRepo:    recordsRepo,
		propertiesRepo: propertiesRepo,
		dismissalsRepo: dismissalsRepo,
		auditRepo:      auditRepo,
		scorer:         scorer,
		notify:         newNotifier(cache, publisher, logger),
		logger:         logger,
	}
}

func (s *dismissalService) DismissFinding(ctx context.Context, recordID, actor, reason string) (*domain.ScoreSnapshot, error) {
	rescore, err := s.rescoreFor(ctx, recordID)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.dismissalsRepo.Dismiss(ctx, recordID, actor, reason, rescore)
	if err != nil {
		return nil, err
	}

	s.logger.Info("dismissed finding",
		zap.String("record_id", recordID),
		zap.String("actor", actor),
		zap.Int("overall_score", snapshot.OverallScore),
	)
	s.notify.snapshotStored(ctx, snapshot, events.TriggerDismiss)
	return snapshot, nil
}

func (s *dismissalService) RestoreFinding(ctx context.Context, recordID, actor string) (*domain.ScoreSnapshot, error) {
	rescore, err := s.rescoreFor(ctx, recordID)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.dismissalsRepo.Restore(ctx, recordID, actor, rescore)
	if err != nil {
		return nil, err
	}

	s.logger.Info("restored finding",
		zap.String("record_id", recordID),
		zap.String("actor", actor),
		zap.Int("overall_score", snapshot.OverallScore),
	)
	s.notify.snapshotStored(ctx, snapshot, events.TriggerRestore)
	return snapshot, nil
}

func (s *dismissalService) GetAuditTrail(ctx context.Context, recordID string) ([]*domain.DismissalAudit, error) {
	if _, err := s.recordsRepo.GetRecord(ctx, recordID); err != nil {
		return nil, err
	}
	return s.auditRepo.ListByRecord(ctx, recordID)
}

// rescoreFor resolves the record's municipality up front so the transaction
// callback scores under the right policy.
func (s *dismissalService) rescoreFor(ctx context.Context, recordID string) (repository.RescoreFunc, error) {
	record, err := s.recordsRepo.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	property, err := s.propertiesRepo.GetProperty(ctx, record.PropertyID)
	if err != nil {
		return nil, err
	}

	return func(propertyID string, active []domain.SourceRecord) (*domain.ScoreSnapshot, error) {
		return s.scorer.Compute(ctx, propertyID, property.Municipality, active)
	}, nil
}
