package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
	"github.com/propplyai/propply-ai-sub002/internal/repository"
)

// FindingService lists a property's stored records.
type FindingService interface {
	// ListFindings returns the property's records newest first. category
	// narrows to one category when non-empty; dismissed records are
	// excluded unless includeDismissed is set.
	ListFindings(ctx context.Context, propertyID, category string, includeDismissed bool) ([]*domain.SourceRecord, error)

	// GetFinding returns one record by id.
	GetFinding(ctx context.Context, recordID string) (*domain.SourceRecord, error)
}

type findingService struct {
	propertiesRepo repository.PropertiesRepository
	recordsRepo    repository.RecordsRepository
	logger         *zap.Logger
}

func NewFindingService(
	propertiesRepo repository.PropertiesRepository,
	recordsRepo repository.RecordsRepository,
	logger *zap.Logger,
) FindingService {
	return &findingService{
		propertiesRepo: propertiesRepo,
		recordsRepo:    recordsRepo,
		logger:         logger,
	}
}

func (s *findingService) ListFindings(ctx context.Context, propertyID, category string, includeDismissed bool) ([]*domain.SourceRecord, error) {
	if _, err := s.propertiesRepo.GetProperty(ctx, propertyID); err != nil {
		return nil, err
	}

	filters := repository.RecordFilters{IncludeDismissed: includeDismissed}
	if category != "" {
		cat := domain.Category(category)
		if !cat.Valid() {
			return nil, fmt.Errorf("unknown category %q", category)
		}
		filters.Category = &cat
	}

	return s.recordsRepo.ListRecords(ctx, propertyID, filters)
}

func (s *findingService) GetFinding(ctx context.Context, recordID string) (*domain.SourceRecord, error) {
	return s.recordsRepo.GetRecord(ctx, recordID)
}
