package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
	"github.com/propplyai/propply-ai-sub002/internal/events"
	"github.com/propplyai/propply-ai-sub002/internal/identity"
	"github.com/propplyai/propply-ai-sub002/internal/repository"
	"github.com/propplyai/propply-ai-sub002/internal/sources"
	"github.com/propplyai/propply-ai-sub002/internal/store"
)

// SyncService orchestrates one property's data refresh: every dataset of the
// property's municipality is fetched concurrently, filtered through identity
// validation, landed in the record store, and followed by exactly one score
// recompute, however many datasets failed along the way.
type SyncService interface {
	// SyncProperty runs a full sync. A property admits one run at a time;
	// a second concurrent call gets domain.ErrSyncInProgress. Dataset
	// failures never fail the run, they mark their row in the report.
	SyncProperty(ctx context.Context, propertyID string) (*domain.SyncReport, error)

	// GetSyncStatus returns the per-dataset cursors: last clean pass,
	// last error, and the offset the next run resumes from.
	GetSyncStatus(ctx context.Context, propertyID string) ([]*domain.SyncCursor, error)
}

type syncService struct {
	propertiesRepo repository.PropertiesRepository
	recordsRepo    repository.RecordsRepository
	cursorsRepo    repository.CursorsRepository
	scoresRepo     repository.ScoresRepository
	scorer         *Scorer
	resolver       *identity.Resolver
	adapters       map[domain.Municipality][]sources.Adapter
	adapterTimeout time.Duration
	notify         *notifier
	logger         *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewSyncService(
	propertiesRepo repository.PropertiesRepository,
	recordsRepo repository.RecordsRepository,
	cursorsRepo repository.CursorsRepository,
	scoresRepo repository.ScoresRepository,
	scorer *Scorer,
	resolver *identity.Resolver,
	adapters map[domain.Municipality][]sources.Adapter,
	adapterTimeout time.Duration,
	cache *store.SnapshotCache,
	publisher events.Publisher,
	logger *zap.Logger,
) SyncService {
	return &syncService{
		propertiesRepo: propertiesRepo,
		recordsRepo:    recordsRepo,
		cursorsRepo:    cursorsRepo,
		scoresRepo:     scoresRepo,
		scorer:         scorer,
		resolver:       resolver,
		adapters:       adapters,
		adapterTimeout: adapterTimeout,
		notify:         newNotifier(cache, publisher, logger),
		logger:         logger,
		inFlight:       make(map[string]struct{}),
	}
}

// datasetOutcome is one adapter's contribution to the run.
type datasetOutcome struct {
	report     domain.DatasetReport
	backfillID string
}

func (s *syncService) SyncProperty(ctx context.Context, propertyID string) (*domain.SyncReport, error) {
	property, err := s.propertiesRepo.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	adapters := s.adapters[property.Municipality]
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters registered for municipality %q", property.Municipality)
	}

	if !s.acquire(propertyID) {
		return nil, domain.ErrSyncInProgress
	}
	defer s.release(propertyID)

	report := &domain.SyncReport{
		RunID:      uuid.NewString(),
		PropertyID: propertyID,
		StartedAt:  time.Now(),
	}
	s.logger.Info("sync run started",
		zap.String("run_id", report.RunID),
		zap.String("property_id", propertyID),
		zap.String("municipality", string(property.Municipality)),
		zap.Int("datasets", len(adapters)),
	)

	outcomes := make([]datasetOutcome, len(adapters))
	var wg sync.WaitGroup
	for i, adapter := range adapters {
		wg.Add(1)
		go func(i int, adapter sources.Adapter) {
			defer wg.Done()
			outcomes[i] = s.syncDataset(ctx, property, adapter)
		}(i, adapter)
	}
	wg.Wait()

	for _, o := range outcomes {
		report.Datasets = append(report.Datasets, o.report)
	}

	// A unanimous strong id from a weak batch upgrades the property for
	// future runs. First one wins; the repo ignores it if an id exists.
	for _, o := range outcomes {
		if o.backfillID == "" {
			continue
		}
		if err := s.propertiesRepo.BackfillBuildingID(ctx, propertyID, o.backfillID); err != nil {
			s.logger.Warn("building id backfill failed",
				zap.String("property_id", propertyID),
				zap.Error(err),
			)
		} else {
			identity.BackfillIdentifier(property, o.backfillID)
			s.logger.Info("backfilled building id",
				zap.String("property_id", propertyID),
				zap.String("building_id", o.backfillID),
			)
		}
		break
	}

	// Exactly one recompute per run, whatever the datasets did. The repo
	// re-reads the active set and writes the snapshot under one property
	// lock, so a dismissal landing mid-run is never overwritten.
	rescore := func(propertyID string, active []domain.SourceRecord) (*domain.ScoreSnapshot, error) {
		return s.scorer.Compute(ctx, propertyID, property.Municipality, active)
	}
	snapshot, err := s.scoresRepo.RecomputeSnapshot(ctx, propertyID, rescore)
	if err != nil {
		return nil, err
	}
	s.notify.snapshotStored(ctx, snapshot, events.TriggerSync)

	report.Snapshot = snapshot
	report.FinishedAt = time.Now()
	s.logger.Info("sync run finished",
		zap.String("run_id", report.RunID),
		zap.String("property_id", propertyID),
		zap.Int("failed_datasets", report.Failed()),
		zap.Int("overall_score", snapshot.OverallScore),
	)
	return report, nil
}

func (s *syncService) GetSyncStatus(ctx context.Context, propertyID string) ([]*domain.SyncCursor, error) {
	if _, err := s.propertiesRepo.GetProperty(ctx, propertyID); err != nil {
		return nil, err
	}
	return s.cursorsRepo.ListByProperty(ctx, propertyID)
}

// syncDataset runs one adapter end to end. It never returns an error: every
// failure is contained in the dataset's report row so siblings keep going.
func (s *syncService) syncDataset(ctx context.Context, property *domain.Property, adapter sources.Adapter) datasetOutcome {
	report := domain.DatasetReport{Dataset: adapter.Dataset(), Family: adapter.Family()}

	q := s.resolver.Plan(property, adapter.Strategies())
	if q == nil {
		report.Status = domain.DatasetSkipped
		report.Warning = "no usable identifier for this dataset"
		return datasetOutcome{report: report}
	}

	cursor, err := s.cursorsRepo.GetCursor(ctx, property.PropertyID, adapter.Dataset())
	if err != nil {
		report.Status = domain.DatasetFailed
		report.Error = err.Error()
		return datasetOutcome{report: report}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.adapterTimeout)
	defer cancel()

	res, fetchErr := adapter.Fetch(fetchCtx, q, sources.Cursor{Offset: cursor.PageOffset})
	if res == nil {
		res = &sources.FetchResult{}
	}
	report.Fetched = len(res.Records)

	verdict, err := s.resolver.Filter(property, q, sources.Candidates(res.Records))
	if errors.Is(err, domain.ErrIdentityAmbiguous) {
		// The whole batch was rejected as ambiguous. That degrades to zero
		// records for this dataset, not a failure: the cursor records a
		// clean pass at the same offset so the page is retried once the
		// property gains a stronger identifier.
		report.Status = domain.DatasetSuccess
		report.Warning = err.Error()
		s.markCursorSuccess(ctx, property.PropertyID, adapter.Dataset(), cursor.PageOffset)
		return datasetOutcome{report: report}
	}
	if err != nil {
		report.Status = domain.DatasetFailed
		report.Error = err.Error()
		s.markCursorError(ctx, property.PropertyID, adapter.Dataset(), err, cursor.PageOffset)
		return datasetOutcome{report: report}
	}

	accepted := sources.Select(res.Records, verdict.Accepted)
	report.Accepted = len(accepted)
	if dropped := report.Fetched - report.Accepted; dropped > 0 {
		report.Warning = fmt.Sprintf("%d records dropped by identity validation", dropped)
	}

	if len(accepted) > 0 {
		if _, err := s.recordsRepo.UpsertRecords(ctx, property.PropertyID, accepted); err != nil {
			report.Status = domain.DatasetFailed
			report.Error = err.Error()
			s.markCursorError(ctx, property.PropertyID, adapter.Dataset(), err, cursor.PageOffset)
			return datasetOutcome{report: report, backfillID: verdict.BackfillBuildingID}
		}
	}

	if fetchErr != nil {
		// Pages that landed before the failure stay; the cursor records
		// where to pick up.
		report.Error = fetchErr.Error()
		if report.Accepted > 0 {
			report.Status = domain.DatasetPartial
		} else {
			report.Status = domain.DatasetFailed
		}
		s.markCursorError(ctx, property.PropertyID, adapter.Dataset(), fetchErr, res.NextOffset)
		return datasetOutcome{report: report, backfillID: verdict.BackfillBuildingID}
	}

	report.Status = domain.DatasetSuccess
	next := 0
	if !res.Exhausted {
		next = res.NextOffset
		report.Warning = appendNote(report.Warning,
			fmt.Sprintf("page cap reached, resuming at offset %d next run", next))
	}
	s.markCursorSuccess(ctx, property.PropertyID, adapter.Dataset(), next)
	return datasetOutcome{report: report, backfillID: verdict.BackfillBuildingID}
}

func (s *syncService) markCursorSuccess(ctx context.Context, propertyID, dataset string, offset int) {
	if err := s.cursorsRepo.MarkSuccess(ctx, propertyID, dataset, offset); err != nil {
		s.logger.Warn("cursor update failed",
			zap.String("property_id", propertyID),
			zap.String("dataset", dataset),
			zap.Error(err),
		)
	}
}

func (s *syncService) markCursorError(ctx context.Context, propertyID, dataset string, cause error, offset int) {
	if err := s.cursorsRepo.MarkError(ctx, propertyID, dataset, cause.Error(), offset); err != nil {
		s.logger.Warn("cursor update failed",
			zap.String("property_id", propertyID),
			zap.String("dataset", dataset),
			zap.Error(err),
		)
	}
}

func (s *syncService) acquire(propertyID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[propertyID]; busy {
		return false
	}
	s.inFlight[propertyID] = struct{}{}
	return true
}

func (s *syncService) release(propertyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, propertyID)
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "; " + note
}
