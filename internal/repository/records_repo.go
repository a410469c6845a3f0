package repository

import (
	"context"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
	"github.com/propplyai/propply-ai-sub002/internal/sources"
)

// UpsertStats summarizes one batch landing.
type UpsertStats struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// RecordFilters narrows finding listings.
type RecordFilters struct {
	// Category restricts the listing to one category when non-nil.
	Category *domain.Category
	// IncludeDismissed keeps dismissed records in the listing. The
	// default is active records only.
	IncludeDismissed bool
}

// RecordsRepository stores normalized source records. Records are keyed by
// (dataset, external_id); re-landing a known record refreshes its source
// fields and last_seen_at but never touches override state, and records are
// never deleted, only closed by their source.
type RecordsRepository interface {
	// UpsertRecords lands one batch of normalized records for a property.
	UpsertRecords(ctx context.Context, propertyID string, records []sources.NormalizedRecord) (*UpsertStats, error)

	// GetRecord looks a record up by id. Returns domain.ErrRecordNotFound
	// when it does not exist.
	GetRecord(ctx context.Context, recordID string) (*domain.SourceRecord, error)

	// ListRecords returns a property's records newest first, filtered
	// per filters.
	ListRecords(ctx context.Context, propertyID string, filters RecordFilters) ([]*domain.SourceRecord, error)

	// ListActiveRecords returns all non-dismissed records for a property,
	// the working set for a score recompute.
	ListActiveRecords(ctx context.Context, propertyID string) ([]domain.SourceRecord, error)
}
