package repository

import (
	"context"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

// CursorsRepository tracks per-(property, dataset) sync progress.
type CursorsRepository interface {
	// GetCursor returns the cursor for one dataset. When no sync has
	// touched the dataset yet it returns a zero cursor (offset 0) rather
	// than an error.
	GetCursor(ctx context.Context, propertyID, dataset string) (*domain.SyncCursor, error)

	// MarkSuccess records a clean dataset pass: stamps last_synced_at,
	// clears last_error, and stores the offset the next run resumes from
	// (0 when the dataset was fully drained).
	MarkSuccess(ctx context.Context, propertyID, dataset string, offset int) error

	// MarkError records a failed dataset pass: stores the error text and
	// the resume offset while preserving last_synced_at from the last
	// clean pass.
	MarkError(ctx context.Context, propertyID, dataset, errText string, offset int) error

	// ListByProperty returns all cursors for a property ordered by
	// dataset name, the backing data for sync status reporting.
	ListByProperty(ctx context.Context, propertyID string) ([]*domain.SyncCursor, error)
}
