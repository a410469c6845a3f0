package repository

import (
	"context"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

// RescoreFunc recomputes a property's snapshot from its current active
// records. Repositories call it while holding the property write lock so
// the stored snapshot can never drift from override state.
type RescoreFunc func(propertyID string, active []domain.SourceRecord) (*domain.ScoreSnapshot, error)

// DismissalsRepository applies override transitions. Each call runs in a
// single transaction: lock the property row, flip the record's override
// state, recompute and store the snapshot, and append an audit entry.
// Rejected transitions are audited too, outside the rolled-back transaction.
type DismissalsRepository interface {
	// Dismiss marks an active record dismissed. Returns
	// domain.ErrAlreadyDismissed when the record is already dismissed and
	// domain.ErrRecordNotFound when it does not exist. On success it
	// returns the freshly stored snapshot.
	Dismiss(ctx context.Context, recordID, actor, reason string, rescore RescoreFunc) (*domain.ScoreSnapshot, error)

	// Restore reactivates a dismissed record. Returns
	// domain.ErrNotDismissed when the record is not currently dismissed
	// and domain.ErrRecordNotFound when it does not exist. On success it
	// returns the freshly stored snapshot.
	Restore(ctx context.Context, recordID, actor string, rescore RescoreFunc) (*domain.ScoreSnapshot, error)
}
