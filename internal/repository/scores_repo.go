package repository

import (
	"context"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

// ScoresRepository stores one current snapshot per property.
type ScoresRepository interface {
	// RecomputeSnapshot rebuilds a property's snapshot from its current
	// active records. The active-set read and the snapshot write share one
	// transaction holding the property row lock, so the recompute
	// serializes against dismissal transitions and never lands a stale
	// read. Returns the stored snapshot.
	RecomputeSnapshot(ctx context.Context, propertyID string, rescore RescoreFunc) (*domain.ScoreSnapshot, error)

	// GetSnapshot returns a property's current snapshot. Returns
	// domain.ErrSnapshotNotFound when no sync has completed yet.
	GetSnapshot(ctx context.Context, propertyID string) (*domain.ScoreSnapshot, error)
}
