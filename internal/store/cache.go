package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

const (
	snapshotKeyPrefix  = "compliance:property:"
	snapshotKeySuffix  = ":score"
	snapshotKeyPattern = snapshotKeyPrefix + "*" + snapshotKeySuffix
)

// SnapshotCache caches serialized score snapshots per property with a TTL.
type SnapshotCache struct {
	kv  KV
	ttl time.Duration
}

func NewSnapshotCache(kv KV, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{kv: kv, ttl: ttl}
}

func snapshotKey(propertyID string) string {
	return snapshotKeyPrefix + propertyID + snapshotKeySuffix
}

// Get returns the cached snapshot, or nil on a miss.
func (c *SnapshotCache) Get(ctx context.Context, propertyID string) (*domain.ScoreSnapshot, error) {
	val, err := c.kv.Get(ctx, snapshotKey(propertyID))
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached snapshot: %w", err)
	}

	var snapshot domain.ScoreSnapshot
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached snapshot: %w", err)
	}
	return &snapshot, nil
}

// Set stores a snapshot under the property key.
func (c *SnapshotCache) Set(ctx context.Context, snapshot *domain.ScoreSnapshot) error {
	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := c.kv.Set(ctx, snapshotKey(snapshot.PropertyID), string(jsonData), c.ttl); err != nil {
		return fmt.Errorf("failed to set snapshot cache: %w", err)
	}
	return nil
}

// Invalidate drops one property's cached snapshot.
func (c *SnapshotCache) Invalidate(ctx context.Context, propertyID string) error {
	if err := c.kv.Del(ctx, snapshotKey(propertyID)); err != nil {
		return fmt.Errorf("failed to invalidate snapshot cache: %w", err)
	}
	return nil
}

// InvalidateAll drops every cached snapshot. Called before a bulk rebuild so
// no reader sees scores computed under the old policy.
func (c *SnapshotCache) InvalidateAll(ctx context.Context) error {
	keys, err := c.kv.ScanKeys(ctx, snapshotKeyPattern)
	if err != nil {
		return fmt.Errorf("failed to scan snapshot keys: %w", err)
	}
	if err := c.kv.Del(ctx, keys...); err != nil {
		return fmt.Errorf("failed to drop snapshot keys: %w", err)
	}
	return nil
}
