package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
	"github.com/propplyai/propply-ai-sub002/internal/events"
	"github.com/propplyai/propply-ai-sub002/internal/store"
)

// notifier fans a freshly stored snapshot out to the cache and the score
// event stream. Both writes are best-effort: by the time it runs the
// snapshot is already durable in Postgres.
type notifier struct {
	cache     *store.SnapshotCache
	publisher events.Publisher
	logger    *zap.Logger
}

func newNotifier(cache *store.SnapshotCache, publisher events.Publisher, logger *zap.Logger) *notifier {
	return &notifier{cache: cache, publisher: publisher, logger: logger}
}

func (n *notifier) snapshotStored(ctx context.Context, snapshot *domain.ScoreSnapshot, trigger string) {
	if err := n.cache.Set(ctx, snapshot); err != nil {
		n.logger.Warn("snapshot cache write failed",
			zap.String("property_id", snapshot.PropertyID),
			zap.Error(err),
		)
	}
	if err := n.publisher.PublishScoreEvent(ctx, events.NewScoreEvent(snapshot, trigger)); err != nil {
		n.logger.Warn("score event publish failed",
			zap.String("property_id", snapshot.PropertyID),
			zap.Error(err),
		)
	}
}
