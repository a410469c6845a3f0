package main

import (
	"context"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/propplyai/propply-ai-sub002/internal/config"
	"github.com/propplyai/propply-ai-sub002/internal/database"
	"github.com/propplyai/propply-ai-sub002/internal/events"
	"github.com/propplyai/propply-ai-sub002/internal/logger"
	"github.com/propplyai/propply-ai-sub002/internal/repository"
	"github.com/propplyai/propply-ai-sub002/internal/service"
	"github.com/propplyai/propply-ai-sub002/internal/store"
)

// Recomputes every property's snapshot from stored records. Run after
// changing a row in scoring_configs so persisted scores match the new policy.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "rebuild-scores")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer database.Close(db)

	redisClient := database.NewRedisClient(&cfg.Redis)
	defer redisClient.Close()
	cache := store.NewSnapshotCache(store.NewRedisKV(redisClient), cfg.Cache.TTL)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		publisher = events.NewStreamPublisher(redisClient, cfg.Events.Stream)
	}

	propertiesRepo := repository.NewPostgresPropertiesRepository(db)
	scoresRepo := repository.NewPostgresScoresRepository(db)
	configsRepo := repository.NewPostgresScoringConfigsRepository(db)

	scoreService := service.NewScoreService(
		propertiesRepo, scoresRepo,
		service.NewScorer(configsRepo, log),
		cache, publisher, log,
	)

	ctx := context.Background()

	// Drop stale cache entries first so no reader sees an old-policy score
	// while the rebuild is in flight.
	if err := cache.InvalidateAll(ctx); err != nil {
		log.Warn("Failed to invalidate snapshot cache", zap.Error(err))
	}

	ids, err := propertiesRepo.ListPropertyIDs(ctx)
	if err != nil {
		log.Fatal("Failed to list properties", zap.Error(err))
	}

	rebuilt, failed := 0, 0
	for _, id := range ids {
		if _, err := scoreService.RebuildScore(ctx, id); err != nil {
			failed++
			log.Error("Rebuild failed", zap.String("property_id", id), zap.Error(err))
			continue
		}
		rebuilt++
	}

	log.Info("Rebuild finished",
		zap.Int("properties", len(ids)),
		zap.Int("rebuilt", rebuilt),
		zap.Int("failed", failed),
	)
}
