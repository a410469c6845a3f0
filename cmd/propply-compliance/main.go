package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/propplyai/propply-ai-sub002/internal/config"
	"github.com/propplyai/propply-ai-sub002/internal/database"
	"github.com/propplyai/propply-ai-sub002/internal/domain"
	"github.com/propplyai/propply-ai-sub002/internal/events"
	httpapi "github.com/propplyai/propply-ai-sub002/internal/http"
	"github.com/propplyai/propply-ai-sub002/internal/identity"
	"github.com/propplyai/propply-ai-sub002/internal/logger"
	"github.com/propplyai/propply-ai-sub002/internal/repository"
	"github.com/propplyai/propply-ai-sub002/internal/service"
	"github.com/propplyai/propply-ai-sub002/internal/sources"
	"github.com/propplyai/propply-ai-sub002/internal/store"
)

func main() {
	// Local dev convenience; in deployment the environment is already set.
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "propply-compliance")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}

	redisClient := database.NewRedisClient(&cfg.Redis)
	if err := database.PingRedis(context.Background(), redisClient); err != nil {
		// Cache and events degrade gracefully, so a dead Redis is not fatal.
		log.Warn("Redis unreachable at startup", zap.Error(err))
	}
	kv := store.NewRedisKV(redisClient)
	cache := store.NewSnapshotCache(kv, cfg.Cache.TTL)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		publisher = events.NewStreamPublisher(redisClient, cfg.Events.Stream)
	}

	propertiesRepo := repository.NewPostgresPropertiesRepository(db)
	recordsRepo := repository.NewPostgresRecordsRepository(db)
	cursorsRepo := repository.NewPostgresCursorsRepository(db)
	scoresRepo := repository.NewPostgresScoresRepository(db)
	dismissalsRepo := repository.NewPostgresDismissalsRepository(db)
	auditRepo := repository.NewPostgresAuditRepository(db)
	configsRepo := repository.NewPostgresScoringConfigsRepository(db)

	scorer := service.NewScorer(configsRepo, log)
	resolver := identity.NewResolver(cfg.Identity.ContaminationThreshold, log)

	socrataClient := sources.NewSocrataClient(cfg.Socrata, cfg.Sync, log)
	cartoClient := sources.NewCartoClient(cfg.Carto, cfg.Sync, log)
	adapters := map[domain.Municipality][]sources.Adapter{
		domain.MunicipalityNYC:          sources.NewNYCAdapters(socrataClient, cfg.Socrata),
		domain.MunicipalityPhiladelphia: sources.NewPhiladelphiaAdapters(cartoClient, cfg.Carto),
	}

	propertyService := service.NewPropertyService(propertiesRepo, log)
	syncService := service.NewSyncService(
		propertiesRepo, recordsRepo, cursorsRepo, scoresRepo,
		scorer, resolver, adapters, cfg.Sync.AdapterTimeout,
		cache, publisher, log,
	)
	scoreService := service.NewScoreService(
		propertiesRepo, scoresRepo,
		scorer, cache, publisher, log,
	)
	findingService := service.NewFindingService(propertiesRepo, recordsRepo, log)
	dismissalService := service.NewDismissalService(
		recordsRepo, propertiesRepo, dismissalsRepo, auditRepo,
		scorer, cache, publisher, log,
	)

	router := httpapi.NewRouter(log)
	router.RegisterComplianceRoutes(
		httpapi.NewPropertyHandler(propertyService, syncService, scoreService, findingService, log),
		httpapi.NewFindingHandler(findingService, dismissalService, log),
	)
	router.RegisterHealthRoute(db.PingContext, func(ctx context.Context) error {
		return database.PingRedis(ctx, redisClient)
	})

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("HTTP server stopped", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	_ = redisClient.Close()
	_ = database.Close(db)
}
