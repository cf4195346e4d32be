package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/casaplus/listing-service/internal/api/http"
	"github.com/casaplus/listing-service/internal/api/http/handlers"
	"github.com/casaplus/listing-service/internal/auth"
	"github.com/casaplus/listing-service/internal/cache"
	"github.com/casaplus/listing-service/internal/config"
	"github.com/casaplus/listing-service/internal/events"
	"github.com/casaplus/listing-service/internal/observability"
	"github.com/casaplus/listing-service/internal/persistence"
	"github.com/casaplus/listing-service/internal/repository"
	"github.com/casaplus/listing-service/internal/repository/memory"
	"github.com/casaplus/listing-service/internal/repository/mongostore"
	"github.com/casaplus/listing-service/internal/service"
	"github.com/casaplus/listing-service/internal/storage"
	"github.com/casaplus/listing-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := map[string]handlers.Pinger{}

	store, closeStore := openStore(ctx, *cfg, logger, deps)
	defer closeStore()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()
	if redis.Enabled() {
		deps["redis"] = redis
	}

	images, uploadsDir := openImageStore(ctx, *cfg, logger)

	var metrics *observability.Metrics
	if cfg.HTTP.MetricsEnabled {
		metrics = observability.NewMetrics()
	}
	dispatcher := events.NewInMemoryDispatcher()

	var snapshotCache service.SnapshotCache
	if ttl := cfg.Stats.CacheTTL(); ttl > 0 && redis.Enabled() {
		snapshotCache = cache.NewJSONCache(redis.Client, cfg.App.Name+":statistics", ttl)
	}

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:     store.Users,
		PropertyRepo: store.Properties,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})
	propertyService := service.NewPropertyService(*cfg, service.PropertyDependencies{
		PropertyRepo: store.Properties,
		ImageStore:   images,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})
	statisticsService := service.NewStatisticsService(service.StatisticsDependencies{
		StatisticsRepo: store.Statistics,
		Cache:          snapshotCache,
		Metrics:        metrics,
		Logger:         logger,
	})

	worker.NewListingActivityWorker(dispatcher, statisticsService, logger.Named("listing-activity")).Start()

	authMiddleware := auth.NewAuthMiddleware(authService, store.Users, cfg.Auth.CookieName)

	app := httptransport.NewApp(*cfg, logger, metrics)
	routes := httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Users:          handlers.NewUsersHandler(authService, cfg.Auth.CookieName),
		Properties:     handlers.NewPropertiesHandler(propertyService),
		Statistics:     handlers.NewStatisticsHandler(statisticsService),
		AuthMiddleware: authMiddleware,
		UploadsDir:     uploadsDir,
	}
	if metrics != nil {
		routes.Metrics = metrics.Handler()
	}
	httptransport.RegisterRoutes(app, routes)

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("store", cfg.Store.Driver))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

// openStore connects the configured backend and registers its readiness check.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger, deps map[string]handlers.Pinger) (repository.Store, func()) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		deps["store"] = pg
		return repository.NewPostgresStore(pg.PoolHandle()), pg.Close

	case config.StoreDriverMongo:
		mg, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			logger.Fatal("failed to connect mongo", zap.Error(err))
		}
		if err := mongostore.EnsureIndexes(ctx, mg.DB); err != nil {
			logger.Fatal("failed to create mongo indexes", zap.Error(err))
		}
		if cfg.Mongo.MigrateLegacy {
			if _, err := mongostore.MigrateLegacyLocations(ctx, mg.DB, logger); err != nil {
				logger.Fatal("failed to migrate legacy locations", zap.Error(err))
			}
		}
		deps["store"] = mg
		return mongostore.NewStore(mg.DB), func() { mg.Close(context.Background()) }

	default:
		logger.Warn("using in-memory store; data is lost on restart")
		deps["store"] = handlers.PingFunc(func(context.Context) error { return nil })
		return memory.NewStore(), func() {}
	}
}

// openImageStore returns the image store and, for local storage, the
// directory to serve under /uploads.
func openImageStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.ImageStore, string) {
	if cfg.Storage.Driver == config.StorageDriverS3 {
		s3Store, err := storage.NewS3Store(ctx, cfg.Storage)
		if err != nil {
			logger.Fatal("failed to init s3 storage", zap.Error(err))
		}
		return s3Store, ""
	}

	local, err := storage.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL)
	if err != nil {
		logger.Fatal("failed to init local storage", zap.Error(err))
	}
	return local, local.Dir()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
