package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/parcel-tracker/internal/api/http"
	"github.com/spec-kit/parcel-tracker/internal/api/http/handlers"
	"github.com/spec-kit/parcel-tracker/internal/auth"
	"github.com/spec-kit/parcel-tracker/internal/config"
	"github.com/spec-kit/parcel-tracker/internal/events"
	"github.com/spec-kit/parcel-tracker/internal/observability"
	"github.com/spec-kit/parcel-tracker/internal/persistence"
	"github.com/spec-kit/parcel-tracker/internal/repository"
	"github.com/spec-kit/parcel-tracker/internal/route"
	"github.com/spec-kit/parcel-tracker/internal/service"
	"github.com/spec-kit/parcel-tracker/internal/worker"
)

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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rds := persistence.NewRedis(cfg.Redis, logger)
	defer rds.Close()

	metrics := observability.NewMetrics("parcel_tracker")

	pool := pg.PoolHandle()
	packageRepo := repository.NewPackageRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		AdminRepo: adminRepo,
	})

	dispatcher := events.NewInMemoryDispatcher()
	feed := events.NewChangeFeed(packageRepo, rds.Client, logger)
	go feed.Run(ctx)

	packageService := service.NewPackageService(service.PackageDependencies{
		PackageRepo: packageRepo,
		Cache:       rds.Client,
		CacheTTL:    cfg.Cache.TrackTTL(),
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	worker.RegisterInvalidationHandlers(dispatcher, feed, rds.Client, logger)
	worker.RegisterMetricsHandlers(dispatcher, metrics)

	optimizer := route.NewOptimizer(cfg.Optimizer, logger)
	gate := auth.NewSessionGate(cfg.Session.CookieName)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rds),
		Session:  handlers.NewSessionHandler(cfg.Session, cfg.App.IsProduction(), logger),
		Auth:     handlers.NewAuthHandler(authService),
		Packages: handlers.NewPackagesHandler(packageService, gate),
		Tracking: handlers.NewTrackingHandler(packageService, feed, logger),
		Routes:   handlers.NewRoutesHandler(optimizer),
		Gate:     gate,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
