package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/bazaar-ticketing/internal/api/dto"
	httptransport "github.com/spec-kit/bazaar-ticketing/internal/api/http"
	"github.com/spec-kit/bazaar-ticketing/internal/api/http/handlers"
	"github.com/spec-kit/bazaar-ticketing/internal/auth"
	"github.com/spec-kit/bazaar-ticketing/internal/cache"
	"github.com/spec-kit/bazaar-ticketing/internal/config"
	"github.com/spec-kit/bazaar-ticketing/internal/domain"
	"github.com/spec-kit/bazaar-ticketing/internal/events"
	"github.com/spec-kit/bazaar-ticketing/internal/export"
	"github.com/spec-kit/bazaar-ticketing/internal/observability"
	"github.com/spec-kit/bazaar-ticketing/internal/persistence"
	"github.com/spec-kit/bazaar-ticketing/internal/repository"
	"github.com/spec-kit/bazaar-ticketing/internal/service"
	"github.com/spec-kit/bazaar-ticketing/internal/storage"
	"github.com/spec-kit/bazaar-ticketing/internal/worker"
)

type repositories struct {
	units   repository.UnitRepository
	users   repository.UserRepository
	tickets repository.TicketRepository
	reports repository.ReportRepository
}

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

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var reportCache cache.Cache = cache.Noop{}
	if redis.Enabled() {
		reportCache = cache.NewRedisCache(redis.Client, cfg.App.Name+":")
	}

	assets, err := newAssetStore(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to init asset storage", zap.Error(err))
	}

	repos := newRepositories(pg)
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartActivityWorker(service.NewActivityService(dispatcher, logger))

	directory := service.NewDirectoryService(repos.units)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:     repos.users,
		Directory:    directory,
		TokenManager: tokens,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   repos.tickets,
		UserRepo:     repos.users,
		Directory:    directory,
		Dispatcher:   dispatcher,
		IDMaxRetries: cfg.Tickets.IDMaxRetries,
	})
	reportService := service.NewReportService(service.ReportDependencies{
		ReportRepo: repos.reports,
		Directory:  directory,
		Cache:      reportCache,
		Dispatcher: dispatcher,
		Logger:     logger,
		Config:     cfg.Reports,
	})

	if err := bootstrap(ctx, cfg, directory, authService, logger); err != nil {
		logger.Fatal("failed to bootstrap directory", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: int(cfg.Storage.MaxUploadBytes)*10 + 1024*1024,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:            cfg.App.RequestTimeout(),
		RateLimitPerSecond: cfg.App.RateLimitPerSecond,
		RateLimitBurst:     cfg.App.RateLimitBurst,
	})

	validator := dto.NewValidator()
	exporter := export.NewExporter(cfg.Export.Location())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(authService, validator),
		Tickets:        handlers.NewTicketsHandler(ticketService, storage.NewUploader(assets, cfg.Storage), exporter, validator),
		Reports:        handlers.NewReportsHandler(reportService, exporter, validator),
		Assets:         handlers.NewAssetsHandler(assets),
		Units:          handlers.NewUnitsHandler(directory, validator),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, repos.users),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func newRepositories(pg *persistence.Postgres) repositories {
	if !pg.Enabled() {
		return repositories{
			units:   repository.NewMemoryUnitRepository(),
			users:   repository.NewMemoryUserRepository(),
			tickets: repository.NewMemoryTicketRepository(),
			reports: repository.NewMemoryReportRepository(),
		}
	}
	pool := pg.PoolHandle()
	return repositories{
		units:   repository.NewUnitRepository(pool),
		users:   repository.NewUserRepository(pool),
		tickets: repository.NewTicketRepository(pool),
		reports: repository.NewReportRepository(pool),
	}
}

func newAssetStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.AssetStore, error) {
	if cfg.Driver == "minio" {
		store, err := storage.NewMinioStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logger.Info("asset storage ready", zap.String("driver", "minio"), zap.String("bucket", cfg.MinioBucket))
		return store, nil
	}
	store, err := storage.NewLocalStore(cfg.LocalDir)
	if err != nil {
		return nil, err
	}
	logger.Info("asset storage ready", zap.String("driver", "local"), zap.String("dir", cfg.LocalDir))
	return store, nil
}

// bootstrap creates the reviewer departments and the first superadmin.
func bootstrap(ctx context.Context, cfg *config.Config, directory *service.DirectoryService, authService *service.AuthService, logger *zap.Logger) error {
	departments, err := directory.EnsureDepartments(ctx,
		cfg.Reports.ITDepartment,
		cfg.Reports.MonitoringDepartment,
		cfg.Reports.OperationsDepartment,
	)
	if err != nil {
		return err
	}
	var home domain.UnitRef
	for _, dept := range departments {
		if dept.Name == cfg.Reports.ITDepartment {
			home = dept.Ref()
		}
	}
	created, err := authService.EnsureSuperAdmin(ctx, cfg.Auth.BootstrapName, cfg.Auth.BootstrapEmail, cfg.Auth.BootstrapPassword, home)
	if err != nil {
		return err
	}
	if created {
		logger.Info("bootstrap superadmin created", zap.String("email", cfg.Auth.BootstrapEmail))
	}
	return nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
