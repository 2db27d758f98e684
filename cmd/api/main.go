package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/invenops/ticketing/internal/api/http"
	"github.com/invenops/ticketing/internal/api/http/handlers"
	"github.com/invenops/ticketing/internal/auth"
	"github.com/invenops/ticketing/internal/config"
	"github.com/invenops/ticketing/internal/events"
	"github.com/invenops/ticketing/internal/observability"
	"github.com/invenops/ticketing/internal/persistence"
	"github.com/invenops/ticketing/internal/repository"
	"github.com/invenops/ticketing/internal/service"
	"github.com/invenops/ticketing/internal/session"
	"github.com/invenops/ticketing/internal/worker"
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

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	dispatcher := events.NewInMemoryDispatcher()

	ticketService := service.NewTicketService(service.Dependencies{
		TicketRepo:    repository.NewTicketRepository(pool),
		MessageRepo:   repository.NewMessageRepository(pool),
		DirectoryRepo: repository.NewDirectoryRepository(pool),
		NameCache:     redis,
		NameCacheTTL:  cfg.Sync.DirectoryCacheTTL(),
		Dispatcher:    dispatcher,
	})

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	sessions := session.NewManager(ticketService, logger, cfg.Sync.SessionIdleTTL())
	sessions.RegisterHandlers(dispatcher)
	defer sessions.Close()

	scheduler := worker.NewSyncScheduler(sessions, logger, cfg.Sync.PollInterval(), cfg.Sync.RefreshTimeout())
	if err := scheduler.Start(); err != nil {
		logger.Fatal("failed to start sync scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	authMiddleware := auth.NewMiddleware(auth.NewTokenVerifier(cfg.Auth.JWTSecret))

	app := fiber.New()
	metrics := observability.NewMetrics()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		View:           handlers.NewViewHandler(sessions),
		AuthMiddleware: authMiddleware,
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
