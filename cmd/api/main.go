package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"

	"svckit/internal/async"
	"svckit/internal/config"
	"svckit/internal/database"
	"svckit/internal/database/migration"
	"svckit/internal/health"
	handlers "svckit/internal/http/handler"
	"svckit/internal/http/middleware"
	"svckit/internal/log"
	"svckit/internal/messaging"
	"svckit/internal/model"
	"svckit/internal/otel"
	"svckit/internal/repository/postgres"
	"svckit/internal/service"
	"svckit/internal/storage"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log.Configure(log.Config{Level: cfg.LogLevel, Service: "svckit"})
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize tracing")
	}
	defer shutdownTracing(context.Background())

	// Wait for the database: poll until the pool connects or the deadline passes.
	var db *sql.DB
	dbCtx, cancelDB := context.WithTimeout(ctx, time.Minute)
	err = async.Poll(dbCtx, 2*time.Second, func(context.Context) (bool, error) {
		var connErr error
		db, connErr = database.Connect(cfg.Database)
		if connErr != nil {
			logger.Warn().Err(connErr).Msg("database not ready")
			return false, nil
		}
		return true, nil
	})
	cancelDB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	objStore, err := storage.NewMinIO(cfg.ObjectStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize object storage")
	}

	// In-process bus with an audit subscriber that observes every event.
	bus := messaging.NewBus[model.Event](cfg.Events.BusBuffer)
	auditSub, err := bus.Subscribe(messaging.TopicAll)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to subscribe audit logger")
	}
	auditDone := messaging.NewCompletion[int]()
	go runAuditSubscriber(auditSub, auditDone)

	repo := postgres.NewEventPostgres(db)
	evSvc := service.NewEventService(objStore, repo, bus, cfg.Events.InlinePayloadMax)

	checks := health.NewRegistry(2 * time.Second)
	checks.Register("database", health.DatabasePing(db))
	checks.Register("object_store", health.ObjectStorePing(objStore))

	promReg := prometheus.NewRegistry()
	metrics, err := middleware.NewMetrics(promReg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to register metrics")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	go limiter.Janitor(ctx)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware. Order matters: request IDs first so every
	// later log line carries them, recovery before anything that can panic.
	app.Use(middleware.RequestID())
	app.Use(middleware.Recover())
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())
	app.Use(metrics.Handler())
	// Only the event API is rate limited; probes and metrics stay exempt.
	app.Use("/events", limiter.Handler())

	handlers.RegisterRoutes(app, checks, evSvc, promReg)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.Listen(":" + cfg.Port)
	}()
	logger.Info().Str("port", cfg.Port).Msg("server started")

	select {
	case err := <-serveErr:
		logger.Fatal().Err(err).Msg("server stopped unexpectedly")
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	// Drain the audit subscriber before exiting.
	bus.Close()
	if observed, err := auditDone.Await(shutCtx); err == nil {
		logger.Info().Int("events_observed", observed).Msg("audit subscriber drained")
	}
}

// runAuditSubscriber logs every event published on the bus and resolves
// done with the total once the bus closes.
func runAuditSubscriber(sub *messaging.Subscription[model.Event], done *messaging.Completion[int]) {
	auditLog := log.WithComponent("audit")
	observed := 0
	for env := range sub.C() {
		observed++
		ev := env.Data()
		auditLog.Info().
			Str("event_id", ev.ID).
			Str("event_type", ev.Type).
			Str("source", ev.Source).
			Bool("inline", ev.Inline()).
			Msg("event observed")
	}
	done.Resolve(observed)
}
