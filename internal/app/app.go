package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"time"

	"course-mark-service/internal/assessment"
	"course-mark-service/internal/config"
	"course-mark-service/internal/course"
	"course-mark-service/internal/db"
	"course-mark-service/internal/gradebook"
	"course-mark-service/internal/health"
	"course-mark-service/internal/kafka"
	"course-mark-service/internal/logger"
	"course-mark-service/internal/messaging"
	"course-mark-service/internal/metrics"
	"course-mark-service/internal/middleware"
	"course-mark-service/internal/reporting"
	"course-mark-service/internal/student"
	"course-mark-service/internal/telemetry"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

const healthCheckInterval = 15 * time.Second

type App struct {
	config       *config.Config
	router       chi.Router
	server       *http.Server
	grpcServer   *grpc.Server
	healthServer *grpchealth.Server
	database     *bun.DB
	publisher    io.Closer
	telemetry    *telemetry.Telemetry
	logger       *slog.Logger
}

func New() *App {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version)

	// Set as default logger so slog.Info() uses the same handler
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application", "version", Version, "commit", GitCommit, "built", BuildTime)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)

	ctx := context.Background()

	tel, err := telemetry.Init(ctx, ServiceName, Version, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.Enabled, slogLogger)
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}

	app := &App{
		config:    cfg,
		router:    chi.NewRouter(),
		telemetry: tel,
		logger:    slogLogger,
	}

	database := db.New(cfg.Database)
	app.database = database

	if err := db.RunMigrations(ctx, database,
		(*student.Student)(nil),
		(*course.Course)(nil),
		(*assessment.Assessment)(nil),
		(*gradebook.Enrollment)(nil),
		(*gradebook.Mark)(nil),
	); err != nil {
		log.Fatal("failed to run migrations:", err)
	}

	if err := tel.Metrics.Database.RegisterDB(database.DB, otel.Meter(ServiceName)); err != nil {
		slogLogger.Warn("failed to register database pool metrics", "error", err)
	}

	studentRepo := student.NewRepository(database, tel.Metrics)
	assessmentRepo := assessment.NewRepository(database, tel.Metrics)
	store := gradebook.NewStore(database, tel.Metrics)

	publisher := app.newPublisher(tel.Metrics)

	markService := gradebook.NewService(store, studentRepo, assessmentRepo, publisher, slogLogger, tel.Metrics)
	markHandler := gradebook.NewHandler(markService, slogLogger)
	reportHandler := reporting.NewHandler(markService, slogLogger)

	app.router.Use(chimw.RequestID)
	app.router.Use(chimw.RealIP)
	app.router.Use(chimw.Recoverer)
	app.router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	healthHandler := health.NewHandler(map[string]health.Pinger{
		"database": func(ctx context.Context) error { return db.Ping(ctx, database) },
	})
	healthHandler.RegisterRoutes(app.router)

	app.router.Route("/api", func(r chi.Router) {
		markHandler.RegisterRoutes(r)
		reportHandler.RegisterRoutes(r)
	})

	if cfg.Grpc.Port != "" {
		app.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
		app.healthServer = grpchealth.NewServer()
		grpc_health_v1.RegisterHealthServer(app.grpcServer, app.healthServer)
		app.healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	}

	slogLogger.Info("application initialized successfully")

	return app
}

// newPublisher returns nil when events are off or the broker cannot be reached;
// marks are still committed, only the notifications are skipped.
func (a *App) newPublisher(m *metrics.Metrics) gradebook.Publisher {
	switch a.config.Events.Driver {
	case "nats":
		p, err := messaging.NewProducer(a.config.NATS.URL, a.config.NATS.Subject, a.logger, m)
		if err != nil {
			a.logger.Warn("failed to initialize NATS producer", "error", err)
			return nil
		}
		a.publisher = p
		return p
	case "kafka":
		p, err := kafka.NewProducer(a.config.Kafka.Brokers, a.config.Kafka.Topic, a.logger, m)
		if err != nil {
			a.logger.Warn("failed to initialize kafka producer", "error", err)
			return nil
		}
		a.publisher = p
		return p
	case "":
		a.logger.Info("mark events disabled")
		return nil
	default:
		a.logger.Warn("unknown events driver, mark events disabled", "driver", a.config.Events.Driver)
		return nil
	}
}

func (a *App) Run() error {
	if a.grpcServer != nil {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%s", a.config.Grpc.Port))
		if err != nil {
			return fmt.Errorf("failed to listen on gRPC port: %w", err)
		}
		go func() {
			a.logger.Info("gRPC health server starting", "port", a.config.Grpc.Port)
			if err := a.grpcServer.Serve(lis); err != nil {
				a.logger.Error("gRPC server error", "error", err)
			}
		}()
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// StartHealthChecks keeps the gRPC health status in line with the database
// until ctx is done.
func (a *App) StartHealthChecks(ctx context.Context) {
	if a.healthServer == nil {
		return
	}

	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := grpc_health_v1.HealthCheckResponse_SERVING
			if err := db.Ping(ctx, a.database); err != nil {
				a.logger.Warn("database health check failed", "error", err)
				status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			}
			a.healthServer.SetServingStatus("", status)
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	var shutdownErr error
	if a.server != nil {
		shutdownErr = a.server.Shutdown(ctx)
	}

	if a.grpcServer != nil {
		a.healthServer.Shutdown()
		a.grpcServer.GracefulStop()
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("event publisher close error", "error", err)
		}
	}

	if err := a.telemetry.Shutdown(ctx, a.logger); err != nil {
		a.logger.Error("telemetry shutdown error", "error", err)
	}

	db.Close(a.database)

	return shutdownErr
}
