package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	gootel "go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/neomorfeo/taxireg/internal/adapter/compliance"
	csvadapter "github.com/neomorfeo/taxireg/internal/adapter/csv"
	"github.com/neomorfeo/taxireg/internal/adapter/email"
	"github.com/neomorfeo/taxireg/internal/adapter/fsm"
	handler "github.com/neomorfeo/taxireg/internal/adapter/http"
	oteladapter "github.com/neomorfeo/taxireg/internal/adapter/otel"
	redisadapter "github.com/neomorfeo/taxireg/internal/adapter/redis"
	riveradapter "github.com/neomorfeo/taxireg/internal/adapter/river"
	s3adapter "github.com/neomorfeo/taxireg/internal/adapter/s3"
	"github.com/neomorfeo/taxireg/internal/adapter/sqlite"
	"github.com/neomorfeo/taxireg/internal/app"
	"github.com/neomorfeo/taxireg/internal/domain"
	"github.com/neomorfeo/taxireg/internal/platform/config"
	"github.com/neomorfeo/taxireg/internal/platform/logger"
	"github.com/neomorfeo/taxireg/internal/platform/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()

	if err != nil {
		logger.Error("taxireg stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("stopped")
	_ = logger.Sync()
}

func run(ctx context.Context, cfg *config.Config) error {
	// --- Telemetry ---
	providers, err := oteladapter.Setup(ctx, oteladapter.ConfigFrom(cfg.Otel))
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer shutdownWithTimeout(cfg.Server.ShutdownTimeout, "otel", providers.Shutdown)

	metrics, err := oteladapter.NewJobMetrics(gootel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Adapters (out) ---
	db, err := oteladapter.OpenDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	store, err := sqlite.NewFromDB(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("database: %w", err)
	}
	defer store.Close()

	licences := oteladapter.NewTracingLicenceRepository(store.Licences())
	jobs := oteladapter.NewTracingJobRepository(store.Jobs())
	authorities := store.Authorities()

	s3Store, err := s3adapter.New(ctx, cfg.S3)
	if err != nil {
		return fmt.Errorf("object storage: %w", err)
	}
	objects := oteladapter.NewTracingObjectStore(s3Store)

	registerOpts := []app.RegisterServiceOption{app.WithMetrics(metrics)}
	lookupCache, err := newLookupCache(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if lookupCache != nil {
		defer lookupCache.Close()
		registerOpts = append(registerOpts, app.WithLicenceCache(lookupCache))
	}
	if c := compliance.New(cfg.Compliance); c != nil {
		registerOpts = append(registerOpts, app.WithComplianceCache(c))
	} else {
		logger.Info("compliance cache purge disabled")
	}

	var sender domain.EmailSender
	if s := email.NewSMTP(cfg.Email); s != nil {
		sender = s
	} else {
		logger.Info("validation error emails disabled")
	}

	// --- Application ---
	supervisor := app.NewJobSupervisor(jobs, authorities, fsm.New(), metrics)
	services := app.Services{
		Converter:  app.NewConverter(),
		Sentinel:   app.NewSecuritySentinel(authorities),
		Supervisor: supervisor,
		Register:   app.NewRegisterService(app.NewContextBuilder(authorities, licences), licences, registerOpts...),
	}

	// --- Background processing ---
	riverClient, err := riveradapter.Setup(ctx, db, supervisor, cfg.Worker)
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("river start: %w", err)
	}
	defer shutdownWithTimeout(cfg.Server.ShutdownTimeout, "river", riverClient.Stop)

	pools, err := worker.NewPools(context.WithoutCancel(ctx), worker.PoolConfig{
		RegistrationPoolSize: cfg.Worker.PoolSize,
		ReleaseTimeout:       worker.DefaultPoolConfig().ReleaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("worker pools: %w", err)
	}
	defer pools.Shutdown()

	registrar := app.NewRegistrar(services, objects, csvadapter.NewParser(),
		app.NewValidationErrorsNotifier(sender), riveradapter.NewQueue(riverClient), pools,
		app.RegistrarConfig{
			MaxErrorsCount:   cfg.Registration.MaxErrorsCount,
			MaxLicencesCount: cfg.API.MaxLicencesCount,
			API: app.APISettings{
				CleanupThreshold: cfg.API.CleanupThreshold,
				CleanupDelay:     cfg.API.CleanupDelay,
				AuditBucket:      cfg.API.AuditBucket,
			},
		})

	// --- Adapters (in) ---
	router := newRouter(cfg.Otel.ServiceName, cfg.Otel.ServiceVersion, handler.Services{
		Registrar: registrar,
		Reporter:  app.NewReportingService(store.Events(), authorities),
		Lookup:    app.NewLookupService(licences, authorities, cacheOrNil(lookupCache)),
		History:   app.NewHistoryService(store.Events()),
	})

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("taxireg listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	shutdownWithTimeout(cfg.Server.ShutdownTimeout, "http server", srv.Shutdown)
	return nil
}

// newRouter builds the HTTP handler with middleware and every API route.
func newRouter(serviceName, version string, svc handler.Services) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(router)))
	router.Use(handler.RequestLogger)
	router.Use(middleware.Recoverer)

	api := humachi.New(router, huma.DefaultConfig(serviceName, version))
	handler.Register(api, svc)
	return router
}

// newLookupCache returns nil when no Redis URL is configured.
func newLookupCache(ctx context.Context, cfg config.RedisConfig) (*redisadapter.Cache, error) {
	cache, err := redisadapter.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cache == nil {
		logger.Info("licence lookup cache disabled")
	}
	return cache, nil
}

// cacheOrNil keeps a disabled cache a nil interface.
func cacheOrNil(cache *redisadapter.Cache) domain.LicenceCache {
	if cache == nil {
		return nil
	}
	return cache
}

func shutdownWithTimeout(timeout time.Duration, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Warn("shutdown error", zap.String("component", name), zap.Error(err))
	}
}
