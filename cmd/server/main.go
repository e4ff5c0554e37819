// Command server runs the classhive data-access service: it owns the
// database pool, applies migrations, exposes health and debug endpoints and
// wires the per-tenant repository registry.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/arl/statsviz"
	"github.com/exaring/otelpgx"
	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "go.uber.org/automaxprocs"

	"github.com/classhive/classhive/internal/infra/metrics"
	"github.com/classhive/classhive/internal/infra/storage/registry"
	"github.com/classhive/classhive/pkg/common/logger"
	"github.com/classhive/classhive/pkg/common/otel"
)

const serviceName = "classhive-core"

func main() {
	log := logger.New(os.Stdout, logger.LevelInfo, serviceName, otel.GetTraceID)

	ctx := context.Background()
	if err := run(ctx, log); err != nil {
		log.Error(ctx, "startup failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := loadConfig()

	// Telemetry first so everything below inherits the providers.
	tp, otelShutdown, err := otel.InitTelemetry(log, otel.Config{
		ServiceName:      serviceName,
		ExporterEndpoint: cfg.otlpEndpoint,
		ExcludedRoutes: map[string]struct{}{
			"/v1/health":    {},
			"/v1/readiness": {},
		},
		Probability: cfg.traceProbability,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		otelShutdown(shutdownCtx)
	}()
	tracer := tp.Tracer(serviceName)

	poolCfg, err := pgxpool.ParseConfig(cfg.dsn)
	if err != nil {
		return fmt.Errorf("parsing db config: %w", err)
	}
	poolCfg.MinConns = 5
	poolCfg.MaxConns = 20
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("opening db pool: %w", err)
	}
	defer pool.Close()

	if err := runMigrations(pool, cfg.migrationsPath); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info(ctx, "migrations applied")

	metricsRegistry, err := metrics.NewRegistry(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	repos, err := registry.New(pool, tracer,
		registry.WithMetrics(metricsRegistry.RepoLookup),
		registry.WithStoreMetrics(metricsRegistry.Storage),
	)
	if err != nil {
		return fmt.Errorf("initializing repository registry: %w", err)
	}

	healthServer := &http.Server{
		Addr:         cfg.httpAddr,
		Handler:      otelhttp.NewHandler(healthMux(pool), "health"),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	debugServer := &http.Server{
		Addr:    cfg.debugAddr,
		Handler: debugMux(repos),
	}

	serverErrors := make(chan error, 2)
	go func() {
		log.Info(ctx, "health server listening", "addr", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	go func() {
		log.Info(ctx, "debug server listening", "addr", debugServer.Addr)
		if err := debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Info(ctx, "shutdown started", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health server shutdown: %w", err)
	}
	if err := debugServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("debug server shutdown: %w", err)
	}

	log.Info(ctx, "shutdown complete")
	return nil
}

type config struct {
	dsn              string
	httpAddr         string
	debugAddr        string
	otlpEndpoint     string
	traceProbability float64
	migrationsPath   string
}

func loadConfig() config {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := envDefault("POSTGRES_USER", "postgres")
		password := envDefault("POSTGRES_PASSWORD", "postgres")
		host := envDefault("POSTGRES_HOST", "postgres")
		dbname := envDefault("POSTGRES_DB", "classhive")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:5432/%s?sslmode=disable", user, password, host, dbname)
	}

	probability := 0.05
	if p, err := strconv.ParseFloat(os.Getenv("TRACE_PROBABILITY"), 64); err == nil {
		probability = p
	}

	return config{
		dsn:              dsn,
		httpAddr:         envDefault("HTTP_ADDR", ":8080"),
		debugAddr:        envDefault("DEBUG_ADDR", ":6060"),
		otlpEndpoint:     envDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		traceProbability: probability,
		migrationsPath:   envDefault("MIGRATIONS_PATH", "db/migrations"),
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// healthMux serves the liveness and readiness probes. Readiness pings the
// pool so the service stops receiving traffic when the database is gone.
func healthMux(pool *pgxpool.Pool) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"up"}`))
	})

	mux.HandleFunc("/v1/readiness", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"down","reason":"database unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"up"}`))
	})

	return mux
}

// debugMux serves runtime visualization plus the repository cache admin
// endpoint used when a tenant's configuration changes.
func debugMux(repos *registry.Registry) *http.ServeMux {
	mux := http.NewServeMux()

	_ = statsviz.Register(mux)

	mux.HandleFunc("/debug/registry/evict", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if tenantID := r.URL.Query().Get("tenant_id"); tenantID != "" {
			repos.ClearTenant(tenantID)
		} else {
			repos.Clear()
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

// runMigrations applies all up migrations through a database handle opened
// from the pool, so migration traffic shares the pool's configuration.
func runMigrations(pool *pgxpool.Pool, path string) error {
	db := stdlib.OpenDBFromPool(pool)

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
