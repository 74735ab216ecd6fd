// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/partnerhub/notify/internal/admin"
	"github.com/partnerhub/notify/internal/config"
	"github.com/partnerhub/notify/internal/dispatch"
	"github.com/partnerhub/notify/internal/domain"
	"github.com/partnerhub/notify/internal/email"
	emailpostgres "github.com/partnerhub/notify/internal/email/postgres"
	"github.com/partnerhub/notify/internal/email/smtp"
	"github.com/partnerhub/notify/internal/inbox"
	inboxpostgres "github.com/partnerhub/notify/internal/inbox/postgres"
	outboxpostgres "github.com/partnerhub/notify/internal/outbox/postgres"
	"github.com/partnerhub/notify/internal/pkg/ctxlog"
	"github.com/partnerhub/notify/internal/pkg/httputil"
	"github.com/partnerhub/notify/internal/pkg/metrics"
	"github.com/partnerhub/notify/internal/pkg/postgres"
	"github.com/partnerhub/notify/internal/prefs"
	prefspostgres "github.com/partnerhub/notify/internal/prefs/postgres"
	"github.com/partnerhub/notify/internal/version"
	"github.com/partnerhub/notify/migrations"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	sweeper       *email.Sweeper
	coalescer     *email.Coalescer
	dispatcher    *dispatch.Dispatcher
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	if cfg.Database.MigrateOnStart {
		if err := runMigrations(cfg.Database.URL); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, err := app.setupRouter(metricsCtx)
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application. Background delivery stops
// before the servers so no flush races a closing database pool.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.coalescer != nil {
		// Open batching windows flush now instead of being lost; anything
		// that cannot be sent stays in the outbox for the next start.
		a.coalescer.Shutdown()
	}

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) collectOutboxMetrics(ctx context.Context, repo *outboxpostgres.Repository) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := repo.Stats(ctx)
			if err != nil {
				slog.Error("failed to get outbox stats", "error", err)
				continue
			}
			email.RecordOutboxStats(stats)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Dispatcher returns the event dispatcher. Used by tests to trigger
// fan-outs directly.
func (a *App) Dispatcher() *dispatch.Dispatcher {
	return a.dispatcher
}

// Coalescer returns the batching coalescer. Used by tests to inspect
// pending accumulators.
func (a *App) Coalescer() *email.Coalescer {
	return a.coalescer
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	outboxRepo := outboxpostgres.NewRepository(a.db)
	inboxRepo := inboxpostgres.NewRepository(a.db)
	prefsRepo := prefspostgres.NewRepository(a.db)
	resolver := emailpostgres.NewAddressResolver(a.db)

	prefsService := prefs.NewService(prefsRepo)
	inboxService := inbox.NewService(inboxRepo)

	sender, err := smtp.NewSender(smtp.Config{
		Enabled:     a.config.Notifications.Email.Enabled,
		Host:        a.config.Notifications.Email.SMTPHost,
		Port:        a.config.Notifications.Email.SMTPPort,
		User:        a.config.Notifications.Email.SMTPUser,
		Password:    a.config.Notifications.Email.SMTPPass,
		FromAddress: a.config.Notifications.Email.FromAddress,
		RateLimit:   a.config.Notifications.Email.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("create smtp sender: %w", err)
	}
	if !a.config.Notifications.Email.Enabled {
		slog.Warn("smtp sender is disabled: email deliveries will be acknowledged without sending")
	}

	overrides := make(map[domain.EventType]time.Duration, len(a.config.Notifications.Batching.Windows))
	for name, window := range a.config.Notifications.Batching.Windows {
		overrides[domain.EventType(name)] = window
	}
	policy := email.NewPolicy(overrides)

	deliverer := email.NewDeliverer(outboxRepo, resolver, sender, a.config.Notifications.Email.SendTimeout)
	a.coalescer = email.NewCoalescer(deliverer, nil)

	a.sweeper = email.NewSweeper(email.SweeperConfig{
		Interval:  a.config.Notifications.Sweeper.Interval,
		BatchSize: a.config.Notifications.Sweeper.BatchSize,
	}, outboxRepo, deliverer)
	a.sweeper.Start(ctx)

	go a.collectOutboxMetrics(ctx, outboxRepo)

	a.dispatcher = dispatch.NewDispatcher(inboxRepo, outboxRepo, prefsService, policy, deliverer, a.coalescer)

	adminService := admin.NewService(outboxRepo, deliverer, a.dispatcher)
	adminHandler := admin.NewHandler(adminService)
	inboxHandler := inbox.NewHandler(inboxService)
	prefsHandler := prefs.NewHandler(prefsService)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httputil.UserMiddleware)

			inboxHandler.RegisterRoutes(r)
			prefsHandler.RegisterRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(httputil.AdminTokenMiddleware(a.config.Admin.Token))

			adminHandler.RegisterRoutes(r)
		})
	})

	return r, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func runMigrations(databaseURL string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
