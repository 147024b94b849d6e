// Package server wires the catalog server together: database, migrations,
// object storage, services and the HTTP and gRPC endpoints. It also handles
// graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/vitaria/catalog/internal/logging"
	"github.com/vitaria/catalog/internal/server/auth"
	"github.com/vitaria/catalog/internal/server/config"
	gs "github.com/vitaria/catalog/internal/server/grpc"
	"github.com/vitaria/catalog/internal/server/httpapi"
	"github.com/vitaria/catalog/internal/server/reconcile"
	"github.com/vitaria/catalog/internal/server/repositories/repomanager"
	"github.com/vitaria/catalog/internal/server/services"
	"github.com/vitaria/catalog/internal/server/storage"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	handler http.Handler
}

// NewApp opens the database, applies migrations, bootstraps the first admin
// and builds the HTTP handler. Nothing listens until Run.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, slog.LevelInfo)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	observer, err := storage.NewPrometheusObserver("", registry)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage metrics: %w", err)
	}
	httpMetrics, err := httpapi.NewMetrics(registry)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("http metrics: %w", err)
	}

	s3Client, err := storage.NewClient(ctx, storage.Settings{
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
		UsePathStyle: c.S3UsePathStyle,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("s3 client error: %w", err)
	}

	issuer := storage.NewIssuer(storage.NewPresigner(s3Client), c.S3Bucket, c.UploadURLTTL, c.ViewURLTTL, observer, logger)
	deleter := storage.NewDeleter(s3Client, c.S3Bucket, observer, logger)
	reconciler := reconcile.New(deleter, logger)
	authz := auth.RoleAuthorizer{}

	users := services.NewUserService(db, rm, reconciler, authz, c, logger)
	if created, err := users.EnsureAdmin(ctx, c.AdminEmail, c.AdminPassword); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("admin bootstrap: %w", err)
	} else if created {
		logger.Warn(ctx, "bootstrap admin created; change its password", "email", c.AdminEmail)
	}

	h := httpapi.NewHandler(
		services.NewMediaService(db, rm, issuer, deleter, authz, logger),
		services.NewProductService(db, rm, reconciler, authz, logger),
		services.NewProfileService(db, rm, reconciler, authz, logger),
		users,
		services.NewActivityService(db, rm, authz, logger),
	)
	router := httpapi.NewRouter(h, httpapi.RouterOptions{
		Secret:         []byte(c.SecretKey),
		AllowedOrigins: c.CORSAllowedOrigins,
		Log:            logger,
		Metrics:        httpMetrics,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})

	return &App{config: c, logger: logger, db: db, handler: router}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.EndpointAddrHTTP)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run serves HTTP and gRPC until a signal arrives or either server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer func() { _ = app.db.Close() }()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.startHTTPServer(ctx) })
	g.Go(func() error {
		return gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.db).Run(ctx)
	})

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "server stopped with error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
	return err
}
