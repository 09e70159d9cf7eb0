// Package server initializes and runs the ingestion backend: it opens the
// database, applies migrations, connects the object store and serves the
// HTTP API until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/love-developer/eras/internal/logging"
	"github.com/love-developer/eras/internal/server/config"
	"github.com/love-developer/eras/internal/server/httpapi"
	"github.com/love-developer/eras/internal/server/objectstore"
	"github.com/love-developer/eras/internal/server/repositories/repomanager"
	"github.com/love-developer/eras/internal/server/services"
)

// purgeInterval is how often expired upload sessions are reaped.
const purgeInterval = 15 * time.Minute

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	uploads *services.UploadService
	handler http.Handler
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, slog.LevelInfo)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := objectstore.NewS3Store(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	ms := services.NewMediaService(db, rm, store, c)
	us := services.NewUploadService(db, rm, store, c)
	cs := services.NewCapsuleService(db, rm)

	h := httpapi.NewHandler(ms, us, cs, c, logger)

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		uploads: us,
		handler: httpapi.NewRouter(c, h),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "http shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.EndpointAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		app.logger.Error(ctx, "http server error", "error", err)
		cancelFunc()
	}
}

func (app *App) startSessionReaper(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.uploads.PurgeExpired(ctx)
			if err != nil {
				app.logger.Error(ctx, "purge expired sessions", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "purged expired upload sessions", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startSessionReaper(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
