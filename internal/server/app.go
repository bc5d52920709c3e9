// Package server wires the sync daemon: it opens the database, applies the
// migrations, consumes the inbound queue through the reconciler and owns the
// publisher used for local mutations and exports.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/osissync/internal/catalog"
	"github.com/dmitrijs2005/osissync/internal/codec"
	"github.com/dmitrijs2005/osissync/internal/logging"
	"github.com/dmitrijs2005/osissync/internal/publisher"
	"github.com/dmitrijs2005/osissync/internal/queue"
	"github.com/dmitrijs2005/osissync/internal/reconciler"
	"github.com/dmitrijs2005/osissync/internal/repositories/repomanager"
	"github.com/dmitrijs2005/osissync/internal/schema"
	"github.com/dmitrijs2005/osissync/internal/server/config"
	"github.com/dmitrijs2005/osissync/internal/services"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	registry   *schema.Registry
	link       *link
	reconciler *reconciler.Reconciler
	records    *services.RecordService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger := logging.NewJSONLogger(level).With("deployment", c.Deployment)

	reg := catalog.NewRegistry()
	rm, err := repomanager.New(c.DatabaseDriver, reg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(rm.DriverName(), c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if rm.DriverName() == repomanager.DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	app := &App{config: c, logger: logger, db: db, registry: reg}

	var sender queue.Sender
	if c.AMQPURL != "" {
		app.link = newLink(c.AMQPURL, c.Prefetch, c.ReconnectDelay, logger)
		if _, err := app.link.connect(); err != nil {
			logger.Warn(ctx, "broker not reachable yet", "error", err)
		}
		if c.PublishEnabled {
			sender = app.link
		}
	}

	pub := publisher.New(codec.New(reg), sender, c.ProduceQueue, logger)
	app.records = services.NewRecordService(db, rm, reg, pub, logger)
	app.reconciler = reconciler.New(db, rm, reg, logger)

	return app, nil
}

func (app *App) Registry() *schema.Registry {
	return app.registry
}

// Records exposes the local write and export operations.
func (app *App) Records() *services.RecordService {
	return app.records
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run consumes the inbound queue until ctx is cancelled or a termination
// signal arrives, then releases the broker and the database.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "consume_queue", app.config.ConsumeQueue)
	app.initSignalHandler(cancelFunc)

	if app.link != nil {
		app.link.consume(ctx, app.config.ConsumeQueue, app.reconciler.HandleMessage)
	} else {
		app.logger.Warn(ctx, "no broker configured, nothing to consume")
		<-ctx.Done()
	}

	app.logger.Info(ctx, "Stopping app...")
	app.Close()
}

func (app *App) Close() {
	if app.link != nil {
		if err := app.link.Close(); err != nil {
			app.logger.Warn(context.Background(), "closing broker", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(context.Background(), "closing database", "error", err)
	}
}
