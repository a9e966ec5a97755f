package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/fiberorder/internal/activity"
	"github.com/matthewbaird/fiberorder/internal/catalog"
	"github.com/matthewbaird/fiberorder/internal/config"
	"github.com/matthewbaird/fiberorder/internal/event"
	"github.com/matthewbaird/fiberorder/internal/eventbus"
	"github.com/matthewbaird/fiberorder/internal/server"
	"github.com/matthewbaird/fiberorder/internal/session"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := sql.Open("sqlite", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	// Enable foreign keys explicitly, SQLite has them off by default.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enabling foreign keys: %w", err)
	}
	drv := entsql.OpenDB(dialect.SQLite, db)

	catalogStore := catalog.NewSQLStore(drv)
	if err := catalogStore.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating catalog: %w", err)
	}
	if cfg.CatalogFile != "" {
		c, err := catalog.LoadSeed(cfg.CatalogFile)
		if err != nil {
			return err
		}
		if err := catalogStore.Load(ctx, c); err != nil {
			return fmt.Errorf("loading catalog: %w", err)
		}
		logger.Info("catalog loaded",
			zap.String("file", cfg.CatalogFile),
			zap.Int("tariffs", len(c.Tariffs)),
			zap.Int("addresses", len(c.Addresses)))
	}

	activityStore := activity.NewSQLStore(drv)
	if err := activityStore.CreateTable(ctx); err != nil {
		return fmt.Errorf("creating activity table: %w", err)
	}
	logger.Info("database migrated successfully")

	bus := eventbus.New(cfg.EventBuffer, logger.Named("eventbus"))
	bus.Subscribe("log", eventbus.NewLogConsumer(logger.Named("events")))
	bus.Subscribe("signals", eventbus.NewSignalConsumer(logger.Named("signals")))
	bus.Start(ctx)
	defer bus.Stop()

	recorder := event.NewActivityRecorder(activityStore)
	recorder.SetPublisher(bus)

	sessions := session.NewManager(cfg.SessionOptions(), catalogStore, recorder, logger.Named("session"))
	go sessions.Run(ctx, cfg.Session.CleanupInterval)

	return server.Run(ctx, server.Config{
		Port:           cfg.Port,
		Sessions:       sessions,
		Catalog:        catalogStore,
		Activity:       activityStore,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
	})
}
