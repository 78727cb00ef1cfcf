// Package app wires a workspace directory into a ready-to-use engine.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"timeclock/internal/config"
	"timeclock/internal/db"
	"timeclock/internal/engine"
	"timeclock/internal/migrate"
	"timeclock/internal/notify"
)

type Options struct {
	Workspace string
	// ConfigPath overrides <workspace>/timeclock.yml when set.
	ConfigPath string
	Logger     *log.Logger
}

// App holds the engine for one workspace and the resources it owns.
type App struct {
	Engine engine.Engine
	Config *config.Config
	DB     *sql.DB

	webhooks *notify.WebhookSink
}

// Open opens (and migrates) the workspace database, loads its config and
// starts webhook delivery when webhooks are configured.
func Open(opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	e := engine.New(conn, cfg)
	e.Logger = logger
	a := &App{Engine: e, Config: cfg, DB: conn}
	if len(cfg.Notifications.Webhooks) > 0 {
		a.webhooks = notify.NewWebhookSink(cfg.Notifications.Webhooks, cfg.Notifications.QueueSize, logger)
		a.webhooks.Start()
		a.Engine.Notifier = a.webhooks
	}
	return a, nil
}

func loadConfig(opts Options) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.FromFile(opts.ConfigPath)
	}
	return config.LoadOptional(opts.Workspace)
}

// Close drains pending webhook deliveries until ctx ends, then closes the database.
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	if a.webhooks != nil {
		if err := a.webhooks.Close(ctx); err != nil {
			a.Engine.Logger.Printf("notify: %v", err)
			firstErr = err
		}
	}
	if err := a.DB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
