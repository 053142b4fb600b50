package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Live-to-Role/grimoire/internal/config"
	"github.com/Live-to-Role/grimoire/internal/database"
	"github.com/Live-to-Role/grimoire/internal/fs"
	"github.com/Live-to-Role/grimoire/internal/library"
	"github.com/Live-to-Role/grimoire/internal/trash"
)

// App is the application layer between the CLI/HTTP server and the library
// Service. It constructs all dependencies from config and manages their
// lifecycle on Close.
type App struct {
	cfg     *config.Config
	store   *database.SQLiteStore
	service *library.Service
	logger  *slog.Logger
	logFile *os.File
}

// NewApp creates a fully wired App from the given config.
// The caller must call Close when done.
func NewApp(cfg *config.Config) (*App, error) {
	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	// Catches a database written by a newer binary, which MigrateUp alone
	// would leave in place silently.
	if err := store.CheckMigrations(); err != nil {
		store.Close()
		return nil, fmt.Errorf("checking database schema: %w", err)
	}

	tr, err := trash.NewTrashFromConfig(context.Background(), cfg.Trash)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating trash: %w", err)
	}

	logger, logFile, err := newLogger(cfg.LogDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	svc := library.NewService(
		store,
		fs.NewOSFilesystemManager(),
		tr,
		&slogAdapter{l: logger},
		library.RealClock{},
		library.UUIDGenerator{},
		cfg.Scan.Extensions,
	)

	if err := svc.EnsureDefaultRules(); err != nil {
		logFile.Close()
		store.Close()
		return nil, fmt.Errorf("seeding default rules: %w", err)
	}

	return &App{
		cfg:     cfg,
		store:   store,
		service: svc,
		logger:  logger,
		logFile: logFile,
	}, nil
}

// Service returns the wired library service.
func (a *App) Service() *library.Service { return a.service }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// ServiceLogger returns the application logger behind the library.Logger
// interface, for components wired against the service layer.
func (a *App) ServiceLogger() library.Logger { return &slogAdapter{l: a.logger} }

// Config returns the loaded configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Close releases all resources.
func (a *App) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
