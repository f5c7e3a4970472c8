package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"membership-backup/internal/backup"
	"membership-backup/internal/database"
	"membership-backup/internal/execution"
	"membership-backup/internal/logging"
)

// engine bundles the wired components a command operates on
type engine struct {
	config    *backup.EngineConfig
	logger    *logging.Logger
	db        *sql.DB
	dbService *database.Service

	registry *backup.Registry
	markers  *backup.MarkerStore
	ledger   *backup.Ledger
	store    *backup.ArtifactStore
	runner   *backup.Runner
	restorer *backup.Restorer
}

// newEngine connects to the database and wires the full engine from the
// resolved configuration.
func newEngine() (*engine, error) {
	config, err := buildConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(config)
	if err != nil {
		return nil, err
	}

	dbService := database.NewServiceWithLogger(logger)
	db, err := dbService.Connect(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	markers, err := backup.NewMarkerStore(config.StorageRoot)
	if err != nil {
		dbService.Close(db)
		return nil, err
	}

	ledger, err := backup.NewLedger(filepath.Join(config.StorageRoot, "backup_history.json"), config.HistoryLimit)
	if err != nil {
		dbService.Close(db)
		return nil, err
	}

	store, err := backup.NewArtifactStore(config.StorageRoot)
	if err != nil {
		dbService.Close(db)
		return nil, err
	}

	registry := backup.NewRegistry()
	notifier := backup.NewNotifier(config.Notification, logger)

	var opts []backup.RunnerOption
	if config.Mirror.Enabled() {
		mirror, err := backup.NewArtifactMirror(context.Background(), &config.Mirror)
		if err != nil {
			logger.Warnf("Offsite mirror disabled: %v", err)
		} else if mirror != nil {
			opts = append(opts, backup.WithMirror(mirror))
		}
	}

	runner := backup.NewRunner(config, db, registry, markers, ledger, store, notifier, logger, opts...)

	executor := execution.NewExecutor(logger,
		execution.WithBinaries(config.Tools.Mysqldump, config.Tools.Mysql),
		execution.WithTimeouts(config.Timeouts.Dump, config.Timeouts.Restore))
	restorer := backup.NewRestorer(config, registry, store, executor, logger)

	return &engine{
		config:    config,
		logger:    logger,
		db:        db,
		dbService: dbService,
		registry:  registry,
		markers:   markers,
		ledger:    ledger,
		store:     store,
		runner:    runner,
		restorer:  restorer,
	}, nil
}

// Close releases the engine's database connection
func (e *engine) Close() error {
	return e.dbService.Close(e.db)
}
