package backup

import (
	"context"
	"fmt"
	"time"

	"membership-backup/internal/execution"
	"membership-backup/internal/logging"
)

// Restorer replays a stored statement log into the target database through
// the mysql client. A restore occupies the same job slot as backup runs, so
// the two can never interleave.
type Restorer struct {
	config   *EngineConfig
	registry *Registry
	store    *ArtifactStore
	executor *execution.Executor
	logger   *logging.Logger
}

// NewRestorer creates a restore service
func NewRestorer(config *EngineConfig, registry *Registry, store *ArtifactStore,
	executor *execution.Executor, logger *logging.Logger) *Restorer {
	return &Restorer{
		config:   config,
		registry: registry,
		store:    store,
		executor: executor,
		logger:   logger,
	}
}

// Restore replays the named statement log. The artifact is resolved before
// the job slot is claimed, so asking for a missing artifact never blocks a
// later backup. The target database is created when absent; the log is then
// streamed through the mysql client.
func (r *Restorer) Restore(ctx context.Context, artifactName string) error {
	path, err := r.store.Resolve(artifactName)
	if err != nil {
		return err
	}

	jobID, err := r.registry.TryStart(RunTypeRestore)
	if err != nil {
		return err
	}

	start := time.Now()
	var restoreErr error
	defer func() {
		if p := recover(); p != nil {
			restoreErr = fmt.Errorf("restore panicked: %v", p)
		}
		r.registry.Finish(restoreErr == nil, restoreErr)
		r.logger.LogRestore(artifactName, time.Since(start), restoreErr)
	}()

	r.logger.LogRunStart(jobID, string(RunTypeRestore))

	r.registry.UpdateProgress("preparing database", 20)
	if err := r.executor.EnsureDatabase(ctx, r.config.Database); err != nil {
		restoreErr = NewExecutionError("failed to prepare target database", err)
		return restoreErr
	}

	r.registry.UpdateProgress("replaying statement log", 50)
	if err := r.executor.Apply(ctx, r.config.Database, path); err != nil {
		restoreErr = NewExecutionError("failed to replay statement log", err)
		return restoreErr
	}

	r.registry.UpdateProgress("restore complete", 100)
	return nil
}
