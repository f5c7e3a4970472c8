package backup

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"membership-backup/internal/execution"
	"membership-backup/internal/logging"
)

// Runner orchestrates backup runs end to end: claim the job slot, resolve
// the watermark, extract, generate artifacts, advance markers, record
// history, notify and mirror. Trigger is fire and forget; callers observe
// the run through the registry.
type Runner struct {
	config   *EngineConfig
	db       *sql.DB
	registry *Registry
	markers  *MarkerStore
	ledger   *Ledger
	store    *ArtifactStore
	executor *execution.Executor
	notifier *Notifier
	mirror   ArtifactMirror
	logger   *logging.Logger

	statements *StatementLogGenerator
	workbooks  *WorkbookGenerator
	reports    *ReportGenerator
}

// RunnerOption customizes a Runner
type RunnerOption func(*Runner)

// WithMirror attaches an offsite artifact mirror
func WithMirror(mirror ArtifactMirror) RunnerOption {
	return func(r *Runner) {
		r.mirror = mirror
	}
}

// WithExecutor overrides the external process executor
func WithExecutor(executor *execution.Executor) RunnerOption {
	return func(r *Runner) {
		r.executor = executor
	}
}

// NewRunner creates a backup runner
func NewRunner(config *EngineConfig, db *sql.DB, registry *Registry, markers *MarkerStore,
	ledger *Ledger, store *ArtifactStore, notifier *Notifier, logger *logging.Logger,
	opts ...RunnerOption) *Runner {

	r := &Runner{
		config:   config,
		db:       db,
		registry: registry,
		markers:  markers,
		ledger:   ledger,
		store:    store,
		notifier: notifier,
		logger:   logger,
		executor: execution.NewExecutor(logger,
			execution.WithBinaries(config.Tools.Mysqldump, config.Tools.Mysql),
			execution.WithTimeouts(config.Timeouts.Dump, config.Timeouts.Restore)),

		statements: NewStatementLogGenerator(),
		workbooks:  NewWorkbookGenerator(),
		reports:    NewReportGenerator(),
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry exposes the job registry for status observation
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Store exposes the artifact store
func (r *Runner) Store() *ArtifactStore {
	return r.store
}

// Ledger exposes the history ledger
func (r *Runner) Ledger() *Ledger {
	return r.ledger
}

// Trigger starts a backup run of the given type. It returns as soon as the
// job slot is claimed; the run itself proceeds in the background. A second
// trigger while a run is in flight returns the running job's id and a
// conflict error.
func (r *Runner) Trigger(runType RunType) (string, error) {
	if !runType.Valid() {
		return "", NewPreconditionError(fmt.Sprintf("unknown backup type %q", runType), nil)
	}

	jobID, err := r.registry.TryStart(runType)
	if err != nil {
		return jobID, err
	}

	r.logger.LogRunStart(jobID, string(runType))

	go r.run(jobID, runType)

	return jobID, nil
}

// run executes one backup end to end. The deferred recover guarantees the
// job slot is released no matter what fails.
func (r *Runner) run(jobID string, runType RunType) {
	start := time.Now()
	var runErr error

	defer func() {
		if p := recover(); p != nil {
			runErr = fmt.Errorf("backup run panicked: %v", p)
		}
		if runErr != nil {
			r.recordFailure(runType, runErr)
		}
		r.registry.Finish(runErr == nil, runErr)
		r.logger.LogRunFinish(jobID, string(runType), time.Since(start), runErr)
	}()

	ctx := context.Background()

	r.registry.UpdateProgress("resolving watermark", 10)
	watermark, err := r.resolveWatermark(runType)
	if err != nil {
		runErr = err
		return
	}

	r.registry.UpdateProgress("extracting tables", 20)
	snapshot, err := r.extract(ctx, watermark)
	if err != nil {
		runErr = err
		return
	}
	r.registry.UpdateProgress("extraction complete", 30)

	r.registry.UpdateProgress("writing statement log", 50)
	artifacts, err := r.generateStatementLog(ctx, runType, snapshot)
	if err != nil {
		runErr = err
		return
	}
	r.registry.UpdateProgress("statement log written", 60)

	r.registry.UpdateProgress("writing workbook", 75)
	r.generateWorkbook(runType, snapshot, artifacts)
	r.registry.UpdateProgress("writing report", 90)
	r.generateReport(runType, snapshot, artifacts)

	r.registry.UpdateProgress("finalizing", 95)
	if err := r.advanceMarkers(runType, snapshot.TakenAt); err != nil {
		runErr = err
		return
	}
	if err := r.recordSuccess(runType, artifacts); err != nil {
		runErr = err
		return
	}

	if err := r.notifier.NotifyCompletion(runType, artifacts); err != nil {
		r.logger.Warnf("Completion notification failed: %v", err)
	}
	r.mirrorArtifacts(ctx, artifacts)
}

// resolveWatermark maps the run type to its change boundary. Full runs have
// none. Differential runs require a prior full run; incremental runs require
// any prior run. A missing required marker fails the run before any table is
// touched.
func (r *Runner) resolveWatermark(runType RunType) (*time.Time, error) {
	switch runType {
	case RunTypeFull:
		return nil, nil

	case RunTypeDifferential:
		ts, found, err := r.markers.Read(MarkerLastFull)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, NewPreconditionError(
				"differential backup requires a prior full backup", nil)
		}
		return &ts, nil

	case RunTypeIncremental:
		ts, found, err := r.markers.Read(MarkerLastAny)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, NewPreconditionError(
				"incremental backup requires a prior backup of any type", nil)
		}
		return &ts, nil
	}

	return nil, NewPreconditionError(fmt.Sprintf("unknown backup type %q", runType), nil)
}

func (r *Runner) extract(ctx context.Context, watermark *time.Time) (*Snapshot, error) {
	extractor := NewExtractor(r.db, r.config.TrackingColumn, r.logger)
	extractor.SetQueryTimeout(r.config.Timeouts.Query)
	return extractor.Extract(ctx, watermark)
}

// generateStatementLog produces the .sql artifact. Full runs shell out to
// mysqldump for a complete, schema-bearing dump; bounded runs render the
// extracted rows as INSERT statements. Failure here fails the run.
func (r *Runner) generateStatementLog(ctx context.Context, runType RunType, snapshot *Snapshot) (*ArtifactSet, error) {
	artifacts := NewArtifactSet()
	outPath := r.store.NewPath(ArtifactStatementLog, runType, snapshot.TakenAt)

	var err error
	if runType == RunTypeFull {
		err = r.dumpFull(ctx, outPath)
	} else {
		err = r.statements.Generate(snapshot, outPath)
	}
	r.logger.LogArtifact(string(ArtifactStatementLog), outPath, err)
	if err != nil {
		return nil, err
	}

	artifacts.Paths[ArtifactStatementLog] = outPath
	artifacts.SizeLabel = SizeLabel(outPath)
	r.registry.SetArtifact(ArtifactStatementLog, outPath)
	return artifacts, nil
}

func (r *Runner) dumpFull(ctx context.Context, outPath string) error {
	if err := r.executor.Dump(ctx, r.config.Database, outPath); err != nil {
		return NewExecutionError("mysqldump failed", err)
	}
	return nil
}

// generateWorkbook writes the xlsx artifact. Best effort: a failure is
// logged and the run continues.
func (r *Runner) generateWorkbook(runType RunType, snapshot *Snapshot, artifacts *ArtifactSet) {
	outPath := r.store.NewPath(ArtifactWorkbook, runType, snapshot.TakenAt)
	err := r.workbooks.Generate(snapshot, outPath)
	r.logger.LogArtifact(string(ArtifactWorkbook), outPath, err)
	if err != nil {
		return
	}
	artifacts.Paths[ArtifactWorkbook] = outPath
	r.registry.SetArtifact(ArtifactWorkbook, outPath)
}

// generateReport writes the pdf artifact. Best effort, like the workbook.
func (r *Runner) generateReport(runType RunType, snapshot *Snapshot, artifacts *ArtifactSet) {
	outPath := r.store.NewPath(ArtifactReport, runType, snapshot.TakenAt)
	err := r.reports.Generate(snapshot, runType, outPath)
	r.logger.LogArtifact(string(ArtifactReport), outPath, err)
	if err != nil {
		return
	}
	artifacts.Paths[ArtifactReport] = outPath
	r.registry.SetArtifact(ArtifactReport, outPath)
}

// advanceMarkers moves the watermarks after a successful run. Every success
// advances the any-scope marker; only full runs advance the full-scope one.
func (r *Runner) advanceMarkers(runType RunType, at time.Time) error {
	if runType == RunTypeFull {
		if err := r.markers.Write(MarkerLastFull, at); err != nil {
			return err
		}
	}
	return r.markers.Write(MarkerLastAny, at)
}

func (r *Runner) recordSuccess(runType RunType, artifacts *ArtifactSet) error {
	entry := HistoryEntry{
		Date:     time.Now(),
		Type:     runType,
		Size:     artifacts.SizeLabel,
		Artifact: filepath.Base(artifacts.Paths[ArtifactStatementLog]),
	}
	return r.ledger.Append(entry)
}

// recordFailure appends the failed run to history. A history write failure
// at this point is only logged; the original error must win.
func (r *Runner) recordFailure(runType RunType, runErr error) {
	entry := HistoryEntry{
		Date:  time.Now(),
		Type:  runType,
		Size:  "0.00 MB",
		Error: runErr.Error(),
	}
	if err := r.ledger.Append(entry); err != nil {
		r.logger.Errorf("Failed to record run failure in history: %v", err)
	}
}

// mirrorArtifacts uploads the run's artifacts offsite, best effort
func (r *Runner) mirrorArtifacts(ctx context.Context, artifacts *ArtifactSet) {
	if r.mirror == nil {
		return
	}
	for _, path := range artifacts.Paths {
		name := filepath.Base(path)
		if err := r.mirror.Upload(ctx, path, name); err != nil {
			r.logger.Warnf("Failed to mirror %s to %s: %v", name, r.mirror.Location(), err)
		} else {
			r.logger.Debugf("Mirrored %s to %s", name, r.mirror.Location())
		}
	}
}
