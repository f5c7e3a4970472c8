package backup

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membership-backup/internal/database"
	"membership-backup/internal/execution"
)

type runnerHarness struct {
	runner   *Runner
	registry *Registry
	markers  *MarkerStore
	ledger   *Ledger
	store    *ArtifactStore
}

func newRunnerHarness(t *testing.T, db *sql.DB, opts ...RunnerOption) *runnerHarness {
	t.Helper()
	root := t.TempDir()

	config := &EngineConfig{
		StorageRoot: root,
		Database: database.Config{
			Host:     "localhost",
			Port:     3306,
			Username: "root",
			Database: "membership",
		},
	}
	config.SetDefaults()

	registry := NewRegistry()
	markers, err := NewMarkerStore(root)
	require.NoError(t, err)
	ledger, err := NewLedger(root+"/backup_history.json", config.HistoryLimit)
	require.NoError(t, err)
	store, err := NewArtifactStore(root)
	require.NoError(t, err)
	notifier := NewNotifier(NotifierConfig{}, testLogger())

	runner := NewRunner(config, db, registry, markers, ledger, store, notifier, testLogger(), opts...)
	return &runnerHarness{
		runner:   runner,
		registry: registry,
		markers:  markers,
		ledger:   ledger,
		store:    store,
	}
}

func awaitTerminal(t *testing.T, registry *Registry) Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job := registry.Snapshot()
		if job.Status == JobStatusCompleted || job.Status == JobStatusFailed {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("run did not reach a terminal state in time")
	return Job{}
}

func expectMembersExtraction(mock sqlmock.Sqlmock, watermarkArg string) {
	mock.ExpectQuery("SHOW TABLES").
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_membership"}).AddRow("members"))
	mock.ExpectQuery(regexp.QuoteMeta("SHOW COLUMNS FROM `members`")).
		WillReturnRows(showColumnsRows(
			[2]string{"id", "int(11)"},
			[2]string{"name", "varchar(100)"},
			[2]string{"updated_at", "datetime"},
		))
	if watermarkArg == "" {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `members`")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "updated_at"}).
				AddRow(1, "Alice", "2024-01-10 09:00:00"))
	} else {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `members` WHERE `updated_at` >= ?")).
			WithArgs(watermarkArg).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "updated_at"}).
				AddRow(2, "Bob", "2024-01-16 08:00:00"))
	}
}

func TestRunner_IncrementalRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	harness := newRunnerHarness(t, db)

	lastAny := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, harness.markers.Write(MarkerLastAny, lastAny))

	expectMembersExtraction(mock, "2024-01-15 12:00:00")

	jobID, err := harness.runner.Trigger(RunTypeIncremental)
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job := awaitTerminal(t, harness.registry)
	require.Equal(t, JobStatusCompleted, job.Status, "run error: %s", job.Error)
	assert.Equal(t, 100, job.Progress)

	// all three artifacts were produced
	assert.Contains(t, job.Artifacts, ArtifactStatementLog)
	assert.Contains(t, job.Artifacts, ArtifactWorkbook)
	assert.Contains(t, job.Artifacts, ArtifactReport)

	// the any-scope marker advanced, the full-scope one stayed absent
	_, foundFull, err := harness.markers.Read(MarkerLastFull)
	require.NoError(t, err)
	assert.False(t, foundFull)
	gotAny, foundAny, err := harness.markers.Read(MarkerLastAny)
	require.NoError(t, err)
	require.True(t, foundAny)
	assert.True(t, gotAny.After(lastAny))

	// the run was recorded
	entries, err := harness.ledger.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, RunTypeIncremental, entries[0].Type)
	assert.Empty(t, entries[0].Error)
	assert.NotEmpty(t, entries[0].Artifact)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_FullRunAdvancesBothMarkers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// stand in for mysqldump; exits zero and dumps nothing
	executor := execution.NewExecutor(testLogger(), execution.WithBinaries("true", "true"))
	harness := newRunnerHarness(t, db, WithExecutor(executor))

	expectMembersExtraction(mock, "")

	_, err = harness.runner.Trigger(RunTypeFull)
	require.NoError(t, err)

	job := awaitTerminal(t, harness.registry)
	require.Equal(t, JobStatusCompleted, job.Status, "run error: %s", job.Error)

	_, foundFull, err := harness.markers.Read(MarkerLastFull)
	require.NoError(t, err)
	assert.True(t, foundFull, "a full run must advance the full-scope marker")
	_, foundAny, err := harness.markers.Read(MarkerLastAny)
	require.NoError(t, err)
	assert.True(t, foundAny, "every successful run advances the any-scope marker")
}

func TestRunner_DifferentialRequiresFullMarker(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	harness := newRunnerHarness(t, db)

	_, err = harness.runner.Trigger(RunTypeDifferential)
	require.NoError(t, err, "the trigger itself is accepted; the run fails")

	job := awaitTerminal(t, harness.registry)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "prior full backup")

	// the failure is recorded in history
	entries, err := harness.ledger.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Error, "prior full backup")

	// and the slot is released for the next run
	_, err = harness.registry.TryStart(RunTypeFull)
	assert.NoError(t, err)
}

func TestRunner_IncrementalRequiresAnyMarker(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	harness := newRunnerHarness(t, db)

	_, err = harness.runner.Trigger(RunTypeIncremental)
	require.NoError(t, err)

	job := awaitTerminal(t, harness.registry)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "prior backup")
}

func TestRunner_TriggerConflict(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	harness := newRunnerHarness(t, db)

	runningID, err := harness.registry.TryStart(RunTypeFull)
	require.NoError(t, err)

	conflictID, err := harness.runner.Trigger(RunTypeIncremental)
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Equal(t, runningID, conflictID)
}

func TestRunner_TriggerRejectsUnknownType(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	harness := newRunnerHarness(t, db)

	_, err = harness.runner.Trigger(RunType("weekly"))
	require.Error(t, err)
	assert.Equal(t, ErrPrecondition, KindOf(err))

	// restore is internal to the restorer and not triggerable as a backup
	_, err = harness.runner.Trigger(RunTypeRestore)
	require.Error(t, err)

	assert.Equal(t, JobStatusIdle, harness.registry.Snapshot().Status)
}

func TestRunner_ExtractionFailureFailsRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	harness := newRunnerHarness(t, db)

	mock.ExpectQuery("SHOW TABLES").WillReturnError(sql.ErrConnDone)

	_, err = harness.runner.Trigger(RunTypeFull)
	require.NoError(t, err)

	job := awaitTerminal(t, harness.registry)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.NotEmpty(t, job.Error)

	entries, err := harness.ledger.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].Error)
}
