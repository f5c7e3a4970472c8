package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membership-backup/internal/database"
	"membership-backup/internal/execution"
)

func newTestRestorer(t *testing.T) (*Restorer, *Registry, string) {
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
	store, err := NewArtifactStore(root)
	require.NoError(t, err)

	// stand in for the mysql client; consumes stdin and exits zero
	executor := execution.NewExecutor(testLogger(), execution.WithBinaries("true", "true"))
	restorer := NewRestorer(config, registry, store, executor, testLogger())
	return restorer, registry, root
}

func TestRestorer_MissingArtifact(t *testing.T) {
	restorer, registry, _ := newTestRestorer(t)

	err := restorer.Restore(context.Background(), "backup_full_20990101_000000.sql")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	// a missing artifact must not have touched the job slot
	assert.Equal(t, JobStatusIdle, registry.Snapshot().Status)
}

func TestRestorer_RejectedWhileBackupRuns(t *testing.T) {
	restorer, registry, root := newTestRestorer(t)

	name := "backup_full_20240131_154500.sql"
	require.NoError(t, os.WriteFile(filepath.Join(root, "statements", name), []byte("INSERT ..."), 0644))

	_, err := registry.TryStart(RunTypeFull)
	require.NoError(t, err)

	err = restorer.Restore(context.Background(), name)
	require.Error(t, err)
	assert.True(t, IsConflict(err))
}

func TestRestorer_Success(t *testing.T) {
	restorer, registry, root := newTestRestorer(t)

	name := "backup_full_20240131_154500.sql"
	require.NoError(t, os.WriteFile(filepath.Join(root, "statements", name),
		[]byte("INSERT INTO `members` (`id`) VALUES (1);\n"), 0644))

	require.NoError(t, restorer.Restore(context.Background(), name))

	job := registry.Snapshot()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, RunTypeRestore, job.Type)

	// the slot is free again
	_, err := registry.TryStart(RunTypeFull)
	assert.NoError(t, err)
}
