package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerStore_ReadAbsent(t *testing.T) {
	store, err := NewMarkerStore(t.TempDir())
	require.NoError(t, err)

	_, found, err := store.Read(MarkerLastFull)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMarkerStore_WriteRead(t *testing.T) {
	store, err := NewMarkerStore(t.TempDir())
	require.NoError(t, err)

	want := time.Date(2024, 1, 31, 15, 45, 0, 0, time.UTC)
	require.NoError(t, store.Write(MarkerLastFull, want))

	got, found, err := store.Read(MarkerLastFull)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, got.Equal(want))
}

func TestMarkerStore_ScopesAreIndependent(t *testing.T) {
	store, err := NewMarkerStore(t.TempDir())
	require.NoError(t, err)

	fullTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	anyTime := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Write(MarkerLastFull, fullTime))
	require.NoError(t, store.Write(MarkerLastAny, anyTime))

	gotFull, found, err := store.Read(MarkerLastFull)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, gotFull.Equal(fullTime))

	gotAny, found, err := store.Read(MarkerLastAny)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, gotAny.Equal(anyTime))
}

func TestMarkerStore_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewMarkerStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "last_full_backup.txt"), []byte("not a timestamp"), 0644))

	_, _, err = store.Read(MarkerLastFull)
	require.Error(t, err)
	assert.Equal(t, ErrPersistence, KindOf(err))
}

func TestMarkerStore_FileNames(t *testing.T) {
	dir := t.TempDir()
	store, err := NewMarkerStore(dir)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, store.Write(MarkerLastFull, now))
	require.NoError(t, store.Write(MarkerLastAny, now))

	_, err = os.Stat(filepath.Join(dir, "last_full_backup.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "last_backup_any.txt"))
	assert.NoError(t, err)
}
