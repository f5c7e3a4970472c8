package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membership-backup/internal/backup"
	"membership-backup/internal/database"
	"membership-backup/internal/execution"
	"membership-backup/internal/logging"
)

type serverHarness struct {
	server   *Server
	registry *backup.Registry
	markers  *backup.MarkerStore
	ledger   *backup.Ledger
	root     string
	cleanup  func()
}

func newServerHarness(t *testing.T) *serverHarness {
	t.Helper()
	root := t.TempDir()

	logger, err := logging.NewLogger(logging.Config{Level: logging.LogLevelQuiet})
	require.NoError(t, err)

	config := &backup.EngineConfig{
		StorageRoot: root,
		Database: database.Config{
			Host:     "localhost",
			Port:     3306,
			Username: "root",
			Database: "membership",
		},
	}
	config.SetDefaults()

	db, _, err := sqlmock.New()
	require.NoError(t, err)

	registry := backup.NewRegistry()
	markers, err := backup.NewMarkerStore(root)
	require.NoError(t, err)
	ledger, err := backup.NewLedger(filepath.Join(root, "backup_history.json"), config.HistoryLimit)
	require.NoError(t, err)
	store, err := backup.NewArtifactStore(root)
	require.NoError(t, err)
	notifier := backup.NewNotifier(backup.NotifierConfig{}, logger)

	runner := backup.NewRunner(config, db, registry, markers, ledger, store, notifier, logger)

	executor := execution.NewExecutor(logger, execution.WithBinaries("true", "true"))
	restorer := backup.NewRestorer(config, registry, store, executor, logger)

	srv := New(":0", runner, restorer, markers, logger)
	return &serverHarness{
		server:   srv,
		registry: registry,
		markers:  markers,
		ledger:   ledger,
		root:     root,
		cleanup:  func() { db.Close() },
	}
}

func (h *serverHarness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestServer_TriggerAccepted(t *testing.T) {
	h := newServerHarness(t)
	defer h.cleanup()

	rec := h.do(t, http.MethodPost, "/api/backups/trigger", map[string]string{"type": "differential"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["job_id"])
	assert.Equal(t, "differential", body["type"])
}

func TestServer_TriggerConflict(t *testing.T) {
	h := newServerHarness(t)
	defer h.cleanup()

	runningID, err := h.registry.TryStart(backup.RunTypeFull)
	require.NoError(t, err)

	rec := h.do(t, http.MethodPost, "/api/backups/trigger", map[string]string{"type": "full"})
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, runningID, body["job_id"])
	assert.NotEmpty(t, body["error"])
}

func TestServer_TriggerRejectsBadType(t *testing.T) {
	h := newServerHarness(t)
	defer h.cleanup()

	rec := h.do(t, http.MethodPost, "/api/backups/trigger", map[string]string{"type": "weekly"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/backups/trigger", map[string]string{"type": "restore"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_TriggerRejectsMalformedBody(t *testing.T) {
	h := newServerHarness(t)
	defer h.cleanup()

	req := httptest.NewRequest(http.MethodPost, "/api/backups/trigger", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Status(t *testing.T) {
	h := newServerHarness(t)
	defer h.cleanup()

	rec := h.do(t, http.MethodGet, "/api/backups/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	job := body["job"].(map[string]any)
	assert.Equal(t, "idle", job["status"])
	assert.NotContains(t, body, "elapsed_seconds")
}

func TestServer_StatusWhileRunning(t *testing.T) {
	h := newServerHarness(t)
	defer h.cleanup()

	_, err := h.registry.TryStart(backup.RunTypeFull)
	require.NoError(t, err)
	h.registry.UpdateProgress("extracting tables", 20)

	rec := h.do(t, http.MethodGet, "/api/backups/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	job := body["job"].(map[string]any)
	assert.Equal(t, "running", job["status"])
	assert.Equal(t, float64(20), job["progress"])
	assert.Contains(t, body, "elapsed_seconds")
}

func TestServer_History(t *testing.T) {
	h := newServerHarness(t)
	defer h.cleanup()

	for i := 0; i < 3; i++ {
		require.NoError(t, h.ledger.Append(backup.HistoryEntry{
			Date: time.Now(),
			Type: backup.RunTypeFull,
			Size: "0.10 MB",
		}))
	}

	rec := h.do(t, http.MethodGet, "/api/backups/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["history"], 3)

	rec = h.do(t, http.MethodGet, "/api/backups/history?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Len(t, body["history"], 2)

	rec = h.do(t, http.MethodGet, "/api/backups/history?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_HistoryEmpty(t *testing.T) {
	h := newServerHarness(t)
	defer h.cleanup()

	rec := h.do(t, http.MethodGet, "/api/backups/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	history, ok := body["history"].([]any)
	require.True(t, ok, "history must be an array even when empty")
	assert.Empty(t, history)
}

func TestServer_Download(t *testing.T) {
	h := newServerHarness(t)
	defer h.cleanup()

	name := "backup_full_20240131_154500.sql"
	content := []byte("INSERT INTO `members` (`id`) VALUES (1);\n")
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "statements", name), content, 0644))

	rec := h.do(t, http.MethodGet, "/api/backups/download/"+name, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, content, rec.Body.Bytes())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), name)
}

func TestServer_DownloadNotFound(t *testing.T) {
	h := newServerHarness(t)
	defer h.cleanup()

	rec := h.do(t, http.MethodGet, "/api/backups/download/backup_full_20990101_000000.sql", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Restore(t *testing.T) {
	h := newServerHarness(t)
	defer h.cleanup()

	name := "backup_full_20240131_154500.sql"
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "statements", name),
		[]byte("INSERT ..."), 0644))

	rec := h.do(t, http.MethodPost, "/api/backups/restore", map[string]string{"artifact": name})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "restored", body["status"])
}

func TestServer_RestoreNotFound(t *testing.T) {
	h := newServerHarness(t)
	defer h.cleanup()

	rec := h.do(t, http.MethodPost, "/api/backups/restore",
		map[string]string{"artifact": "backup_full_20990101_000000.sql"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RestoreConflict(t *testing.T) {
	h := newServerHarness(t)
	defer h.cleanup()

	name := "backup_full_20240131_154500.sql"
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "statements", name),
		[]byte("INSERT ..."), 0644))

	_, err := h.registry.TryStart(backup.RunTypeFull)
	require.NoError(t, err)

	rec := h.do(t, http.MethodPost, "/api/backups/restore", map[string]string{"artifact": name})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_RestoreRequiresArtifact(t *testing.T) {
	h := newServerHarness(t)
	defer h.cleanup()

	rec := h.do(t, http.MethodPost, "/api/backups/restore", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_DashboardSummary(t *testing.T) {
	h := newServerHarness(t)
	defer h.cleanup()

	require.NoError(t, h.ledger.Append(backup.HistoryEntry{
		Date:     time.Now(),
		Type:     backup.RunTypeFull,
		Size:     "1.25 MB",
		Artifact: "backup_full_20240131_154500.sql",
	}))
	require.NoError(t, h.markers.Write(backup.MarkerLastFull, time.Now()))
	require.NoError(t, h.markers.Write(backup.MarkerLastAny, time.Now()))

	rec := h.do(t, http.MethodGet, "/api/backups/dashboard-summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "idle", body["status"])
	assert.Equal(t, float64(1), body["total_backups"])
	assert.Contains(t, body, "last_backup")
	assert.Contains(t, body, "last_full_backup")
	assert.Contains(t, body, "last_backup_any")
}

func TestServer_DashboardSummaryEmpty(t *testing.T) {
	h := newServerHarness(t)
	defer h.cleanup()

	rec := h.do(t, http.MethodGet, "/api/backups/dashboard-summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(0), body["total_backups"])
	assert.NotContains(t, body, "last_backup")
}
