package backup

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// MarkerStore persists the two named watermarks as RFC3339 timestamps in
// plain text files under the storage root. The two scopes are independent
// keys; nothing in this component compares them.
type MarkerStore struct {
	mu  sync.Mutex
	dir string
}

// NewMarkerStore creates a marker store rooted at dir
func NewMarkerStore(dir string) (*MarkerStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, NewPersistenceError("failed to create marker directory", err)
	}
	return &MarkerStore{dir: dir}, nil
}

// Read returns the timestamp for the given scope. The second return value
// is false when no marker has ever been written for that scope.
func (m *MarkerStore) Read(scope MarkerScope) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path(scope))
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, NewPersistenceError("failed to read marker", err)
	}

	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return time.Time{}, false, NewPersistenceError("malformed marker file", err)
	}
	return ts, true, nil
}

// Write persists the timestamp for the given scope
func (m *MarkerStore) Write(scope MarkerScope, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data := []byte(t.Format(time.RFC3339) + "\n")
	if err := os.WriteFile(m.path(scope), data, 0644); err != nil {
		return NewPersistenceError("failed to write marker", err)
	}
	return nil
}

func (m *MarkerStore) path(scope MarkerScope) string {
	switch scope {
	case MarkerLastFull:
		return filepath.Join(m.dir, "last_full_backup.txt")
	default:
		return filepath.Join(m.dir, "last_backup_any.txt")
	}
}
