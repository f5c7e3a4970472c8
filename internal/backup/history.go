package backup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Ledger is the bounded, newest-first run history persisted as a single JSON
// document. Appending past the limit evicts the oldest entry. Every rewrite
// goes through a temp file and rename so a crash never leaves a torn file.
type Ledger struct {
	mu    sync.Mutex
	path  string
	limit int
}

// NewLedger creates a history ledger persisted at path, keeping at most
// limit entries.
func NewLedger(path string, limit int) (*Ledger, error) {
	if limit <= 0 {
		limit = 10
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, NewPersistenceError("failed to create history directory", err)
	}
	return &Ledger{path: path, limit: limit}, nil
}

// Append prepends an entry and rewrites the ledger, evicting entries past
// the limit.
func (l *Ledger) Append(entry HistoryEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		return err
	}

	entries = append([]HistoryEntry{entry}, entries...)
	if len(entries) > l.limit {
		entries = entries[:l.limit]
	}

	return l.store(entries)
}

// List returns up to limit entries, newest first. A non-positive limit
// returns everything the ledger holds.
func (l *Ledger) List(limit int) ([]HistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

// load reads the ledger file; a missing or unreadable document yields an
// empty history rather than an error, so one corrupt file cannot wedge runs.
func (l *Ledger) load() ([]HistoryEntry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, NewPersistenceError("failed to read history", err)
	}

	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, nil
	}
	return entries, nil
}

func (l *Ledger) store(entries []HistoryEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return NewPersistenceError("failed to encode history", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return NewPersistenceError("failed to write history", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return NewPersistenceError("failed to replace history", err)
	}
	return nil
}
