package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// artifact file name stamp, e.g. backup_full_20240131_154500.sql
const artifactStamp = "20060102_150405"

// ArtifactStore lays out and resolves artifact files under the storage
// root. Each artifact kind lives in its own subdirectory; lookups by name
// refuse anything that would escape them.
type ArtifactStore struct {
	root string
}

// NewArtifactStore creates an artifact store rooted at root, creating the
// per-kind subdirectories.
func NewArtifactStore(root string) (*ArtifactStore, error) {
	for _, kind := range []ArtifactKind{ArtifactStatementLog, ArtifactWorkbook, ArtifactReport} {
		dir := filepath.Join(root, subdir(kind))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, NewPersistenceError("failed to create artifact directory", err)
		}
	}
	return &ArtifactStore{root: root}, nil
}

// Root returns the storage root directory
func (s *ArtifactStore) Root() string {
	return s.root
}

// NewPath allocates a timestamped path for an artifact of the given kind
func (s *ArtifactStore) NewPath(kind ArtifactKind, runType RunType, at time.Time) string {
	name := fmt.Sprintf("backup_%s_%s%s", runType, at.Format(artifactStamp), extension(kind))
	return filepath.Join(s.root, subdir(kind), name)
}

// Resolve maps a bare artifact file name to its on-disk path. Names
// containing path separators or not matching a known kind are rejected,
// as is any name without a file behind it.
func (s *ArtifactStore) Resolve(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", NewNotFoundError(fmt.Sprintf("invalid artifact name %q", name), nil)
	}

	kind, ok := kindOfName(name)
	if !ok {
		return "", NewNotFoundError(fmt.Sprintf("unrecognized artifact name %q", name), nil)
	}

	path := filepath.Join(s.root, subdir(kind), name)
	if _, err := os.Stat(path); err != nil {
		return "", NewNotFoundError(fmt.Sprintf("artifact %q does not exist", name), err)
	}
	return path, nil
}

// List returns the artifact file names of one kind, unordered
func (s *ArtifactStore) List(kind ArtifactKind) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, subdir(kind)))
	if err != nil {
		return nil, NewPersistenceError("failed to list artifacts", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func subdir(kind ArtifactKind) string {
	switch kind {
	case ArtifactWorkbook:
		return "workbooks"
	case ArtifactReport:
		return "reports"
	default:
		return "statements"
	}
}

func extension(kind ArtifactKind) string {
	switch kind {
	case ArtifactWorkbook:
		return ".xlsx"
	case ArtifactReport:
		return ".pdf"
	default:
		return ".sql"
	}
}

func kindOfName(name string) (ArtifactKind, bool) {
	switch {
	case strings.HasSuffix(name, ".sql"):
		return ArtifactStatementLog, true
	case strings.HasSuffix(name, ".xlsx"):
		return ArtifactWorkbook, true
	case strings.HasSuffix(name, ".pdf"):
		return ArtifactReport, true
	}
	return "", false
}
