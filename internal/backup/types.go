package backup

import (
	"time"
)

// RunType identifies the kind of run occupying the job slot
type RunType string

const (
	RunTypeFull         RunType = "full"
	RunTypeDifferential RunType = "differential"
	RunTypeIncremental  RunType = "incremental"
	// RunTypeRestore occupies the same single-flight slot as backup runs so
	// a restore can never execute while a snapshot is being taken.
	RunTypeRestore RunType = "restore"
)

// Valid reports whether the run type is one a caller may trigger
func (t RunType) Valid() bool {
	switch t {
	case RunTypeFull, RunTypeDifferential, RunTypeIncremental:
		return true
	}
	return false
}

// JobStatus represents the lifecycle state of the singleton job slot
type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ArtifactKind names the derived output formats of one snapshot
type ArtifactKind string

const (
	ArtifactStatementLog ArtifactKind = "statement_log"
	ArtifactWorkbook     ArtifactKind = "workbook"
	ArtifactReport       ArtifactKind = "report"
)

// Job is the singleton mutable record describing the currently running, or
// most recently run, job. Only the Registry mutates it.
type Job struct {
	ID            string                  `json:"id"`
	Type          RunType                 `json:"type"`
	Status        JobStatus               `json:"status"`
	Progress      int                     `json:"progress"`
	CurrentStep   string                  `json:"current_step"`
	Artifacts     map[ArtifactKind]string `json:"artifacts"`
	StartedAt     time.Time               `json:"started_at"`
	LastSuccessAt time.Time               `json:"last_success_at"`
	Error         string                  `json:"error,omitempty"`
}

// MarkerScope names one of the two independent watermark keys
type MarkerScope string

const (
	// MarkerLastFull is advanced only by successful full runs
	MarkerLastFull MarkerScope = "last_full"
	// MarkerLastAny is advanced by every successful run
	MarkerLastAny MarkerScope = "last_any"
)

// HistoryEntry is the immutable record appended after every run
type HistoryEntry struct {
	Date     time.Time `json:"date"`
	Type     RunType   `json:"type"`
	Size     string    `json:"size"`
	Artifact string    `json:"artifact,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Column describes one extracted column. Numeric columns are rendered
// unquoted in the statement log.
type Column struct {
	Name    string
	Numeric bool
}

// TableData holds the extracted rows of one table. Row values are either
// nil or string; numeric rendering is driven by the column metadata.
type TableData struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// TableNote records a table-scoped extraction failure that did not abort
// the snapshot.
type TableNote struct {
	Table string
	Err   string
}

// Snapshot is the ordered result of one extraction pass, shared by all
// artifact generators.
type Snapshot struct {
	TakenAt   time.Time
	Watermark *time.Time
	Tables    []TableData
	Notes     []TableNote
}

// RowCount returns the total number of extracted rows across all tables
func (s *Snapshot) RowCount() int {
	n := 0
	for _, t := range s.Tables {
		n += len(t.Rows)
	}
	return n
}

// ArtifactSet holds the file paths generated during one run plus the
// statement log size label recorded in history.
type ArtifactSet struct {
	Paths     map[ArtifactKind]string
	SizeLabel string
}

// NewArtifactSet creates an empty artifact set
func NewArtifactSet() *ArtifactSet {
	return &ArtifactSet{Paths: make(map[ArtifactKind]string)}
}
