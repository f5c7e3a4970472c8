package backup

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

// StatementLogGenerator renders a snapshot as a replayable sequence of
// INSERT statements. This is the one artifact the run cannot do without:
// history and restore both depend on it.
type StatementLogGenerator struct{}

// NewStatementLogGenerator creates a statement log generator
func NewStatementLogGenerator() *StatementLogGenerator {
	return &StatementLogGenerator{}
}

// Generate writes the statement log for the snapshot to outPath
func (g *StatementLogGenerator) Generate(snapshot *Snapshot, outPath string) error {
	file, err := os.Create(outPath)
	if err != nil {
		return NewArtifactError("failed to create statement log", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)

	if snapshot.Watermark != nil {
		fmt.Fprintf(w, "-- Backup since %s\n", snapshot.Watermark.Format(time.RFC3339))
	} else {
		fmt.Fprintf(w, "-- Full backup\n")
	}
	fmt.Fprintf(w, "-- Generated: %s\n\n", snapshot.TakenAt.Format(time.RFC3339))

	for _, table := range snapshot.Tables {
		if len(table.Rows) == 0 {
			continue
		}

		fmt.Fprintf(w, "-- Table: %s\n", table.Name)

		cols := make([]string, len(table.Columns))
		for i, c := range table.Columns {
			cols[i] = "`" + c.Name + "`"
		}
		colList := strings.Join(cols, ", ")

		for _, row := range table.Rows {
			values := make([]string, len(row))
			for i, v := range row {
				values[i] = renderValue(v, table.Columns[i].Numeric)
			}
			fmt.Fprintf(w, "INSERT INTO `%s` (%s) VALUES (%s);\n",
				table.Name, colList, strings.Join(values, ", "))
		}

		fmt.Fprintln(w)
	}

	for _, note := range snapshot.Notes {
		fmt.Fprintf(w, "-- Error in table %s: %s\n", note.Table, note.Err)
	}

	if err := w.Flush(); err != nil {
		return NewArtifactError("failed to write statement log", err)
	}
	return nil
}

// renderValue renders one scalar as a SQL literal. Strings have single
// quotes doubled; numerics are emitted unquoted; nil becomes NULL.
func renderValue(v any, numeric bool) string {
	if v == nil {
		return "NULL"
	}
	s := fmt.Sprint(v)
	if numeric {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// SizeLabel formats a statement log file size the way history records it
func SizeLabel(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "0.00 MB"
	}
	return fmt.Sprintf("%.2f MB", float64(info.Size())/(1024*1024))
}
