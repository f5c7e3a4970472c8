// Package backup implements the backup and restore engine for the
// membership database.
//
// A run snapshots the database, renders the snapshot into three artifacts
// (a replayable SQL statement log, an xlsx workbook and a PDF summary
// report), advances the change watermarks and appends a record to the
// bounded run history. Three run modes are supported:
//
//   - full: every table, complete; produced by mysqldump
//   - differential: rows changed since the last full run
//   - incremental: rows changed since the last run of any type
//
// The bounded modes filter on a tracking column (updated_at by default);
// tables without that column are captured by full runs only.
//
// Core components:
//
//   - Runner: orchestrates a run end to end, fire and forget
//   - Registry: the single-flight job slot; at most one run at a time
//   - MarkerStore: the two persisted watermarks (last full, last any)
//   - Ledger: the bounded, newest-first run history
//   - ArtifactStore: on-disk artifact layout and safe name resolution
//   - Restorer: replays a stored statement log through the mysql client
//   - Notifier: best-effort completion mail with artifact attachments
//   - ArtifactMirror: optional best-effort offsite copy (S3, Azure, GCS)
//
// Example usage:
//
//	runner := backup.NewRunner(config, db, registry, markers, ledger, store, notifier, logger)
//	jobID, err := runner.Trigger(backup.RunTypeFull)
//	if backup.IsConflict(err) {
//		// a run is already in progress
//	}
package backup
