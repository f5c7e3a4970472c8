package backup

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"membership-backup/internal/logging"
)

// mysqlTimeLayout is the literal timestamp format MySQL compares against
const mysqlTimeLayout = "2006-01-02 15:04:05"

// Extractor enumerates the store's tables and pulls the rows for one
// snapshot. Tables carrying the tracking column support watermark-bounded
// extraction; tables without it are captured in full runs only.
type Extractor struct {
	db             *sql.DB
	trackingColumn string
	queryTimeout   time.Duration
	logger         *logging.Logger
}

// NewExtractor creates a snapshot extractor over an open connection
func NewExtractor(db *sql.DB, trackingColumn string, logger *logging.Logger) *Extractor {
	if trackingColumn == "" {
		trackingColumn = "updated_at"
	}
	return &Extractor{
		db:             db,
		trackingColumn: trackingColumn,
		queryTimeout:   30 * time.Second,
		logger:         logger,
	}
}

// SetQueryTimeout sets the per-query timeout
func (e *Extractor) SetQueryTimeout(timeout time.Duration) {
	e.queryTimeout = timeout
}

// capability is the per-table filtering capability, resolved once per table
// per run.
type capability struct {
	trackable bool
	columns   []Column
}

// Extract takes one snapshot. A nil watermark means a full run: every table
// is captured completely. With a watermark set, tables carrying the tracking
// column return only rows changed at or after it and untracked tables are
// skipped entirely, on the assumption a prior full run already captured
// them. Per-table failures become notes; the snapshot continues.
func (e *Extractor) Extract(ctx context.Context, watermark *time.Time) (*Snapshot, error) {
	tables, err := e.listTables(ctx)
	if err != nil {
		return nil, NewExtractionError("failed to enumerate tables", err)
	}

	snapshot := &Snapshot{
		TakenAt:   time.Now(),
		Watermark: watermark,
	}

	for _, table := range tables {
		start := time.Now()

		data, skipped, err := e.extractTable(ctx, table, watermark)
		if err != nil {
			snapshot.Notes = append(snapshot.Notes, TableNote{Table: table, Err: err.Error()})
			e.logger.LogTableExtraction(table, 0, time.Since(start), err)
			continue
		}
		if skipped {
			continue
		}

		snapshot.Tables = append(snapshot.Tables, *data)
		e.logger.LogTableExtraction(table, len(data.Rows), time.Since(start), nil)
	}

	return snapshot, nil
}

// listTables enumerates all tables of the connected database
func (e *Extractor) listTables(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	rows, err := e.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// resolveCapability inspects a table's columns once and decides whether it
// supports watermark filtering.
func (e *Extractor) resolveCapability(ctx context.Context, table string) (capability, error) {
	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	rows, err := e.db.QueryContext(ctx, fmt.Sprintf("SHOW COLUMNS FROM `%s`", table))
	if err != nil {
		return capability{}, err
	}
	defer rows.Close()

	var tableCap capability
	for rows.Next() {
		var field, colType, null, key string
		var def sql.NullString
		var extra string
		if err := rows.Scan(&field, &colType, &null, &key, &def, &extra); err != nil {
			return capability{}, err
		}
		if field == e.trackingColumn {
			tableCap.trackable = true
		}
		tableCap.columns = append(tableCap.columns, Column{
			Name:    field,
			Numeric: isNumericType(colType),
		})
	}
	return tableCap, rows.Err()
}

// extractTable pulls the rows of one table, honoring the watermark. The
// second return value reports that the table was skipped (untracked table
// during a bounded run).
func (e *Extractor) extractTable(ctx context.Context, table string, watermark *time.Time) (*TableData, bool, error) {
	tableCap, err := e.resolveCapability(ctx, table)
	if err != nil {
		return nil, false, err
	}

	if watermark != nil && !tableCap.trackable {
		return nil, true, nil
	}

	query := fmt.Sprintf("SELECT * FROM `%s`", table)
	var args []any
	if watermark != nil {
		query += fmt.Sprintf(" WHERE `%s` >= ?", e.trackingColumn)
		args = append(args, watermark.Format(mysqlTimeLayout))
	}

	qctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	rows, err := e.db.QueryContext(qctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return nil, false, err
	}

	data := &TableData{
		Name:    table,
		Columns: alignColumns(colNames, tableCap.columns),
	}

	for rows.Next() {
		values := make([]any, len(colNames))
		ptrs := make([]any, len(colNames))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, false, err
		}
		data.Rows = append(data.Rows, normalizeRow(values))
	}

	return data, false, rows.Err()
}

// alignColumns maps the result set's column order onto the introspected
// column metadata, falling back to non-numeric for columns the
// introspection did not report.
func alignColumns(names []string, known []Column) []Column {
	byName := make(map[string]Column, len(known))
	for _, c := range known {
		byName[c.Name] = c
	}

	aligned := make([]Column, len(names))
	for i, name := range names {
		if c, ok := byName[name]; ok {
			aligned[i] = c
		} else {
			aligned[i] = Column{Name: name}
		}
	}
	return aligned
}

// normalizeRow converts driver values into nil or string
func normalizeRow(values []any) []any {
	row := make([]any, len(values))
	for i, v := range values {
		switch val := v.(type) {
		case nil:
			row[i] = nil
		case []byte:
			row[i] = string(val)
		case time.Time:
			row[i] = val.Format(mysqlTimeLayout)
		default:
			row[i] = fmt.Sprint(val)
		}
	}
	return row
}

// isNumericType reports whether a MySQL column type renders unquoted
func isNumericType(colType string) bool {
	t := strings.ToLower(colType)
	for _, prefix := range []string{
		"int", "tinyint", "smallint", "mediumint", "bigint",
		"decimal", "numeric", "float", "double", "bit",
	} {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}
