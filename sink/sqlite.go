package sink

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"wspranalytics/analyze"
)

const preflightTimeout = 2 * time.Second

// writeSQLite replaces each table inside a single analytics database. A
// corrupt database left by a previous run is quarantined by the preflight
// instead of stalling the pipeline.
func writeSQLite(tables []analyze.Table, opts Options) error {
	logger := orNop(opts.Logger)
	path := filepath.Join(opts.Dir, DatabaseFile)

	if _, err := preflight(path, "analytics", preflightTimeout, logger); err != nil {
		return &PersistenceError{Path: path, Err: err}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return &PersistenceError{Path: path, Err: fmt.Errorf("open db: %w", err)}
	}
	defer db.Close()
	if _, err := db.Exec(`pragma journal_mode=WAL; pragma synchronous=NORMAL; pragma busy_timeout=5000`); err != nil {
		return &PersistenceError{Path: path, Err: fmt.Errorf("pragmas: %w", err)}
	}

	var errs []error
	for _, t := range tables {
		if err := replaceTable(db, t); err != nil {
			perr := &PersistenceError{Path: path, Err: fmt.Errorf("table %s: %w", t.Name, err)}
			logger.Printf("sink: %v", perr)
			errs = append(errs, perr)
			continue
		}
		logger.Printf("sink: wrote table %s (%d rows)", t.Name, len(t.Rows))
	}
	return errors.Join(errs...)
}

// replaceTable drops and recreates one table inside a transaction so a
// failed run never leaves a mix of old and new rows.
func replaceTable(db *sql.DB, t analyze.Table) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	ident := quoteIdent(t.Name)
	if _, err := tx.Exec("drop table if exists " + ident); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("drop: %w", err)
	}
	if _, err := tx.Exec(createStatement(t)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("create: %w", err)
	}

	stmt, err := tx.Prepare(insertStatement(t))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	for _, row := range t.Rows {
		if _, err := stmt.Exec(row...); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("insert: %w", err)
		}
	}
	_ = stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func createStatement(t analyze.Table) string {
	var b strings.Builder
	b.WriteString("create table ")
	b.WriteString(quoteIdent(t.Name))
	b.WriteString(" (")
	for i, col := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(col))
		b.WriteByte(' ')
		b.WriteString(columnAffinity(t, i))
	}
	b.WriteString(")")
	return b.String()
}

// columnAffinity derives the SQL type from the first row; table builders emit
// a single Go type per column.
func columnAffinity(t analyze.Table, col int) string {
	if len(t.Rows) == 0 {
		return "text"
	}
	switch t.Rows[0][col].(type) {
	case int:
		return "integer"
	case float64:
		return "real"
	default:
		return "text"
	}
}

func insertStatement(t analyze.Table) string {
	marks := strings.TrimSuffix(strings.Repeat("?,", len(t.Columns)), ",")
	return "insert into " + quoteIdent(t.Name) + " values(" + marks + ")"
}
