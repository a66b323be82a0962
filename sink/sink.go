// Package sink persists analysis tables to the data directory. File formats
// write one file per table named "<table>.<format>"; the sqlite format
// writes every table into a single analytics database. All writes replace
// previous runs atomically so readers never observe a half-written table.
package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"wspranalytics/analyze"
)

// Supported output formats.
const (
	FormatCSV    = "csv"
	FormatJSON   = "json"
	FormatTXT    = "txt"
	FormatSQLite = "sqlite"
)

// DatabaseFile is the sqlite-format output file inside the data directory.
const DatabaseFile = "analytics.db"

// RawFile is the fetched payload saved verbatim for the export endpoint.
// It is always CSV regardless of the configured table format.
const RawFile = analyze.TableRaw + ".csv"

// Logger is the minimal sink writes report progress and problems to.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

func orNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

// Options selects where and how tables are written.
type Options struct {
	// Dir is the data directory; it is created when missing.
	Dir string
	// Format is one of the Format constants; empty means FormatCSV.
	Format string
	// Logger receives per-table progress lines. Nil discards them.
	Logger Logger
}

// PersistenceError wraps a failed write. Analysis callers treat it as
// advisory: results stay usable even when saving them did not.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidFormat reports whether f names a supported output format.
func ValidFormat(f string) bool {
	switch f {
	case FormatCSV, FormatJSON, FormatTXT, FormatSQLite:
		return true
	}
	return false
}

// TablePath returns the output path for a table in a file format.
func TablePath(dir, name, format string) string {
	return filepath.Join(dir, name+"."+format)
}

// WriteTables persists every table in its input order. Failures do not stop
// the remaining tables; the returned error joins everything that went wrong
// so the caller can log it once.
func WriteTables(tables []analyze.Table, opts Options) error {
	logger := orNop(opts.Logger)
	format := opts.Format
	if format == "" {
		format = FormatCSV
	}
	if !ValidFormat(format) {
		return &PersistenceError{Path: opts.Dir, Err: fmt.Errorf("unsupported format %q", format)}
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return &PersistenceError{Path: opts.Dir, Err: err}
	}

	if format == FormatSQLite {
		return writeSQLite(tables, opts)
	}

	var errs []error
	for _, t := range tables {
		path := TablePath(opts.Dir, t.Name, format)
		data, err := encodeTable(t, format)
		if err == nil {
			err = writeFileAtomic(path, data)
		}
		if err != nil {
			perr := &PersistenceError{Path: path, Err: err}
			logger.Printf("sink: %v", perr)
			errs = append(errs, perr)
			continue
		}
		logger.Printf("sink: wrote %s (%d rows)", path, len(t.Rows))
	}
	return errors.Join(errs...)
}

// WriteRaw saves the fetched CSV payload verbatim and returns its path.
func WriteRaw(payload []byte, opts Options) (string, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return "", &PersistenceError{Path: opts.Dir, Err: err}
	}
	path := filepath.Join(opts.Dir, RawFile)
	if err := writeFileAtomic(path, payload); err != nil {
		return "", &PersistenceError{Path: path, Err: err}
	}
	orNop(opts.Logger).Printf("sink: wrote %s (%d bytes)", path, len(payload))
	return path, nil
}

func encodeTable(t analyze.Table, format string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return encodeCSV(t)
	case FormatJSON:
		return encodeJSON(t)
	case FormatTXT:
		return encodeText(t)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// writeFileAtomic stages the content in a temp file next to the target and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".sink-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// cellString renders a table cell for text formats. Integral floats print
// without a trailing ".0" to match how whole-kilometer distances arrive on
// the wire.
func cellString(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case int:
		return strconv.Itoa(c)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
