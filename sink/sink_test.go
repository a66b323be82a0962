package sink

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wspranalytics/analyze"
)

func sampleTables() []analyze.Table {
	return []analyze.Table{
		{
			Name:    analyze.TableSummary,
			Columns: []string{"label", "value"},
			Rows: [][]any{
				{"Total spots", 3},
				{"Total unique spots", 2},
			},
		},
		{
			Name:    analyze.TableFurthest,
			Columns: []string{"rx_sign", "rx_loc", "distance", "Count"},
			Rows: [][]any{
				{"OH6BG", "KP22XI", 1806.0, 2},
				{"EA8BFK", "IL38bo", 303.5, 1},
			},
		},
	}
}

func TestWriteTablesCSV(t *testing.T) {
	dir := t.TempDir()
	if err := WriteTables(sampleTables(), Options{Dir: dir, Format: FormatCSV}); err != nil {
		t.Fatalf("write tables: %v", err)
	}

	data, err := os.ReadFile(TablePath(dir, analyze.TableSummary, FormatCSV))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	want := "label,value\nTotal spots,3\nTotal unique spots,2\n"
	if string(data) != want {
		t.Fatalf("summary csv mismatch:\ngot  %q\nwant %q", string(data), want)
	}

	data, err = os.ReadFile(TablePath(dir, analyze.TableFurthest, FormatCSV))
	if err != nil {
		t.Fatalf("read distances: %v", err)
	}
	want = "rx_sign,rx_loc,distance,Count\nOH6BG,KP22XI,1806,2\nEA8BFK,IL38bo,303.5,1\n"
	if string(data) != want {
		t.Fatalf("distances csv mismatch:\ngot  %q\nwant %q", string(data), want)
	}
}

func TestWriteTablesJSON(t *testing.T) {
	dir := t.TempDir()
	if err := WriteTables(sampleTables(), Options{Dir: dir, Format: FormatJSON}); err != nil {
		t.Fatalf("write tables: %v", err)
	}

	raw, err := os.ReadFile(TablePath(dir, analyze.TableFurthest, FormatJSON))
	if err != nil {
		t.Fatalf("read json: %v", err)
	}

	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0]["rx_sign"] != "OH6BG" {
		t.Fatalf("unexpected first record: %v", records[0])
	}
	if records[0]["distance"] != 1806.0 {
		t.Fatalf("distance should be numeric, got %T %v", records[0]["distance"], records[0]["distance"])
	}

	// Keys must appear in column order, not sorted.
	text := string(raw)
	signAt := strings.Index(text, `"rx_sign"`)
	locAt := strings.Index(text, `"rx_loc"`)
	distAt := strings.Index(text, `"distance"`)
	countAt := strings.Index(text, `"Count"`)
	if !(signAt < locAt && locAt < distAt && distAt < countAt) {
		t.Fatalf("keys out of column order: %d %d %d %d", signAt, locAt, distAt, countAt)
	}
}

func TestWriteTablesTXT(t *testing.T) {
	dir := t.TempDir()
	if err := WriteTables(sampleTables(), Options{Dir: dir, Format: FormatTXT}); err != nil {
		t.Fatalf("write tables: %v", err)
	}

	raw, err := os.ReadFile(TablePath(dir, analyze.TableSummary, FormatTXT))
	if err != nil {
		t.Fatalf("read txt: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines: %q", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "label") || !strings.Contains(lines[0], "value") {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "Total spots") || !strings.Contains(lines[1], "3") {
		t.Fatalf("unexpected first row: %q", lines[1])
	}
}

func TestWriteTablesUnsupportedFormat(t *testing.T) {
	err := WriteTables(sampleTables(), Options{Dir: t.TempDir(), Format: "xml"})
	if err == nil {
		t.Fatalf("expected error for unsupported format")
	}
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %T: %v", err, err)
	}
}

func TestWriteTablesOverwritesPrevious(t *testing.T) {
	dir := t.TempDir()
	if err := WriteTables(sampleTables(), Options{Dir: dir, Format: FormatCSV}); err != nil {
		t.Fatalf("first write: %v", err)
	}

	smaller := []analyze.Table{{
		Name:    analyze.TableSummary,
		Columns: []string{"label", "value"},
		Rows:    [][]any{{"Total spots", 1}},
	}}
	if err := WriteTables(smaller, Options{Dir: dir, Format: FormatCSV}); err != nil {
		t.Fatalf("second write: %v", err)
	}

	data, err := os.ReadFile(TablePath(dir, analyze.TableSummary, FormatCSV))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	want := "label,value\nTotal spots,1\n"
	if string(data) != want {
		t.Fatalf("expected overwrite:\ngot  %q\nwant %q", string(data), want)
	}
}

func TestWriteRaw(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("id,time,band\n1,2024-03-01 10:00:00,20\n")
	path, err := WriteRaw(payload, Options{Dir: dir})
	if err != nil {
		t.Fatalf("write raw: %v", err)
	}
	if path != filepath.Join(dir, RawFile) {
		t.Fatalf("unexpected raw path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("raw payload altered:\ngot  %q\nwant %q", string(data), string(payload))
	}
}

func TestValidFormat(t *testing.T) {
	for _, f := range []string{FormatCSV, FormatJSON, FormatTXT, FormatSQLite} {
		if !ValidFormat(f) {
			t.Fatalf("%s should be valid", f)
		}
	}
	for _, f := range []string{"", "xml", "CSV", "parquet"} {
		if ValidFormat(f) {
			t.Fatalf("%q should be invalid", f)
		}
	}
}
