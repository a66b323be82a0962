package spot

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/xxh3"

	"wspranalytics/internal/ratelimit"
)

// Column names of the wspr.live CSV export consumed by the pipeline. Header
// matching is case-insensitive; rx_sign, rx_loc and distance are mandatory.
const (
	colTxSign   = "tx_sign"
	colRxSign   = "rx_sign"
	colRxLoc    = "rx_loc"
	colDistance = "distance"
	colTime     = "time"
	colBand     = "band"
)

var requiredColumns = []string{colRxSign, colRxLoc, colDistance}

var (
	// ErrEmptyPayload marks a payload without even a header row.
	ErrEmptyPayload = errors.New("empty payload")
	// ErrNoData marks a payload whose header checks out but which carries
	// zero data rows.
	ErrNoData = errors.New("no data rows")
)

// MissingColumnsError reports required header fields absent from the payload.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return "header missing required columns: " + strings.Join(e.Missing, ", ")
}

// LoadError wraps any dataset-fatal load problem. When it is returned no
// RecordSet exists and no aggregation may run.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load %s: %v", e.Source, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// LoadStats counts what the loader kept and what it degraded row-locally.
// Degraded rows stay in the set with the affected field flagged missing.
type LoadStats struct {
	Rows        int // records loaded
	BadDistance int // rows whose distance field failed numeric parse
	BadTime     int // rows whose time field failed timestamp parse
}

// Logger is the logging capability the loader accepts. A nil Logger disables
// row-degradation reporting; loading itself never depends on it.
type Logger interface {
	Printf(format string, args ...any)
}

// Options tunes a load. The zero value is usable.
type Options struct {
	Source string // payload description used in errors and log lines
	Logger Logger
}

var (
	fieldSep = []byte{0x1f}
	rowSep   = []byte{0x1e}
)

// Load parses a CSV payload (header row plus data rows) into a RecordSet.
// Header problems and empty datasets return a *LoadError; field-level parse
// failures degrade the affected row and are reported through opts.Logger at
// a throttled rate.
func Load(r io.Reader, opts Options) (*RecordSet, error) {
	source := opts.Source
	if source == "" {
		source = "csv"
	}

	cr := csv.NewReader(r)
	// Upstream rows occasionally arrive padded or truncated; field access is
	// by header index, so tolerate varying widths instead of failing the load.
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &LoadError{Source: source, Err: ErrEmptyPayload}
	}
	if err != nil {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("header: %w", err)}
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := idx[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &LoadError{Source: source, Err: &MissingColumnsError{Missing: missing}}
	}
	_, hasTimeCol := idx[colTime]

	distDrops := ratelimit.NewCounter(time.Second)
	timeDrops := ratelimit.NewCounter(time.Second)
	hash := xxh3.New()
	var (
		rows []Record
		st   LoadStats
	)
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &LoadError{Source: source, Err: fmt.Errorf("row %d: %w", len(rows)+2, err)}
		}
		cell := func(name string) string {
			i, ok := idx[name]
			if !ok || i >= len(fields) {
				return ""
			}
			return strings.TrimSpace(fields[i])
		}

		rec := Record{
			RxSign: cell(colRxSign),
			RxLoc:  cell(colRxLoc),
			TxSign: cell(colTxSign),
			Band:   cell(colBand),
		}
		rawDist := cell(colDistance)
		if d, perr := strconv.ParseFloat(rawDist, 64); perr == nil {
			rec.Distance = d
			rec.HasDistance = true
		} else {
			st.BadDistance++
			if total, ok := distDrops.Inc(); ok && opts.Logger != nil {
				opts.Logger.Printf("spot: unparseable distance %q at row %d (%s so far), excluded from distance aggregations",
					rawDist, len(rows)+2, humanize.Comma(int64(total)))
			}
		}
		rawTime := ""
		if hasTimeCol {
			rawTime = cell(colTime)
			if ts, perr := time.ParseInLocation(TimeLayout, rawTime, time.UTC); perr == nil {
				rec.Time = ts
				rec.HasTime = true
			} else {
				st.BadTime++
				if total, ok := timeDrops.Inc(); ok && opts.Logger != nil {
					opts.Logger.Printf("spot: unparseable time %q at row %d (%s so far), excluded from hourly statistics",
						rawTime, len(rows)+2, humanize.Comma(int64(total)))
				}
			}
		}

		hashRow(hash, rec.RxSign, rec.RxLoc, rawDist, rawTime)
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return nil, &LoadError{Source: source, Err: ErrNoData}
	}
	st.Rows = len(rows)

	return &RecordSet{
		rows:        rows,
		hasTimeCol:  hasTimeCol,
		fingerprint: hash.Sum64(),
		stats:       st,
	}, nil
}

// Parse is Load over an in-memory payload.
func Parse(data []byte, opts Options) (*RecordSet, error) {
	return Load(bytes.NewReader(data), opts)
}

func hashRow(h *xxh3.Hasher, fields ...string) {
	for _, f := range fields {
		_, _ = h.WriteString(f)
		_, _ = h.Write(fieldSep)
	}
	_, _ = h.Write(rowSep)
}
