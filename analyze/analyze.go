// Package analyze implements the derived-table pipeline over a loaded spot
// dataset: summary counts, equal-frequency and logarithmic distance binning,
// furthest-station ranking, per-receiver frequency counts, per-country spot
// counts, and hourly distance statistics. Every aggregation consumes the
// RecordSet read-only and builds its own derived view; Run executes all of
// them in a fixed order with an all-or-nothing error policy.
package analyze

import "errors"

// DefaultBins is the bin count both distance histograms use unless the
// caller overrides it.
const DefaultBins = 8

// UnknownCountry is the fallback country label for rows whose receiver sign
// cannot be resolved, including empty signs and a degraded resolver.
const UnknownCountry = "Unknown"

// Table names under which the derived tables are persisted. The sink uses
// them as file basenames and SQL table names; they are stable contracts.
const (
	TableRaw       = "WSPR_Analytics"
	TableSummary   = "WSPR_Summary"
	TableLinear    = "WSPR_Graph"
	TableLog       = "WSPR_LogGraph"
	TableHourly    = "WSPR_Hourly"
	TableFurthest  = "WSPR_Distances"
	TableCallSigns = "WSPR_CallSigns"
	TableCountries = "WSPR_Countries"
)

var (
	// ErrNoDataset marks a Run invoked without a loaded RecordSet.
	ErrNoDataset = errors.New("no dataset loaded")
	// ErrNoDistances marks an aggregation that needs numeric distances when
	// not a single row carries one.
	ErrNoDistances = errors.New("no parseable distance values")
	// ErrNoTimeColumn marks the hourly aggregation running against a payload
	// that never had a time column.
	ErrNoTimeColumn = errors.New("dataset has no time column")
	// ErrNoTimestamps marks the hourly aggregation when the time column
	// exists but no row carries a parseable timestamp and distance.
	ErrNoTimestamps = errors.New("no rows with parseable timestamp and distance")
)

// Logger is the logging capability the pipeline accepts at construction.
// A nil Logger silences the pipeline; it never falls back to global state.
type Logger interface {
	Printf(format string, args ...any)
}

// Resolver maps a receiver callsign to a country name. Implementations must
// never fail: any lookup problem degrades to UnknownCountry. The cty package
// provides the production implementation.
type Resolver interface {
	Resolve(callsign string) string
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

func orNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}
