// Package stats tracks pipeline counters plus per-band spot totals for the
// stats endpoint and periodic console output.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Tracker tracks fetch/analysis activity across the pipeline.
type Tracker struct {
	// counters live in sync.Map + atomic.Uint64 so per-spot increments don't fight over a mutex
	bandCounts sync.Map // band -> *atomic.Uint64
	start      atomic.Int64

	fetches          atomic.Uint64
	fetchFailures    atomic.Uint64
	analyses         atomic.Uint64
	analysisFailures atomic.Uint64
	rowsLoaded       atomic.Uint64
	rowsDegraded     atomic.Uint64
	persistFailures  atomic.Uint64
	httpRequests     atomic.Uint64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	UptimeSeconds    float64           `json:"uptime_seconds"`
	Fetches          uint64            `json:"fetches"`
	FetchFailures    uint64            `json:"fetch_failures"`
	Analyses         uint64            `json:"analyses"`
	AnalysisFailures uint64            `json:"analysis_failures"`
	RowsLoaded       uint64            `json:"rows_loaded"`
	RowsDegraded     uint64            `json:"rows_degraded"`
	PersistFailures  uint64            `json:"persist_failures"`
	HTTPRequests     uint64            `json:"http_requests"`
	SpotsByBand      map[string]uint64 `json:"spots_by_band"`
}

// NewTracker creates a new stats tracker
func NewTracker() *Tracker {
	t := &Tracker{}
	t.start.Store(time.Now().UnixNano())
	return t
}

// IncrementFetches counts a completed download from the spot feed.
func (t *Tracker) IncrementFetches() {
	t.fetches.Add(1)
}

// IncrementFetchFailures counts a download attempt that returned an error.
func (t *Tracker) IncrementFetchFailures() {
	t.fetchFailures.Add(1)
}

// IncrementAnalyses counts a completed analysis pass over a dataset.
func (t *Tracker) IncrementAnalyses() {
	t.analyses.Add(1)
}

// IncrementAnalysisFailures counts an analysis pass that returned an error.
func (t *Tracker) IncrementAnalysisFailures() {
	t.analysisFailures.Add(1)
}

// IncrementPersistFailures counts a table or raw-payload write that failed.
func (t *Tracker) IncrementPersistFailures() {
	t.persistFailures.Add(1)
}

// IncrementHTTPRequests counts a handled API request.
func (t *Tracker) IncrementHTTPRequests() {
	t.httpRequests.Add(1)
}

// AddRowsLoaded adds records accepted by the loader.
func (t *Tracker) AddRowsLoaded(n int) {
	if n > 0 {
		t.rowsLoaded.Add(uint64(n))
	}
}

// AddRowsDegraded adds rows the loader kept with an unparseable field.
func (t *Tracker) AddRowsDegraded(n int) {
	if n > 0 {
		t.rowsDegraded.Add(uint64(n))
	}
}

// IncrementBand increases the spot count for a band tag ("7", "14", ...).
func (t *Tracker) IncrementBand(band string) {
	incrementCounter(&t.bandCounts, strings.ToUpper(strings.TrimSpace(band)))
}

// GetBandCounts returns a copy of per-band spot counts.
func (t *Tracker) GetBandCounts() map[string]uint64 {
	counts := make(map[string]uint64)
	t.bandCounts.Range(func(key, value any) bool {
		counts[key.(string)] = value.(*atomic.Uint64).Load()
		return true
	})
	return counts
}

// Fetches returns the cumulative number of completed downloads.
func (t *Tracker) Fetches() uint64 {
	return t.fetches.Load()
}

// FetchFailures returns the cumulative number of failed downloads.
func (t *Tracker) FetchFailures() uint64 {
	return t.fetchFailures.Load()
}

// Analyses returns the cumulative number of completed analysis passes.
func (t *Tracker) Analyses() uint64 {
	return t.analyses.Load()
}

// AnalysisFailures returns the cumulative number of failed analysis passes.
func (t *Tracker) AnalysisFailures() uint64 {
	return t.analysisFailures.Load()
}

// RowsLoaded returns the cumulative number of accepted records.
func (t *Tracker) RowsLoaded() uint64 {
	return t.rowsLoaded.Load()
}

// RowsDegraded returns the cumulative number of degraded rows.
func (t *Tracker) RowsDegraded() uint64 {
	return t.rowsDegraded.Load()
}

// PersistFailures returns the cumulative number of failed writes.
func (t *Tracker) PersistFailures() uint64 {
	return t.persistFailures.Load()
}

// HTTPRequests returns the cumulative number of handled API requests.
func (t *Tracker) HTTPRequests() uint64 {
	return t.httpRequests.Load()
}

// GetUptime returns how long the tracker has been running
func (t *Tracker) GetUptime() time.Duration {
	start := t.start.Load()
	return time.Since(time.Unix(0, start))
}

// Snapshot returns a copy of all counters for serialization.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		UptimeSeconds:    t.GetUptime().Seconds(),
		Fetches:          t.fetches.Load(),
		FetchFailures:    t.fetchFailures.Load(),
		Analyses:         t.analyses.Load(),
		AnalysisFailures: t.analysisFailures.Load(),
		RowsLoaded:       t.rowsLoaded.Load(),
		RowsDegraded:     t.rowsDegraded.Load(),
		PersistFailures:  t.persistFailures.Load(),
		HTTPRequests:     t.httpRequests.Load(),
		SpotsByBand:      t.GetBandCounts(),
	}
}

// Reset resets all counters
func (t *Tracker) Reset() {
	t.bandCounts.Range(func(key, _ any) bool {
		t.bandCounts.Delete(key)
		return true
	})
	t.fetches.Store(0)
	t.fetchFailures.Store(0)
	t.analyses.Store(0)
	t.analysisFailures.Store(0)
	t.rowsLoaded.Store(0)
	t.rowsDegraded.Store(0)
	t.persistFailures.Store(0)
	t.httpRequests.Store(0)
	t.start.Store(time.Now().UnixNano())
}

// SnapshotLines returns human-readable stats ready for console display.
func (t *Tracker) SnapshotLines() []string {
	lines := make([]string, 0, 2)
	lines = append(lines, fmt.Sprintf("Pipeline: fetches=%d fetch_failures=%d analyses=%d analysis_failures=%d rows=%d degraded=%d persist_failures=%d",
		t.fetches.Load(), t.fetchFailures.Load(), t.analyses.Load(), t.analysisFailures.Load(),
		t.rowsLoaded.Load(), t.rowsDegraded.Load(), t.persistFailures.Load()))
	lines = append(lines, formatMapCounts("Spots by band", &t.bandCounts))
	return lines
}

func formatMapCounts(label string, counts *sync.Map) string {
	snapshot := make(map[string]uint64)
	counts.Range(func(key, value any) bool {
		snapshot[key.(string)] = value.(*atomic.Uint64).Load()
		return true
	})
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString(label)
	builder.WriteString(": ")
	if len(keys) == 0 {
		builder.WriteString("(none)")
		return builder.String()
	}
	for i, key := range keys {
		if i > 0 {
			builder.WriteString(", ")
		}
		fmt.Fprintf(&builder, "%s=%d", key, snapshot[key])
	}
	return builder.String()
}

func incrementCounter(m *sync.Map, key string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	if value, ok := m.Load(key); ok {
		value.(*atomic.Uint64).Add(1)
		return
	}
	counter := &atomic.Uint64{}
	actual, loaded := m.LoadOrStore(key, counter)
	if loaded {
		actual.(*atomic.Uint64).Add(1)
		return
	}
	counter.Add(1)
}
