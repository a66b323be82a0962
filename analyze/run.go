package analyze

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"wspranalytics/spot"
)

// Options configures a pipeline run. The zero value runs with DefaultBins,
// no resolver (every country resolves Unknown), and no logging.
type Options struct {
	NumBins  int
	Resolver Resolver
	Logger   Logger
}

// Result bundles the seven derived tables of one run plus run metadata. A
// Result is only ever returned whole: on any failure the caller gets nil and
// an error, never a partial bundle.
type Result struct {
	Summary     []SummaryMetric   `json:"summary"`
	Linear      []BinCount        `json:"distance_bins"`
	Log         []BinCount        `json:"distance_bins_log"`
	Furthest    []FurthestStation `json:"furthest_stations"`
	Receivers   []ReceiverCount   `json:"receiver_counts"`
	Countries   []CountryCount    `json:"countries"`
	Hourly      []HourlyStat      `json:"hourly"`
	Rows        int               `json:"rows"`
	Fingerprint string            `json:"fingerprint"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Run executes the aggregations against one loaded RecordSet in the fixed
// order: summary, linear bins, log bins, furthest ranking, receiver counts,
// countries, hourly stats. The first aggregation failure aborts the run with
// the cause attached.
func Run(rs *spot.RecordSet, opts Options) (*Result, error) {
	if rs == nil || rs.Len() == 0 {
		return nil, ErrNoDataset
	}
	bins := opts.NumBins
	if bins < 1 {
		bins = DefaultBins
	}
	logger := orNop(opts.Logger)
	started := time.Now()
	logger.Printf("analyze: starting run over %s rows (fingerprint %016x, %d bins)",
		humanize.Comma(int64(rs.Len())), rs.Fingerprint(), bins)

	res := &Result{
		Rows:        rs.Len(),
		Fingerprint: fmt.Sprintf("%016x", rs.Fingerprint()),
		GeneratedAt: time.Now().UTC(),
	}
	res.Summary = Summarize(rs)

	var err error
	if res.Linear, err = LinearBins(rs, bins); err != nil {
		return nil, fmt.Errorf("distance binning: %w", err)
	}
	if res.Log, err = LogBins(rs, bins); err != nil {
		return nil, fmt.Errorf("logarithmic binning: %w", err)
	}
	res.Furthest = FurthestStations(rs)
	res.Receivers = ReceiverCounts(rs)
	res.Countries = Countries(rs, opts.Resolver)
	if res.Hourly, err = HourlyStats(rs); err != nil {
		return nil, fmt.Errorf("hourly statistics: %w", err)
	}

	logger.Printf("analyze: run complete in %s (%d countries, %d receivers, %d hourly rows)",
		time.Since(started).Round(time.Millisecond), len(res.Countries), len(res.Receivers), len(res.Hourly))
	return res, nil
}
