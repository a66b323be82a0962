// Command wspranalyze runs the pipeline once from the command line: fetch a
// payload from wspr.live (or read a saved one), run the aggregations, persist
// the tables, and print the summary to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"wspranalytics/analyze"
	"wspranalytics/config"
	"wspranalytics/cty"
	"wspranalytics/sink"
	"wspranalytics/spot"
	"wspranalytics/strutil"
	"wspranalytics/wsprlive"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	input := flag.String("input", "", "analyze a saved CSV payload instead of fetching")
	callsign := flag.String("callsign", "", "transmitter callsign (overrides config)")
	period := flag.String("period", "", `reporting period, e.g. "3 hours" (overrides config)`)
	bins := flag.Int("bins", 0, "number of distance bins (overrides config)")
	format := flag.String("format", "", "table format: csv, json, txt, or sqlite (overrides config)")
	outDir := flag.String("out", "", "output directory (overrides config)")
	noSave := flag.Bool("no-save", false, "print the summary without persisting tables")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	must(err)
	for _, note := range cfg.Normalize() {
		log.Printf("Warning: config: %s", note)
	}
	if *callsign != "" {
		cfg.Station.Callsign = strutil.NormalizeUpper(*callsign)
	}
	if *period != "" {
		cfg.Station.Period = *period
	}
	if *bins > 0 {
		cfg.Analysis.NumBins = *bins
	}
	if *format != "" {
		cfg.Data.Format = strings.ToLower(strings.TrimSpace(*format))
	}
	if *outDir != "" {
		cfg.Data.Dir = *outDir
	}

	var payload []byte
	source := *input
	if *input != "" {
		payload, err = os.ReadFile(*input)
		must(err)
	} else {
		if cfg.Station.Callsign == "" {
			log.Fatal("no callsign configured; set station.callsign or pass -callsign")
		}
		if !wsprlive.ValidPeriod(cfg.Station.Period) {
			log.Fatalf("unknown period %q; choices: %s",
				cfg.Station.Period, strings.Join(wsprlive.Periods(), ", "))
		}
		client := wsprlive.New(wsprlive.Options{
			BaseURL:   cfg.Fetch.BaseURL,
			UserAgent: cfg.Fetch.UserAgent,
			Timeout:   time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
			Logger:    log.Default(),
		})
		payload, err = client.Fetch(context.Background(), cfg.Station.Callsign, cfg.Station.Period)
		must(err)
		source = "wspr.live"
	}

	rs, err := spot.Parse(payload, spot.Options{Source: source, Logger: log.Default()})
	must(err)

	opts := analyze.Options{NumBins: cfg.Analysis.NumBins, Logger: log.Default()}
	if db, ctyErr := cty.Load(cfg.CTY.Path); ctyErr != nil {
		log.Printf("Warning: country resolution unavailable: %v", ctyErr)
	} else {
		opts.Resolver = db
	}

	res, err := analyze.Run(rs, opts)
	must(err)

	if !*noSave {
		if *input == "" {
			_, err = sink.WriteRaw(payload, sink.Options{Dir: cfg.Data.Dir, Logger: log.Default()})
			must(err)
		}
		must(sink.WriteTables(res.Tables(), sink.Options{
			Dir:    cfg.Data.Dir,
			Format: cfg.Data.Format,
			Logger: log.Default(),
		}))
	}

	header := fmt.Sprintf("WSPR Analytics - %s over %s",
		strutil.NormalizeUpper(cfg.Station.Callsign), cfg.Station.Period)
	if *input != "" {
		header = "WSPR Analytics - " + *input
	}
	report := make([]string, 0, 32)
	report = append(report, fmt.Sprintf("%s (%s payload)",
		header, humanize.Bytes(uint64(len(payload)))))
	st := rs.Stats()
	if st.BadDistance > 0 || st.BadTime > 0 {
		report = append(report, fmt.Sprintf("Degraded rows: %d bad distance, %d bad time",
			st.BadDistance, st.BadTime))
	}
	report = append(report, "")
	for _, m := range res.Summary {
		report = append(report, fmt.Sprintf("  %-30s %s", m.Label, humanize.Comma(int64(m.Value))))
	}
	report = append(report, "")
	for _, tbl := range res.Tables() {
		report = append(report, fmt.Sprintf("  %-20s %d rows", tbl.Name, len(tbl.Rows)))
	}
	if !*noSave {
		report = append(report, "")
		report = append(report, fmt.Sprintf("Tables written to %s as %s", cfg.Data.Dir, cfg.Data.Format))
	}
	for _, line := range report {
		fmt.Println(line)
	}
}
