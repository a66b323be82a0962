package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"wspranalytics/buffer"
	"wspranalytics/config"
	"wspranalytics/cty"
)

// samplePLIST is a minimal prefix database: one exact entry and two plain
// prefixes, enough to resolve the callsigns in sampleSpotsCSV.
const samplePLIST = `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
<key>OH</key>
	<dict>
		<key>Country</key>
		<string>Finland</string>
		<key>Prefix</key>
		<string>OH</string>
		<key>ExactCallsign</key>
		<false/>
	</dict>
<key>EA8</key>
	<dict>
		<key>Country</key>
		<string>Canary Islands</string>
		<key>Prefix</key>
		<string>EA8</string>
		<key>ExactCallsign</key>
		<false/>
	</dict>
<key>S5</key>
	<dict>
		<key>Country</key>
		<string>Slovenia</string>
		<key>Prefix</key>
		<string>S5</string>
		<key>ExactCallsign</key>
		<false/>
	</dict>
</dict>
</plist>`

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(opts)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

// doJSON issues a request and decodes the JSON response into out when out is
// non-nil. It returns the HTTP status code.
func doJSON(t *testing.T, method, url string, body string, out any) int {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("build %s %s: %v", method, url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s body: %v", url, err)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decode %s: %v\nbody: %s", url, err, data)
		}
	}
	return resp.StatusCode
}

func loadTestResolver(t *testing.T) *cty.Database {
	t.Helper()
	db, err := cty.FromReader(strings.NewReader(samplePLIST))
	if err != nil {
		t.Fatalf("parse sample plist: %v", err)
	}
	return db
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok\n" {
		t.Errorf("body=%q want %q", body, "ok\n")
	}
}

func TestRequestsAreCounted(t *testing.T) {
	srv, ts := newTestServer(t, Options{})
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/healthz")
		if err != nil {
			t.Fatalf("GET /healthz: %v", err)
		}
		resp.Body.Close()
	}
	if got := srv.tracker.HTTPRequests(); got != 3 {
		t.Errorf("http requests=%d want 3", got)
	}
}

func TestConfigGetReturnsCurrent(t *testing.T) {
	cfg := config.Default()
	cfg.Station.Callsign = "EA8BFK"
	cfg.Analysis.NumBins = 12
	_, ts := newTestServer(t, Options{Config: cfg})

	var got config.Config
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/config", "", &got); status != http.StatusOK {
		t.Fatalf("status=%d want 200", status)
	}
	if got.Station.Callsign != "EA8BFK" {
		t.Errorf("callsign=%q want EA8BFK", got.Station.Callsign)
	}
	if got.Analysis.NumBins != 12 {
		t.Errorf("num_bins=%d want 12", got.Analysis.NumBins)
	}
	if got.Fetch.BaseURL != cfg.Fetch.BaseURL {
		t.Errorf("base_url=%q want %q", got.Fetch.BaseURL, cfg.Fetch.BaseURL)
	}
}

func TestConfigUpdateAppliesAndPersists(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	_, ts := newTestServer(t, Options{ConfigPath: cfgPath, Config: config.Default()})

	body := `{"callsign":"ea8bfk","period":"3 hours","num_bins":12,"top_stations":5}`
	var got config.Config
	if status := doJSON(t, http.MethodPost, ts.URL+"/api/config", body, &got); status != http.StatusOK {
		t.Fatalf("status=%d want 200", status)
	}
	if got.Station.Callsign != "EA8BFK" {
		t.Errorf("callsign=%q want EA8BFK (uppercased)", got.Station.Callsign)
	}
	if got.Station.Period != "3 hours" {
		t.Errorf("period=%q want %q", got.Station.Period, "3 hours")
	}
	if got.Analysis.NumBins != 12 || got.Analysis.TopStations != 5 {
		t.Errorf("analysis=%+v want bins 12 top 5", got.Analysis)
	}

	saved, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("reload saved config: %v", err)
	}
	if saved.Station.Callsign != "EA8BFK" || saved.Station.Period != "3 hours" {
		t.Errorf("persisted station=%+v want EA8BFK / 3 hours", saved.Station)
	}
	if saved.Analysis.NumBins != 12 {
		t.Errorf("persisted num_bins=%d want 12", saved.Analysis.NumBins)
	}
}

func TestConfigUpdatePartialKeepsRest(t *testing.T) {
	cfg := config.Default()
	cfg.Station.Callsign = "S53ZO"
	cfg.Analysis.NumBins = 12
	_, ts := newTestServer(t, Options{Config: cfg})

	var got config.Config
	if status := doJSON(t, http.MethodPost, ts.URL+"/api/config", `{"period":"1 day"}`, &got); status != http.StatusOK {
		t.Fatalf("status=%d want 200", status)
	}
	if got.Station.Callsign != "S53ZO" {
		t.Errorf("callsign=%q want S53ZO untouched", got.Station.Callsign)
	}
	if got.Station.Period != "1 day" {
		t.Errorf("period=%q want %q", got.Station.Period, "1 day")
	}
	if got.Analysis.NumBins != 12 {
		t.Errorf("num_bins=%d want 12 untouched", got.Analysis.NumBins)
	}
}

func TestConfigUpdateRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"callsign":`},
		{"unknown period", `{"period":"2 fortnights"}`},
		{"zero bins", `{"num_bins":0}`},
		{"negative top", `{"top_stations":-1}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, ts := newTestServer(t, Options{Config: config.Default()})
			var e errorResponse
			if status := doJSON(t, http.MethodPost, ts.URL+"/api/config", tc.body, &e); status != http.StatusBadRequest {
				t.Fatalf("status=%d want 400", status)
			}
			if e.Error == "" {
				t.Errorf("error message is empty")
			}
			srv.mu.Lock()
			changed := *srv.cfg != *config.Default()
			srv.mu.Unlock()
			if changed {
				t.Errorf("config changed after rejected update")
			}
		})
	}
}

func TestConfigReset(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	cfg := config.Default()
	cfg.Station.Callsign = "EA8BFK"
	cfg.Analysis.NumBins = 12
	_, ts := newTestServer(t, Options{ConfigPath: cfgPath, Config: cfg})

	var got config.Config
	if status := doJSON(t, http.MethodPost, ts.URL+"/api/config/reset", "", &got); status != http.StatusOK {
		t.Fatalf("status=%d want 200", status)
	}
	if got.Station.Callsign != "" {
		t.Errorf("callsign=%q want empty after reset", got.Station.Callsign)
	}
	if got.Analysis.NumBins != config.Default().Analysis.NumBins {
		t.Errorf("num_bins=%d want default", got.Analysis.NumBins)
	}

	saved, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("reload saved config: %v", err)
	}
	if saved.Station.Callsign != "" {
		t.Errorf("persisted callsign=%q want empty", saved.Station.Callsign)
	}
}

func TestLogsEndpoint(t *testing.T) {
	ring := buffer.NewLineRing(8)
	ring.Append("one")
	ring.Append("two")
	ring.Append("three")
	_, ts := newTestServer(t, Options{Logs: ring})

	var got logsResponse
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/logs?lines=2", "", &got); status != http.StatusOK {
		t.Fatalf("status=%d want 200", status)
	}
	if len(got.Lines) != 2 || got.Lines[0] != "two" || got.Lines[1] != "three" {
		t.Errorf("lines=%v want [two three]", got.Lines)
	}

	if status := doJSON(t, http.MethodGet, ts.URL+"/api/logs", "", &got); status != http.StatusOK {
		t.Fatalf("status=%d want 200", status)
	}
	if len(got.Lines) != 3 {
		t.Errorf("default window returned %d lines want 3", len(got.Lines))
	}

	var e errorResponse
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/logs?lines=abc", "", &e); status != http.StatusBadRequest {
		t.Errorf("lines=abc status=%d want 400", status)
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/logs?lines=0", "", &e); status != http.StatusBadRequest {
		t.Errorf("lines=0 status=%d want 400", status)
	}
}

func TestLogsWithoutRing(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	var got logsResponse
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/logs", "", &got); status != http.StatusOK {
		t.Fatalf("status=%d want 200", status)
	}
	if got.Lines == nil || len(got.Lines) != 0 {
		t.Errorf("lines=%v want empty slice", got.Lines)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, ts := newTestServer(t, Options{})
	srv.tracker.IncrementFetches()
	srv.tracker.AddRowsLoaded(42)
	srv.tracker.IncrementBand("14")

	var got statsResponse
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/stats", "", &got); status != http.StatusOK {
		t.Fatalf("status=%d want 200", status)
	}
	if got.Pipeline.Fetches != 1 {
		t.Errorf("fetches=%d want 1", got.Pipeline.Fetches)
	}
	if got.Pipeline.RowsLoaded != 42 {
		t.Errorf("rows_loaded=%d want 42", got.Pipeline.RowsLoaded)
	}
	if got.Pipeline.SpotsByBand["14"] != 1 {
		t.Errorf("spots_by_band=%v want 14=1", got.Pipeline.SpotsByBand)
	}
	if got.Resolver.Loaded {
		t.Errorf("resolver loaded=true want false without a database")
	}
}

func TestStatsWithResolver(t *testing.T) {
	srv, ts := newTestServer(t, Options{})
	db := loadTestResolver(t)
	srv.SetResolver(db)
	db.Resolve("OH6BG")
	db.Resolve("XX9XX")

	var got statsResponse
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/stats", "", &got); status != http.StatusOK {
		t.Fatalf("status=%d want 200", status)
	}
	if !got.Resolver.Loaded {
		t.Fatalf("resolver loaded=false want true")
	}
	if got.Resolver.Entries != db.Len() {
		t.Errorf("entries=%d want %d", got.Resolver.Entries, db.Len())
	}
	if got.Resolver.TotalLookups != 2 {
		t.Errorf("total_lookups=%d want 2", got.Resolver.TotalLookups)
	}
	if got.Resolver.Resolved != 1 || got.Resolver.Unknown != 1 {
		t.Errorf("resolved=%d unknown=%d want 1/1", got.Resolver.Resolved, got.Resolver.Unknown)
	}
}

func TestWriteJSONSetsContentType(t *testing.T) {
	srv := New(Options{})
	rec := httptest.NewRecorder()
	srv.writeJSON(rec, http.StatusTeapot, map[string]string{"k": "v"})
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status=%d want 418", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content-type=%q", ct)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"k":"v"`)) {
		t.Errorf("body=%s want to contain k/v pair", rec.Body.String())
	}
}
