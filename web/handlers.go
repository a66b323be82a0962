package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"wspranalytics/analyze"
	"wspranalytics/config"
	"wspranalytics/cty"
	"wspranalytics/sink"
	"wspranalytics/spot"
	"wspranalytics/stats"
	"wspranalytics/strutil"
	"wspranalytics/wsprlive"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cfg := *s.cfg
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, cfg)
}

// configUpdate carries the station settings the web UI may change. Pointer
// fields distinguish "absent" from an explicit zero value.
type configUpdate struct {
	Callsign    *string `json:"callsign"`
	Period      *string `json:"period"`
	NumBins     *int    `json:"num_bins"`
	TopStations *int    `json:"top_stations"`
}

func (s *Server) handleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	var upd configUpdate
	if err := jsonAPI.NewDecoder(r.Body).Decode(&upd); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if upd.Period != nil && !wsprlive.ValidPeriod(*upd.Period) {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown period %q", *upd.Period))
		return
	}
	if upd.NumBins != nil && *upd.NumBins < 1 {
		s.writeError(w, http.StatusBadRequest, "num_bins must be at least 1")
		return
	}
	if upd.TopStations != nil && *upd.TopStations < 0 {
		s.writeError(w, http.StatusBadRequest, "top_stations must not be negative")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := *s.cfg
	if upd.Callsign != nil {
		next.Station.Callsign = strutil.NormalizeUpper(*upd.Callsign)
	}
	if upd.Period != nil {
		next.Station.Period = *upd.Period
	}
	if upd.NumBins != nil {
		next.Analysis.NumBins = *upd.NumBins
	}
	if upd.TopStations != nil {
		next.Analysis.TopStations = *upd.TopStations
	}
	if s.cfgPath != "" {
		if err := next.Save(s.cfgPath); err != nil {
			s.logger.Printf("config: save failed: %v", err)
			s.writeError(w, http.StatusInternalServerError, "failed to persist configuration")
			return
		}
	}
	*s.cfg = next
	s.logger.Printf("config: updated station=%s period=%q bins=%d top=%d",
		next.Station.Callsign, next.Station.Period, next.Analysis.NumBins, next.Analysis.TopStations)
	s.writeJSON(w, http.StatusOK, next)
}

func (s *Server) handleConfigReset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfgPath != "" {
		cfg, err := config.Reset(s.cfgPath)
		if err != nil {
			s.logger.Printf("config: reset failed: %v", err)
			s.writeError(w, http.StatusInternalServerError, "failed to reset configuration")
			return
		}
		*s.cfg = *cfg
	} else {
		*s.cfg = *config.Default()
	}
	s.logger.Printf("config: reset to defaults")
	s.writeJSON(w, http.StatusOK, *s.cfg)
}

// fetchResponse reports what one download produced.
type fetchResponse struct {
	Callsign    string    `json:"callsign"`
	Period      string    `json:"period"`
	Rows        int       `json:"rows"`
	BadDistance int       `json:"bad_distance_rows"`
	BadTime     int       `json:"bad_time_rows"`
	Bytes       int       `json:"bytes"`
	Fingerprint string    `json:"fingerprint"`
	FetchedAt   time.Time `json:"fetched_at"`
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cfg := *s.cfg
	s.mu.Unlock()

	callsign := strutil.NormalizeUpper(cfg.Station.Callsign)
	if callsign == "" {
		s.writeError(w, http.StatusBadRequest, "station.callsign is not configured")
		return
	}
	if !wsprlive.ValidPeriod(cfg.Station.Period) {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown period %q", cfg.Station.Period))
		return
	}

	client := wsprlive.New(wsprlive.Options{
		BaseURL:   cfg.Fetch.BaseURL,
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		Logger:    s.logger,
	})
	payload, err := client.Fetch(r.Context(), callsign, cfg.Station.Period)
	if err != nil {
		s.tracker.IncrementFetchFailures()
		s.logger.Printf("fetch: %v", err)
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	rs, err := spot.Parse(payload, spot.Options{Source: "wspr.live", Logger: s.logger})
	if err != nil {
		if errors.Is(err, spot.ErrNoData) || errors.Is(err, spot.ErrEmptyPayload) {
			s.tracker.IncrementFetches()
			s.writeError(w, http.StatusNotFound,
				fmt.Sprintf("no spots reported for %s in the last %s", callsign, cfg.Station.Period))
			return
		}
		s.tracker.IncrementFetchFailures()
		s.logger.Printf("fetch: %v", err)
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.tracker.IncrementFetches()
	st := rs.Stats()
	s.tracker.AddRowsLoaded(st.Rows)
	s.tracker.AddRowsDegraded(st.BadDistance + st.BadTime)
	for _, rec := range rs.Rows() {
		s.tracker.IncrementBand(rec.Band)
	}

	// The raw payload is persisted verbatim at fetch time so the export and
	// a later analysis always refer to the same bytes.
	if _, err := sink.WriteRaw(payload, sink.Options{Dir: cfg.Data.Dir, Logger: s.logger}); err != nil {
		s.tracker.IncrementPersistFailures()
		s.logger.Printf("fetch: raw payload not saved: %v", err)
	}

	snap := &datasetSnapshot{
		set:       rs,
		raw:       payload,
		callsign:  callsign,
		period:    cfg.Station.Period,
		fetchedAt: s.now().UTC(),
	}
	s.mu.Lock()
	s.data = snap
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, fetchResponse{
		Callsign:    callsign,
		Period:      cfg.Station.Period,
		Rows:        st.Rows,
		BadDistance: st.BadDistance,
		BadTime:     st.BadTime,
		Bytes:       len(payload),
		Fingerprint: fmt.Sprintf("%016x", rs.Fingerprint()),
		FetchedAt:   snap.fetchedAt,
	})
}

// analyzeResponse is the full result bundle plus persistence outcome.
type analyzeResponse struct {
	*analyze.Result
	PersistError string `json:"persist_error,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data := s.data
	cfg := *s.cfg
	resolver := s.resolver
	s.mu.Unlock()

	if data == nil {
		s.writeError(w, http.StatusConflict, "no dataset loaded; fetch first")
		return
	}

	opts := analyze.Options{NumBins: cfg.Analysis.NumBins, Logger: s.logger}
	if resolver != nil {
		opts.Resolver = resolver
	}
	res, err := analyze.Run(data.set, opts)
	if err != nil {
		s.tracker.IncrementAnalysisFailures()
		s.logger.Printf("analyze: %v", err)
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.tracker.IncrementAnalyses()

	resp := analyzeResponse{Result: res}
	if err := sink.WriteTables(res.Tables(), sink.Options{
		Dir:    cfg.Data.Dir,
		Format: cfg.Data.Format,
		Logger: s.logger,
	}); err != nil {
		s.tracker.IncrementPersistFailures()
		s.logger.Printf("analyze: persistence incomplete: %v", err)
		resp.PersistError = err.Error()
	}

	s.mu.Lock()
	s.result = res
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalysisGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	res := s.result
	top := s.cfg.Analysis.TopStations
	s.mu.Unlock()

	if res == nil {
		s.writeError(w, http.StatusNotFound, "no analysis available; analyze first")
		return
	}
	view := *res
	if top > 0 {
		if len(view.Furthest) > top {
			view.Furthest = view.Furthest[:top]
		}
		if len(view.Receivers) > top {
			view.Receivers = view.Receivers[:top]
		}
	}
	s.writeJSON(w, http.StatusOK, view)
}

type logsResponse struct {
	Lines []string `json:"lines"`
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	lines := 100
	if q := r.URL.Query().Get("lines"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "lines must be a positive integer")
			return
		}
		lines = n
	}
	resp := logsResponse{Lines: []string{}}
	if s.logs != nil {
		resp.Lines = s.logs.Tail(lines)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// resolverStats mirrors the prefix-database counters for the stats view.
type resolverStats struct {
	Loaded       bool   `json:"loaded"`
	Entries      int    `json:"entries"`
	TotalLookups uint64 `json:"total_lookups"`
	CacheHits    uint64 `json:"cache_hits"`
	CacheEntries uint64 `json:"cache_entries"`
	Resolved     uint64 `json:"resolved"`
	Unknown      uint64 `json:"unknown"`
}

type statsResponse struct {
	Pipeline stats.Snapshot `json:"pipeline"`
	Resolver resolverStats  `json:"resolver"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resolver := s.resolver
	s.mu.Unlock()

	resp := statsResponse{Pipeline: s.tracker.Snapshot()}
	if resolver != nil {
		m := resolver.Metrics()
		resp.Resolver = resolverStats{
			Loaded:       true,
			Entries:      resolver.Len(),
			TotalLookups: m.TotalLookups,
			CacheHits:    m.CacheHits,
			CacheEntries: m.CacheEntries,
			Resolved:     m.Resolved,
			Unknown:      m.Unknown,
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// ctyRefreshResponse reports the outcome of a prefix-database refresh.
type ctyRefreshResponse struct {
	Status  string `json:"status"`
	Entries int    `json:"entries"`
	SHA256  string `json:"sha256,omitempty"`
}

func (s *Server) handleCTYRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cfg := *s.cfg
	s.mu.Unlock()

	force := r.URL.Query().Get("force")
	res, err := cty.Fetch(r.Context(), cty.FetchOptions{
		Path:    cfg.CTY.Path,
		URL:     cfg.CTY.URL,
		Timeout: time.Duration(cfg.CTY.TimeoutSeconds) * time.Second,
		Force:   force == "1" || force == "true",
		Logger:  s.logger,
	})
	if err != nil {
		s.logger.Printf("cty: refresh failed: %v", err)
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	db, err := cty.Load(cfg.CTY.Path)
	if err != nil {
		s.logger.Printf("cty: reload failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.SetResolver(db)
	s.logger.Printf("cty: %s, %d prefixes loaded", res.Status, db.Len())

	s.writeJSON(w, http.StatusOK, ctyRefreshResponse{
		Status:  string(res.Status),
		Entries: db.Len(),
		SHA256:  res.Meta.SHA256,
	})
}

func (s *Server) handleExportRaw(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data := s.data
	s.mu.Unlock()

	if data == nil || len(data.raw) == 0 {
		s.writeError(w, http.StatusNotFound, "no raw dataset available; fetch first")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sink.RawFile))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data.raw)
}
