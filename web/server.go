// Package web serves the HTTP API: configuration management, fetch and
// analyze triggers, the latest result bundle, log tail, runtime stats, and
// the raw CSV export.
package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"

	"wspranalytics/analyze"
	"wspranalytics/buffer"
	"wspranalytics/config"
	"wspranalytics/cty"
	"wspranalytics/spot"
	"wspranalytics/stats"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Logger is the logging capability the server accepts.
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

// Options configures the server. Config falls back to compiled defaults and
// Tracker to a fresh one; Resolver and Logs may stay nil (degraded lookups,
// empty log view).
type Options struct {
	ConfigPath string
	Config     *config.Config
	Resolver   *cty.Database
	Tracker    *stats.Tracker
	Logs       *buffer.LineRing
	Logger     Logger
}

// Server owns the mutable service state: the configuration, the country
// resolver, and the latest dataset and result snapshots. All handler access
// goes through the mutex; pipeline runs compute outside it and swap their
// product in afterwards.
type Server struct {
	mu       sync.Mutex
	cfgPath  string
	cfg      *config.Config
	resolver *cty.Database
	data     *datasetSnapshot
	result   *analyze.Result

	tracker *stats.Tracker
	logs    *buffer.LineRing
	logger  Logger
	now     func() time.Time
}

// datasetSnapshot pins one fetched payload together with its parsed form and
// the station parameters it was fetched for.
type datasetSnapshot struct {
	set       *spot.RecordSet
	raw       []byte
	callsign  string
	period    string
	fetchedAt time.Time
}

// New creates the server around the shared service state.
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = stats.NewTracker()
	}
	return &Server{
		cfgPath:  opts.ConfigPath,
		cfg:      cfg,
		resolver: opts.Resolver,
		tracker:  tracker,
		logs:     opts.Logs,
		logger:   orNop(opts.Logger),
		now:      time.Now,
	}
}

// SetResolver installs or replaces the country resolver. Called by the
// warmup goroutine once the prefix database has loaded, and after a refresh.
func (s *Server) SetResolver(db *cty.Database) {
	s.mu.Lock()
	s.resolver = db
	s.mu.Unlock()
}

// Routes assembles the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLog)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", s.handleConfigGet)
		r.Post("/config", s.handleConfigUpdate)
		r.Post("/config/reset", s.handleConfigReset)
		r.Post("/fetch", s.handleFetch)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/analysis", s.handleAnalysisGet)
		r.Get("/logs", s.handleLogs)
		r.Get("/stats", s.handleStats)
		r.Post("/cty/refresh", s.handleCTYRefresh)
	})
	r.Get("/export/raw.csv", s.handleExportRaw)
	return r
}

// requestLog emits one line per call and feeds the request counter.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := s.now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.tracker.IncrementHTTPRequests()
		s.logger.Printf("http: %s %s -> %d (%d bytes, %s)",
			r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(),
			time.Since(started).Round(time.Millisecond))
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := jsonAPI.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("http: response encode failed: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
