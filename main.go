// Command wspranalytics runs the WSPR spot analytics service: it downloads
// raw spot reports from wspr.live for a configured transmitter callsign,
// derives the summary tables, and serves results, logs, and counters over a
// small JSON API.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"wspranalytics/config"
	"wspranalytics/cty"
	"wspranalytics/stats"
	"wspranalytics/web"
)

const Version = "1.0.0"

func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	forceConsole := flag.Bool("console", false, "mirror log lines to stdout even without a terminal")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	for _, note := range cfg.Normalize() {
		log.Printf("Warning: config: %s", note)
	}

	// Console echo only when stdout is a terminal (or forced); the file and
	// memory sinks always receive every line.
	var console io.Writer
	if *forceConsole || isStdoutTTY() {
		console = os.Stdout
	}
	fanout, ring, err := setupLogging(cfg.Logging, console)
	if err != nil {
		log.Printf("Warning: file logging unavailable: %v", err)
	}
	log.SetFlags(0)
	log.SetOutput(fanout)

	log.Printf("WSPR Analytics v%s starting...", Version)
	log.Printf("Loaded configuration from %s", *configPath)
	cfg.Print()

	tracker := stats.NewTracker()
	srv := web.New(web.Options{
		ConfigPath: *configPath,
		Config:     cfg,
		Tracker:    tracker,
		Logs:       ring,
		Logger:     log.Default(),
	})

	// Warm up the country-prefix database in the background. The service is
	// useful without it; analyses just report Unknown until it arrives.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.CTY.TimeoutSeconds)*time.Second+30*time.Second)
		defer cancel()
		db, err := cty.Ensure(ctx, cty.FetchOptions{
			Path:      cfg.CTY.Path,
			URL:       cfg.CTY.URL,
			Timeout:   time.Duration(cfg.CTY.TimeoutSeconds) * time.Second,
			UserAgent: cfg.Fetch.UserAgent,
			Logger:    log.Default(),
		})
		if err != nil {
			log.Printf("Warning: country resolution unavailable: %v", err)
			return
		}
		srv.SetResolver(db)
		log.Printf("Country-prefix database ready: %d entries", db.Len())
	}()

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP API listening on http://%s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
		log.Println("Shutting down gracefully...")
	case err := <-serverErr:
		log.Printf("HTTP server failed: %v", err)
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: HTTP shutdown: %v", err)
	}

	for _, line := range tracker.SnapshotLines() {
		log.Println(line)
	}
	log.Println("Analytics server stopped")

	log.SetOutput(os.Stderr)
	if err := fanout.Close(); err != nil {
		log.Printf("Warning: closing log sinks: %v", err)
	}
	os.Exit(exitCode)
}
