// Package config holds the service configuration: the station whose spots
// are analyzed, analysis tunables, fetch and prefix-database endpoints, data
// sink selection, HTTP server binding, and logging. Files are YAML; absent
// keys keep their defaults because loading unmarshals into a default config.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	Station  StationConfig  `yaml:"station" json:"station"`
	Analysis AnalysisConfig `yaml:"analysis" json:"analysis"`
	Fetch    FetchConfig    `yaml:"fetch" json:"fetch"`
	CTY      CTYConfig      `yaml:"cty" json:"cty"`
	Data     DataConfig     `yaml:"data" json:"data"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// StationConfig identifies the transmitter and fetch window.
type StationConfig struct {
	Callsign string `yaml:"callsign" json:"callsign"`
	Period   string `yaml:"period" json:"period"`
}

// AnalysisConfig contains aggregation tunables.
type AnalysisConfig struct {
	NumBins     int `yaml:"num_bins" json:"num_bins"`
	TopStations int `yaml:"top_stations" json:"top_stations"`
}

// FetchConfig contains wspr.live downloader settings.
type FetchConfig struct {
	BaseURL        string `yaml:"base_url" json:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent" json:"user_agent"`
}

// CTYConfig locates the prefix database and its download mirror.
type CTYConfig struct {
	Path           string `yaml:"path" json:"path"`
	URL            string `yaml:"url" json:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// DataConfig selects where and how tables are persisted.
type DataConfig struct {
	Dir    string `yaml:"dir" json:"dir"`
	Format string `yaml:"format" json:"format"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	BindAddress string `yaml:"bind_address" json:"bind_address"`
	HTTPPort    int    `yaml:"http_port" json:"http_port"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	Dir           string `yaml:"dir" json:"dir"`
	RetentionDays int    `yaml:"retention_days" json:"retention_days"`
	MemoryLines   int    `yaml:"memory_lines" json:"memory_lines"`
}

// Default returns the configuration used before any file is saved.
func Default() *Config {
	return &Config{
		Station: StationConfig{
			Period: "10 minutes",
		},
		Analysis: AnalysisConfig{
			NumBins:     8,
			TopStations: 10,
		},
		Fetch: FetchConfig{
			BaseURL:        "http://wspr.live/wspr_downloader.php",
			TimeoutSeconds: 60,
			UserAgent:      "wspranalytics",
		},
		CTY: CTYConfig{
			Path:           filepath.Join("data", "cty", "cty.plist"),
			URL:            "https://www.country-files.com/cty/cty.plist",
			TimeoutSeconds: 60,
		},
		Data: DataConfig{
			Dir:    "data",
			Format: "csv",
		},
		Server: ServerConfig{
			BindAddress: "127.0.0.1",
			HTTPPort:    8080,
		},
		Logging: LoggingConfig{
			Enabled:       true,
			Dir:           "logs",
			RetentionDays: 4,
			MemoryLines:   500,
		},
	}
}

// Load reads configuration from a YAML file. A missing file is not an
// error: the service starts with defaults and writes the file on first
// save. Keys absent from the file keep their default values; keys the
// schema does not know are rejected so typos fail loudly.
func Load(filename string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration atomically.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to stage config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to finalize config: %w", err)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

// Reset writes the compiled defaults to filename and returns them.
func Reset(filename string) (*Config, error) {
	cfg := Default()
	if err := cfg.Save(filename); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validFormats = map[string]bool{
	"csv":    true,
	"json":   true,
	"txt":    true,
	"sqlite": true,
}

// Normalize repairs values the pipeline cannot run with and returns a note
// per correction so the caller can log them. Unset strings fall back to the
// defaults; numeric tunables are clamped to sane minimums.
func (c *Config) Normalize() []string {
	var notes []string
	def := Default()

	if c.Station.Period == "" {
		c.Station.Period = def.Station.Period
	}
	if c.Analysis.NumBins <= 0 {
		notes = append(notes, fmt.Sprintf("analysis.num_bins %d -> %d", c.Analysis.NumBins, def.Analysis.NumBins))
		c.Analysis.NumBins = def.Analysis.NumBins
	}
	if c.Analysis.TopStations < 0 {
		notes = append(notes, fmt.Sprintf("analysis.top_stations %d -> 0", c.Analysis.TopStations))
		c.Analysis.TopStations = 0
	}
	if c.Fetch.BaseURL == "" {
		c.Fetch.BaseURL = def.Fetch.BaseURL
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = def.Fetch.TimeoutSeconds
	}
	if c.CTY.Path == "" {
		c.CTY.Path = def.CTY.Path
	}
	if c.CTY.URL == "" {
		c.CTY.URL = def.CTY.URL
	}
	if c.CTY.TimeoutSeconds <= 0 {
		c.CTY.TimeoutSeconds = def.CTY.TimeoutSeconds
	}
	if c.Data.Dir == "" {
		c.Data.Dir = def.Data.Dir
	}
	if !validFormats[c.Data.Format] {
		notes = append(notes, fmt.Sprintf("data.format %q -> %q", c.Data.Format, def.Data.Format))
		c.Data.Format = def.Data.Format
	}
	if c.Server.BindAddress == "" {
		c.Server.BindAddress = def.Server.BindAddress
	}
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		notes = append(notes, fmt.Sprintf("server.http_port %d -> %d", c.Server.HTTPPort, def.Server.HTTPPort))
		c.Server.HTTPPort = def.Server.HTTPPort
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = def.Logging.Dir
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = def.Logging.RetentionDays
	}
	if c.Logging.MemoryLines <= 0 {
		c.Logging.MemoryLines = def.Logging.MemoryLines
	}
	return notes
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.HTTPPort)
}

// Print displays the configuration.
func (c *Config) Print() {
	station := c.Station.Callsign
	if station == "" {
		station = "(not configured)"
	}
	fmt.Printf("Station: %s over %s\n", station, c.Station.Period)
	fmt.Printf("Analysis: %d bins, top %d stations\n", c.Analysis.NumBins, c.Analysis.TopStations)
	fmt.Printf("Fetch: %s (timeout %ds)\n", c.Fetch.BaseURL, c.Fetch.TimeoutSeconds)
	fmt.Printf("CTY: %s (mirror %s)\n", c.CTY.Path, c.CTY.URL)
	fmt.Printf("Data: %s format in %s\n", c.Data.Format, c.Data.Dir)
	fmt.Printf("Server: %s\n", c.Addr())
	if c.Logging.Enabled {
		fmt.Printf("Logging: %s (keep %d days, %d lines in memory)\n",
			c.Logging.Dir, c.Logging.RetentionDays, c.Logging.MemoryLines)
	}
}
