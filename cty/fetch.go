package cty

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultURL is the upstream cty.plist mirror used when no URL is configured.
const DefaultURL = "https://www.country-files.com/cty/cty.plist"

const metadataSuffix = ".status.json"

// Status indicates whether a fetch changed the local file.
type Status string

const (
	StatusUpdated     Status = "updated"
	StatusNotModified Status = "not_modified"
	StatusSameContent Status = "same_content"
)

// Metadata is the sidecar record written next to the downloaded plist so
// later fetches can issue conditional requests.
type Metadata struct {
	URL          string    `json:"url,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	DownloadedAt time.Time `json:"downloaded_at,omitempty"`
	CheckedAt    time.Time `json:"checked_at,omitempty"`
	SizeBytes    int64     `json:"size_bytes,omitempty"`
	SHA256       string    `json:"sha256,omitempty"`
}

// FetchOptions configures where the prefix database lives and how it is
// downloaded when missing.
type FetchOptions struct {
	// Path is the local cty.plist location.
	Path string
	// URL overrides DefaultURL.
	URL string
	// Timeout bounds the HTTP request; zero means no timeout.
	Timeout time.Duration
	// Force skips conditional headers and always downloads.
	Force bool
	// UserAgent is sent with the request when non-empty.
	UserAgent string
	// Client overrides http.DefaultClient (tests inject one).
	Client *http.Client
	// Logger receives advisory warnings. Nil discards them.
	Logger Logger
}

// Logger is the minimal sink fetches report advisory problems to.
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

// FetchResult summarizes a fetch outcome.
type FetchResult struct {
	Status Status
	Meta   Metadata
	Bytes  int64
}

// MetadataPath returns the sidecar path for a plist destination.
func MetadataPath(dest string) string {
	if strings.TrimSpace(dest) == "" {
		return ""
	}
	return dest + metadataSuffix
}

// Ensure returns a ready Database: it loads the local file at opts.Path, and
// when the file is missing it downloads from opts.URL first. Both tiers
// failing is the caller's cue to run with country resolution degraded.
func Ensure(ctx context.Context, opts FetchOptions) (*Database, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, errors.New("cty: path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("cty: stat %s: %w", path, err)
	}
	if _, err := Fetch(ctx, opts); err != nil {
		return nil, err
	}
	return Load(path)
}

// Fetch downloads the prefix database with conditional headers, verifies the
// body hash against the previous download, and replaces the local file
// atomically. The sidecar metadata is refreshed on every outcome.
func Fetch(ctx context.Context, opts FetchOptions) (FetchResult, error) {
	var result FetchResult
	logger := orNop(opts.Logger)

	url := strings.TrimSpace(opts.URL)
	if url == "" {
		url = DefaultURL
	}
	dest := strings.TrimSpace(opts.Path)
	if dest == "" {
		return result, errors.New("cty: fetch destination is empty")
	}
	metaPath := MetadataPath(dest)

	destInfo, err := os.Stat(dest)
	destExists := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("cty: stat destination: %w", err)
	}

	prevMeta := readMetadata(metaPath)
	if prevMeta == nil && destExists {
		prevMeta = &Metadata{
			LastModified: destInfo.ModTime().UTC().Format(http.TimeFormat),
			SizeBytes:    destInfo.Size(),
		}
	}

	force := opts.Force || !destExists

	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	reqCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return result, fmt.Errorf("cty: build request: %w", err)
	}
	if !force && prevMeta != nil {
		if prevMeta.ETag != "" {
			httpReq.Header.Set("If-None-Match", prevMeta.ETag)
		}
		if prevMeta.LastModified != "" {
			httpReq.Header.Set("If-Modified-Since", prevMeta.LastModified)
		}
	}
	if opts.UserAgent != "" {
		httpReq.Header.Set("User-Agent", opts.UserAgent)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return result, fmt.Errorf("cty: fetch failed: %w", err)
	}
	defer resp.Body.Close()

	now := time.Now().UTC()
	if resp.StatusCode == http.StatusNotModified {
		result.Status = StatusNotModified
		meta := mergeMetadata(prevMeta, url, resp, "")
		meta.CheckedAt = now
		if err := writeMetadata(metaPath, meta); err != nil {
			logger.Printf("cty: unable to write metadata %s: %v", metaPath, err)
		}
		result.Meta = meta
		return result, nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return result, fmt.Errorf("cty: fetch failed: status %s", resp.Status)
	}

	if err := ensureParentDir(dest); err != nil {
		return result, err
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(dest), "cty-*.tmp")
	if err != nil {
		return result, fmt.Errorf("cty: create temp file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer os.Remove(tmpName)

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmpFile, hasher), resp.Body)
	if err != nil {
		tmpFile.Close()
		return result, fmt.Errorf("cty: copy body: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return result, fmt.Errorf("cty: finalize temp file: %w", err)
	}
	if written <= 0 {
		return result, errors.New("cty: empty response body")
	}

	hashHex := hex.EncodeToString(hasher.Sum(nil))
	result.Bytes = written

	sameContent := prevMeta != nil && destExists && prevMeta.SHA256 != "" && prevMeta.SHA256 == hashHex
	if sameContent && !opts.Force {
		result.Status = StatusSameContent
		meta := mergeMetadata(prevMeta, url, resp, hashHex)
		meta.CheckedAt = now
		if err := writeMetadata(metaPath, meta); err != nil {
			logger.Printf("cty: unable to write metadata %s: %v", metaPath, err)
		}
		result.Meta = meta
		return result, nil
	}

	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("cty: remove old file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return result, fmt.Errorf("cty: replace file: %w", err)
	}

	result.Status = StatusUpdated
	meta := mergeMetadata(prevMeta, url, resp, hashHex)
	meta.CheckedAt = now
	meta.DownloadedAt = now
	meta.SizeBytes = written
	if err := writeMetadata(metaPath, meta); err != nil {
		logger.Printf("cty: unable to write metadata %s: %v", metaPath, err)
	}
	result.Meta = meta
	return result, nil
}

func readMetadata(path string) *Metadata {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil
	}
	return &meta
}

func writeMetadata(path string, meta Metadata) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("cty: metadata path is empty")
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func mergeMetadata(prev *Metadata, url string, resp *http.Response, hash string) Metadata {
	meta := Metadata{}
	if prev != nil {
		meta = *prev
	}
	meta.URL = url
	if resp != nil {
		if etag := strings.TrimSpace(resp.Header.Get("ETag")); etag != "" {
			meta.ETag = etag
		}
		if last := strings.TrimSpace(resp.Header.Get("Last-Modified")); last != "" {
			meta.LastModified = last
		}
	}
	if hash != "" {
		meta.SHA256 = hash
	}
	return meta
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cty: create directory: %w", err)
	}
	return nil
}
