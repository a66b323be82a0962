package cty

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestEnsureDownloadsWhenMissing(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(samplePLIST))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cty.plist")
	db, err := Ensure(context.Background(), FetchOptions{
		Path:    path,
		URL:     srv.URL,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if db.Len() != 6 {
		t.Fatalf("unexpected entry count after download: %d", db.Len())
	}
	if requests.Load() != 1 {
		t.Fatalf("expected one download request, saw %d", requests.Load())
	}

	meta := readMetadata(MetadataPath(path))
	if meta == nil {
		t.Fatalf("expected metadata sidecar at %s", MetadataPath(path))
	}
	if meta.ETag != `"v1"` {
		t.Fatalf("expected recorded ETag, got %q", meta.ETag)
	}
	if meta.SHA256 == "" {
		t.Fatalf("expected recorded SHA256")
	}
	if meta.SizeBytes != int64(len(samplePLIST)) {
		t.Fatalf("unexpected size: %d want %d", meta.SizeBytes, len(samplePLIST))
	}
}

func TestEnsurePrefersLocalFile(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(samplePLIST))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cty.plist")
	if err := os.WriteFile(path, []byte(samplePLIST), 0o644); err != nil {
		t.Fatalf("seed local file: %v", err)
	}

	db, err := Ensure(context.Background(), FetchOptions{Path: path, URL: srv.URL})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if db.Len() != 6 {
		t.Fatalf("unexpected entry count: %d", db.Len())
	}
	if requests.Load() != 0 {
		t.Fatalf("local file present, expected no download, saw %d", requests.Load())
	}
}

func TestFetchNotModified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(samplePLIST))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cty.plist")
	opts := FetchOptions{Path: path, URL: srv.URL}

	first, err := Fetch(context.Background(), opts)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if first.Status != StatusUpdated {
		t.Fatalf("first fetch status=%s want %s", first.Status, StatusUpdated)
	}
	if first.Bytes != int64(len(samplePLIST)) {
		t.Fatalf("first fetch bytes=%d want %d", first.Bytes, len(samplePLIST))
	}

	second, err := Fetch(context.Background(), opts)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if second.Status != StatusNotModified {
		t.Fatalf("second fetch status=%s want %s", second.Status, StatusNotModified)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("local file should remain after 304: %v", err)
	}
}

func TestFetchSameContentSkipsReplace(t *testing.T) {
	// Server ignores conditional headers and always returns the same body.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePLIST))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cty.plist")
	opts := FetchOptions{Path: path, URL: srv.URL}

	if _, err := Fetch(context.Background(), opts); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := Fetch(context.Background(), opts)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if second.Status != StatusSameContent {
		t.Fatalf("second fetch status=%s want %s", second.Status, StatusSameContent)
	}
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cty.plist")
	if _, err := Fetch(context.Background(), FetchOptions{Path: path, URL: srv.URL}); err == nil {
		t.Fatalf("expected error on HTTP 500")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("failed fetch must not leave a destination file")
	}
}

func TestFetchEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cty.plist")
	if _, err := Fetch(context.Background(), FetchOptions{Path: path, URL: srv.URL}); err == nil {
		t.Fatalf("expected error on empty body")
	}
}

func TestEnsureFailsWhenBothTiersFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cty.plist")
	if _, err := Ensure(context.Background(), FetchOptions{Path: path, URL: srv.URL}); err == nil {
		t.Fatalf("expected ensure to fail with no local file and a failing mirror")
	}
}
