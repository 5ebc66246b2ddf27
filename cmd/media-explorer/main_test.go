package main

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-explorer/internal/filesystem"
	"media-explorer/internal/handlers"
	"media-explorer/internal/media"
	"media-explorer/internal/startup"

	"github.com/google/go-cmp/cmp"
)

type testServer struct {
	handler http.Handler
	config  *startup.Config
}

func newTestServer(t *testing.T, rateLimit int) *testServer {
	t.Helper()

	mediaDir := t.TempDir()
	mustWrite(t, filepath.Join(mediaDir, "clip.mp4"), []byte("0123456789"))
	mustWrite(t, filepath.Join(mediaDir, "Albums", "cover.jpg"), []byte("jpeg"))
	mustWrite(t, filepath.Join(mediaDir, "readme.txt"), []byte("ignored"))

	staticDir := t.TempDir()
	mustWrite(t, filepath.Join(staticDir, "index.html"), []byte("<!doctype html><title>media</title>"))
	mustWrite(t, filepath.Join(staticDir, "app.css"), []byte(strings.Repeat("body { margin: 0; }\n", 200)))

	config := &startup.Config{
		MediaDir:          mediaDir,
		StaticDir:         staticDir,
		RateLimit:         rateLimit,
		LogHealthChecks:   true,
		ThumbnailsEnabled: false,
	}

	resolver, err := filesystem.NewResolver(mediaDir)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	h := handlers.New(config, resolver, nil)
	router := setupRouter(h, config)

	return &testServer{handler: buildHandler(router, config), config: config}
}

func mustWrite(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func (s *testServer) do(method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouterDirectoryListing(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do("GET", "/api/directory?p=", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}

	var tree media.DirectoryTree
	if err := json.NewDecoder(rec.Body).Decode(&tree); err != nil {
		t.Fatalf("decode: %v", err)
	}

	names := func(entries []media.Entry) []string {
		out := []string{}
		for _, e := range entries {
			out = append(out, e.Name)
		}
		return out
	}
	got := map[string][]string{
		"directories": names(tree.Directories),
		"videos":      names(tree.VideoFiles),
		"images":      names(tree.ImageFiles),
		"other":       names(tree.OtherFiles),
	}
	want := map[string][]string{
		"directories": {"Albums"},
		"videos":      {"clip.mp4"},
		"images":      {},
		"other":       {},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestRouterTraversalRejected(t *testing.T) {
	s := newTestServer(t, 0)

	for _, endpoint := range []string{"/api/directory", "/api/thumbnail", "/api/video", "/api/image"} {
		t.Run(endpoint, func(t *testing.T) {
			rec := s.do("GET", endpoint+"?p=../../etc/passwd", nil)
			if rec.Code != http.StatusForbidden {
				t.Fatalf("status = %d, want 403", rec.Code)
			}
			if strings.Contains(rec.Body.String(), "passwd") {
				t.Errorf("body echoes the path: %q", rec.Body.String())
			}
		})
	}
}

func TestRouterVideoRange(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do("GET", "/api/video?p=clip.mp4", http.Header{
		"Range":           {"bytes=2-5"},
		"Accept-Encoding": {"gzip"},
	})
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 2-5/10" {
		t.Errorf("Content-Range = %q", got)
	}
	if got := rec.Header().Get("Content-Encoding"); got != "" {
		t.Errorf("range response was encoded as %q", got)
	}
	if got := rec.Body.String(); got != "2345" {
		t.Errorf("body = %q, want %q", got, "2345")
	}

	rec = s.do("GET", "/api/video?p=clip.mp4", http.Header{"Range": {"bytes=7-99999999999999999999"}})
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("oversized end: status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 7-9/10" {
		t.Errorf("oversized end: Content-Range = %q", got)
	}

	rec = s.do("GET", "/api/video?p=clip.mp4", http.Header{"Range": {"bytes=10-"}})
	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status = %d, want 416", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes */10" {
		t.Errorf("Content-Range = %q", got)
	}
}

func TestRouterThumbnailsDisabled(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do("GET", "/api/thumbnail?p=clip.mp4", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRouterStaticFiles(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do("GET", "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<title>media</title>") {
		t.Errorf("index not served: %q", rec.Body.String())
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}

	rec = s.do("GET", "/app.css", http.Header{"Accept-Encoding": {"gzip"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("css status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", got)
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read gzip body: %v", err)
	}
	if want := strings.Repeat("body { margin: 0; }\n", 200); string(body) != want {
		t.Errorf("decompressed css differs (%d bytes)", len(body))
	}
}

func TestRouterHealthEndpoints(t *testing.T) {
	s := newTestServer(t, 0)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/healthz", http.StatusOK},
		{"HEAD", "/healthz", http.StatusOK},
		{"GET", "/livez", http.StatusOK},
		{"GET", "/readyz", http.StatusOK},
		{"GET", "/version", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, nil)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRouterRateLimit(t *testing.T) {
	s := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		if rec := s.do("GET", "/api/directory?p=", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
	if rec := s.do("GET", "/api/directory?p=", nil); rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}

	// Health endpoints are outside /api and never limited
	if rec := s.do("GET", "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}

func TestNewThumbnailCache(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		config := &startup.Config{ThumbnailsEnabled: false}
		if cache := newThumbnailCache(config, nil); cache != nil {
			t.Error("expected nil cache when thumbnails are disabled")
		}
	})

	t.Run("enabled", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "thumbnails")
		config := &startup.Config{
			ThumbnailsEnabled: true,
			ThumbnailDir:      dir,
			ThumbnailBackend:  startup.BackendImaging,
		}
		cache := newThumbnailCache(config, nil)
		if cache == nil {
			t.Fatal("expected a cache")
		}
		if cache.Dir() != dir {
			t.Errorf("Dir() = %q, want %q", cache.Dir(), dir)
		}
	})

	t.Run("unusable dir disables thumbnails", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		mustWrite(t, blocker, []byte("x"))

		config := &startup.Config{
			ThumbnailsEnabled: true,
			ThumbnailDir:      filepath.Join(blocker, "thumbnails"),
		}
		if cache := newThumbnailCache(config, nil); cache != nil {
			t.Error("expected nil cache")
		}
		if config.ThumbnailsEnabled {
			t.Error("ThumbnailsEnabled still true")
		}
	})
}

func TestRouterRequestID(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do("GET", "/healthz", http.Header{"X-Request-Id": {"client-req-1"}})
	if got := rec.Header().Get("X-Request-ID"); got != "client-req-1" {
		t.Errorf("X-Request-ID = %q, want client-req-1", got)
	}
}
