package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"media-explorer/internal/logging"
	"media-explorer/internal/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// captureLogs redirects package logging to a buffer for the test's lifetime.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logging.SetOutput(&buf, "json")
	t.Cleanup(func() { logging.SetOutput(os.Stderr, "") })
	return &buf
}

func okHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, body)
	}
}

// =============================================================================
// statusRecorder
// =============================================================================

func TestStatusRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rec := newStatusRecorder(w)

	if rec.statusCode != http.StatusOK {
		t.Errorf("Expected default status 200, got %d", rec.statusCode)
	}

	rec.WriteHeader(http.StatusNotFound)
	rec.WriteHeader(http.StatusInternalServerError)
	if rec.statusCode != http.StatusNotFound {
		t.Errorf("Expected first status to stick, got %d", rec.statusCode)
	}

	n, err := rec.Write([]byte("test data"))
	if err != nil || n != 9 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if rec.bytesWritten != 9 {
		t.Errorf("Expected 9 bytes recorded, got %d", rec.bytesWritten)
	}

	rec.Flush()
	if !w.Flushed {
		t.Error("Expected Flush to reach the underlying writer")
	}
	if rec.Unwrap() != w {
		t.Error("Unwrap should return the wrapped writer")
	}
	if newStatusRecorder(rec) != rec {
		t.Error("Expected an existing recorder to be reused")
	}
}

// =============================================================================
// Logger
// =============================================================================

func TestLoggerWritesW3CLine(t *testing.T) {
	logs := captureLogs(t)

	handler := Logger(DefaultLoggingConfig())(okHandler("hello"))

	req := httptest.NewRequest(http.MethodGet, "/api/directory?p=Shows", http.NoBody)
	req.RemoteAddr = "192.0.2.7:51234"
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11)")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	line := logs.String()
	for _, want := range []string{
		"192.0.2.7 GET /api/directory p=Shows 200 5 ",
		`\"Mozilla/5.0 (X11)\"`,
	} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %q", line, want)
		}
	}
}

func TestLoggerSkips(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		config LoggingConfig
		logged bool
	}{
		{"API request", "/api/thumbnail", DefaultLoggingConfig(), true},
		{"static asset", "/app.js", DefaultLoggingConfig(), false},
		{"static asset when enabled", "/app.js", LoggingConfig{SkipExtensions: []string{".js"}, LogStaticFiles: true}, true},
		{"health check", "/healthz", LoggingConfig{LogHealthChecks: false}, false},
		{"health check when enabled", "/healthz", LoggingConfig{LogHealthChecks: true}, true},
		{"skip prefix", "/internal/x", LoggingConfig{SkipPaths: []string{"/internal"}, LogHealthChecks: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := captureLogs(t)

			handler := Logger(tt.config)(okHandler("ok"))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))

			if logged := logs.Len() > 0; logged != tt.logged {
				t.Errorf("logged = %v, want %v (%q)", logged, tt.logged, logs.String())
			}
		})
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := map[string]string{
		"plain":                 "plain",
		"line\nbreak":           "line break",
		"cr\rlf":                "cr lf",
		"nul\x00byte":           "nulbyte",
		"\x1b[31mred\x1b[0m":    "[31mred[0m",
		"tab\tkept":             "tab\tkept",
		"bell\x07and\x7fdelete": "bellanddelete",
	}

	for in, want := range tests {
		if got := sanitizeLogField(in); got != want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.9"}, "10.0.0.1:80", "203.0.113.9"},
		{"remote v4", nil, "198.51.100.2:4000", "198.51.100.2"},
		{"remote v6", nil, "[2001:db8::1]:4000", "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEscapeW3CField(t *testing.T) {
	if got := escapeW3CField("curl/8.0"); got != "curl/8.0" {
		t.Errorf("unexpected escape: %q", got)
	}
	if got := escapeW3CField(`a "b" c`); got != `"a ""b"" c"` {
		t.Errorf("unexpected escape: %q", got)
	}
}

// =============================================================================
// Metrics
// =============================================================================

func TestMetricsUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(Metrics(DefaultMetricsConfig()))
	router.HandleFunc("/api/thumbnail", okHandler("x")).Methods(http.MethodGet)

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/thumbnail", "200")
	before := testutil.ToFloat64(counter)

	for _, p := range []string{"a.mp4", "b.mp4", "c/d.mp4"} {
		req := httptest.NewRequest(http.MethodGet, "/api/thumbnail?p="+p, http.NoBody)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("Expected 3 requests under the route label, got %v", got)
	}
}

func TestMetricsSkipsHealthChecks(t *testing.T) {
	handler := Metrics(DefaultMetricsConfig())(okHandler("ok"))

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/static", "200")
	before := testutil.ToFloat64(counter)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	if got := testutil.ToFloat64(counter) - before; got != 0 {
		t.Errorf("Expected /healthz to be skipped, counted %v", got)
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/index.html", http.NoBody))
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("Expected static request under /static, counted %v", got)
	}
}

func TestRouteLabelFallback(t *testing.T) {
	if got := routeLabel(httptest.NewRequest(http.MethodGet, "/api/unknown", http.NoBody)); got != "/api/other" {
		t.Errorf("routeLabel = %q, want /api/other", got)
	}
	if got := routeLabel(httptest.NewRequest(http.MethodGet, "/css/site.css", http.NoBody)); got != "/static" {
		t.Errorf("routeLabel = %q, want /static", got)
	}
}

// =============================================================================
// Compression
// =============================================================================

func TestCompressionMiddleware(t *testing.T) {
	tests := []struct {
		name              string
		responseBody      string
		contentType       string
		acceptEncoding    string
		rangeHeader       string
		expectCompression bool
	}{
		{
			name:              "Compresses large JSON listing",
			responseBody:      strings.Repeat(`{"name":"clip.mp4"}`, 200),
			contentType:       "application/json",
			acceptEncoding:    "gzip, deflate",
			expectCompression: true,
		},
		{
			name:           "Doesn't compress small responses",
			responseBody:   "Small",
			contentType:    "text/plain",
			acceptEncoding: "gzip",
		},
		{
			name:           "Doesn't compress thumbnails",
			responseBody:   strings.Repeat("data", 500),
			contentType:    "image/jpeg",
			acceptEncoding: "gzip",
		},
		{
			name:           "Doesn't compress video",
			responseBody:   strings.Repeat("data", 500),
			contentType:    "video/mp4",
			acceptEncoding: "gzip",
		},
		{
			name:           "Skips range requests",
			responseBody:   strings.Repeat("data", 500),
			contentType:    "text/plain",
			acceptEncoding: "gzip",
			rangeHeader:    "bytes=0-",
		},
		{
			name:         "Respects client without gzip support",
			responseBody: strings.Repeat("data", 500),
			contentType:  "text/html",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(tt.responseBody))
			}))

			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			if tt.rangeHeader != "" {
				req.Header.Set("Range", tt.rangeHeader)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}

			compressed := w.Header().Get("Content-Encoding") == "gzip"
			if compressed != tt.expectCompression {
				t.Fatalf("Expected compression=%v, got %v", tt.expectCompression, compressed)
			}

			body := w.Body.Bytes()
			if compressed {
				gr, err := gzip.NewReader(w.Body)
				if err != nil {
					t.Fatalf("gzip reader: %v", err)
				}
				defer gr.Close()
				if body, err = io.ReadAll(gr); err != nil {
					t.Fatalf("decompress: %v", err)
				}
			}
			if string(body) != tt.responseBody {
				t.Error("Body does not match the handler output")
			}
		})
	}
}

func TestCompressionPreservesStatus(t *testing.T) {
	handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "File not found", http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/thumbnail?p=x", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "File not found") {
		t.Errorf("Unexpected body %q", w.Body.String())
	}
}

func TestCompressionWithMultipleWrites(t *testing.T) {
	chunk := strings.Repeat("a", 400)

	handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		for i := 0; i < 5; i++ {
			_, _ = w.Write([]byte(chunk))
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatal("Expected gzip encoding")
	}
	gr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(gr)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != strings.Repeat(chunk, 5) {
		t.Error("Decompressed body mismatch")
	}
}

func TestWrappersReachConnectionDeadlines(t *testing.T) {
	captureLogs(t)

	deadlineErr := make(chan error, 1)
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		deadlineErr <- http.NewResponseController(w).SetWriteDeadline(time.Now().Add(time.Second))
	})
	chain := Compression(DefaultCompressionConfig())(RequestID(Logger(DefaultLoggingConfig())(Recoverer(inner))))

	srv := httptest.NewServer(chain)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/video?p=clip.mp4", http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if err := <-deadlineErr; err != nil {
		t.Errorf("SetWriteDeadline through middleware: %v", err)
	}
}

// =============================================================================
// Rate limiting and headers
// =============================================================================

func TestRateLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{RequestLimit: 2, WindowSize: time.Minute})(okHandler("ok"))

	before := testutil.ToFloat64(metrics.HTTPRateLimited)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/directory", http.NoBody)
		req.RemoteAddr = "198.51.100.10:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)

		if w.Code == http.StatusTooManyRequests && w.Header().Get("Retry-After") != "60" {
			t.Errorf("Retry-After = %q, want 60", w.Header().Get("Retry-After"))
		}
	}

	want := []int{200, 200, 429}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: expected %d, got %d", i, want[i], codes[i])
		}
	}
	if got := testutil.ToFloat64(metrics.HTTPRateLimited) - before; got != 1 {
		t.Errorf("Expected 1 rate-limited request recorded, got %v", got)
	}

	// A different client has its own budget.
	req := httptest.NewRequest(http.MethodGet, "/api/directory", http.NoBody)
	req.RemoteAddr = "198.51.100.11:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected second client to pass, got %d", w.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	handler := RateLimit(RateLimitConfig{})(okHandler("ok"))

	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/directory", http.NoBody))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders(okHandler("ok")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

// =============================================================================
// Request ID and recovery
// =============================================================================

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

		got := w.Header().Get(HeaderRequestID)
		if len(got) != 36 {
			t.Fatalf("generated ID %q is not a UUID", got)
		}
		if seen != got {
			t.Errorf("context ID = %q, header ID = %q", seen, got)
		}
	})

	t.Run("client ID kept", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(HeaderRequestID, "abc-123_x.y")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if got := w.Header().Get(HeaderRequestID); got != "abc-123_x.y" {
			t.Errorf("ID = %q, want client value", got)
		}
	})

	t.Run("malformed client ID replaced", func(t *testing.T) {
		for _, bad := range []string{"has space", "new\nline", strings.Repeat("a", 65)} {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set(HeaderRequestID, bad)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if got := w.Header().Get(HeaderRequestID); got == bad || len(got) != 36 {
				t.Errorf("ID for %q = %q, want a fresh UUID", bad, got)
			}
		}
	})
}

func TestRequestIDFromEmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	if got := RequestIDFromContext(req.Context()); got != "" {
		t.Errorf("RequestIDFromContext = %q, want empty", got)
	}
}

func TestLoggerIncludesRequestID(t *testing.T) {
	logs := captureLogs(t)

	handler := RequestID(Logger(DefaultLoggingConfig())(okHandler("ok")))
	req := httptest.NewRequest(http.MethodGet, "/api/directory", http.NoBody)
	req.Header.Set(HeaderRequestID, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(logs.String(), " req-42") {
		t.Errorf("log line %q missing request ID", logs.String())
	}
}

func TestRecoverer(t *testing.T) {
	logs := captureLogs(t)

	handler := RequestID(Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/video", http.NoBody))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "Internal server error" {
		t.Errorf("body = %q", got)
	}
	if !strings.Contains(logs.String(), "boom") {
		t.Errorf("panic not logged: %q", logs.String())
	}
}

func TestRecovererAfterPartialResponse(t *testing.T) {
	captureLogs(t)

	handler := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		_, _ = io.WriteString(w, "partial")
		panic("late")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/video", http.NoBody))

	if w.Code != http.StatusPartialContent {
		t.Errorf("status = %d, want the status already sent", w.Code)
	}
	if w.Body.String() != "partial" {
		t.Errorf("body = %q, want only the partial write", w.Body.String())
	}
}

func TestRecovererRepanicsAbort(t *testing.T) {
	handler := Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if v := recover(); v != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", v)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
}

func BenchmarkLoggingMiddleware(b *testing.B) {
	logging.SetOutput(io.Discard, "json")
	defer logging.SetOutput(os.Stderr, "")

	handler := Logger(DefaultLoggingConfig())(okHandler("ok"))
	req := httptest.NewRequest(http.MethodGet, "/api/directory?p=x", http.NoBody)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
