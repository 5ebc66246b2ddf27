package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"media-explorer/internal/logging"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinSize is the smallest body, in bytes, that gets compressed.
	MinSize int
	// Level is the gzip level used by pooled writers.
	Level int
	// CompressibleTypes lists media types worth compressing. Media files
	// are already compressed and never appear here.
	CompressibleTypes []string
}

// DefaultCompressionConfig compresses JSON listings and text assets over 1KB.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		Level:   gzip.DefaultCompression,
		CompressibleTypes: []string{
			"application/json",
			"application/javascript",
			"text/html",
			"text/css",
			"text/plain",
			"text/javascript",
			"image/svg+xml",
		},
	}
}

// Compression gzips eligible responses for clients that accept it. Range
// requests pass through untouched since byte offsets must refer to the
// original representation.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	types := make(map[string]bool, len(config.CompressibleTypes))
	for _, t := range config.CompressibleTypes {
		types[t] = true
	}

	pool := &sync.Pool{
		New: func() interface{} {
			w, err := gzip.NewWriterLevel(io.Discard, config.Level)
			if err != nil {
				w = gzip.NewWriter(io.Discard)
			}
			return w
		},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") ||
				r.Header.Get("Range") != "" ||
				r.Header.Get("Upgrade") != "" {
				next.ServeHTTP(w, r)
				return
			}

			gzw := &gzipResponseWriter{
				ResponseWriter: w,
				minSize:        config.MinSize,
				types:          types,
				pool:           pool,
				statusCode:     http.StatusOK,
			}
			defer func() {
				if err := gzw.Close(); err != nil {
					logging.Debug("gzip close: %v", err)
				}
			}()

			next.ServeHTTP(gzw, r)
		})
	}
}

// gzipResponseWriter buffers the first MinSize bytes to decide whether the
// response is worth compressing, then commits headers once.
type gzipResponseWriter struct {
	http.ResponseWriter
	minSize int
	types   map[string]bool
	pool    *sync.Pool

	gz         *gzip.Writer
	buffer     []byte
	statusCode int
	committed  bool
}

func (g *gzipResponseWriter) WriteHeader(statusCode int) {
	if !g.committed {
		g.statusCode = statusCode
	}
}

func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	if g.committed {
		if g.gz != nil {
			return g.gz.Write(data)
		}
		return g.ResponseWriter.Write(data)
	}

	g.buffer = append(g.buffer, data...)
	if len(g.buffer) > g.minSize {
		if err := g.commit(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (g *gzipResponseWriter) compressible() bool {
	h := g.Header()
	if h.Get("Content-Encoding") != "" || g.statusCode == http.StatusNoContent ||
		g.statusCode == http.StatusNotModified || g.statusCode == http.StatusPartialContent {
		return false
	}
	mediaType, _, _ := strings.Cut(h.Get("Content-Type"), ";")
	return g.types[strings.ToLower(strings.TrimSpace(mediaType))]
}

// commit writes headers and flushes the buffered prefix.
func (g *gzipResponseWriter) commit() error {
	if g.committed {
		return nil
	}
	g.committed = true

	buffered := g.buffer
	g.buffer = nil

	if len(buffered) >= g.minSize && g.compressible() {
		h := g.Header()
		h.Del("Content-Length")
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")

		g.gz = g.pool.Get().(*gzip.Writer)
		g.gz.Reset(g.ResponseWriter)
		g.ResponseWriter.WriteHeader(g.statusCode)
		_, err := g.gz.Write(buffered)
		return err
	}

	g.ResponseWriter.WriteHeader(g.statusCode)
	if len(buffered) == 0 {
		return nil
	}
	_, err := g.ResponseWriter.Write(buffered)
	return err
}

// Close commits any buffered response and returns the gzip writer to the pool.
func (g *gzipResponseWriter) Close() error {
	err := g.commit()
	if g.gz != nil {
		if cerr := g.gz.Close(); err == nil {
			err = cerr
		}
		g.pool.Put(g.gz)
		g.gz = nil
	}
	return err
}

// Flush commits the response and pushes compressed bytes to the client.
func (g *gzipResponseWriter) Flush() {
	if err := g.commit(); err != nil {
		logging.Debug("gzip flush: %v", err)
	}
	if g.gz != nil {
		if err := g.gz.Flush(); err != nil {
			logging.Debug("gzip flush: %v", err)
		}
	}
	if f, ok := g.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController set deadlines on the connection.
func (g *gzipResponseWriter) Unwrap() http.ResponseWriter {
	return g.ResponseWriter
}
