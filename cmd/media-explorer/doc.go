// Package main provides the entry point for the Media Explorer server.
//
// Media Explorer serves a directory tree of videos and images over HTTP: JSON
// directory listings, cached JPEG thumbnails, byte-range video streaming and
// original image files. Every client-supplied path is resolved inside the
// configured media root before the filesystem is touched.
//
// # Startup
//
//  1. Memory: GOMEMLIMIT from MEMORY_LIMIT, MEMORY_RATIO or the cgroup limit
//  2. Configuration: environment variables, media root validation
//  3. Metrics registration and filesystem retry observer
//  4. Thumbnail cache in CACHE_DIR/thumbnails (disabled if unwritable)
//  5. Router, middleware and the HTTP listeners
//
// # HTTP Server
//
// The main listener (PORT, default 3000) serves:
//
//   - GET /api/directory?p=  classified listing of a directory
//   - GET /api/thumbnail?p=  JPEG thumbnail of a video or image
//   - GET /api/video?p=      file body, honoring a single byte range
//   - GET /api/image?p=      original image bytes
//   - /health, /healthz, /livez, /readyz and /version
//   - static front-end files from STATIC_DIR
//
// The /api routes are rate limited per client IP when RATE_LIMIT is set.
// Prometheus metrics are served on a separate listener (METRICS_PORT, default
// 9090) unless METRICS_ENABLED is false.
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the main listener drains for up to 30 seconds, then
// the metrics collector, memory monitor and metrics listener stop and libvips
// is shut down if it was started.
//
// # Build Requirements
//
// Video thumbnails need ffmpeg and ffprobe on PATH. THUMBNAIL_BACKEND=vips
// needs libvips and CGO; the default imaging backend is pure Go.
//
//	go build -o media-explorer ./cmd/media-explorer
package main
