// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - MEDIA_DIR: Root of the browsable tree. Required; VIDEO_DIRECTORY is
//     accepted as a legacy alias. Must be an existing directory.
//   - CACHE_DIR: Cache root (default: .cache). Thumbnails live in
//     CACHE_DIR/thumbnails; if that is not writable thumbnails are disabled.
//   - STATIC_DIR: Front-end assets served at / (default: public)
//   - PORT: HTTP server port (default: 3000)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - THUMBNAIL_WIDTH: Maximum thumbnail width in pixels (default: 320)
//   - THUMBNAIL_TIMESTAMP: Video frame position, duration or seconds (default: 1s)
//   - GENERATION_TIMEOUT: Deadline for one thumbnail generation (default: 30s)
//   - THUMBNAIL_BACKEND: imaging or vips (default: imaging)
//   - THUMBNAIL_WORKERS: Concurrent decoder runs (default: CPUs, at most 4)
//   - RATE_LIMIT: Requests per minute per client IP on /api, 0 disables
//   - LOG_LEVEL, DEBUG: Logging level
//   - LOG_STATIC_FILES: Log static file requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogMemoryConfig]: Memory limit configuration
//   - [LogThumbnailInit]: Thumbnail backend and FFmpeg availability
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
//
// # Example Usage
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//
//	startup.LogServerStarted(startup.ServerConfig{
//	    Port:            config.Port,
//	    MetricsPort:     config.MetricsPort,
//	    MetricsEnabled:  config.MetricsEnabled,
//	    StartupDuration: time.Since(startTime),
//	})
package startup
