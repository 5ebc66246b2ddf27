// Package metrics provides Prometheus instrumentation for media-explorer.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "media_explorer_". Expose them by mounting
// promhttp.Handler() on the metrics listener.
//
// # Metric Categories
//
// HTTP: request totals, durations, in-flight requests and rate-limited
// requests.
//
// Thumbnails: cache hits and misses, generations by type and status,
// generation and ffmpeg durations, in-flight generations, busy worker slots,
// results shared between concurrent requests, persist errors, and the cache
// size gauges updated by the [Collector].
//
// Streaming: responses by kind (full, partial, unsatisfiable), bytes written,
// client disconnects and write timeouts.
//
// Filesystem: per-volume operation durations and errors, plus the ESTALE
// retry counters fed by the filesystem.Observer returned from
// [NewFilesystemObserver].
//
// Memory: GOMEMLIMIT, heap and system bytes, usage ratio and pause state.
//
// # Prometheus Queries
//
// Thumbnail cache hit rate:
//
//	rate(media_explorer_thumbnail_cache_hits_total[5m]) /
//	(rate(media_explorer_thumbnail_cache_hits_total[5m]) + rate(media_explorer_thumbnail_cache_misses_total[5m]))
//
// Share of thumbnail requests that piggybacked on an in-flight generation:
//
//	rate(media_explorer_thumbnail_shared_results_total[5m]) /
//	rate(media_explorer_thumbnail_cache_misses_total[5m])
//
// P95 response time:
//
//	histogram_quantile(0.95, sum(rate(media_explorer_http_request_duration_seconds_bucket[5m])) by (le))
//
// Traversal attempts by endpoint:
//
//	sum(rate(media_explorer_path_rejections_total[1h])) by (endpoint)
package metrics
