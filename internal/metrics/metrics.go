package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_explorer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_explorer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_explorer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	HTTPRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_explorer_http_rate_limited_total",
			Help: "Total number of API requests rejected by the per-IP rate limiter",
		},
	)
)

// Path resolution metrics
var (
	PathRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_explorer_path_rejections_total",
			Help: "Total number of client paths rejected because they resolve outside the media root",
		},
		[]string{"endpoint"},
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_explorer_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"type", "status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_explorer_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"type"},
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_explorer_thumbnail_cache_hits_total",
			Help: "Total number of thumbnail cache hits",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_explorer_thumbnail_cache_misses_total",
			Help: "Total number of thumbnail cache misses",
		},
	)

	ThumbnailSharedResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_explorer_thumbnail_shared_results_total",
			Help: "Total number of requests that attached to an in-flight generation instead of starting one",
		},
	)

	ThumbnailGenerationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_explorer_thumbnail_generations_in_flight",
			Help: "Number of thumbnail generation tasks currently running",
		},
	)

	ThumbnailWorkersBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_explorer_thumbnail_workers_busy",
			Help: "Number of worker slots currently held by external decoders",
		},
	)

	ThumbnailCachePersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_explorer_thumbnail_cache_persist_errors_total",
			Help: "Total number of generated thumbnails that could not be written to the cache",
		},
	)

	ThumbnailCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_explorer_thumbnail_cache_size_bytes",
			Help: "Total size of the thumbnail cache in bytes",
		},
	)

	ThumbnailCacheCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_explorer_thumbnail_cache_count",
			Help: "Number of thumbnails in the cache",
		},
	)

	ThumbnailFFmpegDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_explorer_thumbnail_ffmpeg_duration_seconds",
			Help:    "Duration of ffprobe and ffmpeg invocations in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"tool"},
	)
)

// Streaming metrics
var (
	StreamResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_explorer_stream_responses_total",
			Help: "Total number of streaming responses by kind (full, partial, unsatisfiable)",
		},
		[]string{"kind"},
	)

	StreamBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_explorer_stream_bytes_total",
			Help: "Total number of media bytes written to clients",
		},
	)

	StreamClientDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_explorer_stream_client_disconnects_total",
			Help: "Total number of streams stopped because the client went away",
		},
	)

	StreamWriteTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_explorer_stream_write_timeouts_total",
			Help: "Total number of streams aborted because a single write stalled",
		},
	)
)

// Directory listing metrics
var (
	DirectoryListingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_explorer_directory_listings_total",
			Help: "Total number of directory listings by status",
		},
		[]string{"status"},
	)

	DirectoryListingEntries = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_explorer_directory_listing_entries",
			Help:    "Number of entries returned by directory listings",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_explorer_filesystem_operation_duration_seconds",
			Help:    "Duration of filesystem operations by volume and operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_explorer_filesystem_operation_errors_total",
			Help: "Total number of failed filesystem operations by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_explorer_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retries after a stale file handle",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_explorer_filesystem_retry_outcomes_total",
			Help: "Filesystem calls that hit a stale file handle, by how they ended (recovered, exhausted, failed)",
		},
		[]string{"volume", "operation", "outcome"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_explorer_filesystem_stale_errors_total",
			Help: "Total number of ESTALE errors seen",
		},
		[]string{"volume", "operation"},
	)
)

// Memory metrics
var (
	GoMemLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_explorer_go_memlimit_bytes",
			Help: "Configured GOMEMLIMIT in bytes (0 if unset)",
		},
	)

	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_explorer_go_mem_alloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)

	GoMemSysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_explorer_go_mem_sys_bytes",
			Help: "Total bytes of memory obtained from the OS",
		},
	)

	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_explorer_memory_usage_ratio",
			Help: "Heap allocation as a ratio of the memory limit (0.0-1.0)",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_explorer_memory_paused",
			Help: "Whether thumbnail generation is paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_explorer_memory_gc_pauses_total",
			Help: "Total number of times generation was paused for memory pressure",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_explorer_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
