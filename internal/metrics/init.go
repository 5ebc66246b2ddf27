package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	volumes := []string{"media", "cache", "unknown"}
	fsOps := []string{"stat", "open", "read"}

	for _, vol := range volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(vol, op)
			FilesystemStaleErrors.WithLabelValues(vol, op)
			for _, outcome := range []string{"recovered", "exhausted", "failed"} {
				FilesystemRetryOutcomes.WithLabelValues(vol, op, outcome)
			}
		}
	}

	for _, t := range []string{"image", "video"} {
		ThumbnailGenerationDuration.WithLabelValues(t)
		for _, status := range []string{"success", "error", "timeout"} {
			ThumbnailGenerationsTotal.WithLabelValues(t, status)
		}
	}

	for _, tool := range []string{"ffprobe", "ffmpeg"} {
		ThumbnailFFmpegDuration.WithLabelValues(tool)
	}

	for _, kind := range []string{"full", "partial", "unsatisfiable"} {
		StreamResponsesTotal.WithLabelValues(kind)
	}

	for _, status := range []string{"success", "not_found", "error"} {
		DirectoryListingsTotal.WithLabelValues(status)
	}

	for _, endpoint := range []string{"directory", "thumbnail", "video", "image"} {
		PathRejectionsTotal.WithLabelValues(endpoint)
	}
}
