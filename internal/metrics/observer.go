package metrics

import "media-explorer/internal/filesystem"

// NewFilesystemObserver returns the observer main installs with
// filesystem.SetObserver. Series are labeled by the media or cache volume
// the call touched.
func NewFilesystemObserver() filesystem.Observer {
	return filesystem.ObserverFunc(recordFilesystemOp)
}

func recordFilesystemOp(r filesystem.OpResult) {
	FilesystemOperationDuration.WithLabelValues(r.Volume, r.Op).Observe(r.Duration.Seconds())
	if r.Err != nil {
		FilesystemOperationErrors.WithLabelValues(r.Volume, r.Op).Inc()
	}

	if r.Stale == 0 {
		return
	}
	FilesystemStaleErrors.WithLabelValues(r.Volume, r.Op).Add(float64(r.Stale))
	FilesystemRetryAttempts.WithLabelValues(r.Volume, r.Op).Add(float64(r.Retries))
	FilesystemRetryOutcomes.WithLabelValues(r.Volume, r.Op, retryOutcome(r)).Inc()
}

// retryOutcome classifies a call that saw at least one stale handle.
func retryOutcome(r filesystem.OpResult) string {
	switch {
	case r.Recovered():
		return "recovered"
	case r.Stale > r.Retries:
		// the last attempt was stale too
		return "exhausted"
	default:
		return "failed"
	}
}
