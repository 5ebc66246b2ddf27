package filesystem

import "time"

// OpResult describes one completed StatWithRetry, OpenWithRetry or
// ReadFileWithRetry call, retries included.
type OpResult struct {
	Volume   string // label from the VolumeResolver: "media", "cache" or "unknown"
	Op       string // "stat", "open" or "read"
	Duration time.Duration
	Stale    int // ESTALE failures seen
	Retries  int // attempts made after the first
	Err      error
}

// Recovered reports whether the call succeeded after at least one retry.
func (r OpResult) Recovered() bool {
	return r.Err == nil && r.Retries > 0
}

// Observer receives one OpResult per call. The Prometheus implementation
// lives in the metrics package so that filesystem does not import it.
type Observer interface {
	ObserveOp(OpResult)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(OpResult)

func (f ObserverFunc) ObserveOp(r OpResult) { f(r) }

var discardObserver = ObserverFunc(func(OpResult) {})

// defaultObserver is the package-level observer set at startup.
var defaultObserver Observer = discardObserver

// SetObserver sets the package-level observer. Passing nil disables
// recording.
func SetObserver(o Observer) {
	if o == nil {
		o = discardObserver
	}
	defaultObserver = o
}
