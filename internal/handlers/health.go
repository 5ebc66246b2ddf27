package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-explorer/internal/filesystem"
	"media-explorer/internal/startup"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	ThumbnailsEnabled bool  `json:"thumbnailsEnabled"`
	ThumbnailCount    int   `json:"thumbnailCount"`
	ThumbnailBytes    int64 `json:"thumbnailBytes"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports whether the media root is reachable along with cache
// and runtime details.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ready := h.mediaRootAvailable()

	response := HealthResponse{
		Status:            statusHealthy,
		Ready:             ready,
		Version:           startup.Version,
		Uptime:            time.Since(h.startTime).Round(time.Second).String(),
		ThumbnailsEnabled: h.thumbs != nil,
		GoVersion:         runtime.Version(),
		NumCPU:            runtime.NumCPU(),
		NumGoroutine:      runtime.NumGoroutine(),
	}

	if h.thumbs != nil {
		if stats, err := h.thumbs.Stats(); err == nil {
			response.ThumbnailCount = stats.Entries
			response.ThumbnailBytes = stats.Bytes
		}
	}

	code := http.StatusOK
	if !ready {
		response.Status = statusDegraded
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		writeJSON(w, response)
	}
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the media root can be read.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.mediaRootAvailable() {
		writeJSONStatus(w, http.StatusOK, "ready")
		return
	}
	writeJSONStatus(w, http.StatusServiceUnavailable, "not_ready")
}

func (h *Handlers) mediaRootAvailable() bool {
	info, err := filesystem.StatWithRetry(h.resolver.Root(), filesystem.DefaultRetryConfig())
	return err == nil && info.IsDir()
}

// GetVersion returns build information. Responses are never cached so a
// rolling upgrade is visible immediately.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, startup.GetBuildInfo())
}

// MetricsHandler exposes the default Prometheus registry.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.Handler()
}
