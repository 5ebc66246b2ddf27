package handlers

import (
	"context"
	"errors"
	"net/http"

	"media-explorer/internal/filesystem"
	"media-explorer/internal/logging"
	"media-explorer/internal/media"
	"media-explorer/internal/metrics"
	"media-explorer/internal/streaming"
)

// errMissingParameter is returned when the p query parameter is absent.
var errMissingParameter = errors.New("missing required parameter: p")

// errThumbnailsDisabled is returned when no thumbnail cache is configured.
var errThumbnailsDisabled = errors.New("thumbnails disabled")

// errorResponses maps sentinels to a status and a fixed body. The order
// matters only where one error could match several entries.
var errorResponses = []struct {
	err     error
	status  int
	message string
}{
	{filesystem.ErrOutsideRoot, http.StatusForbidden, "Access denied"},
	{errMissingParameter, http.StatusBadRequest, "Missing required parameter: p"},
	{filesystem.ErrSourceNotFound, http.StatusNotFound, "File not found"},
	{media.ErrNotDirectory, http.StatusNotFound, "Not a directory"},
	{media.ErrUnsupportedMediaType, http.StatusNotFound, "Unsupported media type"},
	{media.ErrGenerationFailed, http.StatusNotFound, "Thumbnail unavailable"},
	{streaming.ErrRangeNotSatisfiable, http.StatusRequestedRangeNotSatisfiable, "Requested range not satisfiable"},
	{errThumbnailsDisabled, http.StatusServiceUnavailable, "Thumbnails disabled"},
	{context.Canceled, http.StatusServiceUnavailable, "Request canceled"},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, "Request timed out"},
}

// statusForError returns the status and public message for err.
func statusForError(err error) (int, string) {
	for _, resp := range errorResponses {
		if errors.Is(err, resp.err) {
			return resp.status, resp.message
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}

// writeError logs err with its full cause and writes only the fixed message.
// endpoint labels path rejection metrics.
func writeError(w http.ResponseWriter, endpoint string, err error) {
	status, message := statusForError(err)

	var genErr *media.GenerationError
	switch {
	case errors.Is(err, filesystem.ErrOutsideRoot):
		metrics.PathRejectionsTotal.WithLabelValues(endpoint).Inc()
		logging.Warn("%s: rejected path outside media root", endpoint)
	case errors.As(err, &genErr):
		logging.Warn("%s: thumbnail generation failed (%s): %v", endpoint, genErr.Reason, genErr.Err)
	case status >= http.StatusInternalServerError:
		logging.Error("%s: %v", endpoint, err)
	default:
		logging.Debug("%s: %d %v", endpoint, status, err)
	}

	http.Error(w, message, status)
}
