package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"media-explorer/internal/filesystem"
	"media-explorer/internal/logging"
	"media-explorer/internal/media"
	"media-explorer/internal/mediatypes"
	"media-explorer/internal/streaming"
)

// GetDirectory lists the directory named by p. A missing or empty p lists
// the media root.
func (h *Handlers) GetDirectory(w http.ResponseWriter, r *http.Request) {
	relative := r.URL.Query().Get("p")

	tree, err := media.ListDirectory(h.resolver, relative)
	if err != nil {
		writeError(w, "directory", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, tree)
}

// GetThumbnail returns a JPEG thumbnail for the video or image named by p.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	fullPath, err := h.resolveFile(r)
	if err != nil {
		writeError(w, "thumbnail", err)
		return
	}

	if h.thumbs == nil {
		writeError(w, "thumbnail", errThumbnailsDisabled)
		return
	}

	thumb, err := h.thumbs.GetThumbnail(r.Context(), fullPath)
	if err != nil {
		writeError(w, "thumbnail", err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(thumb)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(thumb); err != nil {
		logging.Debug("thumbnail: write failed: %v", err)
	}
}

// StreamVideo serves the file named by p, honoring a single byte Range.
func (h *Handlers) StreamVideo(w http.ResponseWriter, r *http.Request) {
	fullPath, err := h.resolveFile(r)
	if err != nil {
		writeError(w, "video", err)
		return
	}

	resp, err := streaming.OpenWithConfig(fullPath, r.Header.Get("Range"), h.stream)
	if err != nil {
		var rangeErr *streaming.RangeError
		if errors.As(err, &rangeErr) {
			w.Header().Set("Content-Range", streaming.UnsatisfiedRange(rangeErr.Size))
		}
		writeError(w, "video", err)
		return
	}

	if _, err := resp.Send(r.Context(), w); err != nil && !errors.Is(err, streaming.ErrClientGone) {
		logging.Debug("video: stream ended early: %v", err)
	}
}

// GetImage serves the original bytes of the image named by p.
func (h *Handlers) GetImage(w http.ResponseWriter, r *http.Request) {
	fullPath, err := h.resolveFile(r)
	if err != nil {
		writeError(w, "image", err)
		return
	}

	if mediatypes.Classify(fullPath) != mediatypes.KindImage {
		writeError(w, "image", media.ErrUnsupportedMediaType)
		return
	}

	retry := filesystem.DefaultRetryConfig()
	file, err := filesystem.OpenWithRetry(fullPath, retry)
	if err != nil {
		writeError(w, "image", fmt.Errorf("%w: %w", filesystem.ErrSourceNotFound, err))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		writeError(w, "image", fmt.Errorf("stat image: %w", err))
		return
	}
	if info.IsDir() {
		writeError(w, "image", fmt.Errorf("%w: is a directory", filesystem.ErrSourceNotFound))
		return
	}

	// Preset so ServeContent does not sniff.
	w.Header().Set("Content-Type", mediatypes.MimeType(fullPath))
	http.ServeContent(w, r, filepath.Base(fullPath), info.ModTime(), file)
}

// resolveFile reads p and resolves it inside the media root. An empty p is
// treated as missing since no file endpoint can serve the root itself.
func (h *Handlers) resolveFile(r *http.Request) (string, error) {
	relative, err := pathParam(r)
	if err != nil {
		return "", err
	}
	if relative == "" {
		return "", errMissingParameter
	}
	return h.resolver.Resolve(relative)
}
