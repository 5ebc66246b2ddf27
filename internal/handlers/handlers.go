package handlers

import (
	"time"

	"media-explorer/internal/filesystem"
	"media-explorer/internal/media"
	"media-explorer/internal/startup"
	"media-explorer/internal/streaming"
)

// Handlers serves the media API. Every path parameter is resolved against the
// media root before any filesystem access.
type Handlers struct {
	resolver  *filesystem.Resolver
	thumbs    *media.ThumbnailCache
	stream    streaming.WriterConfig
	startTime time.Time
}

// New creates the handlers. thumbs may be nil, in which case thumbnail
// requests return 503.
func New(config *startup.Config, resolver *filesystem.Resolver, thumbs *media.ThumbnailCache) *Handlers {
	h := &Handlers{
		resolver:  resolver,
		thumbs:    thumbs,
		stream:    streaming.DefaultWriterConfig(),
		startTime: time.Now(),
	}
	if config != nil && !config.ThumbnailsEnabled {
		h.thumbs = nil
	}
	return h
}
