// Package media turns files under the media root into things a browser can
// show: directory listings and JPEG thumbnails.
//
// [ThumbnailCache] is the core. Thumbnails are stored as <md5(path)>.jpg in a
// cache directory, written once through a temp file and an atomic rename, and
// never evicted. A miss starts one generation per path (golang.org/x/sync
// singleflight); concurrent requests for the same path wait on it and all
// receive the same bytes or the same error. Generation runs under its own
// deadline, independent of any one request, and external decoders are
// bounded by a worker limiter.
//
// Videos go through [FFmpegExtractor] (ffprobe for the duration, ffmpeg for a
// single PNG frame). Images go through [ImagingDownscaler] or, when libvips is
// enabled, [VipsDownscaler]. Both only ever shrink.
//
// [ListDirectory] returns the grouped, name-sorted listing served by
// /api/directory.
package media
