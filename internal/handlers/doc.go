// Package handlers provides the HTTP handlers of the media explorer API.
//
// Every file endpoint takes the path relative to the media root in the p
// query parameter and resolves it with filesystem.Resolver before touching
// the filesystem:
//
//   - GET /api/directory?p=  directory listing as JSON (empty p is the root)
//   - GET /api/thumbnail?p=  cached JPEG thumbnail for a video or image
//   - GET /api/video?p=      file stream with single byte-range support
//   - GET /api/image?p=      original image bytes
//
// Errors are mapped from package sentinels to a status code and a fixed
// plain-text message. Paths and generation causes appear only in logs.
//
// Health endpoints (/healthz, /livez, /readyz) and /version report service
// state as JSON.
package handlers
