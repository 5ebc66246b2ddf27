package mediatypes

import (
	"path/filepath"
	"strings"
)

// Kind is the classification of a directory entry.
type Kind string

const (
	// KindDirectory represents a directory.
	KindDirectory Kind = "directory"
	// KindVideo represents a file with an allow-listed video extension.
	KindVideo Kind = "video"
	// KindImage represents a file with an allow-listed image extension.
	KindImage Kind = "image"
	// KindIgnored represents any other file.
	KindIgnored Kind = "ignored"
)

// VideoExtensions is the video allow-list. Keys are lowercase with the leading dot.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".m4v":  true,
	".avi":  true,
	".wmv":  true,
	".mkv":  true,
	".flv":  true,
	".webm": true,
}

// ImageExtensions is the image allow-list. Keys are lowercase with the leading dot.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",

	// Videos
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".m4v":  "video/x-m4v",
	".avi":  "video/x-msvideo",
	".wmv":  "video/x-ms-wmv",
	".mkv":  "video/x-matroska",
	".flv":  "video/x-flv",
	".webm": "video/webm",
}

// DefaultMimeType is used when an extension is not in MimeTypes.
const DefaultMimeType = "application/octet-stream"

// Ext returns the lowercase extension of name, including the leading dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// Classify returns the Kind of a non-directory entry from its file name alone.
// The extension check is case-insensitive; file contents are never inspected.
func Classify(name string) Kind {
	ext := Ext(name)
	if VideoExtensions[ext] {
		return KindVideo
	}
	if ImageExtensions[ext] {
		return KindImage
	}
	return KindIgnored
}

// ClassifyEntry is Classify for directory listings, where the caller already
// knows whether the entry is a directory.
func ClassifyEntry(name string, isDir bool) Kind {
	if isDir {
		return KindDirectory
	}
	return Classify(name)
}

// MimeType returns the Content-Type for a file name, falling back to
// DefaultMimeType when the extension is unknown.
func MimeType(name string) string {
	if mime, ok := MimeTypes[Ext(name)]; ok {
		return mime
	}
	return DefaultMimeType
}

// IsMediaFile returns true if name has a video or image extension.
func IsMediaFile(name string) bool {
	return Classify(name) != KindIgnored
}
