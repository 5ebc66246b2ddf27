// Package mediatypes classifies directory entries for the media explorer.
//
// This package exists as a dependency-free foundation that can be imported by other
// packages without creating import cycles. Classification is decided purely from a
// case-insensitive extension allow-list; no content sniffing is done.
//
// # Kinds
//
//	mediatypes.KindDirectory // Directories
//	mediatypes.KindVideo     // mp4, mov, m4v, avi, wmv, mkv, flv, webm
//	mediatypes.KindImage     // jpg, jpeg, png, gif, bmp, webp
//	mediatypes.KindIgnored   // Everything else
//
// # Usage
//
//	switch mediatypes.Classify("holiday.MP4") {
//	case mediatypes.KindVideo:
//	    // extract a frame
//	case mediatypes.KindImage:
//	    // downscale
//	}
//
// # MIME Types
//
// Use MimeType to get the Content-Type for HTTP responses:
//
//	mediatypes.MimeType("clip.webm") // "video/webm"
//	mediatypes.MimeType("notes.txt") // "application/octet-stream"
package mediatypes
