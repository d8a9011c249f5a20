package mediatypes

import (
	"path/filepath"
	"strings"
)

// MediaType classifies a file by what derived artifacts it can have.
type MediaType string

const (
	// MediaTypeImage represents a photo, including camera raw formats.
	MediaTypeImage MediaType = "image"
	// MediaTypeVideo represents a video file.
	MediaTypeVideo MediaType = "video"
	// MediaTypeUnknown represents anything the cache pipeline skips.
	MediaTypeUnknown MediaType = "unknown"
)

// RawImageExtensions maps camera raw file extensions to whether they are
// recognized. Raw files are images for cache purposes but usually need
// the backend-provided thumbnail rather than a local decode.
var RawImageExtensions = map[string]bool{
	".raw": true,
	".cr2": true,
	".cr3": true,
	".nef": true,
	".arw": true,
	".dng": true,
	".orf": true,
	".raf": true,
	".rw2": true,
}

// ImageExtensions maps common image file extensions to whether they are
// supported.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
	".avif": true,
}

// VideoExtensions maps common video file extensions to whether they are
// supported.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".mts":  true,
	".ts":   true,
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
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",

	// Videos
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".mts":  "video/mp2t",
	".ts":   "video/mp2t",
}

// GetMediaType returns the MediaType for a filename. Classification is
// by extension only; anything unrecognized is MediaTypeUnknown and is
// skipped by the cache pipeline entirely.
func GetMediaType(filename string) MediaType {
	ext := strings.ToLower(filepath.Ext(filename))
	if ImageExtensions[ext] || RawImageExtensions[ext] {
		return MediaTypeImage
	}
	if VideoExtensions[ext] {
		return MediaTypeVideo
	}
	return MediaTypeUnknown
}

// IsRawImage returns true if the filename has a camera raw extension.
func IsRawImage(filename string) bool {
	return RawImageExtensions[strings.ToLower(filepath.Ext(filename))]
}

// GetMimeType returns the MIME type for a filename.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(filename string) string {
	if mime, ok := MimeTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsMediaFile returns true if the filename represents a supported media file.
func IsMediaFile(filename string) bool {
	return GetMediaType(filename) != MediaTypeUnknown
}
