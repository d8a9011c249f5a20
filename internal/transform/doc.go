// Package transform produces derived media artifacts from downloaded
// originals: WebP stills via libvips (with a pure-Go fallback) and
// H.264 preview clips plus poster frames via ffmpeg.
package transform
