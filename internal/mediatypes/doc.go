// Package mediatypes classifies files by extension into the media kinds
// the cache pipeline understands.
//
// Supported file types:
//   - Images: jpg, jpeg, png, gif, bmp, webp, tiff, heic, heif, avif
//   - Raw images: raw, cr2, cr3, nef, arw, dng, orf, raf, rw2
//   - Videos: mp4, mkv, avi, mov, wmv, flv, webm, m4v, mpeg, mpg, 3gp, mts, ts
//
// Anything else is classified as unknown and skipped entirely.
package mediatypes
