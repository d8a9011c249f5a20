// Package cache keeps the derived-artifact store populated and tidy.
//
// For every indexed media file it decides which artifacts (thumbnail,
// preview image, preview video) are missing and allowed by the
// account's backend capabilities, and queues their generation. A
// cleanup pass removes artifact directories whose source file has left
// the index. Artifact existence is derived purely from the filesystem;
// nothing about artifacts is stored in the index.
package cache
