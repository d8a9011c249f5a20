// Package backend implements the account client contract for every
// supported storage backend: a local filesystem directory, an
// S3-compatible object store and a bearer-token cloud drive API.
//
// A factory keyed on the account's type tag selects the implementation,
// and a registry caches one client per account id for the process
// lifetime. Each client creates its backend connection lazily and
// refreshes credentials transparently. Capability sets gate which
// derived artifacts (thumbnails, previews) a backend can serve
// directly.
package backend
