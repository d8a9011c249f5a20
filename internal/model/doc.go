// Package model defines the shared data types of the sync service:
// accounts, folders, files, sync events and backend capabilities,
// together with the deterministic identity functions that tie a
// logical file or folder to a stable index id.
package model
