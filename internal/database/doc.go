// Package database implements the local index store over SQLite.
//
// It tracks the folders and files known for every account, offering the
// narrow contract the sync core needs: point lookups by id, listing by
// account or parent folder, prefix-deletes of folder subtrees (with
// their files), count aggregates and a small metadata key/value table.
//
// The database uses WAL mode with a busy timeout so reconciliation
// tasks, the scheduler and the status server can overlap safely.
package database
