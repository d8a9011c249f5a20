// Package reconciler brings the local index for one folder into
// agreement with the backend's current listing.
//
// Matching is purely by stable id, never by name, so a rename is
// observed as a delete plus an add. Recursion into new subfolders
// happens by re-queueing reconciliation tasks rather than by recursive
// calls, which keeps wide trees expanding breadth-first under the
// queue's concurrency bound.
package reconciler
