// Package scheduler drives the whole system toward convergence without
// manual triggers. Each sweep seeds reconciliation work for every
// account and cleans stale cache entries; the sweep interval adapts to
// observed activity, polling busy accounts near the base frequency and
// quiet ones increasingly rarely up to a configured ceiling. Local
// accounts additionally get filesystem change notifications that force
// an immediate sweep.
package scheduler
