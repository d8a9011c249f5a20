package workers

import (
	"os"
	"runtime"
	"strconv"
)

// MaxParallel returns the worker slot count for the task queue.
//
// The default of 2 keeps the blast radius of a hung backend call to a
// single slot while still letting reconciliation and artifact work
// overlap. It can be raised with the SYNC_WORKERS environment variable,
// capped at the container CPU limit (GOMAXPROCS respects it on Go 1.19+)
// times two, since queue work is I/O-bound.
func MaxParallel(defaultCount int) int {
	if defaultCount < 1 {
		defaultCount = 1
	}

	limit := runtime.GOMAXPROCS(0) * 2

	if override := os.Getenv("SYNC_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if count > limit {
				return limit
			}
			return count
		}
	}

	if defaultCount > limit {
		return limit
	}
	return defaultCount
}
