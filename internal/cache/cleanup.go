package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"media-sync/internal/database"
	"media-sync/internal/logging"
	"media-sync/internal/metrics"
)

// CleanAccount removes every cached artifact directory whose source
// file is no longer in the index. Per-directory failures are logged and
// skipped so one bad entry never aborts the sweep.
func (p *Populator) CleanAccount(ctx context.Context, db *database.Database, accountID string) error {
	known, err := db.FileIDs(ctx, accountID)
	if err != nil {
		return fmt.Errorf("listing indexed files for %s: %w", accountID, err)
	}

	accountRoot := filepath.Join(p.cacheRoot, accountID)
	if _, err := os.Stat(accountRoot); os.IsNotExist(err) {
		return nil
	}

	var removed int
	for _, dir := range p.artifactDirs(accountRoot) {
		fileID := filepath.Base(dir)
		if known[fileID] {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			logging.Warn("cache: cannot remove stale dir %s: %v", dir, err)
			continue
		}
		removed++
		metrics.CacheCleanupRemoved.Inc()
	}

	if removed > 0 {
		logging.Info("cache: removed %d stale artifact directories for account %s", removed, accountID)
	}
	return nil
}

// artifactDirs walks the two shard levels under an account's cache root
// and returns the per-file artifact directories.
func (p *Populator) artifactDirs(accountRoot string) []string {
	var dirs []string
	shards, err := os.ReadDir(accountRoot)
	if err != nil {
		logging.Warn("cache: cannot read %s: %v", accountRoot, err)
		return nil
	}
	for _, first := range shards {
		if !first.IsDir() {
			continue
		}
		seconds, err := os.ReadDir(filepath.Join(accountRoot, first.Name()))
		if err != nil {
			continue
		}
		for _, second := range seconds {
			if !second.IsDir() {
				continue
			}
			entries, err := os.ReadDir(filepath.Join(accountRoot, first.Name(), second.Name()))
			if err != nil {
				continue
			}
			for _, entry := range entries {
				if entry.IsDir() {
					dirs = append(dirs, filepath.Join(accountRoot, first.Name(), second.Name(), entry.Name()))
				}
			}
		}
	}
	return dirs
}
