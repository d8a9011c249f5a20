package scheduler

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"media-sync/internal/logging"
	"media-sync/internal/model"
)

// WatchLocalAccounts registers filesystem watches on the root directory
// of every local account and kicks the scheduler when anything inside
// them changes. Remote backends have no change feed, so only local
// accounts get this shortcut; everything else relies on the periodic
// sweep. Returns immediately when no local accounts are configured.
func (s *Scheduler) WatchLocalAccounts(ctx context.Context) error {
	var roots []string
	for _, account := range s.accounts {
		if account.Type == model.BackendLocal {
			roots = append(roots, account.RootPath)
		}
	}
	if len(roots) == 0 {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	for _, root := range roots {
		if err := watcher.Add(root); err != nil {
			logging.Warn("scheduler: cannot watch %s: %v", root, err)
			continue
		}
		logging.Info("scheduler: watching %s for changes", root)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				logging.Debug("scheduler: filesystem change %s", event)
				s.Kick()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn("scheduler: watch error: %v", err)
			}
		}
	}()
	return nil
}
