package reconciler

import (
	"context"
	"fmt"
	"time"

	"media-sync/internal/backend"
	"media-sync/internal/cache"
	"media-sync/internal/database"
	"media-sync/internal/events"
	"media-sync/internal/logging"
	"media-sync/internal/metrics"
	"media-sync/internal/model"
	"media-sync/internal/queue"
)

// Reconciler converges the index with backend listings, one folder per
// pass.
type Reconciler struct {
	db        *database.Database
	queue     *queue.Queue
	feed      *events.Feed
	populator *cache.Populator
}

// New creates a reconciler.
func New(db *database.Database, q *queue.Queue, feed *events.Feed, populator *cache.Populator) *Reconciler {
	return &Reconciler{db: db, queue: q, feed: feed, populator: populator}
}

// EnqueueFolder queues a reconciliation pass for a folder at the given
// priority. The folder's id is the task key, so back-to-back triggers
// for the same folder collapse into one pass.
func (r *Reconciler) EnqueueFolder(account model.Account, client backend.Client, folder *model.Folder, priority queue.Priority) {
	r.queue.Enqueue(folder.ID, account.ID, priority, func(ctx context.Context) error {
		return r.Reconcile(ctx, account, client, folder)
	})
}

// Reconcile runs one full pass for a folder: fetch the backend's view,
// apply adds before deletes, persist the folder's sync state, trigger
// artifact population, and record one folder-updated event if anything
// changed.
func (r *Reconciler) Reconcile(ctx context.Context, account model.Account, client backend.Client, folder *model.Folder) error {
	start := time.Now()
	metrics.ReconcilerRunsTotal.Inc()
	defer func() {
		metrics.ReconcilerRunDuration.Observe(time.Since(start).Seconds())
	}()

	logging.Debug("reconciler: pass for %s:%s", account.ID, folder.Path)

	cloudFolder, err := client.GetFolder(ctx, folder)
	if err != nil {
		metrics.ReconcilerErrors.Inc()
		return fmt.Errorf("fetching folder %s: %w", folder.Path, err)
	}
	cloudSubFolders, err := client.ListFolders(ctx, cloudFolder)
	if err != nil {
		metrics.ReconcilerErrors.Inc()
		return fmt.Errorf("listing subfolders of %s: %w", folder.Path, err)
	}
	cloudSubFiles, err := client.ListFiles(ctx, cloudFolder)
	if err != nil {
		metrics.ReconcilerErrors.Inc()
		return fmt.Errorf("listing files of %s: %w", folder.Path, err)
	}

	knownSubFolders, err := r.db.ListChildFolders(ctx, account.ID, folder.Path)
	if err != nil {
		metrics.ReconcilerErrors.Inc()
		return fmt.Errorf("reading known subfolders of %s: %w", folder.Path, err)
	}
	knownSubFiles, err := r.db.ListFilesInFolder(ctx, folder.ID)
	if err != nil {
		metrics.ReconcilerErrors.Inc()
		return fmt.Errorf("reading known files of %s: %w", folder.Path, err)
	}

	knownFolderIDs := make(map[string]bool, len(knownSubFolders))
	for _, f := range knownSubFolders {
		knownFolderIDs[f.ID] = true
	}
	knownFileIDs := make(map[string]bool, len(knownSubFiles))
	for _, f := range knownSubFiles {
		knownFileIDs[f.ID] = true
	}
	cloudFolderIDs := make(map[string]bool, len(cloudSubFolders))
	for _, f := range cloudSubFolders {
		cloudFolderIDs[f.ID] = true
	}
	cloudFileIDs := make(map[string]bool, len(cloudSubFiles))
	for _, f := range cloudSubFiles {
		cloudFileIDs[f.ID] = true
	}

	var changed bool

	// Adds run before deletes so a rename observed mid-scan never
	// leaves the index transiently empty.
	for _, sub := range cloudSubFolders {
		if knownFolderIDs[sub.ID] {
			continue
		}
		if err := r.db.UpsertFolder(ctx, sub); err != nil {
			logging.Error("reconciler: inserting folder %s: %v", sub.Path, err)
			metrics.ReconcilerErrors.Inc()
			continue
		}
		changed = true
		metrics.ReconcilerObjects.WithLabelValues("folder", "added").Inc()
		logging.Info("reconciler: new folder %s:%s", account.ID, sub.Path)
		r.EnqueueFolder(account, client, sub, queue.PriorityNormal)
	}

	for _, file := range cloudSubFiles {
		if knownFileIDs[file.ID] {
			continue
		}
		file.FolderID = folder.ID
		file.DateSync = time.Now()
		if err := r.db.UpsertFile(ctx, file); err != nil {
			logging.Error("reconciler: inserting file %s: %v", file.Name, err)
			metrics.ReconcilerErrors.Inc()
			continue
		}
		changed = true
		metrics.ReconcilerObjects.WithLabelValues("file", "added").Inc()
		logging.Info("reconciler: new file %s in %s:%s", file.Name, account.ID, folder.Path)
	}

	for _, known := range knownSubFolders {
		if cloudFolderIDs[known.ID] {
			continue
		}
		folders, files, err := r.db.DeleteFolderTree(ctx, account.ID, known.Path)
		if err != nil {
			logging.Error("reconciler: deleting folder tree %s: %v", known.Path, err)
			metrics.ReconcilerErrors.Inc()
			continue
		}
		changed = true
		metrics.ReconcilerObjects.WithLabelValues("folder", "deleted").Add(float64(folders))
		metrics.ReconcilerObjects.WithLabelValues("file", "deleted").Add(float64(files))
		logging.Info("reconciler: removed folder tree %s:%s (%d folders, %d files)",
			account.ID, known.Path, folders, files)
	}

	for _, known := range knownSubFiles {
		if cloudFileIDs[known.ID] {
			continue
		}
		if err := r.db.DeleteFile(ctx, known.ID); err != nil {
			logging.Error("reconciler: deleting file %s: %v", known.Name, err)
			metrics.ReconcilerErrors.Inc()
			continue
		}
		changed = true
		metrics.ReconcilerObjects.WithLabelValues("file", "deleted").Inc()
		logging.Info("reconciler: removed file %s from %s:%s", known.Name, account.ID, folder.Path)
	}

	// dateSync only advances after a full pass has run.
	folder.DateSync = time.Now()
	folder.DateUpdated = cloudFolder.DateUpdated
	folder.Info = cloudFolder.Info
	if err := r.db.UpsertFolder(ctx, folder); err != nil {
		metrics.ReconcilerErrors.Inc()
		return fmt.Errorf("persisting folder %s: %w", folder.Path, err)
	}

	// Runs whether or not anything changed, to self-heal missing
	// artifacts.
	currentFiles, err := r.db.ListFilesInFolder(ctx, folder.ID)
	if err != nil {
		logging.Error("reconciler: reading files for artifact check: %v", err)
	} else {
		r.populator.Populate(ctx, client, currentFiles)
	}

	if changed {
		r.feed.Add(model.SyncEvent{
			ObjectType: model.ObjectFolder,
			ObjectID:   folder.ID,
			AccountID:  account.ID,
			Action:     model.ActionUpdated,
			Date:       time.Now(),
		})
	}
	return nil
}
