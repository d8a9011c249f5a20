package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"media-sync/internal/backend"
	"media-sync/internal/database"
	"media-sync/internal/logging"
	"media-sync/internal/model"
	"media-sync/internal/queue"
)

// User file operations run outside the queue but inside the blocking
// gate, so no reconciliation pass starts while the mutation is landing.
// Each operation applies the backend change directly, updates the index
// optimistically, then enqueues blocking-class reconciliation for the
// affected folder(s); callers that need the index converged before
// returning can DrainBlocking on the queue.

// DeleteUserFile removes a file from the backend and the index.
func (r *Reconciler) DeleteUserFile(ctx context.Context, account model.Account, client backend.Client, fileID string) error {
	file, err := r.db.GetFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("looking up file %s: %w", fileID, err)
	}

	r.queue.BeginBlockingOperation()
	defer r.queue.EndBlockingOperation()

	if err := client.DeleteFile(ctx, file); err != nil {
		return fmt.Errorf("deleting %s on backend: %w", file.Name, err)
	}
	if err := r.db.DeleteFile(ctx, file.ID); err != nil {
		logging.Error("delete: index row for %s not removed: %v", file.Name, err)
	}

	r.feed.Add(model.SyncEvent{
		ObjectType: model.ObjectFile,
		ObjectID:   file.ID,
		AccountID:  account.ID,
		Action:     model.ActionDeleted,
		Date:       time.Now(),
	})
	r.enqueueBlockingFolder(ctx, account, client, file.FolderID)
	return nil
}

// MoveUserFile relocates a file into another indexed folder. The moved
// file gets a new identity in the destination, discovered by the
// follow-up reconciliation as a delete plus an add.
func (r *Reconciler) MoveUserFile(ctx context.Context, account model.Account, client backend.Client, fileID, destFolderID string) error {
	file, err := r.db.GetFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("looking up file %s: %w", fileID, err)
	}
	destFolder, err := r.db.GetFolder(ctx, destFolderID)
	if err != nil {
		return fmt.Errorf("looking up destination folder %s: %w", destFolderID, err)
	}

	r.queue.BeginBlockingOperation()
	defer r.queue.EndBlockingOperation()

	if err := client.MoveFile(ctx, file, destFolder); err != nil {
		return fmt.Errorf("moving %s on backend: %w", file.Name, err)
	}
	if err := r.db.DeleteFile(ctx, file.ID); err != nil {
		logging.Error("move: index row for %s not removed: %v", file.Name, err)
	}

	r.enqueueBlockingFolder(ctx, account, client, file.FolderID)
	r.enqueueBlockingFolder(ctx, account, client, destFolder.ID)
	return nil
}

// RenameUserFile renames a file in place. The renamed file gets a new
// identity, discovered by the follow-up reconciliation.
func (r *Reconciler) RenameUserFile(ctx context.Context, account model.Account, client backend.Client, fileID, newName string) error {
	file, err := r.db.GetFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("looking up file %s: %w", fileID, err)
	}

	r.queue.BeginBlockingOperation()
	defer r.queue.EndBlockingOperation()

	if err := client.RenameFile(ctx, file, newName); err != nil {
		return fmt.Errorf("renaming %s on backend: %w", file.Name, err)
	}
	if err := r.db.DeleteFile(ctx, file.ID); err != nil {
		logging.Error("rename: index row for %s not removed: %v", file.Name, err)
	}

	r.enqueueBlockingFolder(ctx, account, client, file.FolderID)
	return nil
}

// enqueueBlockingFolder queues blocking-class reconciliation for an
// indexed folder so the index converges promptly after a user mutation.
func (r *Reconciler) enqueueBlockingFolder(ctx context.Context, account model.Account, client backend.Client, folderID string) {
	folder, err := r.db.GetFolder(ctx, folderID)
	if err != nil {
		logging.Warn("cannot queue follow-up reconciliation for folder %s: %v", folderID, err)
		return
	}
	r.EnqueueFolder(account, client, folder, queue.PriorityInteractiveBlocking)
}
