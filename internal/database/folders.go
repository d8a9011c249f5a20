package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"media-sync/internal/model"
)

// ErrNotFound is returned for point lookups that match no row.
var ErrNotFound = errors.New("database: not found")

const folderColumns = "id, id_cloud, account_id, folder_path, date_updated, date_sync, info"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix escapes LIKE wildcards so a path such as /a_b matches only
// itself. Queries using it must carry ESCAPE '\'.
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix)
}

func scanFolder(row interface{ Scan(...interface{}) error }) (*model.Folder, error) {
	var f model.Folder
	var cloudID, info sql.NullString
	var dateUpdated, dateSync int64

	err := row.Scan(&f.ID, &cloudID, &f.AccountID, &f.Path, &dateUpdated, &dateSync, &info)
	if err != nil {
		return nil, err
	}

	f.CloudID = cloudID.String
	f.Info = info.String
	f.DateUpdated = timeOrZero(dateUpdated)
	f.DateSync = timeOrZero(dateSync)
	return &f, nil
}

// UpsertFolder inserts a folder row or updates it in place. Identity is
// the folder id; the (account, path) uniqueness constraint backs the
// invariant that a path maps to one folder per account.
func (d *Database) UpsertFolder(ctx context.Context, folder *model.Folder) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_folder", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO folders (id, id_cloud, account_id, folder_path, date_updated, date_sync, info)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			id_cloud = excluded.id_cloud,
			folder_path = excluded.folder_path,
			date_updated = excluded.date_updated,
			date_sync = excluded.date_sync,
			info = excluded.info`,
		folder.ID, folder.CloudID, folder.AccountID, folder.Path,
		unixOrZero(folder.DateUpdated), unixOrZero(folder.DateSync), folder.Info,
	)
	return err
}

// GetFolder returns a folder by id, or ErrNotFound.
func (d *Database) GetFolder(ctx context.Context, id string) (*model.Folder, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_folder", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	folder, err := scanFolder(d.db.QueryRowContext(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return folder, err
}

// GetFolderByPath returns a folder by account and normalized path, or
// ErrNotFound.
func (d *Database) GetFolderByPath(ctx context.Context, accountID, folderPath string) (*model.Folder, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_folder_by_path", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	folder, err := scanFolder(d.db.QueryRowContext(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE account_id = ? AND folder_path = ?",
		accountID, model.CleanFolderPath(folderPath)))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return folder, err
}

// ListChildFolders returns the immediate children of parentPath for an
// account.
func (d *Database) ListChildFolders(ctx context.Context, accountID, parentPath string) ([]*model.Folder, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_folders", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	parentPath = model.CleanFolderPath(parentPath)
	prefix := parentPath
	if prefix != "/" {
		prefix += "/"
	}

	rows, err := d.db.QueryContext(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE account_id = ? AND folder_path LIKE ? || '%' ESCAPE '\\' AND folder_path != ? ORDER BY folder_path",
		accountID, likePrefix(prefix), parentPath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []*model.Folder
	for rows.Next() {
		folder, scanErr := scanFolder(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		// LIKE matches the whole subtree; keep immediate children only.
		if model.ParentPath(folder.Path) == parentPath {
			folders = append(folders, folder)
		}
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return folders, nil
}

// DeleteFolderTree removes the folder at folderPath and every folder
// and file transitively under it, matched by path prefix. A path prefix
// is the only relationship guaranteed correct after arbitrary nesting
// changes, so the cascade deliberately avoids id joins.
func (d *Database) DeleteFolderTree(ctx context.Context, accountID, folderPath string) (folders, files int64, err error) {
	start := time.Now()
	defer func() { recordQuery("delete_folder_tree", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	folderPath = model.CleanFolderPath(folderPath)
	prefix := folderPath
	if prefix != "/" {
		prefix += "/"
	}

	res, err := d.db.ExecContext(ctx, `
		DELETE FROM files WHERE folder_id IN (
			SELECT id FROM folders
			WHERE account_id = ? AND (folder_path = ? OR folder_path LIKE ? || '%' ESCAPE '\')
		)`,
		accountID, folderPath, likePrefix(prefix))
	if err != nil {
		return 0, 0, err
	}
	files, _ = res.RowsAffected()

	res, err = d.db.ExecContext(ctx,
		"DELETE FROM folders WHERE account_id = ? AND (folder_path = ? OR folder_path LIKE ? || '%' ESCAPE '\\')",
		accountID, folderPath, likePrefix(prefix))
	if err != nil {
		return 0, files, err
	}
	folders, _ = res.RowsAffected()

	return folders, files, nil
}

// RecentSyncedFolders returns the limit most-recently-synced folders of
// an account.
func (d *Database) RecentSyncedFolders(ctx context.Context, accountID string, limit int) ([]*model.Folder, error) {
	return d.foldersBySync(ctx, "recent_folders", accountID, "DESC", limit)
}

// OldestSyncedFolders returns the limit least-recently-synced folders
// of an account.
func (d *Database) OldestSyncedFolders(ctx context.Context, accountID string, limit int) ([]*model.Folder, error) {
	return d.foldersBySync(ctx, "recent_folders", accountID, "ASC", limit)
}

func (d *Database) foldersBySync(ctx context.Context, op, accountID, order string, limit int) ([]*model.Folder, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(op, start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := "SELECT " + folderColumns + " FROM folders WHERE account_id = ? ORDER BY date_sync " + order + " LIMIT ?"
	rows, err := d.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	folders, err := collectFolders(rows)
	return folders, err
}

// StaleFolders returns every folder of an account whose date_sync is
// older than the cutoff.
func (d *Database) StaleFolders(ctx context.Context, accountID string, cutoff time.Time) ([]*model.Folder, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("stale_folders", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE account_id = ? AND date_sync < ?",
		accountID, cutoff.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	folders, err := collectFolders(rows)
	return folders, err
}

// FoldersOfRecentFiles returns the folders containing the limit most
// recently updated files of an account.
func (d *Database) FoldersOfRecentFiles(ctx context.Context, accountID string, limit int) ([]*model.Folder, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("recent_file_folders", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+folderColumns+` FROM folders WHERE id IN (
			SELECT DISTINCT folder_id FROM (
				SELECT folder_id FROM files WHERE account_id = ?
				ORDER BY date_updated DESC LIMIT ?
			)
		)`,
		accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	folders, err := collectFolders(rows)
	return folders, err
}

func collectFolders(rows *sql.Rows) ([]*model.Folder, error) {
	var folders []*model.Folder
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}
	return folders, rows.Err()
}
