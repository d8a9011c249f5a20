package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"media-sync/internal/model"
)

const fileColumns = "id, id_cloud, account_id, folder_id, filename, hash, size, date_updated, date_sync, date_media, keywords, info, metadata"

func scanFile(row interface{ Scan(...interface{}) error }) (*model.File, error) {
	var f model.File
	var cloudID, hash, keywords, info, metadata sql.NullString
	var dateUpdated, dateSync, dateMedia int64

	err := row.Scan(&f.ID, &cloudID, &f.AccountID, &f.FolderID, &f.Name, &hash,
		&f.Size, &dateUpdated, &dateSync, &dateMedia, &keywords, &info, &metadata)
	if err != nil {
		return nil, err
	}

	f.CloudID = cloudID.String
	f.Hash = hash.String
	f.Keywords = keywords.String
	f.Info = info.String
	f.Metadata = metadata.String
	f.DateUpdated = timeOrZero(dateUpdated)
	f.DateSync = timeOrZero(dateSync)
	f.DateMedia = timeOrZero(dateMedia)
	return &f, nil
}

// UpsertFile inserts a file row or updates it in place. The id is the
// caller-computed content address (model.FileID) and is never changed
// by an update.
func (d *Database) UpsertFile(ctx context.Context, file *model.File) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_file", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO files (id, id_cloud, account_id, folder_id, filename, hash, size,
			date_updated, date_sync, date_media, keywords, info, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			id_cloud = excluded.id_cloud,
			folder_id = excluded.folder_id,
			hash = excluded.hash,
			size = excluded.size,
			date_updated = excluded.date_updated,
			date_sync = excluded.date_sync,
			date_media = excluded.date_media,
			keywords = excluded.keywords,
			info = excluded.info,
			metadata = excluded.metadata`,
		file.ID, file.CloudID, file.AccountID, file.FolderID, file.Name, file.Hash, file.Size,
		unixOrZero(file.DateUpdated), unixOrZero(file.DateSync), unixOrZero(file.DateMedia),
		file.Keywords, file.Info, file.Metadata,
	)
	return err
}

// GetFile returns a file by id, or ErrNotFound.
func (d *Database) GetFile(ctx context.Context, id string) (*model.File, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_file", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	file, err := scanFile(d.db.QueryRowContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return file, err
}

// ListFilesInFolder returns every file whose folder_id matches.
func (d *Database) ListFilesInFolder(ctx context.Context, folderID string) ([]*model.File, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_files", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE folder_id = ? ORDER BY filename", folderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*model.File
	for rows.Next() {
		file, scanErr := scanFile(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		files = append(files, file)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return files, nil
}

// DeleteFile removes a file row by id.
func (d *Database) DeleteFile(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_file", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "DELETE FROM files WHERE id = ?", id)
	return err
}

// FileIDs returns the set of known file ids for an account. The cache
// cleanup pass uses it to drop artifact directories whose source file
// is gone.
func (d *Database) FileIDs(ctx context.Context, accountID string) (map[string]bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("file_ids", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT id FROM files WHERE account_id = ?", accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			err = scanErr
			return nil, err
		}
		ids[id] = true
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return ids, nil
}
