package backend

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-sync/internal/logging"
	"media-sync/internal/mediatypes"
	"media-sync/internal/model"
)

// LocalClient serves an account rooted at a directory on the local
// filesystem. It has no backend-native thumbnails or previews, so its
// capability set is empty and all artifacts come from full downloads
// (which are plain file copies here).
type LocalClient struct {
	account model.Account
	root    string
}

// NewLocalClient creates a client for a local directory account.
func NewLocalClient(account model.Account) *LocalClient {
	return &LocalClient{
		account: account,
		root:    filepath.Clean(account.RootPath),
	}
}

// Capabilities reports that no server-side artifacts exist.
func (c *LocalClient) Capabilities() model.Capabilities {
	return model.Capabilities{}
}

// Validate checks that the root directory exists and is readable.
func (c *LocalClient) Validate(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { observe("local", "validate", start, err) }()

	info, err := os.Stat(c.root)
	if err != nil {
		return fmt.Errorf("local root %s: %w", c.root, err)
	}
	if !info.IsDir() {
		err = fmt.Errorf("local root %s is not a directory", c.root)
		return err
	}
	return nil
}

// absPath maps a root-relative folder path to the on-disk location.
func (c *LocalClient) absPath(folderPath string) string {
	folderPath = model.CleanFolderPath(folderPath)
	if folderPath == "/" {
		return c.root
	}
	return filepath.Join(c.root, filepath.FromSlash(strings.TrimPrefix(folderPath, "/")))
}

// GetFolder refreshes a folder; DateUpdated is the max mtime of the
// directory itself and its direct children.
func (c *LocalClient) GetFolder(ctx context.Context, folder *model.Folder) (*model.Folder, error) {
	return c.GetFolderByPath(ctx, folder.Path)
}

// GetFolderByPath resolves a root-relative path into a folder.
func (c *LocalClient) GetFolderByPath(ctx context.Context, folderPath string) (*model.Folder, error) {
	start := time.Now()
	var err error
	defer func() { observe("local", "get_folder", start, err) }()

	folderPath = model.CleanFolderPath(folderPath)
	abs := c.absPath(folderPath)

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		err = fmt.Errorf("%s is not a directory", abs)
		return nil, err
	}

	updated := info.ModTime()
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", abs, err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if entryInfo, infoErr := entry.Info(); infoErr == nil {
			if entryInfo.ModTime().After(updated) {
				updated = entryInfo.ModTime()
			}
		}
	}

	return &model.Folder{
		ID:          model.FolderID(c.account.ID, folderPath),
		AccountID:   c.account.ID,
		Path:        folderPath,
		DateUpdated: updated,
	}, nil
}

// ListFolders returns the immediate, non-hidden subdirectories.
func (c *LocalClient) ListFolders(ctx context.Context, folder *model.Folder) ([]*model.Folder, error) {
	start := time.Now()
	var err error
	defer func() { observe("local", "list_folders", start, err) }()

	entries, err := os.ReadDir(c.absPath(folder.Path))
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", folder.Path, err)
	}

	var folders []*model.Folder
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		childPath := model.ChildPath(folder.Path, entry.Name())
		child := &model.Folder{
			ID:        model.FolderID(c.account.ID, childPath),
			AccountID: c.account.ID,
			Path:      childPath,
		}
		if info, infoErr := entry.Info(); infoErr == nil {
			child.DateUpdated = info.ModTime()
		}
		folders = append(folders, child)
	}
	return folders, nil
}

// ListFiles returns the media files directly inside a folder. The hash
// is derived from path, size and mtime, which is cheap and changes
// whenever the content plausibly did.
func (c *LocalClient) ListFiles(ctx context.Context, folder *model.Folder) ([]*model.File, error) {
	start := time.Now()
	var err error
	defer func() { observe("local", "list_files", start, err) }()

	entries, err := os.ReadDir(c.absPath(folder.Path))
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", folder.Path, err)
	}

	var files []*model.File
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !mediatypes.IsMediaFile(entry.Name()) {
			continue
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			logging.Warn("local: cannot stat %s/%s: %v", folder.Path, entry.Name(), infoErr)
			continue
		}

		relPath := model.ChildPath(folder.Path, entry.Name())
		files = append(files, &model.File{
			ID:          model.FileID(c.account.ID, folder.ID, entry.Name()),
			CloudID:     relPath,
			AccountID:   c.account.ID,
			FolderID:    folder.ID,
			Name:        entry.Name(),
			Hash:        fmt.Sprintf("%x", md5.Sum([]byte(fmt.Sprintf("%s%d%d", relPath, info.Size(), info.ModTime().Unix())))),
			Size:        info.Size(),
			DateUpdated: info.ModTime(),
		})
	}
	return files, nil
}

// filePath resolves a file's on-disk location. The local backend's
// native identifier is the root-relative file path.
func (c *LocalClient) filePath(file *model.File) string {
	return filepath.Join(c.root, filepath.FromSlash(strings.TrimPrefix(file.CloudID, "/")))
}

// DownloadFile copies the file into destDir/destName.
func (c *LocalClient) DownloadFile(ctx context.Context, file *model.File, destDir, destName string) error {
	start := time.Now()
	var err error
	defer func() { observe("local", "download_file", start, err) }()

	src, err := os.Open(c.filePath(file))
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	dest, err := os.Create(filepath.Join(destDir, destName))
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer dest.Close()

	if _, err = io.Copy(dest, src); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return nil
}

// DownloadThumbnail is not supported by the local backend.
func (c *LocalClient) DownloadThumbnail(ctx context.Context, file *model.File, destDir, destName string) error {
	return ErrNotSupported
}

// DownloadPreview is not supported by the local backend.
func (c *LocalClient) DownloadPreview(ctx context.Context, file *model.File, destDir, destName string) error {
	return ErrNotSupported
}

// MoveFile relocates a file into another folder.
func (c *LocalClient) MoveFile(ctx context.Context, file *model.File, destFolder *model.Folder) error {
	start := time.Now()
	var err error
	defer func() { observe("local", "move_file", start, err) }()

	dest := filepath.Join(c.absPath(destFolder.Path), file.Name)
	if err = os.Rename(c.filePath(file), dest); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	return nil
}

// RenameFile renames a file in place.
func (c *LocalClient) RenameFile(ctx context.Context, file *model.File, newName string) error {
	start := time.Now()
	var err error
	defer func() { observe("local", "rename_file", start, err) }()

	dest := filepath.Join(filepath.Dir(c.filePath(file)), newName)
	if err = os.Rename(c.filePath(file), dest); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// DeleteFile removes a file from disk.
func (c *LocalClient) DeleteFile(ctx context.Context, file *model.File) error {
	start := time.Now()
	var err error
	defer func() { observe("local", "delete_file", start, err) }()

	if err = os.Remove(c.filePath(file)); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}
