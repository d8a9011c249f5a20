package backend

import (
	"context"
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"media-sync/internal/model"
)

// MemoryClient is an in-memory backend. It exists for tests and local
// experiments: remote state can be mutated directly and every Client
// operation works against it without network or disk. The capability
// set is configurable so capability-gated paths can be exercised.
type MemoryClient struct {
	accountID string
	caps      model.Capabilities

	mu      sync.Mutex
	folders map[string]time.Time         // path -> updated
	files   map[string][]*memoryFile     // path -> files
	blobs   map[string]map[string][]byte // kind -> cloud id -> content
}

type memoryFile struct {
	name    string
	size    int64
	updated time.Time
}

// NewMemoryClient creates an empty in-memory backend containing only
// the root folder.
func NewMemoryClient(accountID string, caps model.Capabilities) *MemoryClient {
	return &MemoryClient{
		accountID: accountID,
		caps:      caps,
		folders:   map[string]time.Time{"/": time.Now()},
		files:     make(map[string][]*memoryFile),
		blobs: map[string]map[string][]byte{
			"content":   {},
			"thumbnail": {},
			"preview":   {},
		},
	}
}

// PutFolder adds or refreshes a folder, creating missing parents.
func (c *MemoryClient) PutFolder(folderPath string, updated time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	folderPath = model.CleanFolderPath(folderPath)
	for p := folderPath; ; p = model.ParentPath(p) {
		if _, ok := c.folders[p]; !ok {
			c.folders[p] = updated
		}
		if p == "/" {
			break
		}
	}
	c.folders[folderPath] = updated
}

// RemoveFolder drops a folder and everything beneath it.
func (c *MemoryClient) RemoveFolder(folderPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	folderPath = model.CleanFolderPath(folderPath)
	for p := range c.folders {
		if p == folderPath || (len(p) > len(folderPath) && p[:len(folderPath)+1] == folderPath+"/") ||
			(folderPath == "/" && p != "/") {
			delete(c.folders, p)
			delete(c.files, p)
		}
	}
}

// PutFile adds or replaces a file inside a folder. The content doubles
// as the change signal: the hash is derived from it.
func (c *MemoryClient) PutFile(folderPath, name string, content []byte, updated time.Time) {
	c.PutFolder(folderPath, updated)

	c.mu.Lock()
	defer c.mu.Unlock()

	folderPath = model.CleanFolderPath(folderPath)
	entry := &memoryFile{name: name, size: int64(len(content)), updated: updated}

	replaced := false
	for i, f := range c.files[folderPath] {
		if f.name == name {
			c.files[folderPath][i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		c.files[folderPath] = append(c.files[folderPath], entry)
	}
	c.blobs["content"][c.cloudID(folderPath, name)] = content
}

// PutArtifact registers server-side thumbnail or preview bytes for a
// file so capability-gated downloads have something to serve.
func (c *MemoryClient) PutArtifact(kind, folderPath, name string, content []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobs[kind][c.cloudID(model.CleanFolderPath(folderPath), name)] = content
}

// RemoveFile drops a single file.
func (c *MemoryClient) RemoveFile(folderPath, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	folderPath = model.CleanFolderPath(folderPath)
	kept := c.files[folderPath][:0]
	for _, f := range c.files[folderPath] {
		if f.name != name {
			kept = append(kept, f)
		}
	}
	c.files[folderPath] = kept
	delete(c.blobs["content"], c.cloudID(folderPath, name))
}

func (c *MemoryClient) cloudID(folderPath, name string) string {
	return model.ChildPath(folderPath, name)
}

// Capabilities reports the configured capability set.
func (c *MemoryClient) Capabilities() model.Capabilities {
	return c.caps
}

// Validate always succeeds.
func (c *MemoryClient) Validate(ctx context.Context) error {
	return nil
}

// GetFolder refreshes a folder from the in-memory state.
func (c *MemoryClient) GetFolder(ctx context.Context, folder *model.Folder) (*model.Folder, error) {
	return c.GetFolderByPath(ctx, folder.Path)
}

// GetFolderByPath resolves a root-relative folder path.
func (c *MemoryClient) GetFolderByPath(ctx context.Context, folderPath string) (*model.Folder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	folderPath = model.CleanFolderPath(folderPath)
	updated, ok := c.folders[folderPath]
	if !ok {
		return nil, fmt.Errorf("memory: folder %s not found", folderPath)
	}
	return &model.Folder{
		ID:          model.FolderID(c.accountID, folderPath),
		AccountID:   c.accountID,
		Path:        folderPath,
		DateUpdated: updated,
	}, nil
}

// ListFolders returns the immediate subfolders of a folder.
func (c *MemoryClient) ListFolders(ctx context.Context, folder *model.Folder) ([]*model.Folder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var folders []*model.Folder
	for p, updated := range c.folders {
		if p == "/" || model.ParentPath(p) != folder.Path {
			continue
		}
		folders = append(folders, &model.Folder{
			ID:          model.FolderID(c.accountID, p),
			AccountID:   c.accountID,
			Path:        p,
			DateUpdated: updated,
		})
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Path < folders[j].Path })
	return folders, nil
}

// ListFiles returns the files directly inside a folder.
func (c *MemoryClient) ListFiles(ctx context.Context, folder *model.Folder) ([]*model.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var files []*model.File
	for _, f := range c.files[folder.Path] {
		cloudID := c.cloudID(folder.Path, f.name)
		files = append(files, &model.File{
			ID:          model.FileID(c.accountID, folder.ID, f.name),
			CloudID:     cloudID,
			AccountID:   c.accountID,
			FolderID:    folder.ID,
			Name:        f.name,
			Hash:        fmt.Sprintf("%x", md5.Sum(c.blobs["content"][cloudID])),
			Size:        f.size,
			DateUpdated: f.updated,
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (c *MemoryClient) writeBlob(kind string, file *model.File, destDir, destName string) error {
	c.mu.Lock()
	content, ok := c.blobs[kind][file.CloudID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("memory: no %s for %s", kind, file.CloudID)
	}
	return os.WriteFile(filepath.Join(destDir, destName), content, 0o644)
}

// DownloadFile writes the stored content into destDir/destName.
func (c *MemoryClient) DownloadFile(ctx context.Context, file *model.File, destDir, destName string) error {
	return c.writeBlob("content", file, destDir, destName)
}

// DownloadThumbnail writes the stored thumbnail, if the capability set
// allows it.
func (c *MemoryClient) DownloadThumbnail(ctx context.Context, file *model.File, destDir, destName string) error {
	if !c.caps.PhotoThumbnail && !c.caps.VideoThumbnail {
		return ErrNotSupported
	}
	return c.writeBlob("thumbnail", file, destDir, destName)
}

// DownloadPreview writes the stored preview, if the capability set
// allows it.
func (c *MemoryClient) DownloadPreview(ctx context.Context, file *model.File, destDir, destName string) error {
	if !c.caps.PhotoPreview && !c.caps.VideoPreview {
		return ErrNotSupported
	}
	return c.writeBlob("preview", file, destDir, destName)
}

// MoveFile relocates a file into another folder.
func (c *MemoryClient) MoveFile(ctx context.Context, file *model.File, destFolder *model.Folder) error {
	c.mu.Lock()
	content, ok := c.blobs["content"][file.CloudID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("memory: file %s not found", file.CloudID)
	}

	srcFolder := model.ParentPath(file.CloudID)
	c.RemoveFile(srcFolder, file.Name)
	c.PutFile(destFolder.Path, file.Name, content, time.Now())
	return nil
}

// RenameFile renames a file in place.
func (c *MemoryClient) RenameFile(ctx context.Context, file *model.File, newName string) error {
	c.mu.Lock()
	content, ok := c.blobs["content"][file.CloudID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("memory: file %s not found", file.CloudID)
	}

	folder := model.ParentPath(file.CloudID)
	c.RemoveFile(folder, file.Name)
	c.PutFile(folder, newName, content, time.Now())
	return nil
}

// DeleteFile removes a file.
func (c *MemoryClient) DeleteFile(ctx context.Context, file *model.File) error {
	c.RemoveFile(model.ParentPath(file.CloudID), file.Name)
	return nil
}
