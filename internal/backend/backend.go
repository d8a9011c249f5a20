package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"media-sync/internal/metrics"
	"media-sync/internal/model"
)

var (
	// ErrUnknownBackend is returned by the factory for an unrecognized
	// backend type tag.
	ErrUnknownBackend = errors.New("backend: unknown backend type")

	// ErrNotSupported is returned when an operation is outside the
	// backend's capability set, e.g. a thumbnail download from a plain
	// object store.
	ErrNotSupported = errors.New("backend: operation not supported")
)

// Client is the capability-gated contract every backend implements.
// Connections are created lazily and cached for the life of the client;
// credential refresh is each implementation's responsibility and is
// transparent to callers. Any operation may fail with a backend error,
// which callers treat as non-fatal.
type Client interface {
	// Validate checks that the backend is reachable with the
	// configured credentials.
	Validate(ctx context.Context) error

	// Capabilities reports which derived artifacts the backend can
	// serve without a full download.
	Capabilities() model.Capabilities

	// GetFolder refreshes a known folder from the backend. DateUpdated
	// is populated as the max mtime of all contained objects.
	GetFolder(ctx context.Context, folder *model.Folder) (*model.Folder, error)

	// GetFolderByPath resolves a root-relative folder path.
	GetFolderByPath(ctx context.Context, folderPath string) (*model.Folder, error)

	// ListFolders returns the immediate subfolders of a folder.
	ListFolders(ctx context.Context, folder *model.Folder) ([]*model.Folder, error)

	// ListFiles returns the files directly inside a folder.
	ListFiles(ctx context.Context, folder *model.Folder) ([]*model.File, error)

	// DownloadFile fetches the full file content into destDir/destName.
	DownloadFile(ctx context.Context, file *model.File, destDir, destName string) error

	// DownloadThumbnail fetches the backend-native thumbnail, if the
	// capability set allows it.
	DownloadThumbnail(ctx context.Context, file *model.File, destDir, destName string) error

	// DownloadPreview fetches the backend-native preview, if the
	// capability set allows it.
	DownloadPreview(ctx context.Context, file *model.File, destDir, destName string) error

	// MoveFile relocates a file into another folder.
	MoveFile(ctx context.Context, file *model.File, destFolder *model.Folder) error

	// RenameFile renames a file in place.
	RenameFile(ctx context.Context, file *model.File, newName string) error

	// DeleteFile removes a file from the backend.
	DeleteFile(ctx context.Context, file *model.File) error
}

// New creates a client for an account, keyed on its backend type tag.
func New(account model.Account) (Client, error) {
	switch account.Type {
	case model.BackendLocal:
		return NewLocalClient(account), nil
	case model.BackendS3:
		return NewS3Client(account), nil
	case model.BackendDrive:
		return NewDriveClient(account), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, account.Type)
	}
}

// Registry caches one client per account id for the process lifetime.
type Registry struct {
	mu      sync.Mutex
	clients map[string]Client
}

// NewRegistry creates an empty client registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Client returns the cached client for an account, creating it on
// first use.
func (r *Registry) Client(account model.Account) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[account.ID]; ok {
		return client, nil
	}

	client, err := New(account)
	if err != nil {
		return nil, err
	}
	r.clients[account.ID] = client
	return client, nil
}

// observe records backend call metrics.
func observe(backend, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.BackendCallsTotal.WithLabelValues(backend, operation, status).Inc()
	metrics.BackendCallDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
}
