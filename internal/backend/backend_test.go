package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"media-sync/internal/model"
)

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(model.Account{ID: "a", Type: "ftp"})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("New(ftp) error = %v, want ErrUnknownBackend", err)
	}
}

func TestRegistryCachesClients(t *testing.T) {
	registry := NewRegistry()
	account := model.Account{ID: "a", Type: model.BackendLocal, RootPath: t.TempDir()}

	first, err := registry.Client(account)
	if err != nil {
		t.Fatalf("Client() error: %v", err)
	}
	second, err := registry.Client(account)
	if err != nil {
		t.Fatalf("Client() error: %v", err)
	}
	if first != second {
		t.Error("registry returned distinct clients for the same account")
	}
}

func TestLocalClientListing(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, "albums"))
	mustMkdir(t, filepath.Join(root, ".hidden"))
	mustWrite(t, filepath.Join(root, "albums", "a.jpg"), "jpeg-bytes")
	mustWrite(t, filepath.Join(root, "albums", "notes.txt"), "not media")
	mustWrite(t, filepath.Join(root, "albums", "b.mp4"), "mp4-bytes")

	account := model.Account{ID: "home", Type: model.BackendLocal, RootPath: root}
	client := NewLocalClient(account)
	ctx := context.Background()

	if err := client.Validate(ctx); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	rootFolder, err := client.GetFolderByPath(ctx, "/")
	if err != nil {
		t.Fatalf("GetFolderByPath(/) error: %v", err)
	}
	folders, err := client.ListFolders(ctx, rootFolder)
	if err != nil {
		t.Fatalf("ListFolders() error: %v", err)
	}
	if len(folders) != 1 || folders[0].Path != "/albums" {
		t.Fatalf("ListFolders() = %+v, want single /albums", folders)
	}

	files, err := client.ListFiles(ctx, folders[0])
	if err != nil {
		t.Fatalf("ListFiles() error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("ListFiles() returned %d files, want 2 (media only)", len(files))
	}
	for _, f := range files {
		if f.Hash == "" || f.Size == 0 || f.CloudID == "" {
			t.Errorf("file %s missing hash, size or native id: %+v", f.Name, f)
		}
	}

	// Download is a plain copy.
	dest := t.TempDir()
	if err := client.DownloadFile(ctx, files[0], dest, "copy.bin"); err != nil {
		t.Fatalf("DownloadFile() error: %v", err)
	}
	content, err := os.ReadFile(filepath.Join(dest, "copy.bin"))
	if err != nil || len(content) == 0 {
		t.Errorf("downloaded copy missing or empty: %v", err)
	}

	if err := client.DownloadThumbnail(ctx, files[0], dest, "t.webp"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("DownloadThumbnail() error = %v, want ErrNotSupported", err)
	}
}

func TestLocalClientRenameAndDelete(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "x.jpg"), "img")

	client := NewLocalClient(model.Account{ID: "home", Type: model.BackendLocal, RootPath: root})
	ctx := context.Background()

	rootFolder, err := client.GetFolderByPath(ctx, "/")
	if err != nil {
		t.Fatalf("GetFolderByPath() error: %v", err)
	}
	files, err := client.ListFiles(ctx, rootFolder)
	if err != nil || len(files) != 1 {
		t.Fatalf("ListFiles() = %v, %v", files, err)
	}

	if err := client.RenameFile(ctx, files[0], "y.jpg"); err != nil {
		t.Fatalf("RenameFile() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "y.jpg")); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}

	files, err = client.ListFiles(ctx, rootFolder)
	if err != nil || len(files) != 1 {
		t.Fatalf("ListFiles() after rename = %v, %v", files, err)
	}
	if err := client.DeleteFile(ctx, files[0]); err != nil {
		t.Fatalf("DeleteFile() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "y.jpg")); !os.IsNotExist(err) {
		t.Errorf("deleted file still present")
	}
}

func TestDriveClientTokenRefresh(t *testing.T) {
	var tokenCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing token form: %v", err)
		}
		if r.Form.Get("refresh_token") != "r-token" {
			t.Errorf("refresh_token = %q", r.Form.Get("refresh_token"))
		}
		tokenCalls++
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "bearer-" + r.Form.Get("refresh_token"),
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/api/folders/lookup", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer bearer-r-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id": "f-root", "path": "/", "updated": time.Now().UTC(),
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewDriveClient(model.Account{
		ID:           "drive",
		Type:         model.BackendDrive,
		BaseURL:      server.URL + "/api",
		TokenURL:     server.URL + "/oauth/token",
		RefreshToken: "r-token",
	})
	ctx := context.Background()

	folder, err := client.GetFolderByPath(ctx, "/")
	if err != nil {
		t.Fatalf("GetFolderByPath() error: %v", err)
	}
	if folder.CloudID != "f-root" || folder.Path != "/" {
		t.Errorf("folder = %+v", folder)
	}
	if tokenCalls != 1 {
		t.Fatalf("token exchanged %d times, want 1", tokenCalls)
	}

	// Second call reuses the cached token.
	if _, err := client.GetFolderByPath(ctx, "/"); err != nil {
		t.Fatalf("second GetFolderByPath() error: %v", err)
	}
	if tokenCalls != 1 {
		t.Errorf("cached token not reused, %d exchanges", tokenCalls)
	}

	// Expire the token; the next call must transparently refresh.
	client.mu.Lock()
	client.tokenExpiry = time.Now().Add(-time.Minute)
	client.mu.Unlock()
	if _, err := client.GetFolderByPath(ctx, "/"); err != nil {
		t.Fatalf("GetFolderByPath() after expiry error: %v", err)
	}
	if tokenCalls != 2 {
		t.Errorf("expired token not refreshed, %d exchanges", tokenCalls)
	}
}

func TestDriveClientRetriesOnUnauthorized(t *testing.T) {
	var tokenCalls, rejected int
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		json.NewEncoder(w).Encode(map[string]any{"access_token": "t", "expires_in": 3600})
	})
	mux.HandleFunc("/api/folders/lookup", func(w http.ResponseWriter, r *http.Request) {
		// Reject the first authenticated attempt to force a retry.
		if rejected == 0 {
			rejected++
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "f", "path": "/"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewDriveClient(model.Account{
		ID:       "drive",
		Type:     model.BackendDrive,
		BaseURL:  server.URL + "/api",
		TokenURL: server.URL + "/oauth/token",
	})

	if _, err := client.GetFolderByPath(context.Background(), "/"); err != nil {
		t.Fatalf("GetFolderByPath() error: %v", err)
	}
	if tokenCalls != 2 {
		t.Errorf("token exchanged %d times, want 2 (initial + 401 retry)", tokenCalls)
	}
}

func TestMemoryClientRoundTrip(t *testing.T) {
	client := NewMemoryClient("mem", model.Capabilities{PhotoThumbnail: true})
	ctx := context.Background()
	now := time.Now()

	client.PutFile("/a/b", "x.jpg", []byte("img"), now)
	client.PutArtifact("thumbnail", "/a/b", "x.jpg", []byte("thumb"))

	root, err := client.GetFolderByPath(ctx, "/")
	if err != nil {
		t.Fatalf("GetFolderByPath(/) error: %v", err)
	}
	folders, err := client.ListFolders(ctx, root)
	if err != nil || len(folders) != 1 || folders[0].Path != "/a" {
		t.Fatalf("ListFolders(/) = %v, %v, want /a", folders, err)
	}

	sub, err := client.GetFolderByPath(ctx, "/a/b")
	if err != nil {
		t.Fatalf("GetFolderByPath(/a/b) error: %v", err)
	}
	files, err := client.ListFiles(ctx, sub)
	if err != nil || len(files) != 1 || files[0].Name != "x.jpg" {
		t.Fatalf("ListFiles(/a/b) = %v, %v", files, err)
	}

	dest := t.TempDir()
	if err := client.DownloadThumbnail(ctx, files[0], dest, "t.webp"); err != nil {
		t.Fatalf("DownloadThumbnail() error: %v", err)
	}
	if err := client.DownloadPreview(ctx, files[0], dest, "p.webp"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("DownloadPreview() error = %v, want ErrNotSupported", err)
	}

	if err := client.DeleteFile(ctx, files[0]); err != nil {
		t.Fatalf("DeleteFile() error: %v", err)
	}
	files, err = client.ListFiles(ctx, sub)
	if err != nil || len(files) != 0 {
		t.Errorf("ListFiles() after delete = %v, %v", files, err)
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
