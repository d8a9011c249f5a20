package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"media-sync/internal/logging"
	"media-sync/internal/model"
)

// tokenSlack is subtracted from the token lifetime so a token is never
// used within a minute of its expiry.
const tokenSlack = time.Minute

// DriveClient serves an account backed by a cloud drive REST API. The
// drive maintains server-side thumbnails and photo previews, so those
// artifacts are downloaded rather than generated. Video previews still
// require local transcoding.
//
// Authentication uses a long-lived refresh token exchanged for short
// bearer tokens; the exchange happens lazily and the bearer token is
// cached until shortly before expiry.
type DriveClient struct {
	account model.Account
	http    *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewDriveClient creates a client for a cloud drive account.
func NewDriveClient(account model.Account) *DriveClient {
	return &DriveClient{
		account: account,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// Capabilities reports the drive's server-side artifacts.
func (c *DriveClient) Capabilities() model.Capabilities {
	return model.Capabilities{
		PhotoThumbnail: true,
		PhotoPreview:   true,
		VideoThumbnail: true,
	}
}

// token returns a valid bearer token, exchanging the refresh token when
// the cached one is missing or about to expire.
func (c *DriveClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.account.RefreshToken},
	}
	if c.account.ClientID != "" {
		form.Set("client_id", c.account.ClientID)
		form.Set("client_secret", c.account.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.account.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token exchange returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	lifetime := time.Duration(payload.ExpiresIn) * time.Second
	if lifetime <= tokenSlack {
		lifetime = time.Hour
	}
	c.accessToken = payload.AccessToken
	c.tokenExpiry = time.Now().Add(lifetime - tokenSlack)
	logging.Debug("drive: refreshed token for account %s, valid until %s",
		c.account.ID, c.tokenExpiry.Format(time.RFC3339))
	return c.accessToken, nil
}

// invalidateToken drops the cached bearer token so the next call
// re-exchanges the refresh token.
func (c *DriveClient) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

// do performs an authenticated request, retrying once with a fresh
// token on 401.
func (c *DriveClient) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.token(ctx)
		if err != nil {
			return nil, err
		}

		endpoint := strings.TrimSuffix(c.account.BaseURL, "/") + path
		if len(query) > 0 {
			endpoint += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			c.invalidateToken()
			continue
		}
		if resp.StatusCode >= 400 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
		}
		return resp, nil
	}
	return nil, fmt.Errorf("%s %s: authorization retry exhausted", method, path)
}

// getJSON performs an authenticated GET and decodes the JSON response.
func (c *DriveClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// driveFolder is the wire shape of a folder resource.
type driveFolder struct {
	ID      string    `json:"id"`
	Path    string    `json:"path"`
	Updated time.Time `json:"updated"`
}

// driveFile is the wire shape of a file resource.
type driveFile struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Hash    string    `json:"hash"`
	Size    int64     `json:"size"`
	Updated time.Time `json:"updated"`
	Taken   time.Time `json:"taken"`
}

func (c *DriveClient) toFolder(df driveFolder) *model.Folder {
	folderPath := model.CleanFolderPath(df.Path)
	return &model.Folder{
		ID:          model.FolderID(c.account.ID, folderPath),
		CloudID:     df.ID,
		AccountID:   c.account.ID,
		Path:        folderPath,
		DateUpdated: df.Updated,
	}
}

// Validate checks that the drive credentials work.
func (c *DriveClient) Validate(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { observe("drive", "validate", start, err) }()

	_, err = c.token(ctx)
	return err
}

// GetFolder refreshes a folder using its cloud identifier.
func (c *DriveClient) GetFolder(ctx context.Context, folder *model.Folder) (*model.Folder, error) {
	start := time.Now()
	var err error
	defer func() { observe("drive", "get_folder", start, err) }()

	if folder.CloudID == "" {
		return c.GetFolderByPath(ctx, folder.Path)
	}

	var df driveFolder
	if err = c.getJSON(ctx, "/folders/"+url.PathEscape(folder.CloudID), nil, &df); err != nil {
		return nil, err
	}
	return c.toFolder(df), nil
}

// GetFolderByPath resolves a root-relative folder path.
func (c *DriveClient) GetFolderByPath(ctx context.Context, folderPath string) (*model.Folder, error) {
	start := time.Now()
	var err error
	defer func() { observe("drive", "get_folder", start, err) }()

	var df driveFolder
	query := url.Values{"path": {model.CleanFolderPath(folderPath)}}
	if err = c.getJSON(ctx, "/folders/lookup", query, &df); err != nil {
		return nil, err
	}
	return c.toFolder(df), nil
}

// ListFolders returns the immediate subfolders of a folder.
func (c *DriveClient) ListFolders(ctx context.Context, folder *model.Folder) ([]*model.Folder, error) {
	start := time.Now()
	var err error
	defer func() { observe("drive", "list_folders", start, err) }()

	var payload struct {
		Folders []driveFolder `json:"folders"`
	}
	if err = c.getJSON(ctx, "/folders/"+url.PathEscape(folder.CloudID)+"/folders", nil, &payload); err != nil {
		return nil, err
	}

	folders := make([]*model.Folder, 0, len(payload.Folders))
	for _, df := range payload.Folders {
		folders = append(folders, c.toFolder(df))
	}
	return folders, nil
}

// ListFiles returns the files directly inside a folder.
func (c *DriveClient) ListFiles(ctx context.Context, folder *model.Folder) ([]*model.File, error) {
	start := time.Now()
	var err error
	defer func() { observe("drive", "list_files", start, err) }()

	var payload struct {
		Files []driveFile `json:"files"`
	}
	if err = c.getJSON(ctx, "/folders/"+url.PathEscape(folder.CloudID)+"/files", nil, &payload); err != nil {
		return nil, err
	}

	files := make([]*model.File, 0, len(payload.Files))
	for _, df := range payload.Files {
		files = append(files, &model.File{
			ID:          model.FileID(c.account.ID, folder.ID, df.Name),
			CloudID:     df.ID,
			AccountID:   c.account.ID,
			FolderID:    folder.ID,
			Name:        df.Name,
			Hash:        df.Hash,
			Size:        df.Size,
			DateUpdated: df.Updated,
			DateMedia:   df.Taken,
		})
	}
	return files, nil
}

// downloadTo streams an authenticated GET into destDir/destName.
func (c *DriveClient) downloadTo(ctx context.Context, path, destDir, destName string) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	dest, err := os.Create(filepath.Join(destDir, destName))
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, resp.Body); err != nil {
		return fmt.Errorf("writing %s: %w", destName, err)
	}
	return nil
}

// DownloadFile fetches the full file content.
func (c *DriveClient) DownloadFile(ctx context.Context, file *model.File, destDir, destName string) error {
	start := time.Now()
	var err error
	defer func() { observe("drive", "download_file", start, err) }()

	err = c.downloadTo(ctx, "/files/"+url.PathEscape(file.CloudID)+"/content", destDir, destName)
	return err
}

// DownloadThumbnail fetches the server-side thumbnail.
func (c *DriveClient) DownloadThumbnail(ctx context.Context, file *model.File, destDir, destName string) error {
	start := time.Now()
	var err error
	defer func() { observe("drive", "download_thumbnail", start, err) }()

	err = c.downloadTo(ctx, "/files/"+url.PathEscape(file.CloudID)+"/thumbnail", destDir, destName)
	return err
}

// DownloadPreview fetches the server-side preview image.
func (c *DriveClient) DownloadPreview(ctx context.Context, file *model.File, destDir, destName string) error {
	start := time.Now()
	var err error
	defer func() { observe("drive", "download_preview", start, err) }()

	err = c.downloadTo(ctx, "/files/"+url.PathEscape(file.CloudID)+"/preview", destDir, destName)
	return err
}

// postJSON performs an authenticated POST with a JSON body.
func (c *DriveClient) postJSON(ctx context.Context, path string, body any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s body: %w", path, err)
	}
	resp, err := c.do(ctx, http.MethodPost, path, nil, strings.NewReader(string(encoded)))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// MoveFile relocates a file into another folder.
func (c *DriveClient) MoveFile(ctx context.Context, file *model.File, destFolder *model.Folder) error {
	start := time.Now()
	var err error
	defer func() { observe("drive", "move_file", start, err) }()

	err = c.postJSON(ctx, "/files/"+url.PathEscape(file.CloudID)+"/move",
		map[string]string{"folder_id": destFolder.CloudID})
	return err
}

// RenameFile renames a file in place.
func (c *DriveClient) RenameFile(ctx context.Context, file *model.File, newName string) error {
	start := time.Now()
	var err error
	defer func() { observe("drive", "rename_file", start, err) }()

	err = c.postJSON(ctx, "/files/"+url.PathEscape(file.CloudID)+"/rename",
		map[string]string{"name": newName})
	return err
}

// DeleteFile removes a file from the drive.
func (c *DriveClient) DeleteFile(ctx context.Context, file *model.File) error {
	start := time.Now()
	var err error
	defer func() { observe("drive", "delete_file", start, err) }()

	resp, err := c.do(ctx, http.MethodDelete, "/files/"+url.PathEscape(file.CloudID), nil, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
