package model

import "time"

// BackendType identifies which backend implementation serves an account.
type BackendType string

const (
	// BackendLocal is a directory on the local filesystem.
	BackendLocal BackendType = "local"
	// BackendS3 is an S3-compatible object storage bucket.
	BackendS3 BackendType = "s3"
	// BackendDrive is a bearer-token cloud drive API.
	BackendDrive BackendType = "drive"
)

// Account is one configured remote storage location plus the
// credentials and options needed to reach it.
type Account struct {
	ID       string      `toml:"id"`
	Name     string      `toml:"name"`
	RootPath string      `toml:"root_path"`
	Type     BackendType `toml:"type"`

	// S3-specific fields (only used when Type == "s3")
	Bucket    string `toml:"bucket,omitempty"`
	Region    string `toml:"region,omitempty"`
	Prefix    string `toml:"prefix,omitempty"`
	Endpoint  string `toml:"endpoint,omitempty"`
	AccessKey string `toml:"access_key,omitempty"`
	SecretKey string `toml:"secret_key,omitempty"`

	// Drive-specific fields (only used when Type == "drive")
	BaseURL      string `toml:"base_url,omitempty"`
	TokenURL     string `toml:"token_url,omitempty"`
	ClientID     string `toml:"client_id,omitempty"`
	ClientSecret string `toml:"client_secret,omitempty"`
	RefreshToken string `toml:"refresh_token,omitempty"`
}

// Folder is one remote directory tracked in the local index.
// Path is root-relative, "/"-separated and always starts with "/";
// the account root is "/".
type Folder struct {
	ID          string    `json:"id"`
	CloudID     string    `json:"idCloud,omitempty"`
	AccountID   string    `json:"accountId"`
	Path        string    `json:"folderPath"`
	DateUpdated time.Time `json:"dateUpdated"`
	DateSync    time.Time `json:"dateSync"`
	Info        string    `json:"info,omitempty"`
}

// File is one remote file tracked in the local index.
// ID is a pure function of (AccountID, FolderID, Name) and is never
// recomputed once a row exists; see FileID.
type File struct {
	ID          string    `json:"id"`
	CloudID     string    `json:"idCloud,omitempty"`
	AccountID   string    `json:"accountId"`
	FolderID    string    `json:"folderId"`
	Name        string    `json:"filename"`
	Hash        string    `json:"hash,omitempty"`
	Size        int64     `json:"size"`
	DateUpdated time.Time `json:"dateUpdated"`
	DateSync    time.Time `json:"dateSync"`
	DateMedia   time.Time `json:"dateMedia,omitempty"`
	Keywords    string    `json:"keywords,omitempty"`
	Info        string    `json:"info,omitempty"`
	Metadata    string    `json:"metadata,omitempty"`
}

// ObjectType distinguishes files from folders in sync events.
type ObjectType string

const (
	ObjectFile   ObjectType = "file"
	ObjectFolder ObjectType = "folder"
)

// EventAction describes what happened to an object.
type EventAction string

const (
	ActionAdded   EventAction = "added"
	ActionUpdated EventAction = "updated"
	ActionDeleted EventAction = "deleted"
)

// SyncEvent records one observed change for status reporting and
// for the scheduler's activity detection.
type SyncEvent struct {
	ObjectType ObjectType  `json:"objectType"`
	ObjectID   string      `json:"objectId"`
	AccountID  string      `json:"accountId"`
	Action     EventAction `json:"action"`
	Date       time.Time   `json:"date"`
}

// Capabilities declares which derived artifacts a backend can serve
// directly, without a full download.
type Capabilities struct {
	PhotoThumbnail bool `json:"downloadPhotoThumbnail"`
	PhotoPreview   bool `json:"downloadPhotoPreview"`
	VideoThumbnail bool `json:"downloadVideoThumbnail"`
	VideoPreview   bool `json:"downloadVideoPreview"`
}
