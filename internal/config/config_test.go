package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-sync/internal/model"
)

func writeAccounts(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing accounts file: %v", err)
	}
	return path
}

func TestLoadAccounts(t *testing.T) {
	path := writeAccounts(t, `
[[accounts]]
id = "home"
name = "Home NAS"
type = "local"
root_path = "/mnt/photos"

[[accounts]]
id = "bucket"
type = "s3"
bucket = "my-media"
region = "eu-west-1"
prefix = "photos/"

[[accounts]]
id = "drive"
type = "drive"
base_url = "https://drive.example.com/api"
token_url = "https://drive.example.com/oauth/token"
refresh_token = "r-token"
`)

	accounts, err := LoadAccounts(path)
	if err != nil {
		t.Fatalf("LoadAccounts() error: %v", err)
	}
	if len(accounts) != 3 {
		t.Fatalf("len(accounts) = %d, want 3", len(accounts))
	}

	if accounts[0].Type != model.BackendLocal || accounts[0].RootPath != "/mnt/photos" {
		t.Errorf("local account = %+v", accounts[0])
	}
	if accounts[1].Name != "bucket" {
		t.Errorf("account name should default to id, got %q", accounts[1].Name)
	}
	if accounts[2].Type != model.BackendDrive || accounts[2].RefreshToken != "r-token" {
		t.Errorf("drive account = %+v", accounts[2])
	}
}

func TestLoadAccountsValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing id",
			content: "[[accounts]]\ntype = \"local\"\nroot_path = \"/x\"\n",
			wantErr: "id is required",
		},
		{
			name: "duplicate id",
			content: `
[[accounts]]
id = "a"
type = "local"
root_path = "/x"

[[accounts]]
id = "a"
type = "local"
root_path = "/y"
`,
			wantErr: "duplicate account id",
		},
		{
			name:    "local without root",
			content: "[[accounts]]\nid = \"a\"\ntype = \"local\"\n",
			wantErr: "requires root_path",
		},
		{
			name:    "s3 without bucket",
			content: "[[accounts]]\nid = \"a\"\ntype = \"s3\"\n",
			wantErr: "requires bucket",
		},
		{
			name:    "drive without endpoints",
			content: "[[accounts]]\nid = \"a\"\ntype = \"drive\"\n",
			wantErr: "requires base_url",
		},
		{
			name:    "unknown type",
			content: "[[accounts]]\nid = \"a\"\ntype = \"ftp\"\n",
			wantErr: "unknown backend type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeAccounts(t, tt.content)
			_, err := LoadAccounts(path)
			if err == nil {
				t.Fatal("LoadAccounts() = nil error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadAccountsMissingFile(t *testing.T) {
	if _, err := LoadAccounts(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("LoadAccounts(missing) = nil error")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	tmp := t.TempDir()
	accounts := writeAccounts(t, "[[accounts]]\nid = \"a\"\ntype = \"local\"\nroot_path = \"/x\"\n")

	t.Setenv("ACCOUNTS_FILE", accounts)
	t.Setenv("DATA_DIR", filepath.Join(tmp, "data"))
	t.Setenv("CACHE_DIR", filepath.Join(tmp, "cache"))
	t.Setenv("SCRATCH_DIR", filepath.Join(tmp, "scratch"))

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.DatabasePath != filepath.Join(tmp, "data", "index.db") {
		t.Errorf("DatabasePath = %s", cfg.DatabasePath)
	}
	if cfg.SeedFolderCount != 10 {
		t.Errorf("SeedFolderCount = %d, want 10", cfg.SeedFolderCount)
	}
	if cfg.MaxIntervalFactor != 60 {
		t.Errorf("MaxIntervalFactor = %d, want 60", cfg.MaxIntervalFactor)
	}
	if cfg.StalenessThreshold.Hours() != 7*24 {
		t.Errorf("StalenessThreshold = %v, want 168h", cfg.StalenessThreshold)
	}

	// Directories are created.
	for _, dir := range []string{cfg.DataDir, cfg.CacheDir, cfg.ScratchDir} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("directory %s not created: %v", dir, err)
		}
	}
}
