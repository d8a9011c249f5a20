package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"media-sync/internal/logging"
	"media-sync/internal/model"
	"media-sync/internal/workers"
)

// Config holds all application configuration
type Config struct {
	AccountsPath string
	DataDir      string
	CacheDir     string
	ScratchDir   string
	StatusPort   string

	MaxParallel        int
	SweepInterval      time.Duration
	MaxIntervalFactor  int
	StalenessThreshold time.Duration
	SeedFolderCount    int
	EventFeedSize      int

	ThumbnailWidth int
	PreviewWidth   int
	VideoMaxWidth  int

	// Derived paths
	DatabasePath string

	Accounts []model.Account
}

// accountsFile is the TOML document declaring the configured accounts.
type accountsFile struct {
	Accounts []model.Account `toml:"accounts"`
}

// LoadConfig loads configuration from environment variables and the
// accounts TOML file, validates it and prepares the data directories.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AccountsPath:       getEnv("ACCOUNTS_FILE", "/etc/media-sync/accounts.toml"),
		DataDir:            getEnv("DATA_DIR", "/data"),
		CacheDir:           getEnv("CACHE_DIR", "/cache"),
		ScratchDir:         getEnv("SCRATCH_DIR", ""),
		StatusPort:         getEnv("STATUS_PORT", "8080"),
		MaxParallel:        workers.MaxParallel(2),
		SweepInterval:      getEnvDuration("SWEEP_INTERVAL", time.Minute),
		MaxIntervalFactor:  getEnvInt("SWEEP_MAX_FACTOR", 60),
		StalenessThreshold: getEnvDuration("STALENESS_THRESHOLD", 7*24*time.Hour),
		SeedFolderCount:    getEnvInt("SEED_FOLDER_COUNT", 10),
		EventFeedSize:      getEnvInt("EVENT_FEED_SIZE", 10),
		ThumbnailWidth:     getEnvInt("THUMBNAIL_WIDTH", 360),
		PreviewWidth:       getEnvInt("PREVIEW_WIDTH", 1600),
		VideoMaxWidth:      getEnvInt("VIDEO_MAX_WIDTH", 1280),
	}

	if cfg.ScratchDir == "" {
		cfg.ScratchDir = filepath.Join(os.TempDir(), "media-sync")
	}
	cfg.DatabasePath = filepath.Join(cfg.DataDir, "index.db")

	for _, dir := range []string{cfg.DataDir, cfg.CacheDir, cfg.ScratchDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create directory %s: %w", dir, err)
		}
	}

	accounts, err := LoadAccounts(cfg.AccountsPath)
	if err != nil {
		return nil, err
	}
	cfg.Accounts = accounts

	logConfig(cfg)
	return cfg, nil
}

// LoadAccounts parses and validates the accounts TOML file.
func LoadAccounts(path string) ([]model.Account, error) {
	var doc accountsFile
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("cannot parse accounts file %s: %w", path, err)
	}

	seen := make(map[string]bool)
	for i := range doc.Accounts {
		account := &doc.Accounts[i]
		if account.ID == "" {
			return nil, fmt.Errorf("accounts[%d]: id is required", i)
		}
		if seen[account.ID] {
			return nil, fmt.Errorf("duplicate account id %q", account.ID)
		}
		seen[account.ID] = true

		if account.Name == "" {
			account.Name = account.ID
		}

		switch account.Type {
		case model.BackendLocal:
			if account.RootPath == "" {
				return nil, fmt.Errorf("account %q: local backend requires root_path", account.ID)
			}
		case model.BackendS3:
			if account.Bucket == "" {
				return nil, fmt.Errorf("account %q: s3 backend requires bucket", account.ID)
			}
		case model.BackendDrive:
			if account.BaseURL == "" || account.TokenURL == "" {
				return nil, fmt.Errorf("account %q: drive backend requires base_url and token_url", account.ID)
			}
		default:
			return nil, fmt.Errorf("account %q: unknown backend type %q", account.ID, account.Type)
		}
	}

	return doc.Accounts, nil
}

func logConfig(cfg *Config) {
	logging.Info("Accounts file:        %s (%d accounts)", cfg.AccountsPath, len(cfg.Accounts))
	logging.Info("Data directory:       %s", cfg.DataDir)
	logging.Info("Cache directory:      %s", cfg.CacheDir)
	logging.Info("Scratch directory:    %s", cfg.ScratchDir)
	logging.Info("Status port:          %s", cfg.StatusPort)
	logging.Info("Max parallel tasks:   %d", cfg.MaxParallel)
	logging.Info("Sweep interval:       %v (max factor %d)", cfg.SweepInterval, cfg.MaxIntervalFactor)
	logging.Info("Staleness threshold:  %v", cfg.StalenessThreshold)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
		logging.Warn("Invalid value for %s: %q, using default %d", key, value, fallback)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
		logging.Warn("Invalid value for %s: %q, using default %v", key, value, fallback)
	}
	return fallback
}
