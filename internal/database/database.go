package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-sync/internal/logging"
	"media-sync/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database is the local index of folders and files across all accounts.
// It is the single shared mutable resource of the sync core; every
// mutation goes through the narrow operations defined on it, each
// atomic at the row level.
type Database struct {
	db     *sql.DB
	dbPath string
}

// New opens (or creates) the index database at dbPath. The parent
// directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Index database path: %s", dbPath)

	// WAL mode and busy_timeout prevent "database is locked" errors
	// when reconciliation tasks and the status server overlap.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Index database initialized at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	CREATE TABLE IF NOT EXISTS folders (
		id TEXT PRIMARY KEY,
		id_cloud TEXT,
		account_id TEXT NOT NULL,
		folder_path TEXT NOT NULL,
		date_updated INTEGER NOT NULL DEFAULT 0,
		date_sync INTEGER NOT NULL DEFAULT 0,
		info TEXT,
		UNIQUE(account_id, folder_path)
	);

	CREATE INDEX IF NOT EXISTS idx_folders_account ON folders(account_id);
	CREATE INDEX IF NOT EXISTS idx_folders_date_sync ON folders(account_id, date_sync);

	CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		id_cloud TEXT,
		account_id TEXT NOT NULL,
		folder_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		hash TEXT,
		size INTEGER NOT NULL DEFAULT 0,
		date_updated INTEGER NOT NULL DEFAULT 0,
		date_sync INTEGER NOT NULL DEFAULT 0,
		date_media INTEGER NOT NULL DEFAULT 0,
		keywords TEXT,
		info TEXT,
		metadata TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_files_folder ON files(folder_id);
	CREATE INDEX IF NOT EXISTS idx_files_account ON files(account_id);
	CREATE INDEX IF NOT EXISTS idx_files_date_updated ON files(account_id, date_updated);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	_, err = d.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Counts returns the total number of known folders and files, across
// all accounts when accountID is empty.
func (d *Database) Counts(ctx context.Context, accountID string) (folders, files int, err error) {
	start := time.Now()
	defer func() { recordQuery("counts", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if accountID == "" {
		err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM folders").Scan(&folders)
		if err == nil {
			err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&files)
		}
		return folders, files, err
	}

	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM folders WHERE account_id = ?", accountID).Scan(&folders)
	if err == nil {
		err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files WHERE account_id = ?", accountID).Scan(&files)
	}
	return folders, files, err
}

// SetMetadata stores a key/value pair in the metadata table.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

// GetMetadata reads a value from the metadata table; missing keys
// return an empty string.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// unixOrZero converts a time to Unix seconds, mapping the zero time to 0.
func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// timeOrZero converts Unix seconds back to a time, mapping 0 to the
// zero time.
func timeOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
