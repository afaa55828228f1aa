package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// LaunchOutcome is one attempt to start the tool server with a strategy.
type LaunchOutcome struct {
	Strategy  string
	Attempt   int
	Succeeded bool
	Error     string
	Duration  time.Duration
	At        time.Time
}

type LaunchStore struct {
	db *sql.DB
}

// OpenLaunchStore opens launches.db in dataDir. An empty dataDir gives an
// in-memory database.
func OpenLaunchStore(dataDir string) (*LaunchStore, error) {
	dsn := ":memory:"
	if dataDir != "" {
		dsn = filepath.Join(dataDir, "launches.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection, so an in-memory database is shared by every query.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &LaunchStore{db: db}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (ls *LaunchStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS launch_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		strategy TEXT NOT NULL,
		attempt INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL,
		attempted_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_launch_attempts_at ON launch_attempts(attempted_at);
	`

	if _, err := ls.db.Exec(schema); err != nil {
		return err
	}

	if err := ls.migrateSchema(); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// migrateSchema adds columns missing from databases created by older builds
func (ls *LaunchStore) migrateSchema() error {
	hasAttempt, err := ls.columnExists("launch_attempts", "attempt")
	if err != nil {
		return fmt.Errorf("failed to check for attempt column: %w", err)
	}

	switch {
	case !hasAttempt:
		_, err := ls.db.Exec(`ALTER TABLE launch_attempts ADD COLUMN attempt INTEGER NOT NULL DEFAULT 0`)
		if err != nil {
			return fmt.Errorf("failed to add attempt column: %w", err)
		}
	}

	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info
func (ls *LaunchStore) columnExists(tableName, columnName string) (bool, error) {
	rows, err := ls.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name string
		var dataType string
		var notNull int
		var defaultValue any
		var pk int

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return false, err
		}

		if name == columnName {
			return true, nil
		}
	}

	return false, rows.Err()
}

// Record stores one launch attempt
func (ls *LaunchStore) Record(ctx context.Context, o LaunchOutcome) error {
	if o.At.IsZero() {
		o.At = time.Now()
	}

	query := `
	INSERT INTO launch_attempts (strategy, attempt, succeeded, error, duration_ms, attempted_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	succeeded := 0
	if o.Succeeded {
		succeeded = 1
	}

	_, err := ls.db.ExecContext(ctx, query,
		o.Strategy,
		o.Attempt,
		succeeded,
		o.Error,
		o.Duration.Milliseconds(),
		o.At.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record launch attempt: %w", err)
	}
	return nil
}

// Recent returns up to limit attempts, newest first
func (ls *LaunchStore) Recent(ctx context.Context, limit int) ([]LaunchOutcome, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
	SELECT strategy, attempt, succeeded, error, duration_ms, attempted_at
	FROM launch_attempts
	ORDER BY attempted_at DESC, id DESC
	LIMIT ?
	`

	rows, err := ls.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query launch attempts: %w", err)
	}
	defer rows.Close()

	outcomes := []LaunchOutcome{}
	for rows.Next() {
		var (
			o          LaunchOutcome
			succeeded  int
			durationMS int64
			atMS       int64
		)
		if err := rows.Scan(&o.Strategy, &o.Attempt, &succeeded, &o.Error, &durationMS, &atMS); err != nil {
			return nil, fmt.Errorf("failed to scan launch attempt: %w", err)
		}
		o.Succeeded = succeeded == 1
		o.Duration = time.Duration(durationMS) * time.Millisecond
		o.At = time.UnixMilli(atMS)
		outcomes = append(outcomes, o)
	}

	return outcomes, rows.Err()
}

func (ls *LaunchStore) Close() error {
	if ls.db != nil {
		return ls.db.Close()
	}
	return nil
}
