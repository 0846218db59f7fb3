package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/webnoise/internal/model"
)

// DBFileName is the SQLite database file name inside the data directory.
const DBFileName = "webnoise.db"

// NoiseDB provides SQLite-based storage for run reports and visit history.
//
// Design decision: We use a single database file for all runs rather than
// one file per run. Cross-run queries (how often did this page change, how
// is traffic distributed over time) are the whole reason persistence exists,
// and a single file makes backup trivial.
type NoiseDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures NoiseDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a NoiseDB in the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is
// returned.
func Open(dbDir string, opts Options) (*NoiseDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string format: mode=rw prevents creating
	// new files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer, and the tool only ever writes from
	// the single run goroutine anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ndb := &NoiseDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := ndb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return ndb, nil
}

// Close closes the database connection.
func (ndb *NoiseDB) Close() error {
	return ndb.db.Close()
}

// Path returns the path to the SQLite database file.
func (ndb *NoiseDB) Path() string {
	return ndb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (ndb *NoiseDB) createTables() error {
	schema := `
	-- Runs store one row per noise-generation run, with the full report
	-- serialized as JSON and the headline counters denormalized for listing.
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		outcome TEXT NOT NULL,
		iterations INTEGER NOT NULL,
		pages_fetched INTEGER NOT NULL,
		fetch_errors INTEGER NOT NULL,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_start ON runs(start_time);

	-- Visits store individual fetch attempts, one row per iteration.
	CREATE TABLE IF NOT EXISTS visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		source TEXT,
		timestamp DATETIME NOT NULL,
		status_code INTEGER,
		links_found INTEGER,
		body_hash TEXT,
		failed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_visits_run ON visits(run_id);
	CREATE INDEX IF NOT EXISTS idx_visits_url ON visits(url);
	CREATE INDEX IF NOT EXISTS idx_visits_timestamp ON visits(timestamp);
	`

	_, err := ndb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRunReport persists a completed run and its visit history in a single
// transaction, returning the run's database ID.
func (ndb *NoiseDB) SaveRunReport(ctx context.Context, report *model.RunReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := ndb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (start_time, end_time, outcome, iterations, pages_fetched, fetch_errors, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		report.StartTime.UTC().Format(time.RFC3339),
		report.EndTime.UTC().Format(time.RFC3339),
		report.Outcome.String(),
		report.Iterations,
		report.PagesFetched,
		report.FetchErrors,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO visits (run_id, url, source, timestamp, status_code, links_found, body_hash, failed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare visit insert: %w", err)
	}
	defer stmt.Close()

	for i := range report.Visits {
		v := &report.Visits[i]
		failed := 0
		if v.Failed {
			failed = 1
		}
		if _, err := stmt.ExecContext(ctx,
			runID,
			v.URL,
			v.Source,
			v.Time.UTC().Format(time.RFC3339),
			v.StatusCode,
			v.LinksFound,
			v.BodyHash,
			failed,
		); err != nil {
			return 0, fmt.Errorf("failed to insert visit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	return runID, nil
}

// GetRunReport retrieves a stored run report by its database ID.
// Returns nil without error when no run with that ID exists.
func (ndb *NoiseDB) GetRunReport(ctx context.Context, id int64) (*model.RunReport, error) {
	var reportJSON string
	err := ndb.db.QueryRowContext(ctx,
		`SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}

	var report model.RunReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// RunMetadata contains summary information about a stored run.
// This is used for listing run history without loading the full reports.
type RunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// StartTime and EndTime bound the run in wall-clock time.
	StartTime time.Time
	EndTime   time.Time

	// Outcome is the stored outcome name ("timed out" or "stopped").
	Outcome string

	// Iterations, PagesFetched, and FetchErrors are the headline counters.
	Iterations   int
	PagesFetched int
	FetchErrors  int
}

// ListRuns returns metadata for all stored runs, most recent first.
func (ndb *NoiseDB) ListRuns(ctx context.Context) ([]RunMetadata, error) {
	rows, err := ndb.db.QueryContext(ctx, `
	SELECT id, start_time, end_time, outcome, iterations, pages_fetched, fetch_errors
	FROM runs
	ORDER BY start_time DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var start, end string

		if err := rows.Scan(&meta.ID, &start, &end, &meta.Outcome,
			&meta.Iterations, &meta.PagesFetched, &meta.FetchErrors); err != nil {
			return nil, fmt.Errorf("failed to scan run metadata: %w", err)
		}

		meta.StartTime = parseTimestamp(start)
		meta.EndTime = parseTimestamp(end)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// LastBodyHash returns the most recently stored body hash for a URL across
// all runs, or the empty string when the URL was never fetched successfully.
// Comparing it against a fresh hash tells whether the page changed between
// runs.
func (ndb *NoiseDB) LastBodyHash(ctx context.Context, url string) (string, error) {
	var hash string
	err := ndb.db.QueryRowContext(ctx, `
	SELECT body_hash FROM visits
	WHERE url = ? AND body_hash != ''
	ORDER BY timestamp DESC
	LIMIT 1
	`, url).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get last body hash: %w", err)
	}
	return hash, nil
}

// HasRecentVisit checks if a URL was visited within the specified duration,
// in any run.
func (ndb *NoiseDB) HasRecentVisit(ctx context.Context, url string, duration time.Duration) (bool, error) {
	// SQLite datetime modifier format
	modifier := fmt.Sprintf("-%d seconds", int(duration.Seconds()))

	var count int
	err := ndb.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM visits
	WHERE url = ? AND timestamp > datetime('now', ?)
	`, url, modifier).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check recent visit: %w", err)
	}

	return count > 0, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339,              // How SaveRunReport stores timestamps
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on
// configuration. If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
