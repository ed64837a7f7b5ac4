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

	"github.com/sitesnap/sitesnap/internal/model"
)

// CrawlDB provides SQLite-based storage for crawl runs and their pages.
// It manages connection pooling and provides methods for CRUD operations.
//
// Design decision: We use a single database file for all scopes rather
// than one file per site. This keeps run history queries and the compare
// command simple, and backup is a single file copy.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
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

// Open opens or creates a CrawlDB at the specified path.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, "sitesnap.db")

	// Check if we should create the database or require it to exist
	if !opts.CreateIfNotExists {
		// Check if database file exists
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		// Ensure directory exists
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Build connection string
	// We use modernc.org/sqlite which uses a different connection string format.
	// When CreateIfNotExists is false, we use mode=rw to prevent creating new files.
	// When CreateIfNotExists is true, we use mode=rwc to allow creation.
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

	// Configure connection pool
	// SQLite doesn't benefit from multiple connections for writes,
	// but multiple readers can improve performance
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	// Enable WAL mode if requested
	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	// Create tables
	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Runs store one row per crawl run plus the full report as JSON
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		base_scope TEXT NOT NULL,
		start_url TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		termination TEXT,
		pages_visited INTEGER DEFAULT 0,
		pages_failed INTEGER DEFAULT 0,
		pages_excluded INTEGER DEFAULT 0,
		duplicates INTEGER DEFAULT 0,
		session_refreshes INTEGER DEFAULT 0,
		output_dir TEXT,
		error TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_scope ON runs(base_scope);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Pages store individual captures; the (run_id, url) index is what
	-- the compare command diffs against
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		final_url TEXT,
		depth INTEGER NOT NULL,
		referrer TEXT,
		title TEXT,
		status TEXT NOT NULL,
		status_code INTEGER,
		fail_reason TEXT,
		attempts INTEGER DEFAULT 0,
		content_hash TEXT,
		html_file TEXT,
		screenshot_file TEXT,
		captured_at DATETIME,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	CREATE INDEX IF NOT EXISTS idx_pages_hash ON pages(content_hash);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// sqliteTime formats a Go time the way SQLite's CURRENT_TIMESTAMP does,
// so every stored timestamp round-trips through parseTimestamp.
func sqliteTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// SaveRun stores a finished run: one row in runs with the report JSON,
// one row per capture in pages. Saving the same run again replaces both.
func (cdb *CrawlDB) SaveRun(ctx context.Context, report *model.CrawlReport) error {
	if report == nil || report.RunID == "" {
		return fmt.Errorf("cannot save run without a run ID")
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	var (
		termination      string
		pagesExcluded    int
		duplicates       int
		sessionRefreshes int
		outputDir        string
	)
	visited, failed := 0, 0
	for _, page := range report.Pages {
		if page.Status == model.StatusSuccess {
			visited++
		} else {
			failed++
		}
	}
	if s := report.Summary; s != nil {
		termination = s.TerminationText
		pagesExcluded = s.PagesExcluded
		duplicates = s.Duplicates
		sessionRefreshes = s.SessionRefreshes
		outputDir = s.OutputDir
		visited, failed = s.PagesVisited, s.PagesFailed
	}

	// One transaction per run so a half-saved run never shadows an
	// earlier complete one.
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	runQuery := `
	INSERT INTO runs (run_id, base_scope, start_url, started_at, finished_at, termination,
		pages_visited, pages_failed, pages_excluded, duplicates, session_refreshes,
		output_dir, error, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		finished_at = excluded.finished_at,
		termination = excluded.termination,
		pages_visited = excluded.pages_visited,
		pages_failed = excluded.pages_failed,
		pages_excluded = excluded.pages_excluded,
		duplicates = excluded.duplicates,
		session_refreshes = excluded.session_refreshes,
		output_dir = excluded.output_dir,
		error = excluded.error,
		report_json = excluded.report_json
	`

	if _, err := tx.ExecContext(ctx, runQuery,
		report.RunID,
		report.BaseScope,
		report.StartURL,
		sqliteTime(report.StartedAt),
		sqliteTime(report.FinishedAt),
		termination,
		visited,
		failed,
		pagesExcluded,
		duplicates,
		sessionRefreshes,
		outputDir,
		report.ErrorMessage,
		string(reportJSON),
	); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	pageQuery := `
	INSERT INTO pages (run_id, url, final_url, depth, referrer, title, status, status_code,
		fail_reason, attempts, content_hash, html_file, screenshot_file, captured_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO UPDATE SET
		final_url = excluded.final_url,
		depth = excluded.depth,
		referrer = excluded.referrer,
		title = excluded.title,
		status = excluded.status,
		status_code = excluded.status_code,
		fail_reason = excluded.fail_reason,
		attempts = excluded.attempts,
		content_hash = excluded.content_hash,
		html_file = excluded.html_file,
		screenshot_file = excluded.screenshot_file,
		captured_at = excluded.captured_at
	`

	for _, page := range report.Pages {
		if _, err := tx.ExecContext(ctx, pageQuery,
			report.RunID,
			page.URL,
			page.FinalURL,
			page.Depth,
			page.Referrer,
			page.Title,
			page.Status.String(),
			page.StatusCode,
			page.FailReason,
			page.Attempts,
			page.ContentHash,
			page.HTMLFile,
			page.ScreenshotFile,
			sqliteTime(page.CapturedAt),
		); err != nil {
			return fmt.Errorf("failed to save page %s: %w", page.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRunReport retrieves the full report for a run ID.
// Returns nil without error when the run is unknown.
func (cdb *CrawlDB) GetRunReport(ctx context.Context, runID string) (*model.CrawlReport, error) {
	query := `
	SELECT report_json FROM runs
	WHERE run_id = ?
	`

	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, query, runID).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse run report: %w", err)
	}

	return &report, nil
}

// GetLatestRunReport retrieves the most recent report for a base scope.
// Returns nil without error when the scope has no runs.
func (cdb *CrawlDB) GetLatestRunReport(ctx context.Context, baseScope string) (*model.CrawlReport, error) {
	query := `
	SELECT report_json FROM runs
	WHERE base_scope = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`

	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, query, baseScope).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse run report: %w", err)
	}

	return &report, nil
}

// ListScopes returns every base scope that has at least one stored run.
func (cdb *CrawlDB) ListScopes(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT base_scope FROM runs
	ORDER BY base_scope
	`

	rows, err := cdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list scopes: %w", err)
	}
	defer rows.Close()

	var scopes []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, fmt.Errorf("failed to scan scope: %w", err)
		}
		scopes = append(scopes, scope)
	}

	return scopes, rows.Err()
}

// RunMetadata contains summary information about a stored run.
// This is used for displaying run history without loading the full report.
type RunMetadata struct {
	// ID is the unique identifier of the run row in the database.
	ID int64

	// RunID is the run's UUID.
	RunID string

	// BaseScope is the scheme+host boundary the run was confined to.
	BaseScope string

	// StartedAt is when the run began.
	StartedAt time.Time

	// FinishedAt is when the run reached a terminal phase.
	FinishedAt time.Time

	// Termination is the serialized termination reason.
	Termination string

	// PagesVisited and PagesFailed are the run's capture counts.
	PagesVisited int
	PagesFailed  int

	// OutputDir is where the run's captures were written.
	OutputDir string
}

// GetRunHistory retrieves run metadata for a base scope, newest first.
// This is more efficient than loading full reports when only the run
// listing is needed.
func (cdb *CrawlDB) GetRunHistory(ctx context.Context, baseScope string) ([]RunMetadata, error) {
	query := `
	SELECT id, run_id, base_scope, started_at, finished_at, termination,
		pages_visited, pages_failed, output_dir
	FROM runs
	WHERE base_scope = ?
	ORDER BY started_at DESC, id DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, baseScope)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var started, finished string
		var termination, outputDir sql.NullString

		if err := rows.Scan(&meta.ID, &meta.RunID, &meta.BaseScope, &started, &finished,
			&termination, &meta.PagesVisited, &meta.PagesFailed, &outputDir); err != nil {
			return nil, fmt.Errorf("failed to scan run metadata: %w", err)
		}

		meta.StartedAt = parseTimestamp(started)
		meta.FinishedAt = parseTimestamp(finished)
		meta.Termination = termination.String
		meta.OutputDir = outputDir.String

		results = append(results, meta)
	}

	return results, rows.Err()
}

// PageRecord is one page row as the compare command consumes it.
type PageRecord struct {
	// URL is the normalized URL the page was captured under.
	URL string

	// Depth is the breadth-first depth the page was discovered at.
	Depth int

	// Title is the captured page title.
	Title string

	// Status is the serialized capture status (SUCCESS or FAILED).
	Status string

	// StatusCode is the HTTP status observed for the navigation.
	StatusCode int

	// FailReason explains a failed capture.
	FailReason string

	// ContentHash is the SHA-256 of the rendered document.
	ContentHash string

	// CapturedAt is when the capture finished.
	CapturedAt time.Time
}

// GetRunPages retrieves the page index of a run, ordered by URL.
func (cdb *CrawlDB) GetRunPages(ctx context.Context, runID string) ([]PageRecord, error) {
	query := `
	SELECT url, depth, title, status, status_code, fail_reason, content_hash, captured_at
	FROM pages
	WHERE run_id = ?
	ORDER BY url
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run pages: %w", err)
	}
	defer rows.Close()

	var results []PageRecord
	for rows.Next() {
		var page PageRecord
		var captured string
		var title, failReason, hash sql.NullString

		if err := rows.Scan(&page.URL, &page.Depth, &title, &page.Status,
			&page.StatusCode, &failReason, &hash, &captured); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}

		page.Title = title.String
		page.FailReason = failReason.String
		page.ContentHash = hash.String
		page.CapturedAt = parseTimestamp(captured)

		results = append(results, page)
	}

	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	// Return zero time if no format matches
	// This is a fallback to avoid breaking functionality for edge cases
	return time.Time{}
}
