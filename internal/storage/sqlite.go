package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/masahif/orgscrape/internal/crawler"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// IndexStore is the SQLite index of runs and events shared by every
// organization of every batch. It implements crawler.EventSink and is safe
// for concurrent use.
type IndexStore struct {
	db *sql.DB
}

// OrgSummary aggregates the indexed history of one organization.
type OrgSummary struct {
	Organization string
	Runs         int
	LastRun      time.Time
	Pages        int
	PDFs         int
	PDFBytes     int64
	Errors       int
	Blocked      int // Runs refused by robots.txt
}

// OpenIndex opens or creates the index database at dbPath.
func OpenIndex(dbPath string) (*IndexStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool - single connection prevents lock conflicts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &IndexStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *IndexStore) initSchema() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 30000",  // 30 second timeout for locks
		"PRAGMA locking_mode = NORMAL", // Allow external readers such as the summary command
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *IndexStore) Close() error {
	return s.db.Close()
}

// BeginRun registers a run before its first event.
func (s *IndexStore) BeginRun(ctx context.Context, runID, org, seed string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, organization, seed_url, state, started_at)
		VALUES (?, ?, ?, 'running', ?)
	`, runID, org, seed, startedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to begin run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters of a run. runErr, when set, marks the
// run failed.
func (s *IndexStore) FinishRun(ctx context.Context, runID string, res *crawler.Result, runErr error, finishedAt time.Time) error {
	state := "done"
	var msg sql.NullString
	if runErr != nil {
		state = "failed"
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	if res == nil {
		res = &crawler.Result{}
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			state = ?,
			finished_at = ?,
			visited = ?,
			pages_saved = ?,
			pdfs_saved = ?,
			errors = ?,
			blocked_by_robots = ?,
			error_message = ?
		WHERE id = ?
	`, state, finishedAt.UnixNano(), res.Visited, res.PagesSaved, res.PDFsSaved, res.Errors,
		boolInt(res.BlockedByRobots), msg, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// Record implements crawler.EventSink.
func (s *IndexStore) Record(ctx context.Context, ev crawler.Event) error {
	path := ev.HTMLPath
	if ev.PDFPath != "" {
		path = ev.PDFPath
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (
			run_id, organization, event, url, depth, status_code,
			artifact_path, link_text, size_bytes, error_message, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.RunID, ev.Org, string(ev.Type), ev.URL, ev.Depth,
		nullInt(int64(ev.Status)), nullString(path), nullString(ev.LinkText),
		nullInt(ev.SizeBytes), nullString(ev.Error), ev.Time.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to index event: %w", err)
	}
	return nil
}

// Summaries aggregates the index per organization, ordered by name.
func (s *IndexStore) Summaries(ctx context.Context) ([]OrgSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			r.organization,
			COUNT(*),
			MAX(r.started_at),
			COALESCE(SUM(e.pages), 0),
			COALESCE(SUM(e.pdfs), 0),
			COALESCE(SUM(e.pdf_bytes), 0),
			COALESCE(SUM(e.errors), 0),
			SUM(r.blocked_by_robots)
		FROM runs r
		LEFT JOIN (
			SELECT
				run_id,
				SUM(event = 'save_page') AS pages,
				SUM(event = 'save_pdf') AS pdfs,
				SUM(CASE WHEN event = 'save_pdf' THEN COALESCE(size_bytes, 0) ELSE 0 END) AS pdf_bytes,
				SUM(event IN ('error', 'pdf_error')) AS errors
			FROM events
			GROUP BY run_id
		) e ON e.run_id = r.id
		GROUP BY r.organization
		ORDER BY r.organization
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []OrgSummary
	for rows.Next() {
		var sum OrgSummary
		var lastRun int64
		if err := rows.Scan(&sum.Organization, &sum.Runs, &lastRun, &sum.Pages, &sum.PDFs,
			&sum.PDFBytes, &sum.Errors, &sum.Blocked); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		sum.LastRun = time.Unix(0, lastRun).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

// RunEvents returns the indexed events of one run in emission order.
func (s *IndexStore) RunEvents(ctx context.Context, runID string) ([]crawler.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT organization, event, url, depth, status_code, artifact_path,
			link_text, size_bytes, error_message, occurred_at
		FROM events
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []crawler.Event
	for rows.Next() {
		var (
			ev                     crawler.Event
			eventType              string
			status, size           sql.NullInt64
			path, linkText, errMsg sql.NullString
			ts                     int64
		)
		if err := rows.Scan(&ev.Org, &eventType, &ev.URL, &ev.Depth, &status, &path,
			&linkText, &size, &errMsg, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Type = crawler.EventType(eventType)
		ev.RunID = runID
		ev.Status = int(status.Int64)
		ev.LinkText = linkText.String
		ev.SizeBytes = size.Int64
		ev.Error = errMsg.String
		ev.Time = time.Unix(0, ts).UTC()
		switch ev.Type {
		case crawler.EventSavePDF:
			ev.PDFPath = path.String
		case crawler.EventSavePage:
			ev.HTMLPath = path.String
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
