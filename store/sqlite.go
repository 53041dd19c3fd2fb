// Package store persists a finished crawl graph to SQLite so runs can
// be diffed and queried after the process exits.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/use-agent/sitewalk/models"
)

// Store handles all database operations for persisted crawl graphs.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and initializes the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates tables and indices if they don't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		termination TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pages (
		run_id INTEGER NOT NULL,
		page_id INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		elements INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error_kind TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		screenshot TEXT,
		visited_at TIMESTAMP NOT NULL,
		PRIMARY KEY (run_id, page_id),
		FOREIGN KEY (run_id) REFERENCES runs(run_id),
		UNIQUE(run_id, url)
	);

	CREATE TABLE IF NOT EXISTS edges (
		run_id INTEGER NOT NULL,
		source_id INTEGER NOT NULL,
		target_url TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(run_id),
		FOREIGN KEY (run_id, source_id) REFERENCES pages(run_id, page_id),
		UNIQUE(run_id, source_id, target_url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(run_id, url);
	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(run_id, source_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores a finished crawl in one transaction and returns the
// assigned run id.
func (s *Store) SaveRun(summary models.Summary, snap models.Snapshot) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO runs (seed, succeeded, failed, termination, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, summary.Seed, summary.Succeeded, summary.Failed, summary.Termination, summary.StartedAt, summary.FinishedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	pageStmt, err := tx.Prepare(`
		INSERT INTO pages (run_id, page_id, url, title, width, height, elements,
			duration_ms, status, error_kind, attempts, screenshot, visited_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer pageStmt.Close()

	for _, p := range snap.Pages {
		_, err := pageStmt.Exec(runID, int(p.ID), p.URL, p.Title,
			p.Dim.Width, p.Dim.Height, p.Inventory.Total(),
			p.Duration.Milliseconds(), string(p.Status), p.ErrorKind,
			p.Attempts, p.Screenshot, p.Timestamp)
		if err != nil {
			return 0, fmt.Errorf("failed to insert page %s: %w", p.URL, err)
		}
	}

	edgeStmt, err := tx.Prepare(`
		INSERT INTO edges (run_id, source_id, target_url) VALUES (?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()

	for _, e := range snap.Edges {
		if _, err := edgeStmt.Exec(runID, int(e.Source), e.Target); err != nil {
			return 0, fmt.Errorf("failed to insert edge %d -> %s: %w", e.Source, e.Target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// Run is a persisted crawl summary row.
type Run struct {
	ID          int64
	Seed        string
	Succeeded   int
	Failed      int
	Termination string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// LoadRun retrieves a run summary by id, nil if not found.
func (s *Store) LoadRun(runID int64) (*Run, error) {
	var r Run
	err := s.db.QueryRow(`
		SELECT run_id, seed, succeeded, failed, termination, started_at, finished_at
		FROM runs WHERE run_id = ?
	`, runID).Scan(&r.ID, &r.Seed, &r.Succeeded, &r.Failed, &r.Termination, &r.StartedAt, &r.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return &r, nil
}

// LoadSnapshot rebuilds the persisted graph for a run.
func (s *Store) LoadSnapshot(runID int64) (models.Snapshot, error) {
	var snap models.Snapshot

	rows, err := s.db.Query(`
		SELECT page_id, url, title, width, height, duration_ms, status,
			error_kind, attempts, screenshot, visited_at
		FROM pages WHERE run_id = ? ORDER BY page_id ASC
	`, runID)
	if err != nil {
		return snap, fmt.Errorf("failed to load pages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p          models.PageRecord
			id         int
			durationMs int64
			status     string
		)
		if err := rows.Scan(&id, &p.URL, &p.Title, &p.Dim.Width, &p.Dim.Height,
			&durationMs, &status, &p.ErrorKind, &p.Attempts, &p.Screenshot, &p.Timestamp); err != nil {
			return snap, fmt.Errorf("failed to scan page: %w", err)
		}
		p.ID = models.PageID(id)
		p.Duration = time.Duration(durationMs) * time.Millisecond
		p.Status = models.PageStatus(status)
		snap.Pages = append(snap.Pages, p)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("error iterating pages: %w", err)
	}

	edgeRows, err := s.db.Query(`
		SELECT source_id, target_url FROM edges WHERE run_id = ? ORDER BY rowid ASC
	`, runID)
	if err != nil {
		return snap, fmt.Errorf("failed to load edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var (
			e      models.Edge
			source int
		)
		if err := edgeRows.Scan(&source, &e.Target); err != nil {
			return snap, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Source = models.PageID(source)
		snap.Edges = append(snap.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return snap, fmt.Errorf("error iterating edges: %w", err)
	}

	return snap, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
