// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index keeps every committed patent record in a SQLite database
// with a full-text index over titles and abstracts, so results of past
// runs can be searched and exported.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/patent-harvester/pkg/types"
)

const (
	dbFile            = "patents.db"
	defaultMaxResults = 20
)

// Store manages the results database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int

	// fts is false when the sqlite3 driver was built without FTS5; text
	// queries then fall back to LIKE matching.
	fts bool
}

// Run identifies one harvest run.
type Run struct {
	ID        string    `json:"id" yaml:"id"`
	Query     string    `json:"query" yaml:"query"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	Records   int       `json:"records" yaml:"records"`
}

// Open opens or creates dir/patents.db and its schema. A non-positive
// maxResults selects 20.
func Open(dir string, maxResults int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{db: db, dir: dir, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the directory holding the database and exports.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			started_at TEXT NOT NULL,
			records INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS patents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			link TEXT NOT NULL,
			author TEXT NOT NULL,
			run_id TEXT NOT NULL,
			title TEXT,
			assignees TEXT,
			inventors TEXT,
			priority_date TEXT,
			publication_date TEXT,
			codes TEXT,
			patent_code TEXT,
			country TEXT,
			abstract TEXT,
			document_path TEXT,
			UNIQUE(link, author)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_patents_author ON patents(author)`,
		`CREATE INDEX IF NOT EXISTS idx_patents_run ON patents(run_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='patents_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		s.fts = true
		return nil
	}

	if _, err := s.db.Exec(`CREATE VIRTUAL TABLE patents_fts USING fts5(title, abstract, content=patents, content_rowid=rowid)`); err != nil {
		if strings.Contains(err.Error(), "no such module") {
			return nil
		}
		return fmt.Errorf("creating FTS table: %w", err)
	}
	triggers := []string{
		`CREATE TRIGGER patents_ai AFTER INSERT ON patents BEGIN
			INSERT INTO patents_fts(rowid, title, abstract) VALUES (new.rowid, new.title, new.abstract);
		END`,
		`CREATE TRIGGER patents_ad AFTER DELETE ON patents BEGIN
			INSERT INTO patents_fts(patents_fts, rowid, title, abstract) VALUES('delete', old.rowid, old.title, old.abstract);
		END`,
		`CREATE TRIGGER patents_au AFTER UPDATE ON patents BEGIN
			INSERT INTO patents_fts(patents_fts, rowid, title, abstract) VALUES('delete', old.rowid, old.title, old.abstract);
			INSERT INTO patents_fts(rowid, title, abstract) VALUES (new.rowid, new.title, new.abstract);
		END`,
	}
	for _, stmt := range triggers {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	s.fts = true
	return nil
}

// IngestSummary counts the outcome of one Ingest call.
type IngestSummary struct {
	Inserted int
	Updated  int
}

// Total returns the number of records written.
func (s IngestSummary) Total() int {
	return s.Inserted + s.Updated
}

// Ingest records run and upserts every record of results in one
// transaction. A record is keyed by link and author, so a patent found
// for two inventors is stored once per inventor.
func (s *Store) Ingest(ctx context.Context, run Run, results []types.AuthorResult) (IngestSummary, error) {
	var summary IngestSummary

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	total := 0
	for _, r := range results {
		total += len(r.Records)
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, query, started_at, records) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET query=excluded.query, records=runs.records+excluded.records`,
		run.ID, run.Query, run.StartedAt.UTC().Format(time.RFC3339), total,
	)
	if err != nil {
		return summary, fmt.Errorf("recording run: %w", err)
	}

	exists, err := tx.PrepareContext(ctx, `SELECT count(*) FROM patents WHERE link = ? AND author = ?`)
	if err != nil {
		return summary, fmt.Errorf("preparing lookup: %w", err)
	}
	defer exists.Close()

	upsert, err := tx.PrepareContext(ctx,
		`INSERT INTO patents (link, author, run_id, title, assignees, inventors, priority_date,
			publication_date, codes, patent_code, country, abstract, document_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(link, author) DO UPDATE SET
			run_id=excluded.run_id, title=excluded.title, assignees=excluded.assignees,
			inventors=excluded.inventors, priority_date=excluded.priority_date,
			publication_date=excluded.publication_date, codes=excluded.codes,
			patent_code=excluded.patent_code, country=excluded.country,
			abstract=excluded.abstract, document_path=excluded.document_path`)
	if err != nil {
		return summary, fmt.Errorf("preparing upsert: %w", err)
	}
	defer upsert.Close()

	for _, r := range results {
		for _, rec := range r.Records {
			var n int
			if err := exists.QueryRowContext(ctx, rec.Link, r.Name).Scan(&n); err != nil {
				return summary, fmt.Errorf("looking up %s: %w", rec.Link, err)
			}
			assignees, _ := json.Marshal(nonNil(rec.CurrentAssignee))
			inventors, _ := json.Marshal(nonNil(rec.Inventors))
			_, err := upsert.ExecContext(ctx,
				rec.Link, r.Name, run.ID, rec.Title, string(assignees), string(inventors),
				rec.PriorityDate, rec.PublicationDate, rec.ClassificationCodes,
				rec.PatentCode, rec.Country, rec.Abstract, rec.PathToPDFFile,
			)
			if err != nil {
				return summary, fmt.Errorf("upserting %s: %w", rec.Link, err)
			}
			if n > 0 {
				summary.Updated++
			} else {
				summary.Inserted++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return IngestSummary{}, fmt.Errorf("committing: %w", err)
	}
	return summary, nil
}

// Runs lists recorded runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, query, started_at, records FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			started string
		)
		if err := rows.Scan(&r.ID, &r.Query, &started, &r.Records); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
