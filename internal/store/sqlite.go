package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/dcatlas/dcharvest/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS pages (
	path       TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	body       TEXT NOT NULL,
	status     TEXT NOT NULL,
	http_code  INTEGER NOT NULL DEFAULT 0,
	fetched_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS nodes (
	path   TEXT PRIMARY KEY,
	parent TEXT NOT NULL,
	level  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_runs (
	id          TEXT PRIMARY KEY,
	level       TEXT NOT NULL,
	fetched     INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	errors      INTEGER NOT NULL,
	halted      INTEGER NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pages_status ON pages(status);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent);
CREATE INDEX IF NOT EXISTS idx_crawl_runs_started ON crawl_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertPage(ctx context.Context, page *model.PageFetch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (path, url, body, status, http_code, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			url = excluded.url,
			body = excluded.body,
			status = excluded.status,
			http_code = excluded.http_code,
			fetched_at = excluded.fetched_at`,
		page.Path, page.URL, page.Body, string(page.Status), page.HTTPCode, page.FetchedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert page %s", page.Path)
}

func (s *SQLiteStore) GetPage(ctx context.Context, path string) (*model.PageFetch, error) {
	var page model.PageFetch
	var status string
	var fetchedAt time.Time

	err := s.db.QueryRowContext(ctx,
		`SELECT path, url, body, status, http_code, fetched_at FROM pages WHERE path = ?`,
		path,
	).Scan(&page.Path, &page.URL, &page.Body, &status, &page.HTTPCode, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get page %s", path)
	}
	page.Status = model.FetchStatus(status)
	page.FetchedAt = fetchedAt
	return &page, nil
}

func (s *SQLiteStore) ListSuccessPages(ctx context.Context) ([]model.PageFetch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, url, body, status, http_code, fetched_at FROM pages WHERE status = ? ORDER BY path`,
		string(model.StatusSuccess),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list success pages")
	}
	defer rows.Close() //nolint:errcheck

	var pages []model.PageFetch
	for rows.Next() {
		var page model.PageFetch
		var status string
		if err := rows.Scan(&page.Path, &page.URL, &page.Body, &status, &page.HTTPCode, &page.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan page")
		}
		page.Status = model.FetchStatus(status)
		pages = append(pages, page)
	}
	return pages, eris.Wrap(rows.Err(), "sqlite: iterate pages")
}

func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[model.FetchStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM pages GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by status")
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[model.FetchStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan count")
		}
		counts[model.FetchStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: iterate counts")
}

func (s *SQLiteStore) AddChildren(ctx context.Context, parent string, level model.Level, paths []string) error {
	for _, p := range paths {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO nodes (path, parent, level) VALUES (?, ?, ?) ON CONFLICT(path) DO NOTHING`,
			p, parent, string(level),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: add child %s", p)
		}
	}
	return nil
}

func (s *SQLiteStore) ListChildren(ctx context.Context, parent string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM nodes WHERE parent = ? ORDER BY path`, parent,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list children of %s", parent)
	}
	defer rows.Close() //nolint:errcheck

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan child")
		}
		paths = append(paths, p)
	}
	return paths, eris.Wrap(rows.Err(), "sqlite: iterate children")
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run *model.CrawlRun) error {
	halted := 0
	if run.Halted {
		halted = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crawl_runs (id, level, fetched, skipped, errors, halted, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Level), run.Fetched, run.Skipped, run.Errors, halted,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: record run %s", run.ID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.CrawlRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, level, fetched, skipped, errors, halted, started_at, finished_at
		FROM crawl_runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.CrawlRun
	for rows.Next() {
		var run model.CrawlRun
		var level string
		var halted int
		if err := rows.Scan(&run.ID, &level, &run.Fetched, &run.Skipped, &run.Errors, &halted, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		run.Level = model.Level(level)
		run.Halted = halted != 0
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}
