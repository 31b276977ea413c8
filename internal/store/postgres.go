package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/dcatlas/dcharvest/internal/db"
	"github.com/dcatlas/dcharvest/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 5
	pgxCfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS pages (
	path       TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	body       TEXT NOT NULL,
	status     TEXT NOT NULL,
	http_code  INTEGER NOT NULL DEFAULT 0,
	fetched_at TIMESTAMPTZ NOT NULL
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
	halted      BOOLEAN NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pages_status ON pages(status);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent);
CREATE INDEX IF NOT EXISTS idx_crawl_runs_started ON crawl_runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertPage(ctx context.Context, page *model.PageFetch) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pages (path, url, body, status, http_code, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (path) DO UPDATE SET
			url = EXCLUDED.url,
			body = EXCLUDED.body,
			status = EXCLUDED.status,
			http_code = EXCLUDED.http_code,
			fetched_at = EXCLUDED.fetched_at`,
		page.Path, page.URL, page.Body, string(page.Status), page.HTTPCode, page.FetchedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert page %s", page.Path)
}

func (s *PostgresStore) GetPage(ctx context.Context, path string) (*model.PageFetch, error) {
	var page model.PageFetch
	var status string

	err := s.pool.QueryRow(ctx,
		`SELECT path, url, body, status, http_code, fetched_at FROM pages WHERE path = $1`,
		path,
	).Scan(&page.Path, &page.URL, &page.Body, &status, &page.HTTPCode, &page.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get page %s", path)
	}
	page.Status = model.FetchStatus(status)
	return &page, nil
}

func (s *PostgresStore) ListSuccessPages(ctx context.Context) ([]model.PageFetch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT path, url, body, status, http_code, fetched_at FROM pages WHERE status = $1 ORDER BY path`,
		string(model.StatusSuccess),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list success pages")
	}
	defer rows.Close()

	var pages []model.PageFetch
	for rows.Next() {
		var page model.PageFetch
		var status string
		if err := rows.Scan(&page.Path, &page.URL, &page.Body, &status, &page.HTTPCode, &page.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan page")
		}
		page.Status = model.FetchStatus(status)
		pages = append(pages, page)
	}
	return pages, eris.Wrap(rows.Err(), "postgres: iterate pages")
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[model.FetchStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM pages GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by status")
	}
	defer rows.Close()

	counts := make(map[model.FetchStatus]int)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan count")
		}
		counts[model.FetchStatus(status)] = int(n)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: iterate counts")
}

func (s *PostgresStore) AddChildren(ctx context.Context, parent string, level model.Level, paths []string) error {
	for _, p := range paths {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO nodes (path, parent, level) VALUES ($1, $2, $3) ON CONFLICT (path) DO NOTHING`,
			p, parent, string(level),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: add child %s", p)
		}
	}
	return nil
}

func (s *PostgresStore) ListChildren(ctx context.Context, parent string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT path FROM nodes WHERE parent = $1 ORDER BY path`, parent,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list children of %s", parent)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, eris.Wrap(err, "postgres: scan child")
		}
		paths = append(paths, p)
	}
	return paths, eris.Wrap(rows.Err(), "postgres: iterate children")
}

func (s *PostgresStore) RecordRun(ctx context.Context, run *model.CrawlRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO crawl_runs (id, level, fetched, skipped, errors, halted, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, string(run.Level), run.Fetched, run.Skipped, run.Errors, run.Halted,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: record run %s", run.ID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.CrawlRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, level, fetched, skipped, errors, halted, started_at, finished_at
		FROM crawl_runs ORDER BY started_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.CrawlRun
	for rows.Next() {
		var run model.CrawlRun
		var level string
		if err := rows.Scan(&run.ID, &level, &run.Fetched, &run.Skipped, &run.Errors, &run.Halted, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		run.Level = model.Level(level)
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}
