// Package store persists crawl state: fetched pages keyed by hierarchy path,
// discovered hierarchy nodes, and per-run summaries.
//
// The store is the only shared resource between pipeline runs. Writes are
// plain upserts ("last full run wins"); the crawl driver reads before writing
// to decide skip-vs-fetch.
package store

import (
	"context"

	"github.com/dcatlas/dcharvest/internal/model"
)

// Store defines the persistence interface for the harvest pipeline.
type Store interface {
	// Pages
	UpsertPage(ctx context.Context, page *model.PageFetch) error
	GetPage(ctx context.Context, path string) (*model.PageFetch, error)
	// ListSuccessPages returns Success pages ordered lexicographically by
	// path, so downstream aggregation is deterministic.
	ListSuccessPages(ctx context.Context) ([]model.PageFetch, error)
	CountByStatus(ctx context.Context) (map[model.FetchStatus]int, error)

	// Hierarchy nodes (append-only; re-recording existing children is a no-op)
	AddChildren(ctx context.Context, parent string, level model.Level, paths []string) error
	ListChildren(ctx context.Context, parent string) ([]string, error)

	// Runs
	RecordRun(ctx context.Context, run *model.CrawlRun) error
	ListRuns(ctx context.Context, limit int) ([]model.CrawlRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
