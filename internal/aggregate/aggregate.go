// Package aggregate merges extracted records across the whole corpus,
// deduplicates them, and attaches best-effort watershed assignments.
//
// This is the only stage with cross-corpus visibility; ordering by hierarchy
// path is preserved end to end so repeated runs over identical inputs produce
// byte-identical output.
package aggregate

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/dcatlas/dcharvest/internal/extract"
	"github.com/dcatlas/dcharvest/internal/model"
	"github.com/dcatlas/dcharvest/internal/store"
	"github.com/dcatlas/dcharvest/pkg/watershed"
)

// Collect runs the extractor over every Success page in lexicographic path
// order and flattens the results. Pages whose stored payload still carries the
// rate-limit marker are skipped: that re-check is independent of the crawl
// driver's bookkeeping. Extraction faults are logged and isolated to their
// page.
func Collect(ctx context.Context, st store.Store, isRateLimited func([]byte) bool) ([]model.Facility, error) {
	log := zap.L().With(zap.String("component", "aggregate"))

	pages, err := st.ListSuccessPages(ctx)
	if err != nil {
		return nil, err
	}

	var all []model.Facility
	var faulted int
	for _, page := range pages {
		if isRateLimited != nil && isRateLimited([]byte(page.Body)) {
			log.Warn("stored page carries rate-limit marker, skipping", zap.String("path", page.Path))
			continue
		}

		records, err := extract.Records([]byte(page.Body))
		if err != nil {
			faulted++
			log.Warn("extraction failed", zap.String("path", page.Path), zap.Error(err))
			continue
		}
		all = append(all, records...)
	}

	log.Info("collected records",
		zap.Int("pages", len(pages)),
		zap.Int("records", len(all)),
		zap.Int("extraction_faults", faulted),
	)
	return all, nil
}

// Dedup retains the first occurrence of each (name, address) key. The fold is
// order-sensitive: input order decides which duplicate wins, so callers must
// pass the path-ordered output of Collect.
func Dedup(records []model.Facility) []model.Facility {
	seen := make(map[string]bool, len(records))
	unique := make([]model.Facility, 0, len(records))
	for _, r := range records {
		key := r.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, r)
	}
	return unique
}

// Enrich resolves a watershed region for every record that carries
// coordinates. Lookup failures and no-match results leave the region fields
// empty; no record is ever dropped and no failure aborts the batch. Pacing is
// the resolver's concern.
func Enrich(ctx context.Context, records []model.Facility, resolver watershed.Resolver) []model.EnrichedFacility {
	log := zap.L().With(zap.String("component", "aggregate.enrich"))

	out := make([]model.EnrichedFacility, 0, len(records))
	for _, r := range records {
		row := Flatten(r)

		if r.HasLocation() && resolver != nil {
			region, err := resolver.Resolve(ctx, r.Longitude(), r.Latitude())
			switch {
			case err != nil:
				log.Warn("watershed lookup failed", zap.String("name", r.Name), zap.Error(err))
			case region != nil:
				row.HUC12 = region.HUC12
				row.HUC12Name = region.Name
			}
		}

		out = append(out, row)
	}
	return out
}

// Flatten projects a Facility into a tabular row. Coordinate columns are empty
// strings when the facility has no location.
func Flatten(r model.Facility) model.EnrichedFacility {
	row := model.EnrichedFacility{
		Name:    r.Name,
		Company: r.Company,
		Address: r.Address,
		Postal:  r.Postal,
		City:    r.City,
		State:   r.State,
		Country: r.Country,
	}
	if r.HasLocation() {
		row.Latitude = strconv.FormatFloat(r.Latitude(), 'f', -1, 64)
		row.Longitude = strconv.FormatFloat(r.Longitude(), 'f', -1, 64)
	}
	return row
}
