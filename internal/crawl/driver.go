// Package crawl walks one frontier level through the resilient fetcher,
// persisting every outcome so interrupted runs resume where they left off.
package crawl

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dcatlas/dcharvest/internal/model"
	"github.com/dcatlas/dcharvest/internal/store"
)

// ErrRateLimited signals that the upstream source throttled the crawl. It is a
// global condition, not a per-leaf fault: the run stops dispatching and the
// operator retries later. Work completed before the signal stays committed.
var ErrRateLimited = eris.New("crawl: upstream rate limit reached")

// Fetcher is the fetch dependency of the driver.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*model.PageFetch, error)
	IsRateLimited(body []byte) bool
}

// Report summarizes one driver run.
type Report struct {
	// Dispatched counts actual network fetches, including the one that hit
	// the rate limit. Skipped leaves never dispatch.
	Dispatched int
	Fetched    int
	Skipped    int
	Errors     int
	Halted     bool
}

// Driver fetches every leaf of a frontier sequentially, skipping leaves whose
// stored result is still a verified success.
type Driver struct {
	store   store.Store
	fetcher Fetcher
	level   model.Level
	limiter *rate.Limiter
	force   bool
	log     *zap.Logger
}

// Options configures a Driver.
type Options struct {
	Level model.Level
	// Delay is the fixed pause between consecutive dispatched fetches.
	// Skipped leaves are not delayed.
	Delay time.Duration
	// Force refetches leaves even when a valid Success result is stored.
	Force bool
}

// NewDriver creates a Driver over the given store and fetcher.
func NewDriver(st store.Store, f Fetcher, opts Options) *Driver {
	delay := opts.Delay
	if delay <= 0 {
		delay = time.Second
	}
	return &Driver{
		store:   st,
		fetcher: f,
		level:   opts.Level,
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		force:   opts.Force,
		log:     zap.L().With(zap.String("component", "crawl.driver"), zap.String("level", string(opts.Level))),
	}
}

// Run walks the frontier in order. Per leaf:
//
//	stored Success whose payload passes the marker re-check → skip
//	fetch outcome RateLimited → persist, halt the whole run (ErrRateLimited)
//	fetch outcome Transient/PermanentError → persist, count, continue
//
// The report and a run record are always produced; on a rate-limit halt the
// report is returned alongside ErrRateLimited.
func (d *Driver) Run(ctx context.Context, urls []string) (*Report, error) {
	report := &Report{}
	started := time.Now().UTC()

	var runErr error
	for _, leafURL := range urls {
		path, err := LeafPath(leafURL)
		if err != nil {
			d.log.Warn("skipping malformed frontier entry", zap.String("url", leafURL), zap.Error(err))
			report.Errors++
			continue
		}

		if !d.force {
			prior, err := d.store.GetPage(ctx, path)
			if err != nil {
				return report, err
			}
			if prior != nil && prior.Status == model.StatusSuccess && !d.fetcher.IsRateLimited([]byte(prior.Body)) {
				report.Skipped++
				continue
			}
		}

		if err := d.limiter.Wait(ctx); err != nil {
			runErr = eris.Wrap(err, "crawl: canceled")
			break
		}

		result, err := d.fetcher.Fetch(ctx, leafURL)
		if err != nil {
			return report, err
		}
		report.Dispatched++
		result.Path = path

		if err := d.store.UpsertPage(ctx, result); err != nil {
			return report, err
		}

		switch result.Status {
		case model.StatusSuccess:
			report.Fetched++
			d.log.Debug("fetched", zap.String("path", path), zap.Int("bytes", len(result.Body)))
		case model.StatusRateLimited:
			report.Halted = true
			d.log.Warn("rate limit marker detected, halting run",
				zap.String("path", path),
				zap.Int("completed", report.Fetched+report.Skipped),
			)
			runErr = ErrRateLimited
		default:
			report.Errors++
			d.log.Warn("fetch failed",
				zap.String("path", path),
				zap.String("status", string(result.Status)),
				zap.Int("http_code", result.HTTPCode),
			)
		}

		if report.Halted {
			break
		}
	}

	run := &model.CrawlRun{
		ID:         uuid.New().String(),
		Level:      d.level,
		Fetched:    report.Fetched,
		Skipped:    report.Skipped,
		Errors:     report.Errors,
		Halted:     report.Halted,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	if err := d.store.RecordRun(ctx, run); err != nil {
		d.log.Warn("failed to record run", zap.Error(err))
	}

	return report, runErr
}

// LeafPath derives the hierarchy path of a leaf URL by dropping the top-level
// index segment: ".../usa/texas/" → "texas", ".../usa/texas/abilene/" →
// "texas/abilene".
func LeafPath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "crawl: parse url %s", rawURL)
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) < 2 || segs[len(segs)-1] == "" {
		return "", eris.Errorf("crawl: url %s is not an entity page", rawURL)
	}
	return strings.Join(segs[1:], "/"), nil
}
