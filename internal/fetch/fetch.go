// Package fetch performs single-URL retrieval with outcome classification.
//
// The fetcher is stateless: persistence of results is the caller's concern.
// Every classifiable HTTP outcome is returned as a PageFetch rather than an
// error, so the crawl driver can record it and decide what to do next.
package fetch

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/dcatlas/dcharvest/internal/model"
)

const maxBodyBytes = 4 * 1024 * 1024

// Options configures a Fetcher.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// RateLimitMarker is the literal substring whose presence in a 2xx body
	// reclassifies the response as rate limited.
	RateLimitMarker string
	// Transport overrides the HTTP transport, for tests.
	Transport http.RoundTripper
}

// Fetcher retrieves catalog pages.
type Fetcher struct {
	client    *http.Client
	userAgent string
	marker    []byte
}

// New creates a Fetcher with bounded timeouts and a browser-like identity.
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConnsPerHost: 2,
		}
	}
	return &Fetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		userAgent: opts.UserAgent,
		marker:    []byte(opts.RateLimitMarker),
	}
}

// Fetch performs one GET and classifies the outcome:
//
//	network or timeout failure        → StatusTransientError
//	non-2xx HTTP status               → StatusPermanentError
//	2xx body carrying the marker      → StatusRateLimited
//	anything else                     → StatusSuccess, body verbatim
//
// An error is returned only for unclassifiable programmer mistakes such as a
// malformed URL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*model.PageFetch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: build request %s", rawURL)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	now := time.Now().UTC()
	resp, err := f.client.Do(req)
	if err != nil {
		return &model.PageFetch{
			URL:       rawURL,
			Status:    model.StatusTransientError,
			FetchedAt: now,
		}, nil
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &model.PageFetch{
			URL:       rawURL,
			Status:    model.StatusTransientError,
			HTTPCode:  resp.StatusCode,
			FetchedAt: now,
		}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &model.PageFetch{
			URL:       rawURL,
			Status:    model.StatusPermanentError,
			HTTPCode:  resp.StatusCode,
			FetchedAt: now,
		}, nil
	}

	if f.IsRateLimited(body) {
		return &model.PageFetch{
			URL:       rawURL,
			Body:      string(body),
			Status:    model.StatusRateLimited,
			HTTPCode:  resp.StatusCode,
			FetchedAt: now,
		}, nil
	}

	return &model.PageFetch{
		URL:       rawURL,
		Body:      string(body),
		Status:    model.StatusSuccess,
		HTTPCode:  resp.StatusCode,
		FetchedAt: now,
	}, nil
}

// IsRateLimited reports whether a payload carries the rate-limit marker.
// Stored payloads are re-checked with this at every consumption site; the
// marker is the canonical "not actually succeeded" signal.
func (f *Fetcher) IsRateLimited(body []byte) bool {
	return len(f.marker) > 0 && bytes.Contains(body, f.marker)
}

// MarkerCheck returns a standalone payload check for the given marker, for
// consumers that need the re-check without a full Fetcher.
func MarkerCheck(marker string) func([]byte) bool {
	m := []byte(marker)
	return func(body []byte) bool {
		return len(m) > 0 && bytes.Contains(body, m)
	}
}
