// Package watershed resolves a coordinate pair to its HUC12 watershed, either
// via the USGS Watershed Boundary Dataset query service or a local WBD
// shapefile.
package watershed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://hydro.nationalmap.gov/arcgis/rest/services/wbd/MapServer/6/query"

// Region identifies a HUC12 watershed.
type Region struct {
	HUC12 string
	Name  string
}

// Resolver looks up the watershed containing a point. A nil Region with a nil
// error means no watershed matched, which is not a fault.
type Resolver interface {
	Resolve(ctx context.Context, lon, lat float64) (*Region, error)
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the query endpoint, for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithDelay sets the fixed pause between consecutive lookups.
func WithDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// Client queries the USGS WBD HUC12 layer.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewClient creates a watershed Client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		limiter:    rate.NewLimiter(rate.Every(300*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// queryResponse is the slice of the ArcGIS response the client reads.
type queryResponse struct {
	Features []struct {
		Attributes struct {
			HUC12 string `json:"huc12"`
			Name  string `json:"name"`
		} `json:"attributes"`
	} `json:"features"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Resolve performs a point-intersection query against the HUC12 layer. The
// request carries the pair as "lon,lat"; the first returned feature is
// authoritative and zero features means no match.
func (c *Client) Resolve(ctx context.Context, lon, lat float64) (*Region, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "watershed: rate limit")
	}

	params := url.Values{
		"geometry":       {fmt.Sprintf("%v,%v", lon, lat)},
		"geometryType":   {"esriGeometryPoint"},
		"inSR":           {"4326"},
		"spatialRel":     {"esriSpatialRelIntersects"},
		"outFields":      {"huc12,name"},
		"returnGeometry": {"false"},
		"f":              {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "watershed: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "watershed: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("watershed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "watershed: read body")
	}

	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, eris.Wrap(err, "watershed: parse response")
	}
	if qr.Error != nil {
		return nil, eris.Errorf("watershed: service error %d: %s", qr.Error.Code, qr.Error.Message)
	}
	if len(qr.Features) == 0 {
		return nil, nil
	}

	attrs := qr.Features[0].Attributes
	return &Region{HUC12: attrs.HUC12, Name: attrs.Name}, nil
}
