package model

import "time"

// FetchStatus classifies the outcome of one page fetch.
type FetchStatus string

const (
	// StatusSuccess is a 2xx response whose body does not carry the
	// rate-limit marker.
	StatusSuccess FetchStatus = "success"
	// StatusRateLimited is a response carrying the rate-limit marker. It is
	// a global halt signal, not a per-page failure.
	StatusRateLimited FetchStatus = "rate_limited"
	// StatusTransientError covers network and timeout failures; a later run
	// retries these.
	StatusTransientError FetchStatus = "transient_error"
	// StatusPermanentError covers non-2xx HTTP responses.
	StatusPermanentError FetchStatus = "permanent_error"
)

// Level names a tier of the catalog hierarchy.
type Level string

const (
	LevelState Level = "state"
	LevelCity  Level = "city"
)

// PageFetch is the durable record of one fetch attempt, keyed by hierarchy
// path ("texas", "texas/abilene"). Body holds the verbatim payload for
// Success and RateLimited outcomes and is empty otherwise.
type PageFetch struct {
	Path      string      `json:"path"`
	URL       string      `json:"url"`
	Body      string      `json:"-"`
	Status    FetchStatus `json:"status"`
	HTTPCode  int         `json:"http_code"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// CrawlRun summarizes one driver invocation.
type CrawlRun struct {
	ID         string    `json:"id"`
	Level      Level     `json:"level"`
	Fetched    int       `json:"fetched"`
	Skipped    int       `json:"skipped"`
	Errors     int       `json:"errors"`
	Halted     bool      `json:"halted"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
