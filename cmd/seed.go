package main

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dcatlas/dcharvest/internal/fetch"
	"github.com/dcatlas/dcharvest/internal/model"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fetch and store the top-level catalog index page",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		f := newFetcher()
		indexURL := cfg.Source.BaseURL + cfg.Source.IndexPath

		result, err := f.Fetch(ctx, indexURL)
		if err != nil {
			return eris.Wrap(err, "seed")
		}
		result.Path = indexSlug()

		if err := st.UpsertPage(ctx, result); err != nil {
			return err
		}

		if result.Status != model.StatusSuccess {
			return eris.Errorf("seed: index fetch ended with status %s (http %d)", result.Status, result.HTTPCode)
		}

		zap.L().Info("seed complete",
			zap.String("url", indexURL),
			zap.Int("bytes", len(result.Body)),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// newFetcher builds the resilient fetcher from config.
func newFetcher() *fetch.Fetcher {
	return fetch.New(fetch.Options{
		UserAgent:       cfg.Source.UserAgent,
		Timeout:         time.Duration(cfg.Crawl.TimeoutSecs) * time.Second,
		RateLimitMarker: cfg.Source.RateLimitMarker,
	})
}

// indexSlug is the store path of the top-level index page ("usa").
func indexSlug() string {
	return strings.Trim(cfg.Source.IndexPath, "/")
}
