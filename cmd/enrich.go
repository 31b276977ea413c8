package main

import (
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dcatlas/dcharvest/internal/aggregate"
	"github.com/dcatlas/dcharvest/internal/export"
	"github.com/dcatlas/dcharvest/internal/fetch"
	"github.com/dcatlas/dcharvest/pkg/watershed"
)

var enrichOut string

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Attach HUC12 watershed regions to deduplicated facility records",
	Long: `Extract and deduplicate the corpus, then resolve the HUC12 watershed for
every record with coordinates. Lookups go to the USGS WBD query service,
paced by a fixed delay; with watershed.shapefile_path set they run against a
local WBD shapefile instead. Lookup failures leave the region columns empty.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := aggregate.Collect(ctx, st, fetch.MarkerCheck(cfg.Source.RateLimitMarker))
		if err != nil {
			return err
		}
		unique := aggregate.Dedup(records)

		resolver, err := newResolver()
		if err != nil {
			return err
		}

		rows := aggregate.Enrich(ctx, unique, resolver)

		out := enrichOut
		if out == "" {
			out = cfg.Output.EnrichedPath
		}
		if err := export.Write(out, cfg.Output.Format, rows); err != nil {
			return err
		}

		matched := 0
		for _, r := range rows {
			if r.HUC12 != "" {
				matched++
			}
		}
		zap.L().Info("enrich complete",
			zap.Int("unique", len(unique)),
			zap.Int("matched", matched),
			zap.String("file", out),
		)
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVarP(&enrichOut, "out", "o", "", "output file (default from config)")
	rootCmd.AddCommand(enrichCmd)
}

// newResolver builds the watershed resolver from config: a local shapefile
// index when configured, otherwise the paced USGS client.
func newResolver() (watershed.Resolver, error) {
	if cfg.Watershed.ShapefilePath != "" {
		return watershed.OpenLocalIndex(cfg.Watershed.ShapefilePath)
	}
	return watershed.NewClient(
		watershed.WithBaseURL(cfg.Watershed.BaseURL),
		watershed.WithDelay(cfg.Watershed.Delay),
		watershed.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Watershed.TimeoutSecs) * time.Second,
		}),
	), nil
}
