package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dcatlas/dcharvest/internal/aggregate"
	"github.com/dcatlas/dcharvest/internal/export"
	"github.com/dcatlas/dcharvest/internal/fetch"
	"github.com/dcatlas/dcharvest/internal/model"
)

var extractOut string

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract, deduplicate, and export facility records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

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

		rows := make([]model.EnrichedFacility, 0, len(unique))
		for _, r := range unique {
			rows = append(rows, aggregate.Flatten(r))
		}

		out := extractOut
		if out == "" {
			out = cfg.Output.FacilitiesPath
		}
		if err := export.Write(out, cfg.Output.Format, rows); err != nil {
			return err
		}

		zap.L().Info("extract complete",
			zap.Int("records", len(records)),
			zap.Int("unique", len(unique)),
			zap.String("file", out),
		)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "output file (default from config)")
	rootCmd.AddCommand(extractCmd)
}
