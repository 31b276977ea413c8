package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dcatlas/dcharvest/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-status page counts and recent crawl runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		counts, err := st.CountByStatus(ctx)
		if err != nil {
			return err
		}

		fmt.Println("Pages:")
		for _, status := range []model.FetchStatus{
			model.StatusSuccess,
			model.StatusRateLimited,
			model.StatusTransientError,
			model.StatusPermanentError,
		} {
			fmt.Printf("  %-16s %d\n", status, counts[status])
		}

		runs, err := st.ListRuns(ctx, 10)
		if err != nil {
			return err
		}
		if len(runs) > 0 {
			fmt.Println("\nRecent runs:")
			for _, run := range runs {
				halted := ""
				if run.Halted {
					halted = "  (halted: rate limited)"
				}
				fmt.Printf("  %s  %-5s  fetched=%d skipped=%d errors=%d%s\n",
					run.StartedAt.Format("2006-01-02 15:04:05"),
					run.Level, run.Fetched, run.Skipped, run.Errors, halted,
				)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
