package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dcatlas/dcharvest/internal/crawl"
	"github.com/dcatlas/dcharvest/internal/frontier"
	"github.com/dcatlas/dcharvest/internal/model"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Fetch frontier pages with durable resume",
	Long: `Fetch every page of a frontier level, recording each outcome durably.

Leaves with a stored, still-valid success are skipped, so interrupted runs
resume where they left off. A rate-limit marker in any response halts the
remaining dispatches for this run; wait a while and run again.`,
}

var crawlStatesCmd = &cobra.Command{
	Use:   "states",
	Short: "Crawl the state-level frontier",
	RunE: func(cmd *cobra.Command, _ []string) error {
		urls, err := frontier.ReadList(stateFrontierPath())
		if err != nil {
			return err
		}
		return runCrawl(cmd, model.LevelState, urls, cfg.Crawl.StateDelay)
	},
}

var crawlCitiesCmd = &cobra.Command{
	Use:   "cities",
	Short: "Crawl the city-level frontier across all states",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		states, err := st.ListChildren(ctx, indexSlug())
		st.Close() //nolint:errcheck
		if err != nil {
			return err
		}
		if len(states) == 0 {
			return eris.New("crawl: no known states, run `dcharvest frontier states` first")
		}

		// ListChildren returns states in path order, so the combined city
		// frontier is deterministic across runs.
		var urls []string
		for _, statePath := range states {
			path := cityFrontierPath(statePath)
			list, err := frontier.ReadList(path)
			if err != nil {
				if os.IsNotExist(eris.Cause(err)) {
					zap.L().Debug("no city frontier for state", zap.String("state", statePath))
					continue
				}
				return err
			}
			urls = append(urls, list...)
		}
		if len(urls) == 0 {
			return eris.New("crawl: no city frontiers found, run `dcharvest frontier cities` first")
		}

		return runCrawl(cmd, model.LevelCity, urls, cfg.Crawl.CityDelay)
	},
}

var crawlForce bool

func init() {
	crawlCmd.PersistentFlags().BoolVar(&crawlForce, "force", false, "refetch leaves even when a valid result is stored")
	crawlCmd.AddCommand(crawlStatesCmd)
	crawlCmd.AddCommand(crawlCitiesCmd)
	rootCmd.AddCommand(crawlCmd)
}

// runCrawl drives one frontier level. A rate-limit halt is reported as a
// warning, not a command failure: partial progress is durable and the
// operator simply retries later.
func runCrawl(cmd *cobra.Command, level model.Level, urls []string, delay time.Duration) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	driver := crawl.NewDriver(st, newFetcher(), crawl.Options{
		Level: level,
		Delay: delay,
		Force: crawlForce,
	})

	zap.L().Info("starting crawl",
		zap.String("level", string(level)),
		zap.Int("frontier", len(urls)),
		zap.Duration("delay", delay),
	)

	report, err := driver.Run(ctx, urls)
	if err != nil && !eris.Is(err, crawl.ErrRateLimited) {
		return err
	}

	log := zap.L().With(
		zap.Int("fetched", report.Fetched),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors),
	)
	if report.Halted {
		log.Warn("crawl halted by upstream rate limit; wait a while and run again")
		return nil
	}
	log.Info("crawl complete")
	return nil
}
