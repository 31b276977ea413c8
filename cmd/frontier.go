package main

import (
	"net/url"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dcatlas/dcharvest/internal/crawl"
	"github.com/dcatlas/dcharvest/internal/fetch"
	"github.com/dcatlas/dcharvest/internal/frontier"
	"github.com/dcatlas/dcharvest/internal/model"
)

var frontierCmd = &cobra.Command{
	Use:   "frontier",
	Short: "Extract child-entity links from stored pages",
}

var frontierStatesCmd = &cobra.Command{
	Use:   "states",
	Short: "Extract state links from the stored index page",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		page, err := st.GetPage(ctx, indexSlug())
		if err != nil {
			return err
		}
		if page == nil {
			return eris.New("frontier: no stored index page, run `dcharvest seed` first")
		}
		if fetch.MarkerCheck(cfg.Source.RateLimitMarker)([]byte(page.Body)) {
			return eris.New("frontier: stored index page is rate limited, re-run `dcharvest seed`")
		}

		base, err := url.Parse(cfg.Source.BaseURL)
		if err != nil {
			return eris.Wrap(err, "frontier: parse base url")
		}

		links, err := frontier.ChildLinks([]byte(page.Body), base, cfg.Source.IndexPath)
		if err != nil {
			return err
		}

		paths := make([]string, 0, len(links))
		for _, link := range links {
			p, err := crawl.LeafPath(link)
			if err != nil {
				continue
			}
			paths = append(paths, p)
		}
		if err := st.AddChildren(ctx, indexSlug(), model.LevelState, paths); err != nil {
			return err
		}

		out := stateFrontierPath()
		if err := frontier.WriteList(out, links); err != nil {
			return err
		}

		zap.L().Info("state frontier written",
			zap.Int("states", len(links)),
			zap.String("file", out),
		)
		return nil
	},
}

var frontierCitiesCmd = &cobra.Command{
	Use:   "cities",
	Short: "Extract city links from every stored state page",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		states, err := st.ListChildren(ctx, indexSlug())
		if err != nil {
			return err
		}
		if len(states) == 0 {
			return eris.New("frontier: no known states, run `dcharvest frontier states` first")
		}

		base, err := url.Parse(cfg.Source.BaseURL)
		if err != nil {
			return eris.Wrap(err, "frontier: parse base url")
		}
		isRateLimited := fetch.MarkerCheck(cfg.Source.RateLimitMarker)

		log := zap.L()
		totalCities := 0
		missing := 0
		for _, statePath := range states {
			page, err := st.GetPage(ctx, statePath)
			if err != nil {
				return err
			}
			if page == nil || page.Status != model.StatusSuccess || isRateLimited([]byte(page.Body)) {
				log.Debug("skipping state without a valid stored page", zap.String("state", statePath))
				missing++
				continue
			}

			parentPath := cfg.Source.IndexPath + statePath + "/"
			links, err := frontier.ChildLinks([]byte(page.Body), base, parentPath)
			if err != nil {
				log.Warn("city link extraction failed", zap.String("state", statePath), zap.Error(err))
				continue
			}

			paths := make([]string, 0, len(links))
			for _, link := range links {
				p, err := crawl.LeafPath(link)
				if err != nil {
					continue
				}
				paths = append(paths, p)
			}
			if err := st.AddChildren(ctx, statePath, model.LevelCity, paths); err != nil {
				return err
			}

			out := cityFrontierPath(statePath)
			if err := frontier.WriteList(out, links); err != nil {
				return err
			}

			log.Info("city frontier written",
				zap.String("state", statePath),
				zap.Int("cities", len(links)),
			)
			totalCities += len(links)
		}

		log.Info("city frontier complete",
			zap.Int("states", len(states)),
			zap.Int("states_without_pages", missing),
			zap.Int("cities", totalCities),
		)
		return nil
	},
}

func init() {
	frontierCmd.AddCommand(frontierStatesCmd)
	frontierCmd.AddCommand(frontierCitiesCmd)
	rootCmd.AddCommand(frontierCmd)
}

func stateFrontierPath() string {
	return filepath.Join(cfg.Crawl.FrontierDir, "state_links.txt")
}

func cityFrontierPath(statePath string) string {
	return filepath.Join(cfg.Crawl.FrontierDir, statePath, "city_links.txt")
}
