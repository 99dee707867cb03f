package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/klingogbang/archive/internal/scraper"
)

// newScrapeCmd creates the 'scrape' subcommand, which runs the exhibition
// metadata crawl for one year or a range of years.
func newScrapeCmd() *cobra.Command {
	var (
		year      int
		startYear int
		endYear   int
		noEnglish bool
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Crawl exhibition metadata into the store",
		Long: `Walks the archive's year listings and records every exhibition not yet
in the store: titles, dates, descriptions, artist links, and image
references (URLs only; bytes are fetched by 'images' and 'highres').
Exhibitions already recorded are skipped, never updated.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if err := appInstance.GetStore().Init(ctx); err != nil {
				return fmt.Errorf("init store: %w", err)
			}

			s := scraper.New(
				appInstance.GetStore(),
				appInstance.GetClient(),
				viper.GetString("scraper.base_url"),
				!noEnglish,
				appInstance.GetLogger(),
			)

			if startYear == 0 {
				startYear = viper.GetInt("scraper.start_year")
			}
			if endYear == 0 {
				endYear = viper.GetInt("scraper.end_year")
			}

			var stats scraper.Stats
			if year != 0 {
				stats, err = s.ScrapeYear(ctx, year)
			} else {
				stats, err = s.ScrapeRange(ctx, startYear, endYear)
			}
			if err != nil {
				return fmt.Errorf("scrape: %w", err)
			}

			cmd.Printf("Scraping complete: total=%d success=%d skipped=%d failed=%d\n",
				stats.Total, stats.Success, stats.Skipped, stats.Failed)
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "scrape a single year")
	cmd.Flags().IntVar(&startYear, "start-year", 0, "first year to scrape (default from config)")
	cmd.Flags().IntVar(&endYear, "end-year", 0, "last year to scrape (default from config)")
	cmd.Flags().BoolVar(&noEnglish, "no-english", false, "skip the English page variants")
	return cmd
}
