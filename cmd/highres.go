package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/klingogbang/archive/internal/highres"
)

// newHighresCmd creates the 'highres' subcommand, which discovers and
// fetches full-resolution images.
func newHighresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "highres",
		Short: "Fetch full-resolution images via the archive's view pages",
		Long: `Re-parses each exhibition page for full-resolution view links, follows
them to the image bytes, and reconciles results against existing image rows
by filename, so thumbnail and full-resolution URLs converge on one record.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			s := highres.New(
				appInstance.GetStore(),
				appInstance.GetClient(),
				viper.GetString("scraper.base_url"),
				viper.GetString("images.dir"),
				appInstance.GetLogger(),
			)
			stats, err := s.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("highres: %w", err)
			}

			cmd.Printf("High-res scraping complete: total=%d saved=%d failed=%d\n",
				stats.Total, stats.Saved, stats.Failed)
			return nil
		},
	}
}

// newCleanupCmd creates the 'cleanup' subcommand, which purges the site's
// decorative header graphic wherever it was captured by mistake.
func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove decorative header images from the store and disk",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			s := highres.New(
				appInstance.GetStore(),
				appInstance.GetClient(),
				viper.GetString("scraper.base_url"),
				viper.GetString("images.dir"),
				appInstance.GetLogger(),
			)
			stats, err := s.CleanupHead(cmd.Context())
			if err != nil {
				return fmt.Errorf("cleanup: %w", err)
			}

			cmd.Printf("Cleanup complete: rows=%d files=%d\n",
				stats.RowsDeleted, stats.FilesDeleted)
			return nil
		},
	}
}
