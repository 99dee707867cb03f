package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/klingogbang/archive/internal/images"
)

// newStatsCmd creates the 'stats' subcommand, which prints on-demand
// aggregate counts over the store.
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show archive statistics",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			stats, err := appInstance.GetStore().Statistics(cmd.Context())
			if err != nil {
				return fmt.Errorf("statistics: %w", err)
			}

			cmd.Println("Archive statistics")
			cmd.Println("========================================")
			cmd.Printf("Total exhibitions:   %d\n", stats.Exhibitions)
			cmd.Printf("Total artists:       %d\n", stats.Artists)
			cmd.Printf("Total images:        %d\n", stats.Images)
			cmd.Printf("Downloaded images:   %d\n", stats.DownloadedImages)
			cmd.Printf("Failed scrapes:      %d\n", stats.FailedScrapes)
			cmd.Println()
			cmd.Println("Exhibitions by year:")
			for _, yc := range stats.ByYear {
				cmd.Printf("  %d: %d\n", yc.Year, yc.Count)
			}
			return nil
		},
	}
}

// newVerifyCmd creates the 'verify' subcommand, which audits recorded image
// files against disk and marks vanished ones pending again.
func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify downloaded images exist on disk",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			d := images.New(
				appInstance.GetStore(),
				appInstance.GetClient(),
				viper.GetString("images.dir"),
				appInstance.GetLogger(),
			)
			stats, err := d.Verify(cmd.Context())
			if err != nil {
				return fmt.Errorf("verify: %w", err)
			}

			cmd.Printf("Image verification: valid=%d missing=%d\n", stats.Valid, stats.Missing)
			return nil
		},
	}
}
