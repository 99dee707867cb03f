package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/klingogbang/archive/internal/images"
)

// newImagesCmd creates the 'images' subcommand, which downloads the bytes
// of every pending thumbnail image.
func newImagesCmd() *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "images",
		Short: "Download pending exhibition images",
		Long: `Fetches every image the store knows about but has no local bytes for,
placing files under <images-dir>/<year>/<exhibition-id>/. Files already on
disk from an interrupted run are recorded without re-fetching. Failed
downloads stay pending for the next invocation.`,

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

			var stats images.Stats
			if year != 0 {
				stats, err = d.DownloadYear(cmd.Context(), year)
			} else {
				stats, err = d.DownloadAll(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("download images: %w", err)
			}

			cmd.Printf("Image download complete: downloaded=%d skipped=%d failed=%d\n",
				stats.Downloaded, stats.Skipped, stats.Failed)
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "download for a single year")
	return cmd
}
