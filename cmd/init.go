package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/klingogbang/archive/internal/scraper"
)

// newInitCmd creates the 'init' subcommand, which creates the store schema.
// Safe to run against an existing store.
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the store schema",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.GetStore().Init(cmd.Context()); err != nil {
				return fmt.Errorf("init store: %w", err)
			}
			cmd.Println("Store initialized.")
			return nil
		},
	}
}

// newRefreshTextsCmd creates the 'refresh-texts' subcommand: a repair pass
// that re-fetches descriptions for exhibitions that have none. The normal
// crawl never updates existing rows; this command is the explicit exception.
func newRefreshTextsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-texts",
		Short: "Re-fetch descriptions for exhibitions missing text",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			s := scraper.New(
				appInstance.GetStore(),
				appInstance.GetClient(),
				viper.GetString("scraper.base_url"),
				true,
				appInstance.GetLogger(),
			)
			fixed, err := s.RefreshTexts(cmd.Context())
			if err != nil {
				return fmt.Errorf("refresh texts: %w", err)
			}
			cmd.Printf("Text refresh complete: fixed=%d\n", fixed)
			return nil
		},
	}
}
