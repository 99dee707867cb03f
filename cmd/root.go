// Package cmd defines the CLI commands for the kobarchive executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/klingogbang/archive/internal/app"
	"github.com/klingogbang/archive/internal/config"
	"github.com/klingogbang/archive/internal/fetch"
	"github.com/klingogbang/archive/internal/logging"
	"github.com/klingogbang/archive/internal/store"
)

var cfgFile string

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application surface commands use. An interface so tests
// can inject a mock container.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetStore() *store.Store
	GetClient() *fetch.Client
}

// newApp is the application factory, replaceable in tests.
var newApp = func(ctx context.Context) (App, error) {
	return app.NewApp(ctx)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kobarchive",
		Short: "Archive scraper for the Kling & Bang gallery's historical exhibitions.",
		Long: `kobarchive collects the Kling & Bang gallery's exhibition archive from
its legacy website into a structured store: exhibition metadata first, then
thumbnail and full-resolution images in independent resumable passes, and
finally a denormalized JSON export for reuse.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cobra.OnInitialize(func() {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		}
		config.InitConfig()
	})

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.kobarchive/config.yaml)")
	cmd.PersistentFlags().String("dsn", "postgres://localhost:5432/kob_archive?sslmode=disable", "store location (Postgres DSN)")
	cmd.PersistentFlags().String("images-dir", "images", "root directory for downloaded images")
	cmd.PersistentFlags().Duration("delay", 1500*time.Millisecond, "fixed delay before each HTTP request")
	bindFlag(cmd, "database.dsn", "dsn")
	bindFlag(cmd, "images.dir", "images-dir")
	bindFlag(cmd, "scraper.delay", "delay")

	cmd.AddCommand(
		newInitCmd(),
		newScrapeCmd(),
		newImagesCmd(),
		newHighresCmd(),
		newExportCmd(),
		newStatsCmd(),
		newVerifyCmd(),
		newCleanupCmd(),
		newRefreshTextsCmd(),
	)
	return cmd
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if f := cmd.PersistentFlags().Lookup(flag); f != nil {
		_ = viper.BindPFlag(key, f)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	logging.InitLogger(false)

	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}
