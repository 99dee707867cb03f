// Package config initializes the application's configuration.
// It uses the Viper library to read settings from a config file, environment
// variables, and command-line flags, providing a unified configuration system.
package config

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/klingogbang/archive/internal/logging"
)

// InitConfig initializes the application's configuration using Viper.
// It sets up default values, defines configuration search paths, and enables
// reading from environment variables. Designed to be called once at startup.
func InitConfig() {
	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/kobarchive/")
	viper.AddConfigPath("$HOME/.kobarchive")

	// The archive lives on a legacy PHP site; everything below is tuned to it.
	viper.SetDefault("scraper.base_url", "http://kob.this.is/klingogbang/")
	viper.SetDefault("scraper.user_agent", "KlingBangArchiveScraper/1.0 (Historical archive project)")
	viper.SetDefault("scraper.delay", "1.5s")
	viper.SetDefault("scraper.start_year", 2003)
	viper.SetDefault("scraper.end_year", 2025)
	viper.SetDefault("scraper.english", true)

	viper.SetDefault("http.timeout", "30s")

	viper.SetDefault("database.dsn", "postgres://localhost:5432/kob_archive?sslmode=disable")
	viper.SetDefault("images.dir", "images")

	viper.SetDefault("log.development", false)

	viper.SetEnvPrefix("KOBARCHIVE") // e.g. KOBARCHIVE_DATABASE_DSN
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logging.L.Debug("Config file not found; using defaults and environment variables.")
		} else {
			logging.L.Error("Error reading config file", zap.Error(err))
		}
	} else {
		logging.L.Info("Using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}
