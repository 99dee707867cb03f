package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestInitConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())

	InitConfig()

	if got := viper.GetString("scraper.base_url"); got != "http://kob.this.is/klingogbang/" {
		t.Fatalf("unexpected base_url default: %q", got)
	}
	if got := viper.GetDuration("scraper.delay"); got.Milliseconds() != 1500 {
		t.Fatalf("unexpected delay default: %v", got)
	}
	if got := viper.GetInt("scraper.start_year"); got != 2003 {
		t.Fatalf("unexpected start_year default: %d", got)
	}
	if got := viper.GetInt("scraper.end_year"); got != 2025 {
		t.Fatalf("unexpected end_year default: %d", got)
	}
	if !viper.GetBool("scraper.english") {
		t.Fatalf("expected english default true")
	}
	if got := viper.GetString("images.dir"); got != "images" {
		t.Fatalf("unexpected images.dir default: %q", got)
	}
}

func TestInitConfigReadsFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	t.Chdir(dir)

	configYAML := `
scraper:
  base_url: http://mirror.test/klingogbang/
  start_year: 2010
database:
  dsn: postgres://db.test:5432/archive
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	InitConfig()

	if got := viper.GetString("scraper.base_url"); got != "http://mirror.test/klingogbang/" {
		t.Fatalf("expected file override for base_url, got %q", got)
	}
	if got := viper.GetInt("scraper.start_year"); got != 2010 {
		t.Fatalf("expected file override for start_year, got %d", got)
	}
	if got := viper.GetString("database.dsn"); got != "postgres://db.test:5432/archive" {
		t.Fatalf("expected file override for dsn, got %q", got)
	}
	// Untouched keys keep their defaults.
	if got := viper.GetInt("scraper.end_year"); got != 2025 {
		t.Fatalf("expected end_year default to survive, got %d", got)
	}
}

func TestInitConfigEnvOverride(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("KOBARCHIVE_DATABASE_DSN", "postgres://env.test:5432/archive")

	InitConfig()

	if got := viper.GetString("database.dsn"); got != "postgres://env.test:5432/archive" {
		t.Fatalf("expected env override for dsn, got %q", got)
	}
}
