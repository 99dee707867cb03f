// Package app initializes and holds long-lived application services.
package app

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/klingogbang/archive/internal/fetch"
	"github.com/klingogbang/archive/internal/logging"
	"github.com/klingogbang/archive/internal/store"
)

// App holds the shared services: logger, archive store and HTTP client.
// It is built once per invocation and injected into commands.
type App struct {
	logger *zap.Logger
	store  *store.Store
	client *fetch.Client
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetStore returns the archive store.
func (a *App) GetStore() *store.Store {
	return a.store
}

// GetClient returns the shared fetch client.
func (a *App) GetClient() *fetch.Client {
	return a.client
}

// init builds the services from the loaded configuration. It fails fast
// when the store is unreachable.
func (a *App) init(ctx context.Context) error {
	logger := logging.L

	st, err := store.New(ctx, viper.GetString("database.dsn"), logger)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}

	client := fetch.New(fetch.Config{
		UserAgent: viper.GetString("scraper.user_agent"),
		Delay:     viper.GetDuration("scraper.delay"),
		Timeout:   viper.GetDuration("http.timeout"),
	}, logger)
	// Every fetch attempt lands in the store's audit log.
	client.SetRecorder(st)

	a.logger = logger
	a.store = st
	a.client = client
	return nil
}

// NewApp creates and initializes the App container.
func NewApp(ctx context.Context) (*App, error) {
	a := &App{}
	if err := a.init(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Close shuts down services in reverse initialization order.
func (a *App) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
