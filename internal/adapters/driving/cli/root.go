// Package cli provides the ragengine command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
	"github.com/custodia-labs/ragengine/internal/core/ports/driving"
	"github.com/custodia-labs/ragengine/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=1.2.3".
var version = "dev"

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// MetricsServer exposes engine metrics over HTTP.
type MetricsServer interface {
	Serve(ctx context.Context, addr string) error
}

// Services holds the engine components the commands drive.
type Services struct {
	// Retrieval is required.
	Retrieval driving.RetrievalService

	// Catalog stores corpora, documents and notes.
	Catalog driven.SourceCatalog

	// Cache is the embedding cache, nil when caching is disabled.
	Cache driven.EmbeddingCache

	// Maintenance runs scheduled cache and task pruning.
	Maintenance driving.MaintenanceService

	// Metrics is served by the serve command when Settings.MetricsAddr is set.
	Metrics MetricsServer

	// Settings are the loaded engine settings.
	Settings domain.Settings

	// Close releases everything above.
	Close func(ctx context.Context) error
}

// SetupFunc builds the services from the config file at configPath.
// An empty path selects the default location.
type SetupFunc func(ctx context.Context, configPath string) (*Services, error)

// SettingsFunc opens the settings stored in the config file at configPath
// without starting the engine.
type SettingsFunc func(configPath string) (driving.SettingsService, error)

var (
	configPath string
	verbose    bool

	setup        SetupFunc
	openSettings SettingsFunc
	engine       *Services
)

var errNotConfigured = errors.New("engine not configured")

var rootCmd = &cobra.Command{
	Use:   "ragengine",
	Short: "Retrieval engine for notes and documents",
	Long: `ragengine chunks notes and documents, embeds the chunks, indexes them
for similarity search and assembles retrieved chunks into context for a
language model.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file, or \"none\" to keep everything in memory (default ~/.ragengine/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command. Services are built on first use by
// setupFn and closed before returning; settingsFn serves the config commands.
func Execute(ctx context.Context, setupFn SetupFunc, settingsFn SettingsFunc) error {
	setup = setupFn
	openSettings = settingsFn
	defer closeServices(ctx)
	return rootCmd.ExecuteContext(ctx)
}

// services returns the engine services, building them on first use.
func services(cmd *cobra.Command) (*Services, error) {
	if engine != nil {
		return engine, nil
	}
	if setup == nil {
		return nil, errNotConfigured
	}

	svc, err := setup(cmd.Context(), configPath)
	if err != nil {
		return nil, fmt.Errorf("starting engine: %w", err)
	}
	if svc == nil || svc.Retrieval == nil {
		return nil, errNotConfigured
	}
	engine = svc
	return engine, nil
}

func closeServices(ctx context.Context) {
	if engine == nil {
		return
	}
	if engine.Close != nil {
		if err := engine.Close(ctx); err != nil {
			logger.Error("closing engine: %v", err)
		}
	}
	engine = nil
}

// requireCatalog returns the catalog or an error naming the command.
func requireCatalog(svc *Services) (driven.SourceCatalog, error) {
	if svc.Catalog == nil {
		return nil, errors.New("source catalog not configured")
	}
	return svc.Catalog, nil
}
