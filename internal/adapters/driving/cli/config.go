package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driving"
)

var (
	configModel  string
	configAPIKey string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change engine settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configEmbeddingCmd = &cobra.Command{
	Use:   "embedding [provider]",
	Short: "Select the embedding provider (ollama or openai)",
	Long: `Stores the embedding provider and model. Changing the model changes the
vector dimension, so sources must be processed again afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigEmbedding,
}

var configChunkingCmd = &cobra.Command{
	Use:   "chunking [strategy]",
	Short: "Select the chunking strategy",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigChunking,
}

func init() {
	configEmbeddingCmd.Flags().StringVar(&configModel, "model", "", "embedding model (default depends on provider)")
	configEmbeddingCmd.Flags().StringVar(&configAPIKey, "api-key", "", "provider API key")

	configCmd.AddCommand(configShowCmd, configEmbeddingCmd, configChunkingCmd)
	rootCmd.AddCommand(configCmd)
}

func settingsService() (driving.SettingsService, error) {
	if openSettings == nil {
		return nil, errNotConfigured
	}
	return openSettings(configPath)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	svc, err := settingsService()
	if err != nil {
		return err
	}
	settings, err := svc.Get()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "chunking.strategy       %s\n", settings.Chunking.Strategy)
	keys := make([]string, 0, len(settings.Chunking.Options))
	for k := range settings.Chunking.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "chunking.%-15s %v\n", k, settings.Chunking.Options[k])
	}
	fmt.Fprintf(w, "embedding.provider      %s\n", settings.Embedding.Provider)
	fmt.Fprintf(w, "embedding.model         %s\n", settings.Embedding.Model)
	fmt.Fprintf(w, "embedding.api_key       %s\n", maskKey(settings.Embedding.APIKey))
	fmt.Fprintf(w, "cache.backend           %s\n", settings.Cache.Backend)
	fmt.Fprintf(w, "cache.max_age           %s\n", settings.Cache.MaxAge)
	fmt.Fprintf(w, "vectorstore.backend     %s\n", settings.VectorStore.Backend)
	fmt.Fprintf(w, "vectorstore.location    %s\n", settings.VectorStore.Location)
	fmt.Fprintf(w, "vectorstore.collection  %s\n", settings.VectorStore.Collection)
	fmt.Fprintf(w, "queue.workers           %d\n", settings.Queue.Workers)
	fmt.Fprintf(w, "context.max_tokens      %d\n", settings.Context.MaxTokens)
	fmt.Fprintf(w, "catalog.path            %s\n", settings.CatalogPath)
	return nil
}

func runConfigEmbedding(cmd *cobra.Command, args []string) error {
	svc, err := settingsService()
	if err != nil {
		return err
	}
	provider := domain.AIProvider(strings.ToLower(args[0]))
	if err := svc.SetEmbeddingProvider(provider, configModel, configAPIKey); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Embedding provider set to %s\n", provider)
	return nil
}

func runConfigChunking(cmd *cobra.Command, args []string) error {
	svc, err := settingsService()
	if err != nil {
		return err
	}
	if err := svc.SetChunkingStrategy(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Chunking strategy set to %s\n", args[0])
	return nil
}

// maskKey hides all but the last four characters of a secret.
func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
