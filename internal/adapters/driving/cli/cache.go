package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var cacheMaxAge time.Duration

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the embedding cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete cached embeddings older than --max-age",
	Long: `Deletes cached embeddings older than --max-age, which defaults to the
configured cache max age. A max age of 0 clears the whole cache.`,
	Args: cobra.NoArgs,
	RunE: runCachePrune,
}

func init() {
	cachePruneCmd.Flags().DurationVar(&cacheMaxAge, "max-age", 0, "maximum entry age (default from config)")
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCachePrune(cmd *cobra.Command, _ []string) error {
	svc, err := services(cmd)
	if err != nil {
		return err
	}
	if svc.Cache == nil {
		return errors.New("embedding cache is disabled")
	}

	maxAge := svc.Settings.Cache.MaxAge
	if cmd.Flags().Changed("max-age") {
		maxAge = cacheMaxAge
	}

	n, err := svc.Cache.Clear(cmd.Context(), maxAge)
	if err != nil {
		return fmt.Errorf("pruning cache: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached embeddings\n", n)
	return nil
}
