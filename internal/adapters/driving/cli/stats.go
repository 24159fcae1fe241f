package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	svc, err := services(cmd)
	if err != nil {
		return err
	}

	stats := svc.Retrieval.Statistics(cmd.Context())
	w := cmd.OutOrStdout()

	if statsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal statistics: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	fmt.Fprintf(w, "Chunks:           %d\n", stats.ChunkCount)
	fmt.Fprintf(w, "Chunker:          %s\n", stats.ChunkerStrategy)
	fmt.Fprintf(w, "Embedding model:  %s (%d dims)\n", stats.EmbeddingModel, stats.EmbeddingDimension)
	fmt.Fprintf(w, "Queue length:     %d\n", stats.ProcessingQueueLength)
	if stats.Catalog != nil {
		fmt.Fprintf(w, "Corpora:          %d\n", stats.Catalog.Corpora)
		fmt.Fprintf(w, "Documents:        %d\n", stats.Catalog.Documents)
		fmt.Fprintf(w, "Notes:            %d\n", stats.Catalog.Notes)
	}
	return nil
}
