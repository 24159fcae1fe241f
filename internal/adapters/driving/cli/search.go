package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/logger"
)

// snippetLength caps the chunk text shown per result.
const snippetLength = 160

var (
	searchLimit     int
	searchJSON      bool
	searchType      string
	searchSourceIDs []string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed chunks",
	Long: `Embeds the query and returns the most similar indexed chunks.
Use --type and --source-id to restrict the search to particular sources.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringVar(&searchType, "type", "", "restrict to a source type (note or document)")
	searchCmd.Flags().StringSliceVar(&searchSourceIDs, "source-id", nil, "restrict to source ids")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	svc, err := services(cmd)
	if err != nil {
		return err
	}

	filter := domain.SearchFilter{SourceIDs: searchSourceIDs}
	if searchType != "" {
		filter.SourceType, err = domain.ParseSourceType(searchType)
		if err != nil {
			return err
		}
	}

	outcome, _, err := svc.Retrieval.SearchOutcome(cmd.Context(), args[0], searchLimit, filter)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if outcome.Degraded {
		logger.For("cli").Warn("search degraded: %v", outcome.Err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, outcome)
	}
	outputSearchTable(cmd, outcome.Results)
	return nil
}

type searchResultJSON struct {
	SourceType domain.SourceType `json:"source_type"`
	SourceID   string            `json:"source_id"`
	ChunkIndex int               `json:"chunk_index"`
	Score      float64           `json:"score"`
	Text       string            `json:"text"`
}

func outputSearchJSON(cmd *cobra.Command, outcome domain.SearchOutcome) error {
	out := struct {
		Results  []searchResultJSON `json:"results"`
		Degraded bool               `json:"degraded,omitempty"`
	}{Results: make([]searchResultJSON, 0, len(outcome.Results)), Degraded: outcome.Degraded}

	for i := range outcome.Results {
		r := &outcome.Results[i]
		out.Results = append(out.Results, searchResultJSON{
			SourceType: r.Chunk.SourceType,
			SourceID:   r.Chunk.SourceID,
			ChunkIndex: r.Chunk.Index,
			Score:      r.Score,
			Text:       r.Chunk.Text,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) {
	w := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	for i := range results {
		c := &results[i].Chunk
		fmt.Fprintf(w, "[%d] %s/%s #%d (%.3f)\n", i+1, c.SourceType, c.SourceID, c.Index, results[i].Score)
		fmt.Fprintf(w, "    %s\n", snippet(c.Text))
	}
}

// snippet flattens text onto one line and truncates it.
func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > snippetLength {
		return string(r[:snippetLength]) + "..."
	}
	return text
}
