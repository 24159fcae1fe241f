package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

var (
	contextCorpora []string
	contextNotes   []string
	contextLimit   int
	contextJSON    bool
)

var contextCmd = &cobra.Command{
	Use:   "context [query]",
	Short: "Assemble retrieval context for a query",
	Long: `Retrieves the chunks most relevant to the query and prints them as a
context block ready to hand to a language model, followed by attributions.

With no --corpus or --note flags every indexed source is searched.`,
	Args: cobra.ExactArgs(1),
	RunE: runContext,
}

func init() {
	contextCmd.Flags().StringSliceVar(&contextCorpora, "corpus", nil, "active corpus ids")
	contextCmd.Flags().StringSliceVar(&contextNotes, "note", nil, "active note ids")
	contextCmd.Flags().IntVarP(&contextLimit, "limit", "n", 5, "maximum number of chunks")
	contextCmd.Flags().BoolVar(&contextJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) error {
	svc, err := services(cmd)
	if err != nil {
		return err
	}

	var active *domain.ActiveSources
	if len(contextCorpora) > 0 || len(contextNotes) > 0 {
		active = &domain.ActiveSources{CorpusIDs: contextCorpora, NoteIDs: contextNotes}
	}

	text, sources := svc.Retrieval.GetContextForQuery(cmd.Context(), args[0], active, contextLimit)
	w := cmd.OutOrStdout()

	if contextJSON {
		if sources == nil {
			sources = []domain.ContextSource{}
		}
		data, err := json.MarshalIndent(struct {
			Context string                 `json:"context"`
			Sources []domain.ContextSource `json:"sources"`
		}{text, sources}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal context: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	if text == "" {
		fmt.Fprintln(w, "No relevant context found.")
		return nil
	}
	fmt.Fprintln(w, text)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for _, s := range sources {
		fmt.Fprintf(w, "  %s/%s #%d (%.3f)\n", s.SourceType, s.SourceID, s.ChunkIndex, s.Score)
	}
	return nil
}
