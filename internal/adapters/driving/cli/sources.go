package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var sourcesJSON bool

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List corpora and notes",
	Args:  cobra.NoArgs,
	RunE:  runSources,
}

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, _ []string) error {
	svc, err := services(cmd)
	if err != nil {
		return err
	}

	available, err := svc.Retrieval.AvailableSources(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing sources: %w", err)
	}
	w := cmd.OutOrStdout()

	if sourcesJSON {
		data, err := json.MarshalIndent(available, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal sources: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	if len(available.Corpora) == 0 && len(available.Notes) == 0 {
		fmt.Fprintln(w, "No sources.")
		return nil
	}

	if len(available.Corpora) > 0 {
		fmt.Fprintln(w, "Corpora:")
		for _, c := range available.Corpora {
			fmt.Fprintf(w, "  %s  %s (%d documents)\n", c.ID, c.Name, c.DocumentCount)
		}
	}
	if len(available.Notes) > 0 {
		fmt.Fprintln(w, "Notes:")
		for _, n := range available.Notes {
			fmt.Fprintf(w, "  %s  %s\n", n.ID, n.Title)
		}
	}
	return nil
}
