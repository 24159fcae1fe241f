package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

var corpusDescription string

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage document corpora",
}

var corpusCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a corpus",
	Args:  cobra.ExactArgs(1),
	RunE:  runCorpusCreate,
}

func init() {
	corpusCreateCmd.Flags().StringVarP(&corpusDescription, "description", "d", "", "corpus description")
	corpusCmd.AddCommand(corpusCreateCmd)
	rootCmd.AddCommand(corpusCmd)
}

func runCorpusCreate(cmd *cobra.Command, args []string) error {
	svc, err := services(cmd)
	if err != nil {
		return err
	}
	catalog, err := requireCatalog(svc)
	if err != nil {
		return err
	}

	corpus, err := catalog.CreateCorpus(cmd.Context(), domain.Corpus{
		Name:        args[0],
		Description: corpusDescription,
	})
	if err != nil {
		return fmt.Errorf("creating corpus: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created corpus %s (%s)\n", corpus.ID, corpus.Name)
	return nil
}
