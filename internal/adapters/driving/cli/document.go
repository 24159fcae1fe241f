package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

var documentProcess bool

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage corpus documents",
}

var documentAddCmd = &cobra.Command{
	Use:   "add [corpus-id] [file]",
	Short: "Register a document file in a corpus",
	Long: `Registers a file in a corpus. The file is read from disk whenever the
document is processed. Use --process to index it immediately.`,
	Args: cobra.ExactArgs(2),
	RunE: runDocumentAdd,
}

func init() {
	documentAddCmd.Flags().BoolVar(&documentProcess, "process", false, "process the document after adding it")
	documentCmd.AddCommand(documentAddCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentAdd(cmd *cobra.Command, args []string) error {
	svc, err := services(cmd)
	if err != nil {
		return err
	}
	catalog, err := requireCatalog(svc)
	if err != nil {
		return err
	}

	path, err := filepath.Abs(args[1])
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[1], err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, args[1])
	}

	doc, err := catalog.AddDocument(cmd.Context(), domain.DocumentRecord{
		CorpusID: args[0],
		Filename: filepath.Base(path),
		FileType: strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		FilePath: path,
	})
	if err != nil {
		return fmt.Errorf("adding document: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added document %s (%s) to corpus %s\n", doc.ID, doc.Filename, doc.CorpusID)

	if !documentProcess {
		return nil
	}
	ref := domain.SourceRef{Type: domain.SourceTypeDocument, ID: doc.ID}
	n, err := svc.Retrieval.ProcessStoredSource(cmd.Context(), ref)
	if err != nil {
		return fmt.Errorf("processing %s: %w", ref, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks for %s\n", n, ref)
	return nil
}
