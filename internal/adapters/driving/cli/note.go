package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

var (
	noteTitle   string
	noteID      string
	noteProcess bool
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add [file|-]",
	Short: "Create or replace a note",
	Long: `Saves a note with content read from a file, or from stdin when the
argument is "-" or omitted. Pass --id to replace an existing note.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNoteAdd,
}

func init() {
	noteAddCmd.Flags().StringVarP(&noteTitle, "title", "t", "", "note title (defaults to the file name)")
	noteAddCmd.Flags().StringVar(&noteID, "id", "", "id of a note to replace")
	noteAddCmd.Flags().BoolVar(&noteProcess, "process", false, "process the note after saving it")
	noteCmd.AddCommand(noteAddCmd)
	rootCmd.AddCommand(noteCmd)
}

func runNoteAdd(cmd *cobra.Command, args []string) error {
	svc, err := services(cmd)
	if err != nil {
		return err
	}
	catalog, err := requireCatalog(svc)
	if err != nil {
		return err
	}

	content, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	title := noteTitle
	if title == "" && len(args) == 1 && args[0] != "-" {
		title = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}
	if title == "" {
		return fmt.Errorf("%w: --title is required when reading stdin", domain.ErrInvalidInput)
	}

	note, err := catalog.SaveNote(cmd.Context(), domain.Note{ID: noteID, Title: title, Content: content})
	if err != nil {
		return fmt.Errorf("saving note: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved note %s (%s)\n", note.ID, note.Title)

	if !noteProcess {
		return nil
	}
	ref := domain.SourceRef{Type: domain.SourceTypeNote, ID: note.ID}
	n, err := svc.Retrieval.ProcessStoredSource(cmd.Context(), ref)
	if err != nil {
		return fmt.Errorf("processing %s: %w", ref, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks for %s\n", n, ref)
	return nil
}
