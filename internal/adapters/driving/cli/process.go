package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driving"
)

// pollInterval is how often --async polls the task status.
var pollInterval = 200 * time.Millisecond

var (
	processAsync    bool
	processTextType string
	processTextID   string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Chunk, embed and index sources",
	Long: `Process a stored note or document, or raw text, replacing anything
previously indexed for the same source.`,
}

var processNoteCmd = &cobra.Command{
	Use:   "note [note-id]",
	Short: "Process a stored note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcessStored(cmd, domain.SourceTypeNote, args[0])
	},
}

var processDocumentCmd = &cobra.Command{
	Use:   "document [document-id]",
	Short: "Process a stored document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcessStored(cmd, domain.SourceTypeDocument, args[0])
	},
}

var processTextCmd = &cobra.Command{
	Use:   "text [file|-]",
	Short: "Process raw text for a source",
	Long: `Chunk, embed and index text read from a file, or from stdin when the
argument is "-" or omitted. The source catalog is not touched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProcessText,
}

func init() {
	for _, c := range []*cobra.Command{processNoteCmd, processDocumentCmd} {
		c.Flags().BoolVar(&processAsync, "async", false, "queue the source and poll until processing ends")
		processCmd.AddCommand(c)
	}

	processTextCmd.Flags().StringVar(&processTextType, "type", string(domain.SourceTypeNote), "source type (note or document)")
	processTextCmd.Flags().StringVar(&processTextID, "id", "", "source id")
	_ = processTextCmd.MarkFlagRequired("id")
	processCmd.AddCommand(processTextCmd)

	rootCmd.AddCommand(processCmd)
}

func runProcessStored(cmd *cobra.Command, sourceType domain.SourceType, id string) error {
	svc, err := services(cmd)
	if err != nil {
		return err
	}
	ref, err := domain.NewSourceRef(sourceType, id)
	if err != nil {
		return err
	}

	if processAsync {
		return processQueued(cmd, svc.Retrieval.Queue(), ref)
	}

	n, err := svc.Retrieval.ProcessStoredSource(cmd.Context(), ref)
	if err != nil {
		return fmt.Errorf("processing %s: %w", ref, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks for %s\n", n, ref)
	return nil
}

// processQueued enqueues ref and waits for its task to finish.
func processQueued(cmd *cobra.Command, queue driving.ProcessingQueue, ref domain.SourceRef) error {
	taskID, err := queue.AddTask(ref)
	if err != nil {
		return fmt.Errorf("queueing %s: %w", ref, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as task %s\n", ref, taskID)

	task, err := waitForTask(cmd.Context(), queue, taskID)
	if err != nil {
		return err
	}
	if task.Status == domain.TaskError {
		return fmt.Errorf("task %s failed: %s", taskID, task.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Task %s %s in %s\n", taskID, task.Status, task.Duration().Round(time.Millisecond))
	return nil
}

// waitForTask polls until the task reaches a terminal state.
func waitForTask(ctx context.Context, queue driving.ProcessingQueue, taskID string) (domain.ProcessingTask, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		task, ok := queue.GetTask(taskID)
		if !ok {
			return domain.ProcessingTask{}, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
		}
		if task.Status.IsTerminal() {
			return task, nil
		}

		select {
		case <-ctx.Done():
			return task, ctx.Err()
		case <-ticker.C:
		}
	}
}

func runProcessText(cmd *cobra.Command, args []string) error {
	svc, err := services(cmd)
	if err != nil {
		return err
	}

	sourceType, err := domain.ParseSourceType(processTextType)
	if err != nil {
		return err
	}
	ref, err := domain.NewSourceRef(sourceType, processTextID)
	if err != nil {
		return err
	}

	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	chunks, err := svc.Retrieval.ProcessSource(cmd.Context(), ref, text, nil)
	if err != nil {
		return fmt.Errorf("processing %s: %w", ref, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks for %s\n", len(chunks), ref)
	return nil
}

// readInput reads the file named by args[0], or stdin for "-" or no args.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}
