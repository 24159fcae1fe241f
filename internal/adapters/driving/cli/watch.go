package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
	"github.com/custodia-labs/ragengine/internal/logger"
	"github.com/custodia-labs/ragengine/internal/watcher"
)

// watchExtensions are the files synced as notes.
var watchExtensions = []string{".md", ".markdown", ".txt"}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Sync a directory of text files into notes",
	Long: `Saves every markdown and text file under dir as a note titled by its
path relative to dir, queues it for processing and keeps watching for
changes. Deleted files are removed from the index. Stops on interrupt.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	svc, err := services(cmd)
	if err != nil {
		return err
	}
	catalog, err := requireCatalog(svc)
	if err != nil {
		return err
	}

	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	syncer, err := newNoteSyncer(cmd.Context(), svc, catalog, root)
	if err != nil {
		return err
	}

	w := watcher.New(root, watchExtensions...)
	files, err := w.Files()
	if err != nil {
		return fmt.Errorf("scanning %s: %w", root, err)
	}
	for _, path := range files {
		syncer.handle(cmd.Context(), domain.FileChange{Type: domain.ChangeCreated, Path: path})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Synced %d files from %s, watching for changes\n", len(files), root)

	changes, err := w.Watch(cmd.Context())
	if err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}
	defer w.Close()

	for change := range changes {
		syncer.handle(cmd.Context(), change)
	}
	return nil
}

// noteSyncer mirrors files under root into catalog notes.
type noteSyncer struct {
	svc     *Services
	catalog driven.SourceCatalog
	root    string
	ids     map[string]string // note title -> id
	log     *logger.Logger
}

func newNoteSyncer(ctx context.Context, svc *Services, catalog driven.SourceCatalog, root string) (*noteSyncer, error) {
	available, err := catalog.AvailableSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	ids := make(map[string]string, len(available.Notes))
	for _, n := range available.Notes {
		ids[n.Title] = n.ID
	}
	return &noteSyncer{svc: svc, catalog: catalog, root: root, ids: ids, log: logger.For("watch")}, nil
}

func (s *noteSyncer) handle(ctx context.Context, change domain.FileChange) {
	title, err := filepath.Rel(s.root, change.Path)
	if err != nil {
		s.log.Warn("skipping %s: %v", change.Path, err)
		return
	}
	title = filepath.ToSlash(title)

	if change.Type == domain.ChangeDeleted {
		id, ok := s.ids[title]
		if !ok {
			return
		}
		ref := domain.SourceRef{Type: domain.SourceTypeNote, ID: id}
		if _, err := s.svc.Retrieval.ProcessSource(ctx, ref, "", nil); err != nil {
			s.log.Warn("clearing %s: %v", ref, err)
			return
		}
		if err := s.catalog.DeleteNote(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn("deleting %s: %v", ref, err)
			return
		}
		delete(s.ids, title)
		s.log.Info("removed %s", title)
		return
	}

	content, err := os.ReadFile(change.Path) //nolint:gosec // G304: path comes from the watched tree
	if err != nil {
		s.log.Warn("reading %s: %v", change.Path, err)
		return
	}

	note, err := s.catalog.SaveNote(ctx, domain.Note{ID: s.ids[title], Title: title, Content: string(content)})
	if err != nil {
		s.log.Warn("saving %s: %v", title, err)
		return
	}
	s.ids[title] = note.ID

	ref := domain.SourceRef{Type: domain.SourceTypeNote, ID: note.ID}
	if _, err := s.svc.Retrieval.Queue().AddTask(ref); err != nil {
		s.log.Warn("queueing %s: %v", ref, err)
		return
	}
	s.log.Debug("queued %s for %s", ref, title)
}
