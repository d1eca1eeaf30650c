package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"attic/internal/archive"
	"attic/internal/classify"
	"attic/internal/history"
	"attic/internal/logging"
	"attic/internal/tui"
)

var (
	archiveFolderName  string
	archiveKeepHidden  bool
	archiveSkipExt     string
	archiveSkipFolders string
	archiveVerbose     bool
)

var archiveCmd = &cobra.Command{
	Use:   "archive <directory>",
	Short: "Move finished files into date-stamped archive folders",
	Long: `Walks the given directory and moves every file that is not excluded
into <directory>/<folder-name>/<YYYY-MM-DD>/, keyed by the file's
modification date. Subfolder structure is preserved underneath the
date folder, existing archived files are never overwritten, and
directories left empty by the move are removed.`,
	Args: cobra.ExactArgs(1),
	RunE: runArchive,
}

func init() {
	archiveCmd.Flags().StringVar(&archiveFolderName, "folder-name", "Archive", "name of the archive folder inside the target directory")
	archiveCmd.Flags().BoolVar(&archiveKeepHidden, "keep-hidden", false, "also archive dot-prefixed files")
	archiveCmd.Flags().StringVar(&archiveSkipExt, "skip-ext", classify.DefaultSkipExtensions, "comma-separated extensions to leave in place")
	archiveCmd.Flags().StringVar(&archiveSkipFolders, "skip-folders", "", "comma-separated folder names to leave untouched")
	archiveCmd.Flags().BoolVarP(&archiveVerbose, "verbose", "v", false, "log every move")
	rootCmd.AddCommand(archiveCmd)
}

func runArchive(cmd *cobra.Command, args []string) error {
	rules := classify.Rules{
		ArchiveFolderName: archiveFolderName,
		SkipHiddenFiles:   !archiveKeepHidden,
		SkipExtensions:    classify.ParseList(archiveSkipExt),
		SkipFolderNames:   classify.ParseFolderList(archiveSkipFolders),
	}

	logger := logging.Discard()
	if archiveVerbose {
		var err error
		logger, err = logging.New(logging.Options{Level: "debug", Format: "text", Output: os.Stderr})
		if err != nil {
			return err
		}
	}

	started := time.Now()
	outcome, err := archive.NewEngine(logger).Run(args[0], rules)
	if err != nil {
		return err
	}

	recordRun(logger, history.Record{
		Kind:        history.KindArchive,
		StartedAt:   started,
		FinishedAt:  time.Now(),
		Location:    outcome.ArchiveLocation,
		Moved:       outcome.Moved,
		Skipped:     outcome.Skipped,
		Errors:      outcome.Errors,
		RemovedDirs: outcome.RemovedDirs,
	})

	fmt.Print(tui.RenderSummary("Archive complete", []tui.SummaryRow{
		{Label: "Moved", Value: fmt.Sprintf("%d", outcome.Moved)},
		{Label: "Skipped", Value: fmt.Sprintf("%d", outcome.Skipped)},
		{Label: "Errors", Value: fmt.Sprintf("%d", outcome.Errors)},
		{Label: "Empty dirs removed", Value: fmt.Sprintf("%d", outcome.RemovedDirs)},
		{Label: "Location", Value: outcome.ArchiveLocation},
		{Label: "Elapsed", Value: time.Since(started).Round(time.Millisecond).String()},
	}))
	return nil
}

// recordRun appends a run to the history database when one is
// configured. Recording failures never fail the command.
func recordRun(logger *slog.Logger, rec history.Record) {
	if historyDBPath == "" {
		return
	}
	store, err := history.Open(historyDBPath)
	if err != nil {
		logger.Warn("open history db", slog.String("error", err.Error()))
		return
	}
	defer store.Close()

	ctx, cancel := contextWithTimeout()
	defer cancel()
	if err := store.Record(ctx, rec); err != nil {
		logger.Warn("record run", slog.String("error", err.Error()))
	}
}
