package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"attic/internal/compress"
	"attic/internal/history"
	"attic/internal/logging"
	"attic/internal/tui"
)

var (
	compressQuality        int
	compressFormat         string
	compressRecursive      bool
	compressDeleteOriginal bool
	compressPlain          bool
)

var compressCmd = &cobra.Command{
	Use:   "compress <directory>",
	Short: "Transcode PNGs to JPEG or WebP, carrying generation metadata",
	Long: `Finds PNG files in the given directory and re-encodes each one in the
chosen output format. Workflow and prompt records embedded in the PNG
text chunks are written into the output's EXIF block; when a record is
too large for the container it is dropped, largest first, rather than
failing the file.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompress,
}

func init() {
	compressCmd.Flags().IntVarP(&compressQuality, "quality", "q", 90, "JPEG quality, 1-100")
	compressCmd.Flags().StringVarP(&compressFormat, "format", "f", "JPEG", "output format: JPEG or WEBP")
	compressCmd.Flags().BoolVarP(&compressRecursive, "recursive", "r", false, "descend into subdirectories")
	compressCmd.Flags().BoolVar(&compressDeleteOriginal, "delete-original", false, "remove each PNG after a successful conversion")
	compressCmd.Flags().BoolVar(&compressPlain, "plain", false, "line-based progress output instead of the interactive view")
	rootCmd.AddCommand(compressCmd)
}

func runCompress(cmd *cobra.Command, args []string) error {
	format, err := compress.ParseFormat(compressFormat)
	if err != nil {
		return err
	}
	opts := compress.Options{
		TargetDir:      args[0],
		Quality:        compressQuality,
		Format:         format,
		Recursive:      compressRecursive,
		DeleteOriginal: compressDeleteOriginal,
	}

	logger := logging.Discard()
	manager := compress.NewManager(logger)
	done := make(chan compress.Job, 1)
	manager.OnDone(func(job compress.Job) { done <- job })

	started := time.Now()
	if err := manager.Start(opts); err != nil {
		return err
	}

	if compressPlain || !isatty.IsTerminal(os.Stdout.Fd()) {
		pollPlain(manager)
	} else {
		model := tui.NewProgress(manager.Snapshot, manager.RequestCancel)
		if _, err := tea.NewProgram(model).Run(); err != nil {
			return err
		}
	}

	job := <-done

	recordRun(logger, history.Record{
		ID:              job.ID,
		Kind:            history.KindCompression,
		StartedAt:       job.StartedAt,
		FinishedAt:      job.FinishedAt,
		Compressed:      job.Compressed,
		Errors:          job.Errors,
		OriginalBytes:   job.TotalOriginalBytes,
		CompressedBytes: job.TotalCompressedBytes,
		MetadataFull:    job.MetadataFull,
		MetadataPartial: job.MetadataPartial,
		MetadataNone:    job.MetadataNone,
		Cancelled:       job.Current < job.Total,
	})

	title := "Compression complete"
	if job.Current < job.Total {
		title = "Compression cancelled"
	}
	fmt.Print(tui.RenderSummary(title, []tui.SummaryRow{
		{Label: "Files", Value: fmt.Sprintf("%d/%d", job.Current, job.Total)},
		{Label: "Compressed", Value: fmt.Sprintf("%d", job.Compressed)},
		{Label: "Errors", Value: fmt.Sprintf("%d", job.Errors)},
		{Label: "Original size", Value: tui.FormatBytes(job.TotalOriginalBytes)},
		{Label: "Output size", Value: tui.FormatBytes(job.TotalCompressedBytes)},
		{Label: "Saved", Value: fmt.Sprintf("%s (%.1f%%)", tui.FormatBytes(job.SavingsBytes()), job.SavingsPercent())},
		{Label: "Metadata", Value: fmt.Sprintf("full %d, partial %d, none %d", job.MetadataFull, job.MetadataPartial, job.MetadataNone)},
		{Label: "Elapsed", Value: time.Since(started).Round(time.Millisecond).String()},
	}))
	return nil
}

func pollPlain(manager *compress.Manager) {
	last := -1
	for {
		job := manager.Snapshot()
		if job.Current != last {
			last = job.Current
			if job.CurrentFile != "" {
				fmt.Printf("%d/%d %s\n", job.Current, job.Total, job.CurrentFile)
			}
		}
		if job.State == compress.StateCompleted || job.State == compress.StateIdle {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
