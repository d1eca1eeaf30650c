package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"attic/internal/config"
	"attic/internal/history"
	"attic/internal/tui"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past archive and compression runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum runs to show, newest first")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := historyDBPath
	if path == "" {
		path = config.DefaultHistoryDB
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := contextWithTimeout()
	defer cancel()
	records, err := store.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"When", "Kind", "Result", "Location"})
	for _, rec := range records {
		tw.AppendRow(table.Row{
			rec.StartedAt.Local().Format("2006-01-02 15:04"),
			rec.Kind,
			describeRecord(rec),
			rec.Location,
		})
	}
	fmt.Println(tw.Render())
	return nil
}

func describeRecord(rec history.Record) string {
	switch rec.Kind {
	case history.KindArchive:
		return fmt.Sprintf("moved %d, skipped %d, errors %d", rec.Moved, rec.Skipped, rec.Errors)
	case history.KindCompression:
		result := fmt.Sprintf("compressed %d, errors %d, saved %s",
			rec.Compressed, rec.Errors, tui.FormatBytes(rec.OriginalBytes-rec.CompressedBytes))
		if rec.Cancelled {
			result += " (cancelled)"
		}
		return result
	default:
		return ""
	}
}
