package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var historyDBPath string

var rootCmd = &cobra.Command{
	Use:   "attic",
	Short: "Archive and shrink generated image output",
	Long: `attic tidies the output directory of an image generation pipeline:
it files finished images into date-stamped archive folders and
transcodes PNGs to JPEG or WebP while carrying the embedded
generation metadata across.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&historyDBPath, "history-db", "",
		"sqlite file recording past runs (empty disables recording)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
