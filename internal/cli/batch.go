package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ecg-quality/internal/app"
)

var (
	batchFlags   analysisFlags
	batchWorkers int
)

var batchCmd = &cobra.Command{
	Use:   "batch FILE...",
	Short: "Analyse many recordings concurrently and print one line per file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if batchWorkers < 0 {
			return fmt.Errorf("--workers cannot be negative")
		}
		params, err := batchFlags.params(cmd)
		if err != nil {
			return err
		}

		opts := app.BatchOptions{
			Files:   args,
			Params:  params,
			Workers: batchWorkers,
		}
		return getApp().Batch(cmd.Context(), opts)
	},
}

func init() {
	batchFlags.register(batchCmd)
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "Number of concurrent analyses (defaults to config)")
}
