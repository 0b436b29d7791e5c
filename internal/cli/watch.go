package cli

import (
	"time"

	"github.com/spf13/cobra"

	"ecg-quality/internal/app"
)

var (
	watchFlags    analysisFlags
	watchOutput   string
	watchInterval time.Duration
	watchPretty   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [DIR]",
	Short: "Poll a directory and write a report for each new recording",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := watchFlags.params(cmd)
		if err != nil {
			return err
		}

		opts := app.WatchOptions{
			OutputDir: watchOutput,
			Interval:  watchInterval,
			Params:    params,
			Pretty:    watchPretty,
		}
		if len(args) == 1 {
			opts.Dir = args[0]
		}
		return getApp().Watch(cmd.Context(), opts)
	},
}

func init() {
	watchFlags.register(watchCmd)
	watchCmd.Flags().StringVarP(&watchOutput, "output-dir", "o", "", "Directory for reports (defaults to config, then DIR)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Polling interval (defaults to config)")
	watchCmd.Flags().BoolVar(&watchPretty, "pretty", false, "Indent JSON reports")
}
