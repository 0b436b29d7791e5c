package cli

import (
	"github.com/spf13/cobra"

	"ecg-quality/internal/app"
)

var (
	analyzeFlags  analysisFlags
	analyzeOutput string
	analyzePretty bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Analyse one recording and print the JSON report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := analyzeFlags.params(cmd)
		if err != nil {
			return err
		}

		opts := app.AnalyzeOptions{
			File:   args[0],
			Params: params,
			Output: analyzeOutput,
			Pretty: analyzePretty,
		}
		return getApp().Analyze(cmd.Context(), opts)
	},
}

func init() {
	analyzeFlags.register(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeFlags.includeSignals, "include-signals", false, "Include raw, cleaned and heart-rate series")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "Write the report to a file instead of stdout")
	analyzeCmd.Flags().BoolVar(&analyzePretty, "pretty", false, "Indent the JSON report")
}
