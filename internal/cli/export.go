package cli

import (
	"github.com/spf13/cobra"

	"ecg-quality/internal/app"
)

var (
	exportFlags          analysisFlags
	exportCSVPath        string
	exportWindowsCSVPath string
	exportPNGPath        string
	exportHRPNGPath      string
	exportMaxPoints      int
)

var exportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Export the cleaned signal and window scores as CSV and/or PNG charts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := exportFlags.params(cmd)
		if err != nil {
			return err
		}

		opts := app.ExportOptions{
			File:           args[0],
			Params:         params,
			CSVPath:        exportCSVPath,
			WindowsCSVPath: exportWindowsCSVPath,
			PNGPath:        exportPNGPath,
			HRPNGPath:      exportHRPNGPath,
			MaxPoints:      exportMaxPoints,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportFlags.register(exportCmd)
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write the cleaned signal CSV")
	exportCmd.Flags().StringVar(&exportWindowsCSVPath, "windows-csv", "", "Path to write per-window scores CSV")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write the ECG chart")
	exportCmd.Flags().StringVar(&exportHRPNGPath, "hr-png", "", "Path to write the heart-rate chart")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum signal points to export (defaults to config)")
}
