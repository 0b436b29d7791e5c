package cli

import (
	"github.com/spf13/cobra"

	"ecg-quality/internal/app"
)

var showFlags analysisFlags

var showCmd = &cobra.Command{
	Use:   "show FILE",
	Short: "Display per-window quality of a recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := showFlags.params(cmd)
		if err != nil {
			return err
		}

		return getApp().Show(cmd.Context(), app.ShowOptions{File: args[0], Params: params})
	},
}

func init() {
	showFlags.register(showCmd)
}
