package cli

import (
	"github.com/spf13/cobra"

	"ecg-quality/internal/app"
	"ecg-quality/internal/synth"
)

var simulateOpts app.SimulateOptions

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Write a synthetic recording in the device export format",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Simulate(cmd.Context(), simulateOpts)
	},
}

func init() {
	defaults := synth.DefaultOptions()
	simulateCmd.Flags().StringVarP(&simulateOpts.Out, "out", "o", "", "Output path (stdout when empty)")
	simulateCmd.Flags().Float64Var(&simulateOpts.Duration, "duration", defaults.Duration, "Length in seconds")
	simulateCmd.Flags().Float64Var(&simulateOpts.HeartRate, "hr", defaults.HeartRate, "Heart rate in bpm")
	simulateCmd.Flags().Float64Var(&simulateOpts.Noise, "noise", defaults.Noise, "Gaussian noise level in mV")
	simulateCmd.Flags().Float64Var(&simulateOpts.ArtifactStart, "artifact-start", 0, "Start of an artifact burst in seconds")
	simulateCmd.Flags().Float64Var(&simulateOpts.ArtifactEnd, "artifact-end", 0, "End of an artifact burst in seconds")
	simulateCmd.Flags().BoolVar(&simulateOpts.Flat, "flat", false, "Drop the signal to zero inside the artifact instead of adding noise")
	simulateCmd.Flags().Int64Var(&simulateOpts.Seed, "seed", defaults.Seed, "Random seed")
}
