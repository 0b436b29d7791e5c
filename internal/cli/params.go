package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ecg-quality/internal/analysis"
)

// analysisFlags are the per-run overrides shared by every file command.
type analysisFlags struct {
	channel        string
	duration       float64
	samplingRate   float64
	window         float64
	msqiGood       float64
	includeSignals bool
}

func (f *analysisFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.channel, "channel", "", "Channel to analyse (defaults to config)")
	cmd.Flags().Float64Var(&f.duration, "duration", 0, "Analyse only the first N seconds")
	cmd.Flags().Float64Var(&f.samplingRate, "sampling-rate", 0, "Sampling rate in Hz (defaults to config)")
	cmd.Flags().Float64Var(&f.window, "window", 0, "Window length in seconds (defaults to config)")
	cmd.Flags().Float64Var(&f.msqiGood, "msqi-good", 0, "mSQI above which a window can be GOOD (defaults to config)")
}

func (f *analysisFlags) params(cmd *cobra.Command) (analysis.Params, error) {
	p := analysis.Params{
		Channel:        f.channel,
		SamplingRate:   f.samplingRate,
		WindowSeconds:  f.window,
		MSQIGood:       f.msqiGood,
		IncludeSignals: f.includeSignals,
	}
	if cmd.Flags().Changed("duration") {
		d := f.duration
		p.Duration = &d
	}
	if f.samplingRate < 0 {
		return p, fmt.Errorf("--sampling-rate must be positive")
	}
	if f.window < 0 {
		return p, fmt.Errorf("--window must be positive")
	}
	return p, nil
}
