package app

import (
	"context"
	"errors"
	"os"

	"ecg-quality/internal/synth"
)

// Simulate writes a synthetic recording to opts.Out, or to Out when no path
// is given.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	so := synth.DefaultOptions()
	so.Rate = a.Config.Analysis.SamplingRate
	if opts.Duration > 0 {
		so.Duration = opts.Duration
	}
	if opts.HeartRate > 0 {
		so.HeartRate = opts.HeartRate
	}
	if opts.Noise >= 0 {
		so.Noise = opts.Noise
	}
	if opts.Seed != 0 {
		so.Seed = opts.Seed
	}
	if opts.ArtifactEnd > opts.ArtifactStart {
		so.Artifacts = []synth.Interval{{Start: opts.ArtifactStart, End: opts.ArtifactEnd}}
		so.Flat = opts.Flat
	} else if opts.ArtifactEnd != 0 || opts.ArtifactStart != 0 {
		return errors.New("--artifact-end must be greater than --artifact-start")
	}

	if opts.Out == "" || opts.Out == "-" {
		return synth.Write(a.Out, so)
	}

	if err := ensureDir(opts.Out); err != nil {
		return err
	}
	file, err := os.Create(opts.Out)
	if err != nil {
		return err
	}
	if err := synth.Write(file, so); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	a.Logger.Info().Str("output", opts.Out).
		Float64("duration_s", so.Duration).
		Float64("heart_rate", so.HeartRate).
		Int("artifacts", len(so.Artifacts)).
		Msg("synthetic recording written")
	return nil
}
