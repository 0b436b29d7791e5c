package app

import (
	"context"
	"os"

	"ecg-quality/internal/report"
)

// Analyze runs the pipeline on one file and writes the JSON report to
// opts.Output, or to Out when no path is given.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions) error {
	res, err := a.newAnalyzer(nil).RunFile(ctx, opts.File, opts.Params)
	if err != nil {
		return err
	}

	if opts.Output == "" {
		return report.Encode(a.Out, res.Report, opts.Pretty)
	}

	if err := ensureDir(opts.Output); err != nil {
		return err
	}
	file, err := os.Create(opts.Output)
	if err != nil {
		return err
	}
	if err := report.Encode(file, res.Report, opts.Pretty); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	a.Logger.Info().Str("file", opts.File).Str("output", opts.Output).
		Str("overall", res.Summary.Overall).
		Msg("report written")
	return nil
}
