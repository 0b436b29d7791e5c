package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"ecg-quality/internal/analysis"
)

type batchResult struct {
	file string
	res  *analysis.Result
	err  error
}

// Batch analyses independent files concurrently and prints one summary line
// per file in input order. A failing file does not stop the others.
func (a *App) Batch(ctx context.Context, opts BatchOptions) error {
	if len(opts.Files) == 0 {
		return errors.New("no input files")
	}
	workers := a.Config.ResolveWorkers(opts.Workers)
	analyzer := a.newAnalyzer(nil)

	results := make([]batchResult, len(opts.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range opts.Files {
		i, file := i, file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := analyzer.RunFile(gctx, file, opts.Params)
			results[i] = batchResult{file: file, res: res, err: err}
			if err != nil && errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "File\tOverall\tGood\tWindows\tR peaks\tHR (bpm)\tBest segment")
	failed := 0
	for _, r := range results {
		name := filepath.Base(r.file)
		if r.err != nil {
			failed++
			fmt.Fprintf(writer, "%s\tERROR\t-\t-\t-\t-\t%s\n", name, sanitizeInline(r.err.Error()))
			continue
		}
		s := r.res.Summary
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s%%\t%d\t%d\t%s\t%s\n",
			name,
			s.Overall,
			formatValue(s.GoodPercentage, 2),
			s.Total,
			len(r.res.Beats),
			formatValue(r.res.HeartRate.Stats.Mean, 1),
			formatRange(r.res.Recommendation.Best),
		)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	a.Logger.Info().Int("files", len(results)).Int("failed", failed).Int("workers", workers).Msg("批量分析完成")
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed, see output", failed, len(results))
	}
	return nil
}
