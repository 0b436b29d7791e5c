package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"ecg-quality/internal/analysis"
	"ecg-quality/internal/dsp"
	"ecg-quality/internal/quality"
)

// Show prints the per-window assessment of one file followed by a summary.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	res, err := a.newAnalyzer(nil).RunFile(ctx, opts.File, opts.Params)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Window\tStart (s)\tEnd (s)\tPeaks\tmSQI\tkSQI\tHR (bpm)\tSDNN (ms)\tStatus")
	for _, w := range res.Windows {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			w.Window.Index,
			formatValue(w.Window.Start, 1),
			formatValue(w.Window.End, 1),
			w.Indices.Beats,
			formatValue(w.Indices.MSQI, 3),
			formatValue(w.Indices.KSQI, 2),
			formatValue(w.Indices.HR, 1),
			formatValue(w.Indices.SDNN, 1),
			w.Status,
		)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	return writeSummary(a.Out, res)
}

func writeSummary(out io.Writer, res *analysis.Result) error {
	s := res.Summary
	hr := res.HeartRate.Stats
	lines := []string{
		"",
		fmt.Sprintf("Channel:       %s, %ss at %s Hz", res.Signal.Channel, formatValue(res.Signal.Duration(), 1), formatValue(res.Signal.Rate, 0)),
		fmt.Sprintf("R peaks:       %d", len(res.Beats)),
		fmt.Sprintf("Heart rate:    %s ± %s bpm (min %s, max %s)", formatValue(hr.Mean, 1), formatValue(hr.Std, 1), formatValue(hr.Min, 1), formatValue(hr.Max, 1)),
		fmt.Sprintf("Windows:       %d good, %d adequate, %d rejected of %d (%s%% good)", s.Good, s.Adequate, s.Rejected, s.Total, formatValue(s.GoodPercentage, 2)),
		fmt.Sprintf("Overall:       %s", s.Overall),
		fmt.Sprintf("Best segment:  %s", formatRange(res.Recommendation.Best)),
	}
	if len(res.Recommendation.Bad) > 0 {
		bad := make([]string, 0, len(res.Recommendation.Bad))
		for _, r := range res.Recommendation.Bad {
			bad = append(bad, formatRange(r))
		}
		lines = append(lines, fmt.Sprintf("Poor quality:  %s", strings.Join(bad, "; ")))
	}
	lines = append(lines, s.Message)

	_, err := fmt.Fprintln(out, strings.Join(lines, "\n"))
	return err
}

func formatRange(r quality.Range) string {
	if len(r.Windows) == 0 {
		return "-"
	}
	windows := make([]string, len(r.Windows))
	for i, w := range r.Windows {
		windows[i] = fmt.Sprint(w)
	}
	return fmt.Sprintf("%s-%ss (windows %s)", formatValue(r.Start, 1), formatValue(r.End, 1), strings.Join(windows, ", "))
}

// formatValue renders v with fixed places, "-" when undefined.
func formatValue(v float64, places int32) string {
	if !dsp.Defined(v) {
		return "-"
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
