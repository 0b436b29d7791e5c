package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"ecg-quality/internal/analysis"
	"ecg-quality/internal/dsp"
)

// Export renders one analysed file as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.WindowsCSVPath == "" && opts.PNGPath == "" && opts.HRPNGPath == "" {
		return errors.New("at least one of --csv, --windows-csv, --png or --hr-png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	res, err := a.newAnalyzer(nil).RunFile(ctx, opts.File, opts.Params)
	if err != nil {
		return err
	}

	points := downsample(signalPoints(res), opts.MaxPoints)
	a.Logger.Info().Int("total", res.Signal.Len()).Int("exported", len(points)).Msg("exporting signal")

	if opts.CSVPath != "" {
		if err := writeSignalCSV(opts.CSVPath, points); err != nil {
			return err
		}
	}
	if opts.WindowsCSVPath != "" {
		if err := writeWindowsCSV(opts.WindowsCSVPath, res); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeSignalPNG(opts.PNGPath, points, res); err != nil {
			return err
		}
	}
	if opts.HRPNGPath != "" {
		if err := writeHeartRatePNG(opts.HRPNGPath, res); err != nil {
			return err
		}
	}
	return nil
}

type signalPoint struct {
	Time    float64
	Raw     float64
	Cleaned float64
	Window  int
}

func signalPoints(res *analysis.Result) []signalPoint {
	sig := res.Signal
	points := make([]signalPoint, sig.Len())
	for i := range points {
		points[i] = signalPoint{Time: sig.Time[i], Raw: sig.Raw[i], Cleaned: sig.Values[i]}
	}
	for _, w := range res.Windows {
		for i := w.Window.StartSample; i < w.Window.EndSample && i < len(points); i++ {
			points[i].Window = w.Window.Index
		}
	}
	return points
}

func downsample[T any](items []T, max int) []T {
	if max <= 0 || len(items) <= max {
		return items
	}
	if max == 1 {
		return items[:1]
	}

	result := make([]T, 0, max)
	step := float64(len(items)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(items) {
			idx = len(items) - 1
		}
		result = append(result, items[idx])
	}
	return result
}

func writeSignalCSV(path string, points []signalPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"time_s", "raw_mv", "cleaned_mv", "window"}); err != nil {
		return err
	}
	for _, p := range points {
		record := []string{
			strconv.FormatFloat(p.Time, 'f', 4, 64),
			strconv.FormatFloat(p.Raw, 'f', 6, 64),
			strconv.FormatFloat(p.Cleaned, 'f', 6, 64),
			strconv.Itoa(p.Window),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeWindowsCSV(path string, res *analysis.Result) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"window", "start_s", "end_s", "num_peaks", "msqi", "ksqi", "hr_bpm", "sdnn_ms", "status"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, w := range res.Windows {
		record := []string{
			strconv.Itoa(w.Window.Index),
			csvValue(w.Window.Start),
			csvValue(w.Window.End),
			strconv.Itoa(w.Indices.Beats),
			csvValue(w.Indices.MSQI),
			csvValue(w.Indices.KSQI),
			csvValue(w.Indices.HR),
			csvValue(w.Indices.SDNN),
			w.Status.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// csvValue leaves undefined values empty.
func csvValue(v float64) string {
	if !dsp.Defined(v) {
		return ""
	}
	return formatValue(v, 3)
}

func writeSignalPNG(path string, points []signalPoint, res *analysis.Result) error {
	if len(points) < 2 {
		return errors.New("not enough samples to plot")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]float64, len(points))
	y := make([]float64, len(points))
	for i, p := range points {
		x[i] = p.Time
		y[i] = p.Cleaned
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    fmt.Sprintf("%s cleaned (mV)", res.Signal.Channel),
			XValues: x,
			YValues: y,
		},
	}

	if len(res.Beats) > 0 {
		peakX := make([]float64, len(res.Beats))
		peakY := make([]float64, len(res.Beats))
		for i, b := range res.Beats {
			peakX[i] = b.Time
			peakY[i] = b.Amplitude
		}
		series = append(series, chart.ContinuousSeries{
			Name: "R peaks",
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    3,
				DotColor:    drawing.ColorBlue,
			},
			XValues: peakX,
			YValues: peakY,
		})
	}

	top := dsp.Max(y)
	for _, r := range res.Recommendation.Bad {
		series = append(series, chart.ContinuousSeries{
			Name: fmt.Sprintf("Rejected %s-%ss", formatValue(r.Start, 1), formatValue(r.End, 1)),
			Style: chart.Style{
				StrokeColor: drawing.ColorRed,
				StrokeWidth: 6,
			},
			XValues: []float64{r.Start, r.End},
			YValues: []float64{top, top},
		})
	}

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name:           "Time (s)",
			ValueFormatter: valueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Amplitude (mV)",
			ValueFormatter: valueFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return renderPNG(path, &graph)
}

func writeHeartRatePNG(path string, res *analysis.Result) error {
	samples := res.HeartRate.Samples
	if len(samples) < 2 {
		return errors.New("not enough heart-rate samples to plot")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = s.Time
		y[i] = s.BPM
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name: "Time (s)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.1f")
			},
		},
		YAxis: chart.YAxis{
			Name: "Heart rate (bpm)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Instantaneous HR",
				XValues: x,
				YValues: y,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return renderPNG(path, &graph)
}

func renderPNG(path string, graph *chart.Chart) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := graph.Render(chart.PNG, file); err != nil {
		return fmt.Errorf("render %s: %w", filepath.Base(path), err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
