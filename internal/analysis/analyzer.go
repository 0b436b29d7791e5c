// Package analysis runs the full quality pipeline over one recording:
// parse, clean, detect, estimate, assess and assemble.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ecg-quality/internal/alerting"
	"ecg-quality/internal/beats"
	"ecg-quality/internal/heartrate"
	"ecg-quality/internal/metrics"
	"ecg-quality/internal/quality"
	"ecg-quality/internal/recording"
	"ecg-quality/internal/report"
	"ecg-quality/internal/signal"
)

// Settings are the process-wide defaults an Analyzer starts from.
type Settings struct {
	Signal         signal.Options
	Beats          beats.Options
	Quality        quality.Options
	MinGoodRatio   float64
	TempDir        string
	MaxUploadBytes int64
	// Extensions lists accepted upload suffixes; empty accepts anything.
	Extensions []string
}

// DefaultSettings matches the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		Signal:         signal.DefaultOptions(),
		Beats:          beats.DefaultOptions(),
		Quality:        quality.DefaultOptions(),
		MinGoodRatio:   0.2,
		MaxUploadBytes: 50 << 20,
		Extensions:     []string{".txt"},
	}
}

// Params are the per-request knobs. Zero values fall back to Settings.
type Params struct {
	Channel        string
	Duration       *float64
	SamplingRate   float64
	WindowSeconds  float64
	MSQIGood       float64
	IncludeSignals bool
}

// Result carries every intermediate product next to the report, for callers
// that render more than JSON.
type Result struct {
	Recording      *recording.Recording
	Signal         *signal.Cleaned
	Beats          []beats.Beat
	HeartRate      heartrate.Result
	Windows        []quality.Assessed
	Summary        quality.Summary
	Recommendation quality.Recommendation
	Report         *report.Report
}

// Analyzer is stateless between calls and safe for concurrent use.
type Analyzer struct {
	settings Settings
	notifier alerting.Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// Option customises an Analyzer.
type Option func(*Analyzer)

// WithNotifier sends an alert for every recording that is not usable.
func WithNotifier(n alerting.Notifier) Option {
	return func(a *Analyzer) { a.notifier = n }
}

// WithMetrics records pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// New constructs an Analyzer.
func New(settings Settings, logger zerolog.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		settings: settings,
		logger:   logger.With().Str("component", "analysis").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Settings returns the analyzer defaults.
func (a *Analyzer) Settings() Settings {
	return a.settings
}

// Analyze returns the report for content.
func (a *Analyzer) Analyze(ctx context.Context, content []byte, p Params) (*report.Report, error) {
	res, err := a.Run(ctx, content, p)
	if err != nil {
		return nil, err
	}
	return res.Report, nil
}

// Run executes the pipeline and returns all intermediate products. Any fatal
// failure is an *Error; nothing partial is returned with it.
func (a *Analyzer) Run(ctx context.Context, content []byte, p Params) (*Result, error) {
	return a.run(ctx, content, p, "")
}

// RunFile analyses a recording on disk. The path is used as the log and
// alert source.
func (a *Analyzer) RunFile(ctx context.Context, path string, p Params) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	return a.run(ctx, content, p, path)
}

func (a *Analyzer) run(ctx context.Context, content []byte, p Params, source string) (*Result, error) {
	started := time.Now()
	res, err := a.pipeline(ctx, content, p)
	if err != nil {
		err = classify(err)
		outcome := "error"
		if kind := KindOf(err); kind != 0 {
			outcome = kind.String()
		}
		a.metrics.AnalysisDone(outcome, time.Since(started))
		a.logger.Warn().Err(err).Str("source", source).Str("outcome", outcome).Msg("analysis failed")
		return nil, err
	}

	a.metrics.AnalysisDone("ok", time.Since(started))
	a.metrics.BeatsDetected(len(res.Beats))
	a.metrics.WindowsAssessed(res.Summary.Good, res.Summary.Adequate, res.Summary.Rejected)

	a.logger.Info().
		Str("source", source).
		Str("channel", res.Signal.Channel).
		Float64("duration_s", res.Signal.Duration()).
		Int("beats", len(res.Beats)).
		Int("windows", res.Summary.Total).
		Str("overall", res.Summary.Overall).
		Dur("elapsed", time.Since(started)).
		Msg("analysis complete")

	if !res.Summary.Usable {
		a.notify(ctx, res, source)
	}
	return res, nil
}

func (a *Analyzer) pipeline(ctx context.Context, content []byte, p Params) (*Result, error) {
	sigOpts, qOpts, err := a.resolve(p)
	if err != nil {
		return nil, err
	}

	stage := a.stageTimer()

	rec, err := recording.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse recording: %w", err)
	}
	stage("parse")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sig, err := signal.Clean(rec, sigOpts)
	if err != nil {
		return nil, fmt.Errorf("clean signal: %w", err)
	}
	stage("clean")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	detected := beats.Detect(sig, a.settings.Beats)
	hr := heartrate.Estimate(detected)
	stage("detect")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	windows, err := quality.Assess(sig, detected, qOpts)
	if err != nil {
		return nil, &Error{Kind: KindParameter, Message: err.Error(), Err: err}
	}
	summary := quality.Summarize(windows, a.settings.MinGoodRatio)
	recommendation := quality.Recommend(windows, qOpts.Thresholds)
	stage("assess")

	res := &Result{
		Recording:      rec,
		Signal:         sig,
		Beats:          detected,
		HeartRate:      hr,
		Windows:        windows,
		Summary:        summary,
		Recommendation: recommendation,
	}
	res.Report = report.Assemble(report.Input{
		Recording:      rec,
		Signal:         sig,
		Beats:          detected,
		HeartRate:      hr,
		Windows:        windows,
		Summary:        summary,
		Recommendation: recommendation,
		IncludeSignals: p.IncludeSignals,
	})
	return res, nil
}

func (a *Analyzer) resolve(p Params) (signal.Options, quality.Options, error) {
	sigOpts := a.settings.Signal
	if p.Channel != "" {
		sigOpts.Channel = strings.TrimSpace(p.Channel)
	}
	if p.SamplingRate != 0 {
		sigOpts.SamplingRate = p.SamplingRate
	}
	sigOpts.Duration = p.Duration

	qOpts := a.settings.Quality
	if p.WindowSeconds != 0 {
		qOpts.WindowLength = p.WindowSeconds
	}
	if p.MSQIGood != 0 {
		qOpts.Thresholds.MSQIGood = p.MSQIGood
	}

	switch {
	case !finite(sigOpts.SamplingRate):
		return sigOpts, qOpts, &Error{Kind: KindParameter, Message: fmt.Sprintf("sampling rate must be finite, got %g", sigOpts.SamplingRate)}
	case p.Duration != nil && !finite(*p.Duration):
		return sigOpts, qOpts, &Error{Kind: KindParameter, Message: fmt.Sprintf("duration must be finite, got %g", *p.Duration)}
	case !finite(qOpts.WindowLength) || qOpts.WindowLength <= 0:
		return sigOpts, qOpts, &Error{Kind: KindParameter, Message: fmt.Sprintf("window length must be positive, got %g", qOpts.WindowLength)}
	case !finite(qOpts.Thresholds.MSQIGood) || qOpts.Thresholds.MSQIGood < 0 || qOpts.Thresholds.MSQIGood > 1:
		return sigOpts, qOpts, &Error{Kind: KindParameter, Message: fmt.Sprintf("msqi good threshold must be within [0, 1], got %g", qOpts.Thresholds.MSQIGood)}
	}
	return sigOpts, qOpts, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (a *Analyzer) stageTimer() func(string) {
	last := time.Now()
	return func(name string) {
		now := time.Now()
		a.logger.Debug().Str("stage", name).Dur("elapsed", now.Sub(last)).Msg("stage finished")
		last = now
	}
}

func (a *Analyzer) notify(ctx context.Context, res *Result, source string) {
	if a.notifier == nil {
		return
	}
	ranges := make([]string, 0, len(res.Recommendation.Bad))
	for _, r := range res.Recommendation.Bad {
		ranges = append(ranges, fmt.Sprintf("%.1f-%.1fs", r.Start, r.End))
	}
	note := alerting.Notification{
		AnalyzedAt:     a.now(),
		Source:         source,
		RecordID:       res.Recording.RecordID,
		Channel:        res.Signal.Channel,
		Duration:       decimal.NewFromFloat(res.Signal.Duration()),
		GoodPercentage: decimal.NewFromFloat(res.Summary.GoodPercentage),
		MinGoodPct:     decimal.NewFromFloat(a.settings.MinGoodRatio * 100),
		Overall:        res.Summary.Overall,
		TotalWindows:   res.Summary.Total,
		Rejected:       res.Summary.Rejected,
		BadRanges:      ranges,
		AdditionalMsg:  res.Summary.Message,
	}
	if err := a.notifier.Notify(ctx, note); err != nil {
		a.metrics.NotifyFailed()
		a.logger.Error().Err(err).Str("source", source).Msg("failed to dispatch quality alert")
	}
}

// AnalyzeUpload spools r to a uniquely named temporary file, analyses it and
// removes the file on every path.
func (a *Analyzer) AnalyzeUpload(ctx context.Context, r io.Reader, name string, p Params) (*report.Report, error) {
	res, err := a.RunUpload(ctx, r, name, p)
	if err != nil {
		return nil, err
	}
	return res.Report, nil
}

// RunUpload is AnalyzeUpload returning all intermediate products.
func (a *Analyzer) RunUpload(ctx context.Context, r io.Reader, name string, p Params) (*Result, error) {
	if err := a.checkExtension(name); err != nil {
		return nil, err
	}

	path, size, err := a.spool(r)
	if path != "" {
		defer func() {
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				a.logger.Warn().Err(rmErr).Str("path", path).Msg("failed to delete temp file")
			}
		}()
	}
	if err != nil {
		return nil, err
	}
	a.metrics.Upload(size)
	a.logger.Debug().Str("file", name).Int64("bytes", size).Str("path", path).Msg("upload spooled")

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spooled upload: %w", err)
	}
	return a.run(ctx, content, p, name)
}

func (a *Analyzer) checkExtension(name string) error {
	if len(a.settings.Extensions) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range a.settings.Extensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}
	return &Error{
		Kind:    KindUpload,
		Message: fmt.Sprintf("invalid file type %q, supported: %s", ext, strings.Join(a.settings.Extensions, ", ")),
	}
}

func (a *Analyzer) spool(r io.Reader) (string, int64, error) {
	dir := a.settings.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", 0, fmt.Errorf("create temp dir: %w", err)
	}

	path := filepath.Join(dir, "ecg-"+uuid.NewString()+".txt")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}

	src := r
	if a.settings.MaxUploadBytes > 0 {
		src = io.LimitReader(r, a.settings.MaxUploadBytes+1)
	}
	size, copyErr := io.Copy(file, src)
	closeErr := file.Close()
	switch {
	case copyErr != nil:
		return path, size, &Error{Kind: KindUpload, Message: "failed to read upload", Err: copyErr}
	case closeErr != nil:
		return path, size, fmt.Errorf("close temp file: %w", closeErr)
	case a.settings.MaxUploadBytes > 0 && size > a.settings.MaxUploadBytes:
		return path, size, &Error{
			Kind:    KindTooLarge,
			Message: fmt.Sprintf("file too large, maximum size: %dMB", a.settings.MaxUploadBytes>>20),
		}
	}
	return path, size, nil
}
