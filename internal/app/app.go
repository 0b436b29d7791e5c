package app

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"ecg-quality/internal/alerting"
	"ecg-quality/internal/analysis"
	"ecg-quality/internal/config"
	"ecg-quality/internal/metrics"
	"ecg-quality/internal/quality"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives reports and tables.
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		Out:    os.Stdout,
	}
}

// analyzerSettings maps configuration onto pipeline settings.
func (a *App) analyzerSettings() analysis.Settings {
	cfg := a.Config
	s := analysis.DefaultSettings()

	s.Signal.Channel = cfg.Analysis.Channel
	s.Signal.SamplingRate = cfg.Analysis.SamplingRate
	s.Signal.UnitScale = cfg.Analysis.UnitScale
	s.Signal.MaxDuration = cfg.Analysis.MaxDurationSeconds
	s.Signal.HighPassHz = cfg.Analysis.HighPassHz
	s.Signal.LowPassHz = cfg.Analysis.LowPassHz
	s.Signal.PowerlineHz = cfg.Analysis.PowerlineHz
	s.Signal.NotchQ = cfg.Analysis.NotchQ

	s.Beats.Refractory = cfg.Analysis.RefractorySeconds

	s.Quality.WindowLength = cfg.Analysis.WindowSeconds
	s.Quality.Score.MinBeats = cfg.Quality.MinBeats
	s.Quality.Thresholds = quality.Thresholds{
		MinBeats:     cfg.Quality.MinBeats,
		KSQIArtifact: cfg.Quality.KSQIArtifact,
		KSQIGood:     cfg.Quality.KSQIGood,
		KSQIMax:      cfg.Quality.KSQIMax,
		MinHR:        cfg.Quality.MinHR,
		MaxHR:        cfg.Quality.MaxHR,
		MSQIReject:   cfg.Quality.MSQIReject,
		MSQIGood:     cfg.Quality.MSQIGood,
	}
	s.MinGoodRatio = cfg.Quality.MinGoodRatio

	s.TempDir = cfg.Upload.TempDir
	s.MaxUploadBytes = cfg.Upload.MaxUploadMB << 20
	s.Extensions = cfg.Upload.Extensions
	return s
}

func (a *App) newAnalyzer(m *metrics.Metrics) *analysis.Analyzer {
	opts := []analysis.Option{analysis.WithMetrics(m)}
	if notifier := a.newNotifier(); notifier != nil {
		opts = append(opts, analysis.WithNotifier(notifier))
	}
	return analysis.New(a.analyzerSettings(), a.Logger, opts...)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, a.Config.Alerting.Timeout, a.Logger)
	}
	a.Logger.Warn().Msg("alerting enabled but no channel configured")
	return nil
}

// AnalyzeOptions configure the analyze command.
type AnalyzeOptions struct {
	File   string
	Params analysis.Params
	Output string
	Pretty bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	File   string
	Params analysis.Params
}

// ExportOptions configure the export command.
type ExportOptions struct {
	File           string
	Params         analysis.Params
	CSVPath        string
	WindowsCSVPath string
	PNGPath        string
	HRPNGPath      string
	MaxPoints      int
}

// BatchOptions configure the batch command.
type BatchOptions struct {
	Files   []string
	Params  analysis.Params
	Workers int
}

// SimulateOptions configure the simulate command.
type SimulateOptions struct {
	Out           string
	Duration      float64
	HeartRate     float64
	Noise         float64
	ArtifactStart float64
	ArtifactEnd   float64
	Flat          bool
	Seed          int64
}

// WatchOptions configure the watch command. Zero values fall back to config.
type WatchOptions struct {
	Dir       string
	OutputDir string
	Interval  time.Duration
	Params    analysis.Params
	Pretty    bool
}
