package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"ecg-quality/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Quality  QualityConfig  `mapstructure:"quality"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Export   ExportConfig   `mapstructure:"export"`
	Server   ServerConfig   `mapstructure:"server"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Alerting AlertingConfig `mapstructure:"alerting"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// AnalysisConfig holds signal extraction and detector defaults.
type AnalysisConfig struct {
	Channel            string  `mapstructure:"channel"`
	SamplingRate       float64 `mapstructure:"sampling_rate"`
	UnitScale          float64 `mapstructure:"unit_scale"`
	WindowSeconds      float64 `mapstructure:"window_seconds"`
	MaxDurationSeconds float64 `mapstructure:"max_duration_seconds"`
	HighPassHz         float64 `mapstructure:"highpass_hz"`
	LowPassHz          float64 `mapstructure:"lowpass_hz"`
	PowerlineHz        float64 `mapstructure:"powerline_hz"`
	NotchQ             float64 `mapstructure:"notch_q"`
	RefractorySeconds  float64 `mapstructure:"refractory_seconds"`
	IncludeSignals     bool    `mapstructure:"include_signals"`
}

// QualityConfig sets classification thresholds.
type QualityConfig struct {
	MSQIGood     float64 `mapstructure:"msqi_good"`
	MSQIReject   float64 `mapstructure:"msqi_reject"`
	KSQIArtifact float64 `mapstructure:"ksqi_artifact"`
	KSQIGood     float64 `mapstructure:"ksqi_good"`
	KSQIMax      float64 `mapstructure:"ksqi_max"`
	MinHR        float64 `mapstructure:"min_hr"`
	MaxHR        float64 `mapstructure:"max_hr"`
	MinBeats     int     `mapstructure:"min_beats"`
	MinGoodRatio float64 `mapstructure:"min_good_ratio"`
}

// UploadConfig bounds temporary storage of uploads.
type UploadConfig struct {
	TempDir     string   `mapstructure:"temp_dir"`
	MaxUploadMB int64    `mapstructure:"max_upload_mb"`
	Extensions  []string `mapstructure:"extensions"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	AnalyzeTimeout  time.Duration `mapstructure:"analyze_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	Metrics         bool          `mapstructure:"metrics"`
}

// BatchConfig controls the batch command.
type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

// WatchConfig controls inbox polling.
type WatchConfig struct {
	Dir          string        `mapstructure:"dir"`
	OutputDir    string        `mapstructure:"output_dir"`
	Pattern      string        `mapstructure:"pattern"`
	Interval     time.Duration `mapstructure:"interval"`
	Settle       time.Duration `mapstructure:"settle"`
	AlignToStart bool          `mapstructure:"align_to_start"`
}

// AlertingConfig routes notifications for unusable recordings.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Timeout  time.Duration  `mapstructure:"timeout"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ECGQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ecgqa")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("analysis.channel", "CH2")
	v.SetDefault("analysis.sampling_rate", 500.0)
	v.SetDefault("analysis.unit_scale", 1000.0)
	v.SetDefault("analysis.window_seconds", 10.0)
	v.SetDefault("analysis.max_duration_seconds", 300.0)
	v.SetDefault("analysis.highpass_hz", 0.5)
	v.SetDefault("analysis.lowpass_hz", 40.0)
	v.SetDefault("analysis.powerline_hz", 50.0)
	v.SetDefault("analysis.notch_q", 30.0)
	v.SetDefault("analysis.refractory_seconds", 0.3)
	v.SetDefault("analysis.include_signals", false)

	v.SetDefault("quality.msqi_good", 0.7)
	v.SetDefault("quality.msqi_reject", 0.5)
	v.SetDefault("quality.ksqi_artifact", 3.0)
	v.SetDefault("quality.ksqi_good", 5.0)
	v.SetDefault("quality.ksqi_max", 50.0)
	v.SetDefault("quality.min_hr", 30.0)
	v.SetDefault("quality.max_hr", 220.0)
	v.SetDefault("quality.min_beats", 2)
	v.SetDefault("quality.min_good_ratio", 0.2)

	v.SetDefault("upload.temp_dir", "")
	v.SetDefault("upload.max_upload_mb", 50)
	v.SetDefault("upload.extensions", []string{".txt"})

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "2m")
	v.SetDefault("server.analyze_timeout", "90s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.metrics", true)

	v.SetDefault("batch.workers", 4)

	v.SetDefault("watch.dir", "")
	v.SetDefault("watch.output_dir", "")
	v.SetDefault("watch.pattern", "*.txt")
	v.SetDefault("watch.interval", "30s")
	v.SetDefault("watch.settle", "5s")
	v.SetDefault("watch.align_to_start", false)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.timeout", "10s")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Analysis.Channel == "" {
		return fmt.Errorf("analysis.channel must be set")
	}
	if c.Analysis.SamplingRate <= 0 {
		return fmt.Errorf("analysis.sampling_rate must be greater than zero")
	}
	if c.Analysis.WindowSeconds <= 0 {
		return fmt.Errorf("analysis.window_seconds must be greater than zero")
	}
	if c.Analysis.MaxDurationSeconds < 0 {
		return fmt.Errorf("analysis.max_duration_seconds cannot be negative")
	}
	if c.Analysis.UnitScale == 0 {
		return fmt.Errorf("analysis.unit_scale cannot be zero")
	}
	if c.Quality.MSQIGood < 0 || c.Quality.MSQIGood > 1 || c.Quality.MSQIReject < 0 || c.Quality.MSQIReject > 1 {
		return fmt.Errorf("quality.msqi_good and quality.msqi_reject must be within [0, 1]")
	}
	if c.Quality.MSQIReject > c.Quality.MSQIGood {
		return fmt.Errorf("quality.msqi_reject cannot exceed quality.msqi_good")
	}
	if c.Quality.KSQIArtifact > c.Quality.KSQIGood || c.Quality.KSQIGood > c.Quality.KSQIMax {
		return fmt.Errorf("quality kurtosis thresholds must satisfy ksqi_artifact <= ksqi_good <= ksqi_max")
	}
	if c.Quality.MinHR <= 0 || c.Quality.MinHR >= c.Quality.MaxHR {
		return fmt.Errorf("quality.min_hr must be positive and below quality.max_hr")
	}
	if c.Quality.MinBeats < 2 {
		return fmt.Errorf("quality.min_beats must be at least 2")
	}
	if c.Quality.MinGoodRatio < 0 || c.Quality.MinGoodRatio > 1 {
		return fmt.Errorf("quality.min_good_ratio must be within [0, 1]")
	}
	if c.Upload.MaxUploadMB <= 0 {
		return fmt.Errorf("upload.max_upload_mb must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("batch.workers must be greater than zero")
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be greater than zero")
	}
	if c.Watch.Settle < 0 {
		return fmt.Errorf("watch.settle cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

// ResolveWorkers returns either the CLI override or config default.
func (c *Config) ResolveWorkers(override int) int {
	if override > 0 {
		return override
	}
	return c.Batch.Workers
}
