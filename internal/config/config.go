// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob of a harvest run.
type Config struct {
	Run       RunConfig       `mapstructure:"run"`
	Input     InputConfig     `mapstructure:"input"`
	Output    OutputConfig    `mapstructure:"output"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Translate TranslateConfig `mapstructure:"translate"`
	PDF       PDFConfig       `mapstructure:"pdf"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// RunConfig sizes the worker pool and checkpoint cadence.
type RunConfig struct {
	Concurrency     int `mapstructure:"concurrency"`
	CheckpointEvery int `mapstructure:"checkpoint_every"`
}

// InputConfig locates the worklist spreadsheet.
type InputConfig struct {
	Path           string   `mapstructure:"path"`
	Sheet          string   `mapstructure:"sheet"`
	KeyColumn      string   `mapstructure:"key_column"`
	SourceColumns  []string `mapstructure:"source_columns"`
	SourceTemplate string   `mapstructure:"source_template"`
}

// OutputConfig chooses where checkpoints are written. DryRun wins over
// GCSBucket, which wins over the local path.
type OutputConfig struct {
	Path      string `mapstructure:"path"`
	Sheet     string `mapstructure:"sheet"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSObject string `mapstructure:"gcs_object"`

	// DryRun keeps checkpoints and notifications in memory.
	DryRun bool `mapstructure:"dry_run"`
}

// HTTPConfig configures the document fetcher.
type HTTPConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	PerHostRPS     float64 `mapstructure:"per_host_rps"`
	PerHostBurst   int     `mapstructure:"per_host_burst"`
}

// HeadlessConfig configures the browser used by the link task. Render routes
// page fetches of the text tasks through the browser as well.
type HeadlessConfig struct {
	Render         bool   `mapstructure:"render"`
	MaxParallel    int    `mapstructure:"max_parallel"`
	NavTimeoutSec  int    `mapstructure:"nav_timeout_seconds"`
	StepTimeoutSec int    `mapstructure:"step_timeout_seconds"`
	ExecPath       string `mapstructure:"exec_path"`
}

// TranslateConfig configures the chunked translation task.
type TranslateConfig struct {
	Endpoint     string `mapstructure:"endpoint"`
	SourceLang   string `mapstructure:"source_lang"`
	TargetLang   string `mapstructure:"target_lang"`
	MaxChunkSize int    `mapstructure:"max_chunk_size"`
	MinDelayMs   int    `mapstructure:"min_delay_ms"`
	Field        string `mapstructure:"field"`
}

// PDFConfig selects the page extracted by the pdfpage task.
type PDFConfig struct {
	Page int `mapstructure:"page"`
}

// ExtractConfig overrides parts of a task preset.
type ExtractConfig struct {
	Field       string `mapstructure:"field"`
	Selector    string `mapstructure:"selector"`
	Placeholder string `mapstructure:"placeholder"`
	Marker      string `mapstructure:"marker"`
}

// DBConfig enables the Postgres result sink when DSN is set.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// PubSubConfig enables checkpoint notifications when both fields are set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the optional status server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("run.concurrency", 4)
	v.SetDefault("run.checkpoint_every", 10)
	v.SetDefault("output.path", "harvest_output.xlsx")
	v.SetDefault("output.dry_run", false)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "worklist-harvester/0.1")
	v.SetDefault("http.per_host_rps", 0)
	v.SetDefault("http.per_host_burst", 1)
	v.SetDefault("headless.render", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("headless.step_timeout_seconds", 10)
	v.SetDefault("translate.endpoint", "https://translate.googleapis.com/translate_a/single")
	v.SetDefault("translate.source_lang", "ko")
	v.SetDefault("translate.target_lang", "en")
	v.SetDefault("translate.max_chunk_size", 5000)
	v.SetDefault("translate.min_delay_ms", 500)
	v.SetDefault("pdf.page", 2)
	v.SetDefault("extract.marker", "PAR")
	v.SetDefault("db.table", "harvest_results")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("server.port", 0)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Run.Concurrency <= 0 {
		return fmt.Errorf("run.concurrency must be > 0")
	}
	if c.Run.CheckpointEvery <= 0 {
		return fmt.Errorf("run.checkpoint_every must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.PerHostRPS < 0 {
		return fmt.Errorf("http.per_host_rps must be >= 0")
	}
	if c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0")
	}
	if c.Translate.MaxChunkSize <= 0 {
		return fmt.Errorf("translate.max_chunk_size must be > 0")
	}
	if c.Translate.MinDelayMs < 0 {
		return fmt.Errorf("translate.min_delay_ms must be >= 0")
	}
	if c.PDF.Page <= 0 {
		return fmt.Errorf("pdf.page must be > 0")
	}
	if c.Server.Port < 0 {
		return fmt.Errorf("server.port must be >= 0")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	if c.Output.GCSBucket == "" && c.Output.Path == "" {
		return fmt.Errorf("output.path or output.gcs_bucket must be set")
	}
	return nil
}

// HTTPTimeout converts the fetch timeout to a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// TranslateDelay converts the inter-call delay to a duration.
func (c Config) TranslateDelay() time.Duration {
	return time.Duration(c.Translate.MinDelayMs) * time.Millisecond
}
