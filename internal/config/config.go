package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the HRV analysis engine
// and its companion binaries.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Rules    RulesConfig    `yaml:"rules"`
	History  HistoryConfig  `yaml:"history"`
	Stream   StreamConfig   `yaml:"stream"`
	Export   ExportConfig   `yaml:"export"`
	Logging  LoggingConfig  `yaml:"logging"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// ArchiveConfig configures access to the physiological-signal archive
// serving WFDB records over HTTP.
type ArchiveConfig struct {
	BaseURL       string        `yaml:"baseURL"`
	Database      string        `yaml:"database"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"ratePerSecond"`
	Burst         int           `yaml:"burst"`
	SegmentTTL    time.Duration `yaml:"segmentTTL"`
	CacheMaxBytes int           `yaml:"cacheMaxBytes"`
}

// PipelineConfig carries the signal-processing knobs for one analysis
// invocation. Zero values select the documented defaults downstream.
type PipelineConfig struct {
	// PeakHeight is an absolute R-peak threshold in mV; 0 switches to an
	// adaptive mean + PeakHeightSigma*std threshold per window.
	PeakHeight      float64 `yaml:"peakHeight"`
	PeakHeightSigma float64 `yaml:"peakHeightSigma"`
	PeakMinDistance int     `yaml:"peakMinDistance"`
	ResampleHz      float64 `yaml:"resampleHz"`
	WelchSegment    int     `yaml:"welchSegment"`
	HistogramBinMS  float64 `yaml:"histogramBinMS"`
	// DefaultWindowSec is the archive analysis window when a request
	// does not specify one.
	DefaultWindowSec float64 `yaml:"defaultWindowSec"`
}

// RulesConfig controls rule-pack loading for the state classifier.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// HistoryConfig bounds the in-memory analysis history.
type HistoryConfig struct {
	MaxEntries int `yaml:"maxEntries"`
}

// StreamConfig configures the NATS-backed live analysis path.
type StreamConfig struct {
	Enabled        bool    `yaml:"enabled"`
	URL            string  `yaml:"url"`
	RawSubject     string  `yaml:"rawSubject"`
	StateSubject   string  `yaml:"stateSubject"`
	SamplingRate   float64 `yaml:"samplingRate"`
	WindowSec      float64 `yaml:"windowSec"`
	StepSec        float64 `yaml:"stepSec"`
	MetricsAddress string  `yaml:"metricsAddress"`
}

// ExportConfig controls the parquet feature-dataset writer.
type ExportConfig struct {
	Enabled bool     `yaml:"enabled"`
	Dir     string   `yaml:"dir"`
	S3      S3Config `yaml:"s3"`
}

// S3Config configures optional upload of closed dataset files.
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"pathStyle"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls Valkey-backed caching of archive segments.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
}

// Load initialises Config from a YAML file and optional environment
// overrides, then validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("HRV_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings that would make detection or windowing
// nonsensical. These are programming/deployment errors, so boot fails
// fast instead of producing garbage analyses.
func (c *Config) Validate() error {
	if c.Pipeline.PeakHeightSigma < 0 {
		return fmt.Errorf("pipeline.peakHeightSigma must be >= 0, got %g", c.Pipeline.PeakHeightSigma)
	}
	if c.Pipeline.PeakMinDistance < 0 {
		return fmt.Errorf("pipeline.peakMinDistance must be >= 0, got %d", c.Pipeline.PeakMinDistance)
	}
	if c.Pipeline.ResampleHz < 0 {
		return fmt.Errorf("pipeline.resampleHz must be >= 0, got %g", c.Pipeline.ResampleHz)
	}
	if c.Pipeline.DefaultWindowSec <= 0 {
		return fmt.Errorf("pipeline.defaultWindowSec must be positive, got %g", c.Pipeline.DefaultWindowSec)
	}
	if c.Stream.Enabled {
		if c.Stream.SamplingRate <= 0 {
			return fmt.Errorf("stream.samplingRate must be positive, got %g", c.Stream.SamplingRate)
		}
		if c.Stream.WindowSec <= 0 || c.Stream.StepSec <= 0 {
			return fmt.Errorf("stream window/step must be positive, got %g/%g", c.Stream.WindowSec, c.Stream.StepSec)
		}
		if c.Stream.StepSec > c.Stream.WindowSec {
			return fmt.Errorf("stream.stepSec %g exceeds windowSec %g", c.Stream.StepSec, c.Stream.WindowSec)
		}
	}
	if c.Archive.RatePerSecond < 0 {
		return fmt.Errorf("archive.ratePerSecond must be >= 0, got %g", c.Archive.RatePerSecond)
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Archive: ArchiveConfig{
			Database:      "nsrdb/1.0.0",
			Timeout:       30 * time.Second,
			RatePerSecond: 2,
			Burst:         4,
			SegmentTTL:    10 * time.Minute,
			CacheMaxBytes: 4 << 20,
		},
		Pipeline: PipelineConfig{
			PeakHeightSigma:  2,
			PeakMinDistance:  50,
			ResampleHz:       4,
			WelchSegment:     256,
			HistogramBinMS:   50,
			DefaultWindowSec: 300,
		},
		Rules:   RulesConfig{Path: "configs/rules/default.yaml"},
		History: HistoryConfig{MaxEntries: 1024},
		Stream: StreamConfig{
			URL:            "nats://127.0.0.1:4222",
			RawSubject:     "ecg.raw",
			StateSubject:   "hrv.state",
			SamplingRate:   128,
			WindowSec:      60,
			StepSec:        10,
			MetricsAddress: ":2113",
		},
		Export: ExportConfig{
			Dir: "data/features",
			S3:  S3Config{Region: "us-east-1"},
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HRV_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("HRV_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("HRV_ARCHIVE_BASE_URL"); v != "" {
		cfg.Archive.BaseURL = v
	}
	if v := os.Getenv("HRV_ARCHIVE_DATABASE"); v != "" {
		cfg.Archive.Database = v
	}
	if v := os.Getenv("HRV_ARCHIVE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Archive.Timeout = d
		}
	}
	if v := os.Getenv("HRV_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("HRV_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HRV_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("HRV_HISTORY_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.History.MaxEntries = n
		}
	}
	if v := os.Getenv("HRV_STREAM_ENABLED"); v != "" {
		cfg.Stream.Enabled = isTruthy(v)
	}
	if v := os.Getenv("HRV_NATS_URL"); v != "" {
		cfg.Stream.URL = v
	}
	if v := os.Getenv("HRV_STREAM_RAW_SUBJECT"); v != "" {
		cfg.Stream.RawSubject = v
	}
	if v := os.Getenv("HRV_STREAM_STATE_SUBJECT"); v != "" {
		cfg.Stream.StateSubject = v
	}
	if v := os.Getenv("HRV_EXPORT_ENABLED"); v != "" {
		cfg.Export.Enabled = isTruthy(v)
	}
	if v := os.Getenv("HRV_EXPORT_DIR"); v != "" {
		cfg.Export.Dir = v
	}
	if v := os.Getenv("HRV_EXPORT_S3_ENABLED"); v != "" {
		cfg.Export.S3.Enabled = isTruthy(v)
	}
	if v := os.Getenv("HRV_EXPORT_S3_BUCKET"); v != "" {
		cfg.Export.S3.Bucket = v
	}
	if v := os.Getenv("HRV_EXPORT_S3_REGION"); v != "" {
		cfg.Export.S3.Region = v
	}
	if v := os.Getenv("HRV_EXPORT_S3_ENDPOINT"); v != "" {
		cfg.Export.S3.Endpoint = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" && cfg.Export.S3.AccessKeyID == "" {
		cfg.Export.S3.AccessKeyID = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" && cfg.Export.S3.SecretAccessKey == "" {
		cfg.Export.S3.SecretAccessKey = v
	}
	if v := os.Getenv("HRV_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = isTruthy(v)
	}
	if v := os.Getenv("HRV_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("HRV_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("HRV_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("HRV_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("HRV_CACHE_TLS"); isTruthy(v) {
		cfg.Cache.TLS = true
	}
}

func isTruthy(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
