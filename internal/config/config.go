package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "gradecli/internal/errors"
)

// Config is the complete application configuration. It is loaded once at
// startup and threaded explicitly through the pipeline; there is no
// process-wide mutable default.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging" envconfig:"LOGGING"`
	Paths       PathsConfig       `yaml:"paths" envconfig:"PATHS"`
	Fetch       FetchConfig       `yaml:"fetch" envconfig:"FETCH"`
	Aggregation AggregationConfig `yaml:"aggregation"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"text" validate:"oneof=text json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/gradecli.log"`
}

// PathsConfig contains file system paths configuration.
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	RawDir     string `yaml:"raw_dir" envconfig:"RAW_DIR" default:"data/raw"`
	ExportsDir string `yaml:"exports_dir" envconfig:"EXPORTS_DIR" default:"data/exports"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// FetchConfig configures the Brightspace export downloader.
type FetchConfig struct {
	BaseURL     string        `yaml:"base_url" envconfig:"BASE_URL"`
	Username    string        `yaml:"username" envconfig:"USERNAME"`
	Password    string        `yaml:"password" envconfig:"PASSWORD"`
	Headless    bool          `yaml:"headless" envconfig:"HEADLESS" default:"true"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"5m"`
	RequestsRPS float64       `yaml:"requests_rps" envconfig:"REQUESTS_RPS" default:"0.5"`
}

// AggregationConfig describes one aggregation run: the base gradebook, the
// engagement sources, and the output columns to compute.
type AggregationConfig struct {
	BaseGradebook     string         `yaml:"base_gradebook"`
	Sources           []SourceConfig `yaml:"sources" validate:"dive"`
	Columns           []ColumnConfig `yaml:"columns" validate:"dive"`
	KeepSourceColumns bool           `yaml:"keep_source_columns"`
	ZeroWarnPercent   float64        `yaml:"zero_warn_percent"`
}

// SourceConfig names one engagement data source and where to load it from.
type SourceConfig struct {
	Name string `yaml:"name" validate:"required"`
	Type string `yaml:"type" validate:"required,oneof=gradebook attendance edstem officehours roster scoresheet"`
	Path string `yaml:"path" validate:"required"`
}

// ColumnConfig describes one output column: either a direct source column
// reference or an arithmetic formula, plus post-processing policies.
// Entries are evaluated in the order given, so later formulas may
// reference earlier output columns.
type ColumnConfig struct {
	Name      string   `yaml:"name" validate:"required"`
	Source    string   `yaml:"source"`
	Column    string   `yaml:"column"`
	Formula   string   `yaml:"formula"`
	Scale     *float64 `yaml:"scale"`
	ClipUpper *float64 `yaml:"clip_upper"`
	ClipLower *float64 `yaml:"clip_lower"`
}

// Load loads configuration from the given YAML file (if it exists) with
// environment variable overrides under the GRADECLI prefix.
func Load(configFile string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process("GRADECLI", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			data, err := os.ReadFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/gradecli.log"
	}
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "data"
	}
	if c.Paths.RawDir == "" {
		c.Paths.RawDir = "data/raw"
	}
	if c.Paths.ExportsDir == "" {
		c.Paths.ExportsDir = "data/exports"
	}
	if c.Paths.LogsDir == "" {
		c.Paths.LogsDir = "logs"
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 5 * time.Minute
	}
	if c.Fetch.RequestsRPS == 0 {
		c.Fetch.RequestsRPS = 0.5
	}
	if c.Aggregation.ZeroWarnPercent == 0 {
		c.Aggregation.ZeroWarnPercent = 50.0
	}
}

// Validate checks structural constraints plus the cross-field rules the
// validator tags cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidConfig, err)
	}

	seen := make(map[string]bool)
	for _, src := range c.Aggregation.Sources {
		if seen[src.Name] {
			return apperrors.Wrapf(apperrors.ErrInvalidConfig, "duplicate source name %q", src.Name)
		}
		seen[src.Name] = true
	}

	for _, col := range c.Aggregation.Columns {
		hasRef := col.Source != "" && col.Column != ""
		hasFormula := col.Formula != ""
		if hasRef == hasFormula {
			return apperrors.Wrapf(apperrors.ErrInvalidConfig,
				"column %q must set exactly one of formula or source+column", col.Name)
		}
		if hasRef && !seen[col.Source] {
			return apperrors.Wrapf(apperrors.ErrInvalidConfig,
				"column %q references unknown source %q", col.Name, col.Source)
		}
	}
	return nil
}
