package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"telemetryprep/internal/errors"
)

// Config represents the complete configuration shared by both tools
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Combine   CombineConfig   `yaml:"combine" envconfig:"COMBINE"`
	Select    SelectConfig    `yaml:"select" envconfig:"SELECT"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output console"`
}

// TelemetryConfig controls tracing and the metrics textfile
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	Environment    string `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricExporter string `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"oneof=prometheus none"`
	// MetricsFile is a Prometheus textfile written when a run finishes.
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// CombineConfig holds the combiner options
type CombineConfig struct {
	InputDir   string `yaml:"input_dir" envconfig:"INPUT_DIR" validate:"required"`
	OutputFile string `yaml:"output_file" envconfig:"OUTPUT_FILE" validate:"required"`
	ChunkSize  int    `yaml:"chunk_size" envconfig:"CHUNK_SIZE" validate:"gt=0"`
	AllowEmpty bool   `yaml:"allow_empty" envconfig:"ALLOW_EMPTY"`
	Atomic     bool   `yaml:"atomic" envconfig:"ATOMIC"`
	Encoding   string `yaml:"encoding" envconfig:"ENCODING" validate:"oneof=utf-8 latin1 windows-1252"`
}

// SelectConfig holds the feature selector options
type SelectConfig struct {
	InputFile         string `yaml:"input_file" envconfig:"INPUT_FILE" validate:"required"`
	OutputFile        string `yaml:"output_file" envconfig:"OUTPUT_FILE"`
	PreviewRows       int    `yaml:"preview_rows" envconfig:"PREVIEW_ROWS" validate:"gte=0"`
	ConvertTimestamps bool   `yaml:"convert_timestamps" envconfig:"CONVERT_TIMESTAMPS"`
	Encoding          string `yaml:"encoding" envconfig:"ENCODING" validate:"oneof=utf-8 latin1 windows-1252"`
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment (highest priority). A .env file in the working directory is
// loaded into the environment first without overriding variables already set.
// An empty configFile searches the usual locations.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if err := loadEnvFile(DefaultEnvFile); err != nil {
		return nil, err
	}

	if configFile == "" {
		configFile = getConfigFilePath()
	} else if _, err := os.Stat(configFile); err != nil {
		return nil, errors.NewNotFoundError(fmt.Sprintf("config file %s", configFile), err)
	}

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, errors.NewConfigError("failed to load config from file", err).
				WithContext("config_file", configFile)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads KEY=VALUE pairs from path when the file exists
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.NewConfigError("failed to load env file", err).WithContext("env_file", path)
	}
	return nil
}

// loadFromFile overlays YAML values from filePath onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// getConfigFilePath returns the first config file found in the common locations
func getConfigFilePath() string {
	for _, location := range configFileLocations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

var validate = validator.New()

// Validate checks every section of the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if stderrors.As(err, &fieldErrs) {
			problems := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				problems = append(problems, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
			}
			return errors.NewConfigError("config validation failed: "+strings.Join(problems, "; "), err)
		}
		return errors.NewConfigError("config validation failed", err)
	}
	return nil
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: DefaultLogFile,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    ServiceName,
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
		},
		Combine: CombineConfig{
			InputDir:   DefaultInputDir,
			OutputFile: DefaultCombinedFile,
			ChunkSize:  DefaultChunkSize,
			Encoding:   DefaultEncoding,
		},
		Select: SelectConfig{
			InputFile:   DefaultCombinedFile,
			PreviewRows: DefaultPreviewRows,
			Encoding:    DefaultEncoding,
		},
	}
}
