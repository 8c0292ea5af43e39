// Package config loads the YAML configuration and sets up logging.
package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/kass/go-blast-survey/pkg/models"
)

// DefaultFiles are tried in order when no config path is given
var DefaultFiles = []string{"config.yaml", "config.yaml.example"}

// Config is the top-level configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// DatabaseConfig selects and tunes the storage driver
type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // sqlite or postgres
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// LogConfig controls the global zap logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// AnalysisConfig holds the bench defaults used when a request omits them
type AnalysisConfig struct {
	RockDensityTM3 float64 `yaml:"rock_density_t_m3"`
	BenchHeightM   float64 `yaml:"bench_height_m"`
}

// BenchContext returns the configured bench defaults
func (a AnalysisConfig) BenchContext() models.BenchContext {
	return models.BenchContext{
		RockDensityTM3: a.RockDensityTM3,
		BenchHeightM:   a.BenchHeightM,
	}
}

// Default returns the configuration used when no file is present
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "blast_survey.db",
			MaxOpenConns: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Analysis: AnalysisConfig{
			RockDensityTM3: models.DefaultRockDensityTM3,
			BenchHeightM:   models.DefaultBenchHeightM,
		},
	}
}

// Load reads the config file at path over the defaults. An empty path
// tries DefaultFiles; if none exists the defaults are returned as is.
func Load(path string) (*Config, error) {
	cfg := Default()

	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "config: read %s", path)
		}
		data = b
	} else {
		for _, candidate := range DefaultFiles {
			b, err := os.ReadFile(candidate)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, eris.Wrapf(err, "config: read %s", candidate)
			}
			data = b
			break
		}
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, eris.Wrap(err, "config: parse yaml")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later in a confusing way
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return eris.New("config: database dsn is empty")
	}
	if c.Analysis.RockDensityTM3 <= 0 || c.Analysis.BenchHeightM <= 0 {
		return eris.New("config: analysis defaults must be positive")
	}
	return nil
}

// InitLogger initializes the global zap logger
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(parsed)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
