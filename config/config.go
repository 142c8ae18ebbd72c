// Package config loads config.yaml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"churnai/logging"
	"churnai/training"
)

// DefaultPath is read when no path is given and CHURN_CONFIG is unset.
const DefaultPath = "config.yaml"

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// AllowedOrigins for CORS; empty allows none.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ModelConfig struct {
	Dir       string        `yaml:"dir"`
	CacheSize int           `yaml:"cache_size"`
	Watch     bool          `yaml:"watch"`
	Debounce  time.Duration `yaml:"debounce"`
}

type Config struct {
	HTTP     HTTPConfig      `yaml:"http"`
	Database DatabaseConfig  `yaml:"database"`
	Log      logging.Config  `yaml:"log"`
	Model    ModelConfig     `yaml:"model"`
	Training training.Config `yaml:"training"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP:     HTTPConfig{Port: 5000, RequestTimeout: 30 * time.Second},
		Database: DatabaseConfig{Path: "churn.db"},
		Log:      logging.Config{Level: "info", Format: "console", MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28},
		Model:    ModelConfig{Dir: "models", CacheSize: 1024, Watch: true, Debounce: 500 * time.Millisecond},
		Training: training.DefaultConfig(),
	}
}

// Load reads path (or CHURN_CONFIG, or config.yaml) over Default. A missing
// file is not an error when path was not given explicitly.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
		if env := os.Getenv("CHURN_CONFIG"); env != "" {
			path, explicit = env, true
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.HTTP.Port == 0 {
		c.HTTP.Port = def.HTTP.Port
	}
	if c.HTTP.RequestTimeout == 0 {
		c.HTTP.RequestTimeout = def.HTTP.RequestTimeout
	}
	if c.Database.Path == "" {
		c.Database.Path = def.Database.Path
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = def.Log.MaxSizeMB
	}
	if c.Model.Dir == "" {
		c.Model.Dir = def.Model.Dir
	}
	if c.Model.CacheSize == 0 {
		c.Model.CacheSize = def.Model.CacheSize
	}
	if c.Model.Debounce == 0 {
		c.Model.Debounce = def.Model.Debounce
	}
	c.Training.ModelDir = c.Model.Dir
	c.Training.ApplyDefaults()
}

// Validate checks ranges the server cannot start with.
func (c *Config) Validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if c.HTTP.RequestTimeout < 0 {
		return errors.New("http.request_timeout must not be negative")
	}
	return c.Training.Validate()
}

func applyEnv(cfg *Config) error {
	if err := envOverrideInt(&cfg.HTTP.Port, "CHURN_HTTP_PORT"); err != nil {
		return err
	}
	envOverride(&cfg.Model.Dir, "CHURN_MODEL_DIR")
	envOverride(&cfg.Database.Path, "CHURN_DB_PATH")
	envOverride(&cfg.Log.Level, "CHURN_LOG_LEVEL")
	envOverride(&cfg.Training.DataPath, "CHURN_DATA_PATH")
	envOverride(&cfg.Training.Schedule, "CHURN_TRAIN_SCHEDULE")
	return nil
}

func envOverride(field *string, envKey string) {
	if val := strings.TrimSpace(os.Getenv(envKey)); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := strings.TrimSpace(os.Getenv(envKey)); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}
