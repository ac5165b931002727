// Package config handles reading and writing <data-dir>/config.yaml and the
// PITCHLOG_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"pitchlog/internal/actions"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const configFile = "config.yaml"

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config is the top-level structure for config.yaml.
type Config struct {
	Version int           `yaml:"version"`
	Storage StorageConfig `yaml:"storage"`
	Actions ActionsConfig `yaml:"actions"`
	Log     LogConfig     `yaml:"log"`
	Report  ReportConfig  `yaml:"report"`
}

type StorageConfig struct {
	Backend string        `yaml:"backend"` // "sqlite" | "memory"
	Timeout time.Duration `yaml:"timeout"` // 0 disables the bound
}

// ActionsConfig seeds the action vocabulary and the stat rows every summary
// carries.
type ActionsConfig struct {
	Defaults []string `yaml:"defaults"`
	Known    []string `yaml:"known"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type ReportConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Env is the set of environment overrides. StorageTimeout is kept as text
// so an explicit "0s" can be told apart from unset.
type Env struct {
	Dir            string `env:"PITCHLOG_DIR" envDefault:".pitchlog"`
	StorageTimeout string `env:"PITCHLOG_STORAGE_TIMEOUT"`
	LogLevel       string `env:"PITCHLOG_LOG_LEVEL"`

	timeout time.Duration
}

// ParseEnv loads the overrides from the process environment.
func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	if err := e.parseTimeout(); err != nil {
		return Env{}, err
	}
	return e, nil
}

// ParseEnvFrom loads the overrides from vars instead of the process
// environment.
func ParseEnvFrom(vars map[string]string) (Env, error) {
	var e Env
	if err := env.ParseWithOptions(&e, env.Options{Environment: vars}); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	if err := e.parseTimeout(); err != nil {
		return Env{}, err
	}
	return e, nil
}

func (e *Env) parseTimeout() error {
	if e.StorageTimeout == "" {
		return nil
	}
	d, err := time.ParseDuration(e.StorageTimeout)
	if err != nil {
		return fmt.Errorf("parse env: PITCHLOG_STORAGE_TIMEOUT: %w", err)
	}
	e.timeout = d
	return nil
}

// Apply overlays the set overrides onto cfg.
func (e Env) Apply(cfg *Config) {
	if e.StorageTimeout != "" {
		cfg.Storage.Timeout = e.timeout
	}
	if e.LogLevel != "" {
		cfg.Log.Level = e.LogLevel
	}
}

// ReadConfig reads config.yaml from the data directory. Fields the file
// leaves out keep their defaults.
func ReadConfig(dir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the data directory's config, falling back to defaults when
// there is no file yet, and applies the environment overrides.
func Load(e Env) (*Config, error) {
	cfg, err := ReadConfig(e.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	e.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteConfig writes cfg to config.yaml, creating the data directory if
// needed.
func WriteConfig(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, configFile), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Timeout < 0 {
		return fmt.Errorf("config: negative storage timeout %s", c.Storage.Timeout)
	}
	return nil
}

// DefaultConfig returns a Config populated with the shipped defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Timeout: 2 * time.Second,
		},
		Actions: ActionsConfig{
			Defaults: slices.Clone(actions.Defaults),
			Known:    slices.Clone(actions.KnownStats),
		},
		Log: LogConfig{
			Level: "info",
		},
		Report: ReportConfig{
			Format: "markdown",
			Level:  "detailed",
		},
	}
}
