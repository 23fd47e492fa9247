// Package config loads inventario settings from defaults, an optional
// config file and INVENTARIO_* environment variables.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/roach88/inventario/internal/kv"
)

// Environment variables read by Load.
const (
	EnvConfig    = "INVENTARIO_CONFIG"
	EnvDB        = "INVENTARIO_DB"
	EnvEngine    = "INVENTARIO_ENGINE"
	EnvExportDir = "INVENTARIO_EXPORT_DIR"
	EnvLogLevel  = "INVENTARIO_LOG_LEVEL"
	EnvLogFormat = "INVENTARIO_LOG_FORMAT"
)

var (
	errConfigFileNotFound = errors.New("config file not found")
	errConfigInvalid      = errors.New("invalid config")
)

// Config holds all configuration options.
type Config struct {
	DB        string    `yaml:"db" json:"db"`
	Engine    string    `yaml:"engine" json:"engine"`
	ExportDir string    `yaml:"export_dir" json:"export_dir"` //nolint:tagliatelle // snake_case for config file
	Log       LogConfig `yaml:"log" json:"log"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // text, json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DB:        "inventario.db",
		Engine:    kv.EngineSQLite,
		ExportDir: ".",
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load builds the configuration. Order: defaults -> config file -> env.
//
// The file is path, or $INVENTARIO_CONFIG when path is empty. A named file
// must exist. Files ending in .json or .jsonc are read as JSON with
// comments; anything else as YAML.
func Load(path string, env []string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = lookupEnv(env, EnvConfig)
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg, env)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", errConfigFileNotFound, path)
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return fmt.Errorf("%w %s: invalid JSONC: %w", errConfigInvalid, path, err)
		}
		dec := json.NewDecoder(bytes.NewReader(standardized))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
		}
	default:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config, env []string) {
	if v := lookupEnv(env, EnvDB); v != "" {
		cfg.DB = v
	}
	if v := lookupEnv(env, EnvEngine); v != "" {
		cfg.Engine = v
	}
	if v := lookupEnv(env, EnvExportDir); v != "" {
		cfg.ExportDir = v
	}
	if v := lookupEnv(env, EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := lookupEnv(env, EnvLogFormat); v != "" {
		cfg.Log.Format = v
	}
}

// lookupEnv returns the last value of key in env.
func lookupEnv(env []string, key string) string {
	val := ""
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, key+"="); ok {
			val = after
		}
	}
	return val
}

// Validate checks that every option has a usable value.
func (c Config) Validate() error {
	if c.DB == "" {
		return fmt.Errorf("%w: db path is empty", errConfigInvalid)
	}
	if c.Engine != kv.EngineSQLite && c.Engine != kv.EngineBolt {
		return fmt.Errorf("%w: engine must be %s or %s, got %q", errConfigInvalid, kv.EngineSQLite, kv.EngineBolt, c.Engine)
	}
	if c.ExportDir == "" {
		return fmt.Errorf("%w: export_dir is empty", errConfigInvalid)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", errConfigInvalid, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%w: log format must be text or json, got %q", errConfigInvalid, c.Log.Format)
	}
	return nil
}
