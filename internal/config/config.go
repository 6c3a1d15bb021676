// Package config loads the records CLI configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	records "github.com/goliatone/go-records"
)

// Supported expression engines for derived fields.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// ValidEngines lists the accepted values of Config.Engine.
var ValidEngines = []string{EngineExpr, EngineCEL, EngineJS}

// ValidLogLevels lists the accepted values of LoggingConfig.Level.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Config holds the projection settings used by the CLI.
type Config struct {
	IDField      string         `yaml:"id_field"`
	OptionsField string         `yaml:"options_field"`
	Exclude      []string       `yaml:"exclude,omitempty"`
	Defaults     map[string]any `yaml:"defaults,omitempty"`
	Required     []string       `yaml:"required,omitempty"`
	Derived      []DerivedField `yaml:"derived,omitempty"`

	// Engine evaluates derived fields: expr, cel or js (js needs the js_eval
	// build tag).
	Engine              string `yaml:"engine"`
	StorefrontFunctions bool   `yaml:"storefront_functions"`

	Activity ActivityConfig `yaml:"activity"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DerivedField is one computed field, evaluated in file order.
type DerivedField struct {
	Name string `yaml:"name"`
	Expr string `yaml:"expr"`
}

// ActivityConfig attributes emitted projection events.
type ActivityConfig struct {
	Channel  string `yaml:"channel,omitempty"`
	ActorID  string `yaml:"actor_id,omitempty"`
	TenantID string `yaml:"tenant_id,omitempty"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		IDField:      records.DefaultIDField,
		OptionsField: records.DefaultOptionsField,
		Engine:       EngineExpr,
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. An empty path or a missing file
// yields the defaults. Environment overrides are applied in every case.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies RECORDS_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RECORDS_ID_FIELD"); v != "" {
		c.IDField = v
	}
	if v := os.Getenv("RECORDS_OPTIONS_FIELD"); v != "" {
		c.OptionsField = v
	}
	if v := os.Getenv("RECORDS_ENGINE"); v != "" {
		c.Engine = strings.ToLower(v)
	}
	if v := os.Getenv("RECORDS_EXCLUDE"); v != "" {
		c.Exclude = splitList(v)
	}
	if v := os.Getenv("RECORDS_ACTIVITY_CHANNEL"); v != "" {
		c.Activity.Channel = v
	}
	if v := os.Getenv("RECORDS_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// Validate checks the engine, log level and derived field entries.
func (c *Config) Validate() error {
	if !contains(ValidEngines, c.Engine) {
		return fmt.Errorf("invalid engine: %s (valid: %v)", c.Engine, ValidEngines)
	}
	if c.Logging.Level != "" && !contains(ValidLogLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}
	for i, field := range c.Derived {
		if field.Name == "" || field.Expr == "" {
			return fmt.Errorf("derived[%d]: name and expr are required", i)
		}
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func contains(list []string, value string) bool {
	for _, candidate := range list {
		if candidate == value {
			return true
		}
	}
	return false
}
