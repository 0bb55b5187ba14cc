// ABOUTME: Configuration loading and parsing for morph-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete morph-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Modules  ModulesConfig  `yaml:"modules"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// DispatchConfig selects and configures the task-execution backend.
// Backend is "http" (remote task queue) or "exec" (local worker process).
type DispatchConfig struct {
	Backend     string        `yaml:"backend"`
	MaxDuration time.Duration `yaml:"-"`

	// http backend
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`

	// exec backend
	WorkerCommand string   `yaml:"worker_command"`
	WorkerArgs    []string `yaml:"worker_args"`

	// Raw string value for YAML unmarshaling
	MaxDurationRaw string `yaml:"max_duration"`
}

// ModulesConfig holds module profile configuration
type ModulesConfig struct {
	// Dir is an optional directory of TOML module profile files loaded at
	// startup in addition to the built-in profiles.
	Dir string `yaml:"dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	switch c.Dispatch.Backend {
	case "http":
		if c.Dispatch.BaseURL == "" {
			return fmt.Errorf("dispatch.base_url is required for the http backend")
		}
	case "exec":
		if c.Dispatch.WorkerCommand == "" {
			return fmt.Errorf("dispatch.worker_command is required for the exec backend")
		}
	case "":
		return fmt.Errorf("dispatch.backend is required (http or exec)")
	default:
		return fmt.Errorf("unknown dispatch.backend %q (want http or exec)", c.Dispatch.Backend)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Dispatch.MaxDurationRaw != "" {
		d, err := time.ParseDuration(cfg.Dispatch.MaxDurationRaw)
		if err != nil {
			return fmt.Errorf("parsing max_duration %q: %w", cfg.Dispatch.MaxDurationRaw, err)
		}
		cfg.Dispatch.MaxDuration = d
	}
	return nil
}
