// ABOUTME: Configuration loading and parsing for the parlor client
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Default values applied before a config file is decoded.
const (
	DefaultBaseURL = "http://localhost:8000/api"
	DefaultTimeout = 60 * time.Second
)

// Credential store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config represents the complete parlor configuration
type Config struct {
	Gateway     GatewayConfig     `yaml:"gateway" toml:"gateway"`
	Credentials CredentialsConfig `yaml:"credentials" toml:"credentials"`
	Chat        ChatConfig        `yaml:"chat" toml:"chat"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
}

// GatewayConfig holds the remote assistant service settings
type GatewayConfig struct {
	BaseURL string        `yaml:"base_url" toml:"base_url"`
	Timeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// CredentialsConfig selects where the auth token and user id are kept
type CredentialsConfig struct {
	Backend string `yaml:"backend" toml:"backend"`
	Path    string `yaml:"path" toml:"path"` // directory for file, database file for sqlite
}

// ChatConfig holds initial chat toggles
type ChatConfig struct {
	WebSearch bool `yaml:"web_search" toml:"web_search"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a configuration usable without any file on disk.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout,
		},
		Credentials: CredentialsConfig{
			Backend: BackendFile,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadDefault resolves the config path (explicit path, PARLOR_CONFIG,
// ./parlor.yaml, then the XDG config directory) and loads it. When no file
// exists the defaults are returned.
func LoadDefault(explicit string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	if env := os.Getenv("PARLOR_CONFIG"); env != "" {
		return Load(env)
	}

	candidates := []string{"parlor.yaml"}
	if dir, err := ConfigDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(dir, "config.yaml"),
			filepath.Join(dir, "config.toml"),
		)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}

	cfg := Default()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// ConfigDir returns $XDG_CONFIG_HOME/parlor, falling back to ~/.config/parlor.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "parlor"), nil
}

// CredentialsPath returns the configured credential location or the
// backend's default inside ConfigDir.
func (c *Config) CredentialsPath() (string, error) {
	if c.Credentials.Path != "" {
		return c.Credentials.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if c.Credentials.Backend == BackendSQLite {
		return filepath.Join(dir, "credentials.db"), nil
	}
	return dir, nil
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

func applyEnvOverrides(cfg *Config) {
	if u := os.Getenv("PARLOR_GATEWAY_URL"); u != "" {
		cfg.Gateway.BaseURL = u
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway.base_url is required")
	}
	u, err := url.Parse(c.Gateway.BaseURL)
	if err != nil {
		return fmt.Errorf("gateway.base_url is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("gateway.base_url must use http or https, got %q", u.Scheme)
	}

	if c.Gateway.Timeout < 0 {
		return fmt.Errorf("gateway.timeout must not be negative")
	}

	switch c.Credentials.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("credentials.backend must be one of file, sqlite, memory, got %q", c.Credentials.Backend)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Gateway.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Gateway.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", cfg.Gateway.TimeoutRaw, err)
		}
		cfg.Gateway.Timeout = d
	}
	return nil
}
