// ABOUTME: Configuration loading and parsing for hivemind
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete hivemind configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Feed     FeedConfig     `yaml:"feed"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the listen address and external origin
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	// BaseURL is the externally visible origin used to build magic links
	// and decide cookie security attributes. https origins get Secure cookies.
	BaseURL string `yaml:"base_url"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds credential lifetime configuration
type AuthConfig struct {
	LoginTokenTTL  time.Duration `yaml:"-"`
	SessionTTL     time.Duration `yaml:"-"`
	IdempotencyTTL time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	LoginTokenTTLRaw  string `yaml:"login_token_ttl"`
	SessionTTLRaw     string `yaml:"session_ttl"`
	IdempotencyTTLRaw string `yaml:"idempotency_ttl"`
}

// FeedConfig holds feed presentation configuration
type FeedConfig struct {
	DefaultLimit    int `yaml:"default_limit"`
	MaxLimit        int `yaml:"max_limit"`
	PreviewComments int `yaml:"preview_comments"`
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

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			HTTPAddr: ":8080",
			BaseURL:  "http://localhost:8080",
		},
		Database: DatabaseConfig{Path: "hivemind.db"},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Feed.DefaultLimit == 0 {
		c.Feed.DefaultLimit = 20
	}
	if c.Feed.MaxLimit == 0 {
		c.Feed.MaxLimit = 50
	}
	if c.Feed.PreviewComments == 0 {
		c.Feed.PreviewComments = 3
	}
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
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Feed.DefaultLimit > c.Feed.MaxLimit {
		return fmt.Errorf("feed.default_limit %d exceeds feed.max_limit %d", c.Feed.DefaultLimit, c.Feed.MaxLimit)
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.LoginTokenTTLRaw != "" {
		cfg.Auth.LoginTokenTTL, err = time.ParseDuration(cfg.Auth.LoginTokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing login_token_ttl %q: %w", cfg.Auth.LoginTokenTTLRaw, err)
		}
	}

	if cfg.Auth.SessionTTLRaw != "" {
		cfg.Auth.SessionTTL, err = time.ParseDuration(cfg.Auth.SessionTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session_ttl %q: %w", cfg.Auth.SessionTTLRaw, err)
		}
	}

	if cfg.Auth.IdempotencyTTLRaw != "" {
		cfg.Auth.IdempotencyTTL, err = time.ParseDuration(cfg.Auth.IdempotencyTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing idempotency_ttl %q: %w", cfg.Auth.IdempotencyTTLRaw, err)
		}
	}

	return nil
}
