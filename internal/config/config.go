// ABOUTME: Configuration loading and parsing for lantern-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete lantern-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Tenancy  TenancyConfig  `yaml:"tenancy"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
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

	SessionTTL time.Duration `yaml:"-"`
	OTPTTL     time.Duration `yaml:"-"`

	// AllowAnonymousTransfer is the local-development bypass for the
	// transfer endpoint's caller check. Never enable in production.
	AllowAnonymousTransfer bool `yaml:"allow_anonymous_transfer"`

	// Raw string values for YAML unmarshaling
	SessionTTLRaw string `yaml:"session_ttl"`
	OTPTTLRaw     string `yaml:"otp_ttl"`
}

// TenancyConfig holds tenant resolution and route protection configuration
type TenancyConfig struct {
	// RootDomain is the platform suffix for subdomain tenant extraction,
	// e.g. "lantern.app" so that "acme.lantern.app" maps to tenant "acme".
	RootDomain string `yaml:"root_domain"`

	// ProtectedPrefixes lists path prefixes that require a valid session.
	ProtectedPrefixes []string `yaml:"protected_prefixes"`

	// AllowMissingTenant keeps the fail-open policy for authenticated
	// requests whose tenant cannot be resolved.
	AllowMissingTenant bool `yaml:"allow_missing_tenant"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults applied when fields are unset
const (
	DefaultSessionTTL = 7 * 24 * time.Hour
	DefaultOTPTTL     = 10 * time.Minute
	DefaultHTTPAddr   = "localhost:8080"
)

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

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in unset optional fields
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = DefaultSessionTTL
	}
	if c.Auth.OTPTTL == 0 {
		c.Auth.OTPTTL = DefaultOTPTTL
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Tenancy.RootDomain == "" {
		return fmt.Errorf("tenancy.root_domain is required")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.SessionTTLRaw != "" {
		cfg.Auth.SessionTTL, err = time.ParseDuration(cfg.Auth.SessionTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session_ttl %q: %w", cfg.Auth.SessionTTLRaw, err)
		}
	}

	if cfg.Auth.OTPTTLRaw != "" {
		cfg.Auth.OTPTTL, err = time.ParseDuration(cfg.Auth.OTPTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing otp_ttl %q: %w", cfg.Auth.OTPTTLRaw, err)
		}
	}

	return nil
}
