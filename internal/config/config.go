// Package config provides configuration parsing and validation for amberfile.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete tool configuration: the defaults
// cmd/amberfile falls back to when a flag isn't given on the command
// line.
type Config struct {
	Agent    AgentConfig    `yaml:"agent"`
	Crypto   CryptoConfig   `yaml:"crypto"`
	Keystore KeystoreConfig `yaml:"keystore"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AgentConfig contains process-wide settings.
type AgentConfig struct {
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json
}

// CryptoConfig defines the default block-stream parameters used by
// encrypt/decrypt/hide/reveal when not overridden on the command line.
type CryptoConfig struct {
	// BlockSize is the plaintext payload size of one block-stream block.
	BlockSize uint32 `yaml:"block_size"`

	// BlockFiller is the amount of BlockSize reserved as padding (and,
	// for hide/reveal, as the filler region carrying the hidden file).
	BlockFiller uint32 `yaml:"block_filler"`

	// Shifts is the scrypt cost parameter (N = 1<<Shifts) used to derive
	// a key from a password.
	Shifts int `yaml:"shifts"`

	// NoExpand makes the CLI use a block filler of 0, overriding
	// BlockFiller, so blocks carry no filler bytes.
	NoExpand bool `yaml:"no_expand"`
}

// KeystoreConfig points at the default key ring and its password
// source.
type KeystoreConfig struct {
	// Path is the default key ring file, optionally ".cha"-suffixed for
	// a password-encrypted ring.
	Path string `yaml:"path"`

	// DefaultRecipients are selector strings (hex prefix or whole-word
	// name/alias match) used when a command omits -r/--recipient.
	DefaultRecipients []string `yaml:"default_recipients"`
}

// MetricsConfig controls whether operations register Prometheus
// metrics against the process-wide default registry.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultShifts matches the original's scrypt cost default.
const DefaultShifts = 14

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Crypto: CryptoConfig{
			BlockSize:   1 << 16,
			BlockFiller: 1024,
			Shifts:      DefaultShifts,
		},
		Keystore: KeystoreConfig{
			Path: "keys.ring",
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		// Handle default values: ${VAR:-default}
		if idx := strings.Index(name, ":-"); idx != -1 {
			varName := name[:idx]
			defaultVal := name[idx+2:]
			if val, ok := os.LookupEnv(varName); ok {
				return val
			}
			return defaultVal
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if !isValidLogLevel(c.Agent.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid log_level: %s (must be debug, info, warn, or error)", c.Agent.LogLevel))
	}
	if !isValidLogFormat(c.Agent.LogFormat) {
		errs = append(errs, fmt.Sprintf("invalid log_format: %s (must be text or json)", c.Agent.LogFormat))
	}

	if c.Crypto.BlockSize == 0 {
		errs = append(errs, "crypto.block_size must be positive")
	}
	if c.Crypto.BlockFiller >= c.Crypto.BlockSize {
		errs = append(errs, "crypto.block_filler must be smaller than crypto.block_size")
	}
	if c.Crypto.Shifts < 1 || c.Crypto.Shifts > 30 {
		errs = append(errs, "crypto.shifts must be between 1 and 30")
	}

	if c.Keystore.Path == "" {
		errs = append(errs, "keystore.path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case "text", "json":
		return true
	default:
		return false
	}
}

// String returns a YAML representation of the config, suitable for
// logging or display.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
