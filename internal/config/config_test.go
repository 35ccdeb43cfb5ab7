package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Agent.LogLevel != "info" {
		t.Errorf("Agent.LogLevel = %s, want info", cfg.Agent.LogLevel)
	}
	if cfg.Agent.LogFormat != "text" {
		t.Errorf("Agent.LogFormat = %s, want text", cfg.Agent.LogFormat)
	}
	if cfg.Crypto.BlockSize != 1<<16 {
		t.Errorf("Crypto.BlockSize = %d, want %d", cfg.Crypto.BlockSize, 1<<16)
	}
	if cfg.Crypto.BlockFiller != 1024 {
		t.Errorf("Crypto.BlockFiller = %d, want 1024", cfg.Crypto.BlockFiller)
	}
	if cfg.Crypto.Shifts != DefaultShifts {
		t.Errorf("Crypto.Shifts = %d, want %d", cfg.Crypto.Shifts, DefaultShifts)
	}
	if cfg.Keystore.Path != "keys.ring" {
		t.Errorf("Keystore.Path = %s, want keys.ring", cfg.Keystore.Path)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}
}

func TestParse_ValidConfig(t *testing.T) {
	yamlConfig := `
agent:
  log_level: debug
  log_format: json

crypto:
  block_size: 8192
  block_filler: 256
  shifts: 16
  no_expand: true

keystore:
  path: "my.ring"
  default_recipients:
    - alice
    - bob

metrics:
  enabled: true
`

	cfg, err := Parse([]byte(yamlConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Agent.LogLevel != "debug" {
		t.Errorf("Agent.LogLevel = %s, want debug", cfg.Agent.LogLevel)
	}
	if cfg.Agent.LogFormat != "json" {
		t.Errorf("Agent.LogFormat = %s, want json", cfg.Agent.LogFormat)
	}
	if cfg.Crypto.BlockSize != 8192 {
		t.Errorf("Crypto.BlockSize = %d, want 8192", cfg.Crypto.BlockSize)
	}
	if cfg.Crypto.BlockFiller != 256 {
		t.Errorf("Crypto.BlockFiller = %d, want 256", cfg.Crypto.BlockFiller)
	}
	if cfg.Crypto.Shifts != 16 {
		t.Errorf("Crypto.Shifts = %d, want 16", cfg.Crypto.Shifts)
	}
	if !cfg.Crypto.NoExpand {
		t.Error("Crypto.NoExpand = false, want true")
	}
	if cfg.Keystore.Path != "my.ring" {
		t.Errorf("Keystore.Path = %s, want my.ring", cfg.Keystore.Path)
	}
	if len(cfg.Keystore.DefaultRecipients) != 2 {
		t.Fatalf("len(DefaultRecipients) = %d, want 2", len(cfg.Keystore.DefaultRecipients))
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestParse_MinimalConfig(t *testing.T) {
	cfg, err := Parse([]byte(`agent:
  log_level: debug
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// Should use defaults for unspecified fields.
	if cfg.Crypto.BlockSize != 1<<16 {
		t.Errorf("Crypto.BlockSize = %d, want default %d", cfg.Crypto.BlockSize, 1<<16)
	}
	if cfg.Keystore.Path != "keys.ring" {
		t.Errorf("Keystore.Path = %s, want keys.ring (default)", cfg.Keystore.Path)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("agent:\n  log_level: [invalid\n"))
	if err == nil {
		t.Error("Parse() should fail for invalid YAML")
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		wantError string
	}{
		{
			name:      "invalid log level",
			yaml:      "agent:\n  log_level: invalid\n",
			wantError: "invalid log_level",
		},
		{
			name:      "invalid log format",
			yaml:      "agent:\n  log_format: invalid\n",
			wantError: "invalid log_format",
		},
		{
			name:      "block_size zero",
			yaml:      "crypto:\n  block_size: 0\n",
			wantError: "block_size must be positive",
		},
		{
			name:      "block_filler too large",
			yaml:      "crypto:\n  block_size: 1024\n  block_filler: 2048\n",
			wantError: "block_filler must be smaller",
		},
		{
			name:      "shifts too low",
			yaml:      "crypto:\n  shifts: 0\n",
			wantError: "shifts must be between 1 and 30",
		},
		{
			name:      "shifts too high",
			yaml:      "crypto:\n  shifts: 31\n",
			wantError: "shifts must be between 1 and 30",
		},
		{
			name:      "empty keystore path",
			yaml:      "keystore:\n  path: \"\"\n",
			wantError: "keystore.path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("Error = %v, want to contain %q", err, tt.wantError)
			}
		})
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	os.Setenv("TEST_RING_PATH", "/custom/keys.ring")
	defer os.Unsetenv("TEST_RING_PATH")

	cfg, err := Parse([]byte("keystore:\n  path: \"${TEST_RING_PATH}\"\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Keystore.Path != "/custom/keys.ring" {
		t.Errorf("Keystore.Path = %s, want /custom/keys.ring", cfg.Keystore.Path)
	}
}

func TestParse_EnvVarDefaultValue(t *testing.T) {
	os.Unsetenv("NONEXISTENT_VAR")

	cfg, err := Parse([]byte("keystore:\n  path: \"${NONEXISTENT_VAR:-/default/keys.ring}\"\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Keystore.Path != "/default/keys.ring" {
		t.Errorf("Keystore.Path = %s, want /default/keys.ring", cfg.Keystore.Path)
	}
}

func TestParse_EnvVarNotFound(t *testing.T) {
	os.Unsetenv("NONEXISTENT_VAR")

	cfg, err := Parse([]byte("keystore:\n  path: \"${NONEXISTENT_VAR}-ring\"\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Keystore.Path != "${NONEXISTENT_VAR}-ring" {
		t.Errorf("Keystore.Path = %s, want placeholder preserved", cfg.Keystore.Path)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() should fail for nonexistent file")
	}
}

func TestLoad_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("agent:\n  log_level: debug\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Agent.LogLevel != "debug" {
		t.Errorf("Agent.LogLevel = %s, want debug", cfg.Agent.LogLevel)
	}
}

func TestConfig_Validate_EmptyKeystorePath(t *testing.T) {
	cfg := Default()
	cfg.Keystore.Path = ""

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should fail with empty keystore path")
	}
}

func TestConfig_String(t *testing.T) {
	cfg := Default()
	s := cfg.String()

	if !strings.Contains(s, "agent") {
		t.Error("String() should contain 'agent'")
	}
	if !strings.Contains(s, "keystore") {
		t.Error("String() should contain 'keystore'")
	}
}
