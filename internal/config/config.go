// Package config provides configuration loading and defaults for the vmrun-mcp server.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ResourceFilter holds allowlist and denylist entries for VM names.
type ResourceFilter struct {
	Allowlist []string `yaml:"allowlist"`
	Denylist  []string `yaml:"denylist"`
}

// SafetyConfig groups resource filters for virtual machines.
type SafetyConfig struct {
	VMs ResourceFilter `yaml:"vms"`
}

// Lab names one operator-maintained directory tree that is scanned for
// .vmx configuration files.
type Lab struct {
	Name string `yaml:"name"`
	Dir  string `yaml:"dir"`
}

// VMwareConfig holds the settings for the local VMware Workstation host.
type VMwareConfig struct {
	// VmrunPath is the path to the vmrun control executable.
	VmrunPath string `yaml:"vmrun_path"`
	// Labs is the ordered list of directories scanned for VM configurations.
	Labs []Lab `yaml:"labs"`
	// GuestQueryTimeout bounds each guest-tools IP query, in seconds.
	GuestQueryTimeout int `yaml:"guest_query_timeout"`
}

// AuditConfig controls audit logging behaviour.
type AuditConfig struct {
	Enabled   bool   `yaml:"enabled"`
	LogPath   string `yaml:"log_path"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// ServerConfig holds network and authentication settings.
type ServerConfig struct {
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// Config is the top-level configuration structure for the vmrun-mcp server.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Safety SafetyConfig `yaml:"safety"`
	VMware VMwareConfig `yaml:"vmware"`
	Audit  AuditConfig  `yaml:"audit"`
}

// LoadConfig reads and parses a YAML configuration file from the given path.
// Zero-valued fields are filled with defaults after parsing. On error, nil is
// returned for the config pointer.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// DefaultConfig returns a new Config populated with sensible default values.
// Each call returns a distinct instance.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.VMware.VmrunPath == "" {
		cfg.VMware.VmrunPath = "/usr/bin/vmrun"
	}
	if cfg.VMware.GuestQueryTimeout <= 0 {
		cfg.VMware.GuestQueryTimeout = 5
	}
	if cfg.Audit.LogPath == "" {
		cfg.Audit.LogPath = "/var/log/vmrun-mcp/audit.log"
	}
}

// ApplyEnvOverrides updates cfg in place with values from environment variables.
// Recognized variables:
//   - VMRUN_MCP_AUTH_TOKEN overrides cfg.Server.AuthToken
//   - VMRUN_MCP_VMRUN_PATH overrides cfg.VMware.VmrunPath
func ApplyEnvOverrides(cfg *Config) {
	if token := os.Getenv("VMRUN_MCP_AUTH_TOKEN"); token != "" {
		cfg.Server.AuthToken = token
	}
	if path := os.Getenv("VMRUN_MCP_VMRUN_PATH"); path != "" {
		cfg.VMware.VmrunPath = path
	}
}

// EnsureAuthToken generates a random auth token and sets it on cfg if
// cfg.Server.AuthToken is empty. It returns the token (existing or generated)
// and any error encountered during generation.
func EnsureAuthToken(cfg *Config) (string, error) {
	if cfg.Server.AuthToken != "" {
		return cfg.Server.AuthToken, nil
	}
	token, err := GenerateRandomToken()
	if err != nil {
		return "", fmt.Errorf("generate auth token: %w", err)
	}
	cfg.Server.AuthToken = token
	return token, nil
}

// GenerateRandomToken returns a 32-character hex-encoded cryptographically
// random token string.
func GenerateRandomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand.Read: %w", err)
	}
	return hex.EncodeToString(b), nil
}
