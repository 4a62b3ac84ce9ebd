package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fabricmcp/internal/credentials"
	"fabricmcp/internal/fabric"
	"fabricmcp/internal/logging"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const APP_NAME = "fabric-mcp" // application name used for config directory

// Environment variables that override values from the config file.
const (
	EnvBaseURL  = "FABRIC_BASE_URL"
	EnvAPIKey   = "FABRIC_API_KEY"
	EnvTimeout  = "FABRIC_MCP_TIMEOUT"
	EnvLogLevel = "FABRIC_MCP_LOG_LEVEL"
)

const (
	defaultTimeoutSeconds = 30
	defaultLogLevel       = "warn"
)

// Where the effective API key came from, as recorded in Config.APIKeySource.
const (
	APIKeyFromFile    = "file"
	APIKeyFromEnv     = "env"
	APIKeyFromKeyring = "keyring"
)

// KeySource looks up an API key stored outside the config file.
type KeySource interface {
	GetAPIKey() (string, error)
}

// Config holds user configuration for fabric-mcp.
type Config struct {
	// BaseURL is the root of the Fabric REST API (fabric --serve).
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	LogLevel       string `yaml:"log_level"`
	// FabricEnvPath overrides the location of Fabric's own .env file.
	FabricEnvPath string `yaml:"fabric_env_path,omitempty"`

	// APIKeySource names the layer that supplied APIKey; empty when unset.
	APIKeySource string `yaml:"-"`
}

// ConfigPath returns the standard config file path for the current platform
func ConfigPath() string {
	configPath := filepath.Join(xdg.ConfigHome, APP_NAME, "config.yaml")

	logging.Debug("Determined config path", "path", configPath)
	return configPath
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:        fabric.DefaultBaseURL,
		TimeoutSeconds: defaultTimeoutSeconds,
		LogLevel:       defaultLogLevel,
	}
}

// Load reads the config from the standard location and applies environment
// overrides. A missing file is not an error: defaults are used instead.
// When no API key is configured, the OS credential store is consulted.
func Load() (*Config, error) {
	cfg, err := LoadFrom(ConfigPath())
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	cfg.ResolveAPIKey(credentials.NewCredentialManager())
	return cfg, nil
}

// LoadFrom loads config from a specific path, filling unset fields with
// defaults. Environment overrides are not applied.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		logging.Debug("No config file found, using defaults", "path", path)
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	logging.Debug("Decoding config file", "path", path)
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.APIKey != "" {
		cfg.APIKeySource = APIKeyFromFile
	}
	cfg.fillDefaults()
	return &cfg, nil
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = def.BaseURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = def.TimeoutSeconds
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// ApplyEnv overrides fields with the values of the FABRIC_* environment
// variables that are set. An unparsable timeout is ignored.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		c.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		c.APIKey = v
		c.APIKeySource = APIKeyFromEnv
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTimeout)); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.TimeoutSeconds = secs
		} else {
			logging.Warn("Ignoring invalid timeout", "env", EnvTimeout, "value", v)
		}
	}
}

// ResolveAPIKey fills APIKey from src when neither the file nor the
// environment provided one. Lookup failures leave the key empty.
func (c *Config) ResolveAPIKey(src KeySource) {
	if c.APIKey != "" || src == nil {
		return
	}
	key, err := src.GetAPIKey()
	if err != nil {
		logging.Debug("No API key in credential store", "error", err)
		return
	}
	c.APIKey = key
	c.APIKeySource = APIKeyFromKeyring
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return time.Duration(defaultTimeoutSeconds) * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ClientOptions builds the options for a Fabric API client.
func (c *Config) ClientOptions(logger *logging.AppLogger) fabric.Options {
	return fabric.Options{
		BaseURL: c.BaseURL,
		APIKey:  c.APIKey,
		Timeout: c.Timeout(),
		Logger:  logger,
	}
}

// Save writes the config to the standard location
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes the config to a specific path
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create file with restrictive permissions (600): it may hold an API key
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	defer enc.Close()

	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
