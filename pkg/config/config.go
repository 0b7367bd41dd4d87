package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/flatjson/pkg/codec"
)

// Config represents the flatjson configuration
type Config struct {
	Schema   string  `yaml:"schema"`
	RootType string  `yaml:"root_type"`
	DataDir  string  `yaml:"data_dir"`
	Port     int     `yaml:"port"`
	Bind     string  `yaml:"bind"`
	APIKey   string  `yaml:"api_key"`
	Printer  Printer `yaml:"printer"`
	Encoder  Encoder `yaml:"encoder"`
	Logging  Logging `yaml:"logging"`
}

// Printer controls how binary messages are rendered as text.
type Printer struct {
	MultiLine      bool `yaml:"multi_line"`
	MaxVectorSize  int  `yaml:"max_vector_size"`
	FloatPrecision int  `yaml:"float_precision"`
}

// Encoder controls how text is parsed into binary messages.
type Encoder struct {
	ForceDefaults bool `yaml:"force_defaults"`
	AllowComments bool `yaml:"allow_comments"`
	MaxDepth      int  `yaml:"max_depth"`
}

// Logging contains logging configuration
type Logging struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	defaults := codec.DefaultPrintOptions()
	return &Config{
		DataDir: "./data",
		Port:    8080,
		Bind:    "127.0.0.1",
		APIKey:  "auto",
		Printer: Printer{
			MultiLine:      defaults.MultiLine,
			MaxVectorSize:  defaults.MaxVectorSize,
			FloatPrecision: defaults.FloatPrecision,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// PrintOptions converts the printer section to codec options.
func (c *Config) PrintOptions() codec.PrintOptions {
	return codec.PrintOptions{
		MultiLine:      c.Printer.MultiLine,
		MaxVectorSize:  c.Printer.MaxVectorSize,
		FloatPrecision: c.Printer.FloatPrecision,
	}
}

// EncodeOptions converts the encoder section to codec options.
func (c *Config) EncodeOptions() codec.EncodeOptions {
	return codec.EncodeOptions{
		ForceDefaults: c.Encoder.ForceDefaults,
		AllowComments: c.Encoder.AllowComments,
		MaxDepth:      c.Encoder.MaxDepth,
	}
}

// LoadConfig loads configuration from the specified path. Fields missing
// from the file keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig writes a new configuration with a generated API key.
func BootstrapConfig(configPath, dataDir, schemaPath string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}
	config.Schema = schemaPath

	apiKey, err := GenerateSecureKey(32) // 256 bits
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./flatjson.yaml"
	}

	// ~/.config/flatjson/config.yaml on Linux and macOS
	return filepath.Join(homeDir, ".config", "flatjson", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
