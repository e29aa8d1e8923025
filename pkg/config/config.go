/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/cockroachdb/errors"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/nifkit/pkg/nif"
)

// Config represents the nifkit configuration
type Config struct {
	Log     Log     `yaml:"log"`
	Convert Convert `yaml:"convert"`
	Storage Storage `yaml:"storage"`
	Server  Server  `yaml:"server"`
}

// Log contains logging configuration
type Log struct {
	Level string `yaml:"level"`
	// File enables rotated file output alongside stderr.
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Convert holds the defaults for batch conversion
type Convert struct {
	// TargetVersion is a dotted version; empty keeps each file's version.
	TargetVersion   string `yaml:"target_version,omitempty"`
	UserVersion     uint32 `yaml:"user_version,omitempty"`
	BSVersion       uint32 `yaml:"bs_version,omitempty"`
	Workers         int    `yaml:"workers"`
	SkipErrors      bool   `yaml:"skip_errors"`
	OnlyModified    bool   `yaml:"only_modified"`
	PreserveUnknown bool   `yaml:"preserve_unknown"`
	Backup          bool   `yaml:"backup"`
	OutputDir       string `yaml:"output_dir,omitempty"`
	RenamePattern   string `yaml:"rename_pattern,omitempty"`
	FilterPattern   string `yaml:"filter_pattern,omitempty"`
}

// Storage locates the backup store and journal
type Storage struct {
	DataDir string `yaml:"data_dir"`
}

// Server contains HTTP API configuration
type Server struct {
	Port   int    `yaml:"port"`
	Bind   string `yaml:"bind"`
	APIKey string `yaml:"api_key,omitempty"`
}

var logLevels = []interface{}{"debug", "info", "warn", "error"}

// Validate checks every section.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Log),
		validation.Field(&c.Convert),
		validation.Field(&c.Storage),
		validation.Field(&c.Server),
	)
}

// Validate validates the logging configuration.
func (l Log) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.Required, validation.In(logLevels...)),
		validation.Field(&l.MaxSizeMB, validation.Min(0)),
		validation.Field(&l.MaxBackups, validation.Min(0)),
	)
}

// Validate validates the conversion defaults.
func (c Convert) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.TargetVersion, validation.By(isVersion)),
		validation.Field(&c.Workers, validation.Min(0), validation.Max(256)),
		validation.Field(&c.RenamePattern, validation.By(isPattern)),
		validation.Field(&c.FilterPattern, validation.By(isPattern)),
	)
}

// Validate validates the storage configuration.
func (s Storage) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.DataDir, validation.Required),
	)
}

// Validate validates the server configuration.
func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&s.Bind, validation.Required),
	)
}

func isVersion(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	_, err := nif.ParseVersion(s)
	return err
}

func isPattern(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	_, err := regexp.Compile(s)
	return err
}

// Target returns the configured output version, or nil to keep each
// file's own version.
func (c Convert) Target() (*nif.FormatVersion, error) {
	if c.TargetVersion == "" {
		return nil, nil
	}
	v, err := nif.ParseVersion(c.TargetVersion)
	if err != nil {
		return nil, errors.Wrap(err, "target_version")
	}
	v.User, v.BSVersion = c.UserVersion, c.BSVersion
	return &v, nil
}

// Rename compiles RenamePattern; empty yields nil.
func (c Convert) Rename() (*regexp.Regexp, error) { return compileOptional(c.RenamePattern) }

// Filter compiles FilterPattern; empty yields nil.
func (c Convert) Filter() (*regexp.Regexp, error) { return compileOptional(c.FilterPattern) }

func compileOptional(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

// BackupDir is the pebble directory of the backup store.
func (s Storage) BackupDir() string { return filepath.Join(s.DataDir, "backups") }

// JournalPath is the conversion journal file.
func (s Storage) JournalPath() string { return filepath.Join(s.DataDir, "convert.journal") }

// Address returns the listen address.
func (s Server) Address() string { return fmt.Sprintf("%s:%d", s.Bind, s.Port) }

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Log: Log{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Convert: Convert{
			Workers: 4,
			Backup:  true,
		},
		Storage: Storage{
			DataDir: "./data",
		},
		Server: Server{
			Port: 8080,
			Bind: "127.0.0.1",
		},
	}
}

// LoadConfig loads configuration from the specified path. Environment
// references such as ${NIFKIT_API_KEY} are expanded before parsing, and
// fields the file omits keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.Newf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, errors.Wrap(err, "invalid config path")
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), config); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", configPath)
	}
	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", errors.Wrap(err, "failed to generate secure key")
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig writes a default configuration with a generated API key.
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.Storage.DataDir = dataDir
	}

	apiKey, err := GenerateSecureKey(32) // 256 bits
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate API key")
	}
	config.Server.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, errors.Wrap(err, "failed to save bootstrap config")
	}
	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./nifkit.yaml"
	}

	// ~/.config/nifkit/config.yaml
	return filepath.Join(homeDir, ".config", "nifkit", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
