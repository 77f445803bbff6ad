// Package config provides configuration management for cjsbundle using
// Viper for flexible configuration loading from files, environment
// variables, and command-line flags.
//
// The configuration system supports YAML files, environment variable
// overrides with the CJSBUNDLE_ prefix, and validation. It covers the
// bundle build itself, the scan cache, the file watcher, the development
// server and logging.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/cjsbundle/internal/build"
	bundleerrors "github.com/conneroisu/cjsbundle/internal/errors"
	"github.com/conneroisu/cjsbundle/internal/logging"
	"github.com/conneroisu/cjsbundle/internal/scanner"
	"github.com/spf13/viper"
)

// Output formats for the bundle command.
const (
	FormatJS   = "js"
	FormatHTML = "html"
)

// Defaults.
const (
	DefaultHost     = "localhost"
	DefaultPort     = 8080
	DefaultDebounce = 300 * time.Millisecond
	DefaultLogLevel = "info"
)

var (
	defaultExtensions = []string{".js", ".cjs"}
	defaultIgnore     = []string{"node_modules", ".git"}
)

type Config struct {
	Bundle      BundleConfig `yaml:"bundle" mapstructure:"bundle"`
	Cache       CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Watch       WatchConfig  `yaml:"watch" mapstructure:"watch"`
	Server      ServerConfig `yaml:"server" mapstructure:"server"`
	Log         LogConfig    `yaml:"log" mapstructure:"log"`
	TargetFiles []string     `yaml:"-" mapstructure:"-"` // CLI arguments, not from config file
}

type BundleConfig struct {
	Entry          string `yaml:"entry" mapstructure:"entry"`
	BaseDir        string `yaml:"base_dir" mapstructure:"base_dir"`
	Output         string `yaml:"output" mapstructure:"output"`
	Format         string `yaml:"format" mapstructure:"format"`
	Manifest       string `yaml:"manifest" mapstructure:"manifest"`
	ChunkSize      int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	RuntimeVersion string `yaml:"runtime_version" mapstructure:"runtime_version"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	Size    int  `yaml:"size" mapstructure:"size"`
}

type WatchConfig struct {
	Debounce   time.Duration `yaml:"debounce" mapstructure:"debounce"`
	Extensions []string      `yaml:"extensions" mapstructure:"extensions"`
	Ignore     []string      `yaml:"ignore" mapstructure:"ignore"`
}

type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SetDefaults registers every key with its default so that environment
// variables can override keys that appear in no config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("bundle.entry", "")
	v.SetDefault("bundle.base_dir", "")
	v.SetDefault("bundle.output", "")
	v.SetDefault("bundle.format", FormatJS)
	v.SetDefault("bundle.manifest", "")
	v.SetDefault("bundle.chunk_size", scanner.DefaultChunkSize)
	v.SetDefault("bundle.runtime_version", build.RuntimeVersion)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.size", scanner.DefaultCacheSize)

	v.SetDefault("watch.debounce", DefaultDebounce)
	v.SetDefault("watch.extensions", defaultExtensions)
	v.SetDefault("watch.ignore", defaultIgnore)

	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", logging.FormatPretty)
}

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "CJSBUNDLE"

// BindEnv makes v read CJSBUNDLE_SECTION_KEY variables for section.key.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load builds the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom builds and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Handle slices set via viper (workaround for viper slice handling)
	if v.IsSet("watch.extensions") && len(config.Watch.Extensions) == 0 {
		config.Watch.Extensions = v.GetStringSlice("watch.extensions")
	}
	if v.IsSet("watch.ignore") && len(config.Watch.Ignore) == 0 {
		config.Watch.Ignore = v.GetStringSlice("watch.ignore")
	}

	// Apply default values for BundleConfig if not set
	if config.Bundle.Format == "" {
		config.Bundle.Format = FormatJS
	}
	if config.Bundle.ChunkSize == 0 {
		config.Bundle.ChunkSize = scanner.DefaultChunkSize
	}
	if config.Bundle.RuntimeVersion == "" {
		config.Bundle.RuntimeVersion = build.RuntimeVersion
	}

	// Apply default values for CacheConfig if not set
	if !v.IsSet("cache.enabled") {
		config.Cache.Enabled = true
	}
	if config.Cache.Size == 0 {
		config.Cache.Size = scanner.DefaultCacheSize
	}

	// Apply default values for WatchConfig if not set
	if !v.IsSet("watch.debounce") {
		config.Watch.Debounce = DefaultDebounce
	}
	if len(config.Watch.Extensions) == 0 {
		config.Watch.Extensions = append([]string(nil), defaultExtensions...)
	}
	if len(config.Watch.Ignore) == 0 {
		config.Watch.Ignore = append([]string(nil), defaultIgnore...)
	}

	// Apply default values for ServerConfig if not set
	if config.Server.Host == "" {
		config.Server.Host = DefaultHost
	}
	if !v.IsSet("server.port") {
		config.Server.Port = DefaultPort
	}

	// Apply default values for LogConfig if not set
	if config.Log.Level == "" {
		config.Log.Level = DefaultLogLevel
	}
	if config.Log.Format == "" {
		config.Log.Format = logging.FormatPretty
	}

	// Validate configuration values
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateBundleConfig(&config.Bundle); err != nil {
		return err
	}
	if err := validateCacheConfig(&config.Cache); err != nil {
		return err
	}
	if err := validateWatchConfig(&config.Watch); err != nil {
		return err
	}
	if err := validateServerConfig(&config.Server); err != nil {
		return err
	}
	return validateLogConfig(&config.Log)
}

func invalid(section, format string, args ...interface{}) error {
	return bundleerrors.NewConfigError(
		bundleerrors.ErrCodeConfigInvalid,
		section+": "+fmt.Sprintf(format, args...),
	).WithContext("section", section)
}

// validateBundleConfig validates bundle configuration values
func validateBundleConfig(config *BundleConfig) error {
	switch config.Format {
	case FormatJS, FormatHTML:
	default:
		return invalid("bundle", "format %q is not one of %s, %s", config.Format, FormatJS, FormatHTML)
	}

	if config.ChunkSize < scanner.MinChunkSize {
		return invalid("bundle", "chunk_size %d is below the minimum of %d", config.ChunkSize, scanner.MinChunkSize)
	}

	if _, err := build.LookupRuntime(config.RuntimeVersion); err != nil {
		return err
	}

	paths := []struct{ key, path string }{
		{"entry", config.Entry},
		{"base_dir", config.BaseDir},
		{"output", config.Output},
		{"manifest", config.Manifest},
	}
	for _, p := range paths {
		if p.path == "" {
			continue
		}
		if err := validatePath(p.path); err != nil {
			return invalid("bundle", "%s: %v", p.key, err)
		}
	}

	if config.Manifest != "" {
		if _, err := build.ManifestFormat(config.Manifest); err != nil {
			return invalid("bundle", "manifest: %v", err)
		}
	}

	return nil
}

// validateCacheConfig validates cache configuration values
func validateCacheConfig(config *CacheConfig) error {
	if config.Size < 0 {
		return invalid("cache", "size %d must not be negative", config.Size)
	}
	return nil
}

// validateWatchConfig validates watcher configuration values
func validateWatchConfig(config *WatchConfig) error {
	if config.Debounce < 0 {
		return invalid("watch", "debounce %s must not be negative", config.Debounce)
	}
	for _, ext := range config.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return invalid("watch", "extension %q must start with a dot", ext)
		}
	}
	for _, pattern := range config.Ignore {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return invalid("watch", "ignore pattern %q: %v", pattern, err)
		}
	}
	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Validate port range (allow 0 for system-assigned ports in testing)
	if config.Port < 0 || config.Port > 65535 {
		return invalid("server", "port %d is not in valid range 0-65535", config.Port)
	}

	// Basic validation - no dangerous characters
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", "/", " "}
	for _, char := range dangerousChars {
		if strings.Contains(config.Host, char) {
			return invalid("server", "host contains dangerous character: %s", char)
		}
	}

	return nil
}

// validateLogConfig validates logging configuration values
func validateLogConfig(config *LogConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return invalid("log", "%v", err)
	}
	switch config.Format {
	case logging.FormatPretty, logging.FormatText, logging.FormatJSON:
		return nil
	default:
		return invalid("log", "format %q is not one of pretty, text, json", config.Format)
	}
}

// validatePath validates a file path
func validatePath(path string) error {
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains a NUL byte")
	}
	if strings.ContainsAny(path, "\n\r") {
		return fmt.Errorf("path contains a line break")
	}
	return nil
}
