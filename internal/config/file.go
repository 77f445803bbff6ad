package config

import (
	"fmt"
	"os"
	"time"

	bundleerrors "github.com/conneroisu/cjsbundle/internal/errors"
	"github.com/spf13/viper"
	yamlv2 "gopkg.in/yaml.v2"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = ".cjsbundle.yml"

// fileSchema mirrors Config for strict decoding. Durations stay strings
// here because viper parses them.
type fileSchema struct {
	Bundle struct {
		Entry          string `yaml:"entry"`
		BaseDir        string `yaml:"base_dir"`
		Output         string `yaml:"output"`
		Format         string `yaml:"format"`
		Manifest       string `yaml:"manifest"`
		ChunkSize      int    `yaml:"chunk_size"`
		RuntimeVersion string `yaml:"runtime_version"`
	} `yaml:"bundle"`
	Cache struct {
		Enabled *bool `yaml:"enabled"`
		Size    int   `yaml:"size"`
	} `yaml:"cache"`
	Watch struct {
		Debounce   string   `yaml:"debounce"`
		Extensions []string `yaml:"extensions"`
		Ignore     []string `yaml:"ignore"`
	} `yaml:"watch"`
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// ValidateFile checks a config file without touching the global viper
// instance. Unknown or duplicated keys are rejected, then the values are
// loaded and validated the same way Load does.
func ValidateFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, bundleerrors.NewIOError(bundleerrors.ErrCodeConfigInvalid, "cannot read config file", err).WithFile(path)
	}

	var schema fileSchema
	if err := yamlv2.UnmarshalStrict(data, &schema); err != nil {
		return nil, bundleerrors.NewConfigError(bundleerrors.ErrCodeConfigInvalid, err.Error()).WithFile(path)
	}
	if schema.Watch.Debounce != "" {
		if _, err := time.ParseDuration(schema.Watch.Debounce); err != nil {
			return nil, bundleerrors.NewConfigError(
				bundleerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("watch: debounce %q is not a duration", schema.Watch.Debounce),
			).WithFile(path)
		}
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, bundleerrors.NewConfigError(bundleerrors.ErrCodeConfigInvalid, err.Error()).WithFile(path)
	}

	return LoadFrom(v)
}
