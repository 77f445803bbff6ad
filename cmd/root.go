// Package cmd provides the command-line interface for cjsbundle with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	The CLI supports flexible configuration through multiple sources with clear precedence:
//	1. Command-line flags (--output, --port, etc.) - highest priority
//	2. Individual environment variables (CJSBUNDLE_BUNDLE_FORMAT, etc.)
//	3. Configuration files (.cjsbundle.yml, --config or CJSBUNDLE_CONFIG_FILE)
//	4. Built-in defaults - lowest priority
//
// Environment Variables:
//
//	CJSBUNDLE_CONFIG_FILE: Path to custom configuration file
//	CJSBUNDLE_SERVER_PORT: Override server port
//	CJSBUNDLE_WATCH_DEBOUNCE: Override the rebuild debounce delay
//	And every other key following the CJSBUNDLE_<SECTION>_<OPTION> pattern
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/cjsbundle/internal/build"
	"github.com/conneroisu/cjsbundle/internal/config"
	bundleerrors "github.com/conneroisu/cjsbundle/internal/errors"
	"github.com/conneroisu/cjsbundle/internal/logging"
	"github.com/conneroisu/cjsbundle/internal/scanner"
)

// EnvConfigFile names an alternative configuration file.
const EnvConfigFile = config.EnvPrefix + "_CONFIG_FILE"

// skipConfig marks commands that run without loading the configuration.
const skipConfig = "skip-config"

// bindPrefix prefixes annotations that map a configuration key to a flag
// of the annotated command.
const bindPrefix = "config:"

// app carries the state shared by one invocation of the command tree.
type app struct {
	v       *viper.Viper
	cfgFile string
	envFile string

	cfg    *config.Config
	logger logging.Logger
	errs   *bundleerrors.ErrorHandler
}

// Execute runs the command line against the global viper instance.
func Execute() error {
	root := newRootCmd(viper.GetViper())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	a := &app{v: v}

	root := &cobra.Command{
		Use:   "cjsbundle",
		Short: "Bundle CommonJS modules into a single script",
		Long: `cjsbundle follows require("./relative/path") references from an entry file
and writes one self-contained script holding every reachable module and a
small resolver that evaluates each module once.

Quick Start:
  cjsbundle bundle src/index.js -o dist/bundle.js
  cjsbundle tree src/index.js
  cjsbundle watch src/index.js -o dist/bundle.js
  cjsbundle serve src/index.js`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}
			return a.loadConfig(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is .cjsbundle.yml, can also use "+EnvConfigFile+")")
	flags.StringVar(&a.envFile, "env-file", "", "load environment variables from a dotenv file")
	flags.StringP("log-level", "l", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("log-format", logging.FormatPretty, "log format (pretty, text, json)")
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))

	root.AddCommand(
		newBundleCmd(a),
		newTreeCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)

	return root
}

// loadConfig initializes the configuration from the env file, the config
// file, the environment and bound flags, then builds the logger.
//
// Config file priority (highest to lowest):
//  1. --config flag
//  2. CJSBUNDLE_CONFIG_FILE environment variable
//  3. .cjsbundle.yml in the current directory, if present
func (a *app) loadConfig(cmd *cobra.Command) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil {
			return fmt.Errorf("loading env file %s: %w", a.envFile, err)
		}
	}

	explicit := a.configFile()
	if explicit != "" {
		a.v.SetConfigFile(explicit)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".cjsbundle")
	}

	config.SetDefaults(a.v)
	config.BindEnv(a.v)
	for key, name := range cmd.Annotations {
		if !strings.HasPrefix(key, bindPrefix) {
			continue
		}
		if flag := cmd.Flags().Lookup(name); flag != nil {
			if err := a.v.BindPFlag(strings.TrimPrefix(key, bindPrefix), flag); err != nil {
				return fmt.Errorf("binding --%s: %w", name, err)
			}
		}
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	cfg, err := config.LoadFrom(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(cfg.Log, cmd.ErrOrStderr())
	a.errs = bundleerrors.NewErrorHandler(a.logger)

	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug(cmd.Context(), "Using config file", "path", used)
	}
	return nil
}

// bindFlags records which configuration key each flag of cmd overrides.
// The bindings are applied when cmd runs so that commands sharing a flag
// name do not steal each other's bindings.
func bindFlags(cmd *cobra.Command, bindings map[string]string) {
	if cmd.Annotations == nil {
		cmd.Annotations = make(map[string]string)
	}
	for key, flag := range bindings {
		cmd.Annotations[bindPrefix+key] = flag
	}
}

// configFile returns the explicitly requested config file, if any.
func (a *app) configFile() string {
	if a.cfgFile != "" {
		return a.cfgFile
	}
	return os.Getenv(EnvConfigFile)
}

func newLogger(cfg config.LogConfig, w io.Writer) logging.Logger {
	lc := logging.DefaultConfig()
	if level, err := logging.ParseLevel(cfg.Level); err == nil {
		lc.Level = level
	}
	lc.Format = cfg.Format
	lc.Output = w
	return logging.NewLogger(lc)
}

// entry picks the entry file from the arguments or the configuration.
func (a *app) entry(args []string) (string, error) {
	a.cfg.TargetFiles = args
	if len(args) > 0 {
		return args[0], nil
	}
	if a.cfg.Bundle.Entry != "" {
		return a.cfg.Bundle.Entry, nil
	}
	return "", bundleerrors.NewValidationError(bundleerrors.ErrCodeInvalidPath,
		"no entry file: pass one as an argument or set bundle.entry")
}

// newBundler builds a bundler from the loaded configuration. Long running
// commands reuse it across rebuilds so the scan cache stays warm.
func (a *app) newBundler() (*build.Bundler, error) {
	var cache *scanner.Cache
	if a.cfg.Cache.Enabled {
		var err error
		cache, err = scanner.NewCache(a.cfg.Cache.Size)
		if err != nil {
			return nil, fmt.Errorf("creating scan cache: %w", err)
		}
	}

	return build.NewBundler(build.Options{
		BaseDir:        a.cfg.Bundle.BaseDir,
		ChunkSize:      a.cfg.Bundle.ChunkSize,
		RuntimeVersion: a.cfg.Bundle.RuntimeVersion,
		Cache:          cache,
		Logger:         a.logger,
	})
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
