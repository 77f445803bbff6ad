package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/cjsbundle/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Show prints the configuration after defaults, the config file, environment
variables and flags have been merged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(a.cfg); err != nil {
				return fmt.Errorf("encoding configuration: %w", err)
			}
			return enc.Close()
		},
	}

	validate := &cobra.Command{
		Use:   "validate [file]",
		Short: "Strictly validate a configuration file",
		Long: `Validate checks a configuration file for unknown or duplicate keys and
invalid values. Without an argument it checks the file named by --config,
` + EnvConfigFile + ` or ` + config.DefaultFileName + `.`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configFile()
			if len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				path = config.DefaultFileName
			}

			if _, err := config.ValidateFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
			return nil
		},
	}

	cmd.AddCommand(show, validate)
	return cmd
}
