package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/cjsbundle/internal/version"
)

func newVersionCmd() *cobra.Command {
	format := newEnumValue("text", "text", "json", "yaml")
	var short, detailed bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display version information for cjsbundle including:

- Semantic version number
- Git commit hash
- Build timestamp
- Go version and target platform

Examples:
  cjsbundle version               # Show version
  cjsbundle version --detailed    # Show detailed version info
  cjsbundle version --format json # Output as JSON`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			info := version.GetBuildInfo()

			switch format.String() {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			case "yaml":
				return yaml.NewEncoder(out).Encode(info)
			}

			switch {
			case short:
				fmt.Fprintln(out, version.GetShortVersion())
			case detailed:
				fmt.Fprintln(out, version.GetDetailedVersion())
			default:
				line := "cjsbundle " + version.GetShortVersion()
				if info.Dirty {
					line += " (dirty)"
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().Var(format, "format", format.usage("output format"))
	cmd.Flags().BoolVar(&short, "short", false, "show the version only")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "show detailed build information")

	return cmd
}
