package cmd

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/cjsbundle/internal/types"
)

func newTreeCmd(a *app) *cobra.Command {
	format := newEnumValue("text", "text", "json", "yaml")

	cmd := &cobra.Command{
		Use:     "tree [entry]",
		Aliases: []string{"t"},
		Short:   "Print the dependency tree of an entry file",
		Long: `Tree walks the entry file the same way bundle does and prints every visit.
A dependency that was already visited from the same parent is marked as
skipped, which is where import cycles are cut.

Examples:
  cjsbundle tree src/index.js
  cjsbundle tree src/index.js --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := a.entry(args)
			if err != nil {
				return err
			}
			bundler, err := a.newBundler()
			if err != nil {
				return err
			}
			result, err := bundler.Bundle(commandContext(cmd), entry)
			if err != nil {
				return err
			}
			return printTree(cmd.OutOrStdout(), result.Tree, format.String())
		},
	}

	cmd.Flags().Var(format, "format", format.usage("output format"))
	cmd.Flags().String("base-dir", "", "directory registry ids are relative to (default: the entry directory)")
	bindFlags(cmd, map[string]string{"bundle.base_dir": "base-dir"})

	return cmd
}

func printTree(w io.Writer, tree *types.TreeNode, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tree)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			return err
		}
		return enc.Close()
	default:
		var b strings.Builder
		b.WriteString(tree.ID + "\n")
		writeChildren(&b, tree.Children, "")
		_, err := io.WriteString(w, b.String())
		return err
	}
}

func writeChildren(b *strings.Builder, children []*types.TreeNode, prefix string) {
	for i, child := range children {
		branch, indent := "├── ", "│   "
		if i == len(children)-1 {
			branch, indent = "└── ", "    "
		}

		b.WriteString(prefix + branch + child.ID)
		if child.Skipped {
			b.WriteString(" (skipped)")
		}
		b.WriteString("\n")
		writeChildren(b, child.Children, prefix+indent)
	}
}

