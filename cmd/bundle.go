package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/cjsbundle/internal/build"
	"github.com/conneroisu/cjsbundle/internal/config"
)

func newBundleCmd(a *app) *cobra.Command {
	format := newEnumValue(config.FormatJS, config.FormatJS, config.FormatHTML)

	cmd := &cobra.Command{
		Use:     "bundle [entry]",
		Aliases: []string{"b"},
		Short:   "Bundle an entry file and its dependencies",
		Long: `Bundle follows every require("./relative/path") reachable from the entry file
and writes one script that evaluates the entry when run.

Examples:
  cjsbundle bundle src/index.js                       # Write the bundle to stdout
  cjsbundle bundle src/index.js -o dist/app.js        # Write the bundle to a file
  cjsbundle bundle src/index.js --format html         # Wrap the bundle in an HTML page
  cjsbundle bundle src/index.js --manifest dist/m.yml # Also write a manifest`,
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
			_, err = a.bundleOnce(commandContext(cmd), bundler, entry, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringP("output", "o", "", "write the bundle to this file instead of stdout")
	cmd.Flags().Var(format, "format", format.usage("output format"))
	cmd.Flags().String("manifest", "", "write a manifest (.json, .yaml, .yml or .toml)")
	cmd.Flags().String("base-dir", "", "directory registry ids are relative to (default: the entry directory)")
	cmd.Flags().String("runtime", "", "resolver runtime version")
	bindBundleFlags(cmd)

	return cmd
}

// bindBundleFlags ties the artifact flags shared by bundle and watch to
// their configuration keys.
func bindBundleFlags(cmd *cobra.Command) {
	bindFlags(cmd, map[string]string{
		"bundle.output":          "output",
		"bundle.format":          "format",
		"bundle.manifest":        "manifest",
		"bundle.base_dir":        "base-dir",
		"bundle.runtime_version": "runtime",
	})
}

// bundleOnce builds entry and writes the configured artifacts. The bundle
// goes to stdout when the output is empty or "-".
func (a *app) bundleOnce(ctx context.Context, bundler *build.Bundler, entry string, stdout io.Writer) (*build.Result, error) {
	result, err := bundler.Bundle(ctx, entry)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writeArtifact(&buf, result, a.cfg.Bundle.Format); err != nil {
		return nil, err
	}

	if output := a.cfg.Bundle.Output; output != "" && output != "-" {
		if err := writeFile(output, buf.Bytes()); err != nil {
			return nil, err
		}
		a.logger.Info(ctx, "Wrote bundle", "path", output, "bytes", buf.Len())
	} else if _, err := stdout.Write(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("writing bundle: %w", err)
	}

	if manifest := a.cfg.Bundle.Manifest; manifest != "" {
		if err := ensureDir(manifest); err != nil {
			return nil, err
		}
		if err := build.NewManifest(result).WriteFile(manifest); err != nil {
			return nil, err
		}
		a.logger.Info(ctx, "Wrote manifest", "path", manifest, "modules", result.Stats.Modules)
	}

	return result, nil
}

func writeArtifact(w io.Writer, result *build.Result, format string) error {
	switch format {
	case config.FormatHTML:
		return build.WriteHTML(w, result.EntryID, result.Output)
	default:
		_, err := io.WriteString(w, result.Output)
		return err
	}
}

func writeFile(path string, data []byte) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	return nil
}
