package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/cjsbundle/internal/build"
	"github.com/conneroisu/cjsbundle/internal/config"
	"github.com/conneroisu/cjsbundle/internal/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	format := newEnumValue(config.FormatJS, config.FormatJS, config.FormatHTML)

	cmd := &cobra.Command{
		Use:     "watch [entry]",
		Aliases: []string{"w"},
		Short:   "Rebuild the bundle whenever a source file changes",
		Long: `Watch bundles the entry file, then rebuilds it after every batch of changes
to files with a watched extension below the entry directory. A failed
rebuild is logged and watching continues.

Examples:
  cjsbundle watch src/index.js -o dist/app.js
  CJSBUNDLE_WATCH_DEBOUNCE=1s cjsbundle watch src/index.js -o dist/app.js`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd, args)
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

func (a *app) runWatch(cmd *cobra.Command, args []string) error {
	entry, err := a.entry(args)
	if err != nil {
		return err
	}
	bundler, err := a.newBundler()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fw, err := a.newSourceWatcher(ctx, entry, a.cfg.Bundle.Output, a.cfg.Bundle.Manifest)
	if err != nil {
		return err
	}
	defer fw.Stop()

	rebuild := func(ctx context.Context) {
		result, err := a.bundleOnce(ctx, bundler, entry, cmd.OutOrStdout())
		if err != nil {
			a.errs.Handle(ctx, err)
			return
		}
		a.watchModuleDirs(ctx, fw, result)
	}

	rebuild(ctx)

	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		for _, event := range events {
			a.logger.Debug(ctx, "Source changed", "path", event.Path, "type", event.Type.String())
		}
		a.logger.Info(ctx, "Rebuilding", "changes", len(events))
		rebuild(ctx)
		return nil
	})

	if err := fw.Start(ctx); err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}
	a.logger.Info(ctx, "Watching for changes", "paths", len(fw.WatchedPaths()))

	<-ctx.Done()
	a.logger.Info(context.Background(), "Stopping file watcher")
	return nil
}

// newSourceWatcher watches the directory tree that holds the sources of
// entry. Files in exclude are written by the build itself and never
// trigger a rebuild.
func (a *app) newSourceWatcher(ctx context.Context, entry string, exclude ...string) (*watcher.FileWatcher, error) {
	root, err := a.watchRoot(entry)
	if err != nil {
		return nil, err
	}

	fw, err := watcher.NewFileWatcher(a.cfg.Watch.Debounce, a.logger)
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	fw.IgnoreDirs(a.cfg.Watch.Ignore)
	fw.AddFilter(watcher.ExtensionFilter(a.cfg.Watch.Extensions))
	fw.AddFilter(watcher.IgnoreFilter(a.cfg.Watch.Ignore))
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(excludeFilter(exclude))

	if err := fw.AddRecursive(root); err != nil {
		fw.Stop()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}
	a.logger.Debug(ctx, "Watching source tree", "root", root)

	return fw, nil
}

// watchRoot is the configured base directory, or the entry directory.
func (a *app) watchRoot(entry string) (string, error) {
	root := a.cfg.Bundle.BaseDir
	if root == "" {
		root = filepath.Dir(entry)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving watch root: %w", err)
	}
	return abs, nil
}

// excludeFilter rejects the given files.
func excludeFilter(paths []string) watcher.FileFilter {
	excluded := make(map[string]bool, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			excluded[abs] = true
		}
	}
	return func(path string) bool {
		return !excluded[filepath.Clean(path)]
	}
}

// watchModuleDirs adds the directories of modules that live outside the
// watched tree, so that edits to them also trigger a rebuild.
func (a *app) watchModuleDirs(ctx context.Context, fw *watcher.FileWatcher, result *build.Result) {
	watched := make(map[string]bool)
	for _, path := range fw.WatchedPaths() {
		watched[path] = true
	}
	for _, node := range result.Registry.Nodes() {
		dir := node.DirName
		if watched[dir] {
			continue
		}
		if err := fw.AddPath(dir); err != nil {
			a.logger.Warn(ctx, err, "Cannot watch module directory", "path", dir)
			continue
		}
		watched[dir] = true
	}
}
