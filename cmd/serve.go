package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/cjsbundle/internal/server"
	"github.com/conneroisu/cjsbundle/internal/watcher"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve [entry]",
		Aliases: []string{"s"},
		Short:   "Serve the bundle with live reload",
		Long: `Serve runs a development server for the entry file. The page at / loads
/bundle.js and reloads itself whenever a source change produces a new
bundle. /manifest.json describes the current bundle.

Examples:
  cjsbundle serve src/index.js
  cjsbundle serve src/index.js --port 3000`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd, args)
		},
	}

	cmd.Flags().IntP("port", "p", 0, "port to serve on (default 8080)")
	cmd.Flags().String("host", "", "host to bind to (default localhost)")
	cmd.Flags().String("base-dir", "", "directory registry ids are relative to (default: the entry directory)")
	bindFlags(cmd, map[string]string{
		"server.port":     "port",
		"server.host":     "host",
		"bundle.base_dir": "base-dir",
	})

	return cmd
}

func (a *app) runServe(cmd *cobra.Command, args []string) error {
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

	srv := server.New(a.cfg, entry, bundler, a.logger)

	fw, err := a.newSourceWatcher(ctx, entry)
	if err != nil {
		return err
	}
	defer fw.Stop()

	rebuild := func(ctx context.Context) {
		if err := srv.Rebuild(ctx); err != nil {
			a.errs.Handle(ctx, err)
			return
		}
		a.watchModuleDirs(ctx, fw, srv.Result())
	}

	rebuild(ctx)

	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		a.logger.Info(ctx, "Rebuilding", "changes", len(events))
		rebuild(ctx)
		return nil
	})
	if err := fw.Start(ctx); err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}

	return srv.Start(ctx)
}
