// Package build turns an entry file and the files it references into a
// single self-contained script.
//
// A Bundler registers the entry, lets a Walker discover and rewrite every
// reachable file depth first, and hands the finished registry to an
// Emitter. Each Bundle call works on its own registry and visited set, so
// a Bundler may be reused for repeated builds such as those triggered by
// the watcher.
package build

import (
	"context"
	"os"
	"path/filepath"
	"time"

	bundleerrors "github.com/conneroisu/cjsbundle/internal/errors"
	"github.com/conneroisu/cjsbundle/internal/logging"
	"github.com/conneroisu/cjsbundle/internal/registry"
	"github.com/conneroisu/cjsbundle/internal/scanner"
	"github.com/conneroisu/cjsbundle/internal/types"
)

// Options configures a Bundler.
type Options struct {
	// BaseDir is the directory ids are relative to. Empty means the
	// directory of the entry file.
	BaseDir string
	// ChunkSize is the scanner read size
	ChunkSize int
	// RuntimeVersion selects the resolver template
	RuntimeVersion string
	// Cache enables scan result reuse across builds
	Cache *scanner.Cache
	Logger logging.Logger
}

// Stats summarises one build.
type Stats struct {
	Modules    int           `json:"modules" yaml:"modules"`
	Files      int           `json:"files_scanned" yaml:"files_scanned"`
	References int           `json:"references" yaml:"references"`
	Skipped    int           `json:"skipped_revisits" yaml:"skipped_revisits"`
	Cycles     int           `json:"cycles" yaml:"cycles"`
	Bytes      int           `json:"bytes" yaml:"bytes"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// Result is the outcome of a successful build.
type Result struct {
	EntryPath string
	EntryID   string
	BaseDir   string
	// RuntimeVersion is the resolver version written into Output
	RuntimeVersion string
	Registry       *registry.Registry
	Tree           *types.TreeNode
	Cycles         [][]string
	Output         string
	Stats          Stats
}

// Bundler builds bundles.
type Bundler struct {
	baseDir string
	walker  *Walker
	emitter *Emitter
	logger  logging.Logger
}

// NewBundler creates a bundler. It fails when the runtime version is
// unknown.
func NewBundler(opts Options) (*Bundler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	emitter, err := NewEmitter(opts.RuntimeVersion, logger)
	if err != nil {
		return nil, err
	}

	scanOpts := []scanner.Option{scanner.WithLogger(logger)}
	if opts.ChunkSize > 0 {
		scanOpts = append(scanOpts, scanner.WithChunkSize(opts.ChunkSize))
	}
	if opts.Cache != nil {
		scanOpts = append(scanOpts, scanner.WithCache(opts.Cache))
	}

	return &Bundler{
		baseDir: opts.BaseDir,
		walker:  NewWalker(scanner.NewReferenceScanner(scanOpts...), logger),
		emitter: emitter,
		logger:  logger.WithComponent("bundler"),
	}, nil
}

// Bundle builds the bundle rooted at entryPath.
func (b *Bundler) Bundle(ctx context.Context, entryPath string) (*Result, error) {
	perf := logging.StartOperation(b.logger, "bundle")

	result, err := b.bundle(ctx, entryPath)
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	result.Stats.Duration = perf.End(ctx,
		"entry", result.EntryID,
		"modules", result.Stats.Modules,
		"bytes", result.Stats.Bytes,
	)
	return result, nil
}

func (b *Bundler) bundle(ctx context.Context, entryPath string) (*Result, error) {
	if entryPath == "" {
		return nil, bundleerrors.ErrInvalidPath(entryPath, "entry path is empty")
	}
	entryAbs, err := filepath.Abs(entryPath)
	if err != nil {
		return nil, bundleerrors.ErrInvalidPath(entryPath, err.Error())
	}

	info, err := os.Stat(entryAbs)
	if err != nil {
		return nil, bundleerrors.UnreadableSource(entryAbs, err)
	}
	if info.IsDir() {
		return nil, bundleerrors.ErrInvalidPath(entryPath, "entry is a directory")
	}

	baseDir := filepath.Dir(entryAbs)
	if b.baseDir != "" {
		if baseDir, err = filepath.Abs(b.baseDir); err != nil {
			return nil, bundleerrors.ErrInvalidPath(b.baseDir, err.Error())
		}
	}

	entryID := NormalizeID(filepath.Base(entryAbs))
	reg := registry.NewRegistry()
	if _, _, err := reg.Register(entryID, entryAbs); err != nil {
		return nil, err
	}

	report, err := b.walker.WalkTree(ctx, baseDir, entryAbs, entryID, NewVisitedSet(), reg)
	if err != nil {
		return nil, err
	}

	output, err := b.emitter.Render(reg, entryID)
	if err != nil {
		return nil, err
	}

	cycles := reg.Cycles()
	return &Result{
		EntryPath:      entryAbs,
		EntryID:        entryID,
		BaseDir:        baseDir,
		RuntimeVersion: b.emitter.RuntimeVersion(),
		Registry:       reg,
		Tree:           report.Tree,
		Cycles:         cycles,
		Output:         output,
		Stats: Stats{
			Modules:    reg.Count(),
			Files:      report.Files,
			References: report.References,
			Skipped:    report.Skipped,
			Cycles:     len(cycles),
			Bytes:      len(output),
		},
	}, nil
}

// Bundle builds entryPath with default options and returns the script.
func Bundle(ctx context.Context, entryPath string) (string, error) {
	b, err := NewBundler(Options{})
	if err != nil {
		return "", err
	}
	result, err := b.Bundle(ctx, entryPath)
	if err != nil {
		return "", err
	}
	return result.Output, nil
}
