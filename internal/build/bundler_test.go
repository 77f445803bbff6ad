package build

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	bundleerrors "github.com/conneroisu/cjsbundle/internal/errors"
	"github.com/conneroisu/cjsbundle/internal/logging"
	"github.com/conneroisu/cjsbundle/internal/scanner"
	"github.com/conneroisu/cjsbundle/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundleScenarios(t *testing.T) {
	tests := []struct {
		fixture string
		ids     []string
		stats   Stats
	}{
		{
			fixture: "basic",
			ids:     []string{"index.js", "util.js"},
			stats:   Stats{Modules: 2, Files: 2, References: 1},
		},
		{
			fixture: "depth-2",
			ids:     []string{"index.js", "a.js", "b.js", "lib/shared.js"},
			stats:   Stats{Modules: 4, Files: 5, References: 4},
		},
		{
			fixture: "cycles",
			ids:     []string{"index.js", "a.js", "b.js"},
			stats:   Stats{Modules: 3, Files: 4, References: 4, Skipped: 1, Cycles: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.fixture, func(t *testing.T) {
			b, err := NewBundler(Options{})
			require.NoError(t, err)

			result, err := b.Bundle(context.Background(), fixtureEntry(t, tt.fixture))
			require.NoError(t, err)

			assert.Equal(t, "index.js", result.EntryID)
			assert.Equal(t, RuntimeVersion, result.RuntimeVersion)
			assert.Equal(t, tt.ids, result.Registry.IDs())

			for _, node := range result.Registry.Nodes() {
				assert.True(t, node.Finalized(), "%s not finalised", node.ID)
				assert.NotContains(t, node.SourceContent, `require("./`)
				assert.Contains(t, result.Output, "'"+node.ID+"': function (exports, require, module, __filename, __dirname) {"+node.SourceContent+"},\n")
			}

			assert.True(t, strings.HasPrefix(result.Output, "registryCache = {}\nconst registry = {\n"))
			assert.True(t, strings.HasSuffix(result.Output, "require('index.js')"))

			stats := result.Stats
			assert.Equal(t, tt.stats.Modules, stats.Modules)
			assert.Equal(t, tt.stats.Files, stats.Files)
			assert.Equal(t, tt.stats.References, stats.References)
			assert.Equal(t, tt.stats.Skipped, stats.Skipped)
			assert.Equal(t, tt.stats.Cycles, stats.Cycles)
			assert.Equal(t, len(result.Output), stats.Bytes)
		})
	}
}

func TestBundleIsDeterministic(t *testing.T) {
	entry := fixtureEntry(t, "depth-2")

	first, err := Bundle(context.Background(), entry)
	require.NoError(t, err)
	second, err := Bundle(context.Background(), entry)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBundleBaseDir(t *testing.T) {
	root := testutils.WriteTree(t, t.TempDir(), map[string]string{
		"app/index.js": `require("./util.js"); require("../shared/x.js");`,
		"app/util.js":  "exports.u = 1;",
		"shared/x.js":  "exports.x = 1;",
	})

	b, err := NewBundler(Options{BaseDir: root})
	require.NoError(t, err)
	result, err := b.Bundle(context.Background(), filepath.Join(root, "app", "index.js"))
	require.NoError(t, err)

	assert.Equal(t, root, result.BaseDir)
	assert.Equal(t, []string{"index.js", "app/util.js", "shared/x.js"}, result.Registry.IDs())

	entry, _ := result.Registry.Get("index.js")
	assert.Equal(t, `require("app/util.js"); require("shared/x.js");`, entry.SourceContent)
}

func TestBundleReferencesOutsideBaseDir(t *testing.T) {
	root := testutils.WriteTree(t, t.TempDir(), map[string]string{
		"app/index.js": `require("../vendor/v.js");`,
		"vendor/v.js":  "exports.v = 1;",
	})

	result, err := mustBundler(t, Options{}).Bundle(context.Background(), filepath.Join(root, "app", "index.js"))
	require.NoError(t, err)
	assert.Equal(t, []string{"index.js", "../vendor/v.js"}, result.Registry.IDs())
}

func TestBundleErrors(t *testing.T) {
	dir := testutils.WriteTree(t, t.TempDir(), map[string]string{
		"index.js": `require("./gone.js");`,
	})

	tests := []struct {
		name  string
		entry string
		check func(t *testing.T, err error)
	}{
		{
			name:  "empty entry",
			entry: "",
			check: func(t *testing.T, err error) {
				var be *bundleerrors.BundleError
				require.ErrorAs(t, err, &be)
				assert.Equal(t, bundleerrors.ErrCodeInvalidPath, be.Code)
			},
		},
		{
			name:  "missing entry",
			entry: filepath.Join(dir, "nope.js"),
			check: func(t *testing.T, err error) {
				assert.True(t, bundleerrors.IsUnreadableSource(err))
			},
		},
		{
			name:  "directory entry",
			entry: dir,
			check: func(t *testing.T, err error) {
				var be *bundleerrors.BundleError
				require.ErrorAs(t, err, &be)
				assert.Equal(t, bundleerrors.ErrCodeInvalidPath, be.Code)
			},
		},
		{
			name:  "missing dependency",
			entry: filepath.Join(dir, "index.js"),
			check: func(t *testing.T, err error) {
				assert.True(t, bundleerrors.IsUnreadableSource(err))
				assert.Contains(t, err.Error(), "gone.js")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Bundle(context.Background(), tt.entry)
			require.Error(t, err)
			assert.Empty(t, out)
			tt.check(t, err)
		})
	}
}

func TestNewBundlerUnknownRuntime(t *testing.T) {
	_, err := NewBundler(Options{RuntimeVersion: "2"})
	require.Error(t, err)

	var be *bundleerrors.BundleError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, bundleerrors.ErrCodeUnknownRuntime, be.Code)
}

func TestBundleWithCache(t *testing.T) {
	cache, err := scanner.NewCache(16)
	require.NoError(t, err)

	b := mustBundler(t, Options{Cache: cache, ChunkSize: scanner.MinChunkSize})
	entry := fixtureEntry(t, "depth-2")

	first, err := b.Bundle(context.Background(), entry)
	require.NoError(t, err)
	second, err := b.Bundle(context.Background(), entry)
	require.NoError(t, err)

	assert.Equal(t, first.Output, second.Output)
	assert.NotSame(t, first.Registry, second.Registry)

	// The second build, and the revisit of lib/shared.js in the first,
	// are served from the cache.
	stats := cache.Stats()
	assert.Equal(t, uint64(4), stats.Misses)
	assert.Equal(t, uint64(6), stats.Hits)
}

func TestBundleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Bundle(ctx, fixtureEntry(t, "basic"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBundleLogsVisitedDependencies(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.LevelDebug,
		Format: logging.FormatJSON,
		Output: &buf,
	})

	_, err := mustBundler(t, Options{Logger: logger}).Bundle(context.Background(), fixtureEntry(t, "basic"))
	require.NoError(t, err)

	var visited, completed bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		switch entry["msg"] {
		case "visited dependencies":
			visited = true
			assert.Equal(t, "walker", entry["component"])
			assert.Equal(t, "util.js", entry["dependency"])
		case "Operation completed":
			completed = true
			assert.Equal(t, "bundle", entry["operation"])
		}
	}
	assert.True(t, visited)
	assert.True(t, completed)
}

func mustBundler(t *testing.T, opts Options) *Bundler {
	t.Helper()
	b, err := NewBundler(opts)
	require.NoError(t, err)
	return b
}
