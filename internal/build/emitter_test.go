package build

import (
	"strings"
	"testing"

	bundleerrors "github.com/conneroisu/cjsbundle/internal/errors"
	"github.com/conneroisu/cjsbundle/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manualRegistry(t *testing.T, modules ...[3]string) *registry.Registry {
	t.Helper()
	reg := registry.NewRegistry()
	for _, m := range modules {
		_, _, err := reg.Register(m[0], m[1])
		require.NoError(t, err)
		require.NoError(t, reg.Finalize(m[0], m[2], nil))
	}
	return reg
}

func TestEmitLayout(t *testing.T) {
	reg := manualRegistry(t,
		[3]string{"index.js", "/p/index.js", `const u = require("util.js");`},
		[3]string{"util.js", "/p/util.js", "exports.x = 1;"},
	)

	emitter, err := NewEmitter("", nil)
	require.NoError(t, err)
	out, err := emitter.Render(reg, "index.js")
	require.NoError(t, err)

	wantHead := "registryCache = {}\n" +
		"const registry = {\n" +
		"'index.js': function (exports, require, module, __filename, __dirname) {const u = require(\"util.js\");},\n" +
		"'util.js': function (exports, require, module, __filename, __dirname) {exports.x = 1;},\n" +
		"};\n" +
		"const registryLocations = {\n" +
		"'index.js': ['index.js', '/p'],\n" +
		"'util.js': ['util.js', '/p'],\n" +
		"};\n" +
		"function require(id) {\n"

	assert.True(t, strings.HasPrefix(out, wantHead), "unexpected bundle head:\n%s", out)
	assert.True(t, strings.HasSuffix(out, "}\nrequire('index.js')"), "unexpected bundle tail:\n%s", out)
	assert.Equal(t, 1, strings.Count(out, "function require(id)"))
}

func TestEmitIsDeterministic(t *testing.T) {
	build := func() string {
		reg := manualRegistry(t,
			[3]string{"index.js", "/p/index.js", "a"},
			[3]string{"z.js", "/p/z.js", "b"},
			[3]string{"a.js", "/p/a.js", "c"},
		)
		emitter, err := NewEmitter(RuntimeVersion, nil)
		require.NoError(t, err)
		out, err := emitter.Render(reg, "index.js")
		require.NoError(t, err)
		return out
	}

	first := build()
	assert.Equal(t, first, build())
	assert.Less(t, strings.Index(first, "'z.js':"), strings.Index(first, "'a.js':"), "registration order is kept")
}

func TestEmitQuotesIDs(t *testing.T) {
	reg := manualRegistry(t,
		[3]string{"it's.js", "/p/it's.js", ""},
	)

	emitter, err := NewEmitter("", nil)
	require.NoError(t, err)
	out, err := emitter.Render(reg, "it's.js")
	require.NoError(t, err)

	assert.Contains(t, out, `'it\'s.js': function`)
	assert.True(t, strings.HasSuffix(out, `require('it\'s.js')`))
}

func TestEmitMissingEntry(t *testing.T) {
	emitter, err := NewEmitter("", nil)
	require.NoError(t, err)

	_, err = emitter.Render(registry.NewRegistry(), "index.js")
	require.Error(t, err)
	assert.True(t, bundleerrors.IsMissingRegistryEntry(err))
}

func TestLookupRuntime(t *testing.T) {
	rt, err := LookupRuntime("")
	require.NoError(t, err)
	assert.Equal(t, RuntimeVersion, rt.Version())
	assert.Equal(t, []string{"1"}, RuntimeVersions())

	_, err = LookupRuntime("42")
	require.Error(t, err)
	var bundleErr *bundleerrors.BundleError
	require.ErrorAs(t, err, &bundleErr)
	assert.Equal(t, bundleerrors.ErrCodeUnknownRuntime, bundleErr.Code)
	assert.Equal(t, bundleerrors.ErrorTypeConfig, bundleErr.Type)
}

func TestQuoteID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"index.js", `'index.js'`},
		{"lib/a.js", `'lib/a.js'`},
		{`dir\a.js`, `'dir\\a.js'`},
		{"o'clock.js", `'o\'clock.js'`},
		{"line\nbreak.js", `'line\nbreak.js'`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, quoteID(tt.id))
	}
}
