package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	bundleerrors "github.com/conneroisu/cjsbundle/internal/errors"
	"github.com/conneroisu/cjsbundle/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stripDotSlash is a rewrite used across tests: "./x.js" becomes "x.js".
func stripDotSlash(target string) string {
	return strings.TrimPrefix(target, "./")
}

func TestNewReferenceScanner(t *testing.T) {
	s := NewReferenceScanner()
	assert.Equal(t, DefaultChunkSize, s.ChunkSize())
	assert.Nil(t, s.Cache())

	s = NewReferenceScanner(WithChunkSize(64))
	assert.Equal(t, 64, s.ChunkSize())

	// Too small sizes are ignored.
	s = NewReferenceScanner(WithChunkSize(4))
	assert.Equal(t, DefaultChunkSize, s.ChunkSize())
}

func TestScan(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		content   string
		refs      []types.Reference
		malformed int
	}{
		{
			name:    "single reference",
			source:  `const u = require("./util.js");`,
			content: `const u = require("util.js");`,
			refs: []types.Reference{
				{Target: "./util.js", ID: "util.js", Start: 19, End: 28},
			},
		},
		{
			name:    "references keep source order",
			source:  "const a = require(\"./a.js\");\nconst b = require(\"./b.js\") + require(\"./c.js\");\n",
			content: "const a = require(\"a.js\");\nconst b = require(\"b.js\") + require(\"c.js\");\n",
			refs: []types.Reference{
				{Target: "./a.js", ID: "a.js", Start: 19, End: 25},
				{Target: "./b.js", ID: "b.js", Start: 48, End: 54},
				{Target: "./c.js", ID: "c.js", Start: 68, End: 74},
			},
		},
		{
			name:      "computed argument is skipped",
			source:    `const m = require(name); module.exports = m;`,
			content:   `const m = require(name); module.exports = m;`,
			malformed: 1,
		},
		{
			name:      "single quotes are not recognised",
			source:    `require('./a.js')`,
			content:   `require('./a.js')`,
			malformed: 1,
		},
		{
			name:      "parenthesis inside literal ends the expression early",
			source:    `require("./a(1).js")`,
			content:   `require("./a(1).js")`,
			malformed: 1,
		},
		{
			name:    "unterminated reference is dropped",
			source:  `exports.x = 1; require("./never.js"`,
			content: `exports.x = 1; require("./never.js"`,
		},
		{
			name:    "no references",
			source:  "module.exports = function () { return 42; };",
			content: "module.exports = function () { return 42; };",
		},
		{
			name:    "empty input",
			source:  "",
			content: "",
		},
		{
			name:    "marker suffix of another identifier still matches",
			source:  `myrequire("./x.js")`,
			content: `myrequire("x.js")`,
			refs: []types.Reference{
				{Target: "./x.js", ID: "x.js", Start: 11, End: 17},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewReferenceScanner()
			result, err := s.Scan(context.Background(), strings.NewReader(tt.source), stripDotSlash)
			require.NoError(t, err)

			assert.Equal(t, tt.content, result.Content)
			if len(tt.refs) == 0 {
				assert.Empty(t, result.References)
			} else {
				assert.Equal(t, tt.refs, result.References)
			}
			assert.Equal(t, tt.malformed, result.Malformed)
		})
	}
}

func TestScanIsIndependentOfChunkBoundaries(t *testing.T) {
	source := strings.Repeat(`var x = require("./lib/some-module.js"); // require(`+"\n", 20) +
		`var last = require("./end.js");`

	whole, err := NewReferenceScanner().Scan(context.Background(), strings.NewReader(source), stripDotSlash)
	require.NoError(t, err)
	require.Len(t, whole.References, 21)

	for _, size := range []int{MinChunkSize, 17, 31, 64, 1000} {
		s := NewReferenceScanner(WithChunkSize(size))
		result, err := s.Scan(context.Background(), strings.NewReader(source), stripDotSlash)
		require.NoError(t, err)
		assert.Equal(t, whole.Content, result.Content, "chunk size %d", size)
		assert.Equal(t, whole.References, result.References, "chunk size %d", size)
	}

	oneByte, err := NewReferenceScanner().Scan(
		context.Background(),
		iotest.OneByteReader(strings.NewReader(source)),
		stripDotSlash,
	)
	require.NoError(t, err)
	assert.Equal(t, whole.Content, oneByte.Content)
	assert.Equal(t, whole.References, oneByte.References)
}

func TestScanNilRewriteKeepsLiterals(t *testing.T) {
	source := `const a = require("./a.js");`

	result, err := NewReferenceScanner().Scan(context.Background(), strings.NewReader(source), nil)
	require.NoError(t, err)

	assert.Equal(t, source, result.Content)
	require.Len(t, result.References, 1)
	assert.Equal(t, "./a.js", result.References[0].ID)
}

func TestScanReadError(t *testing.T) {
	readErr := errors.New("disk on fire")

	_, err := NewReferenceScanner().Scan(context.Background(), iotest.ErrReader(readErr), nil)
	assert.ErrorIs(t, err, readErr)
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReferenceScanner().Scan(ctx, strings.NewReader("x"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.js")
	require.NoError(t, os.WriteFile(path, []byte(`require("./util.js");`), 0644))

	s := NewReferenceScanner()
	result, err := s.ScanFile(context.Background(), FileRequest{Path: path, Rewrite: stripDotSlash})
	require.NoError(t, err)

	assert.Equal(t, `require("util.js");`, result.Content)
	require.Len(t, result.References, 1)
	assert.Equal(t, "./util.js", result.References[0].Target)
}

func TestScanFileUnreadable(t *testing.T) {
	dir := t.TempDir()
	s := NewReferenceScanner()

	_, err := s.ScanFile(context.Background(), FileRequest{Path: filepath.Join(dir, "missing.js")})
	require.Error(t, err)
	assert.True(t, bundleerrors.IsUnreadableSource(err))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = s.ScanFile(context.Background(), FileRequest{Path: dir})
	require.Error(t, err)
	assert.True(t, bundleerrors.IsUnreadableSource(err))
}

func TestScanFileCancelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.js")
	require.NoError(t, os.WriteFile(path, []byte("exports.a = 1;"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReferenceScanner().ScanFile(ctx, FileRequest{Path: path})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, bundleerrors.IsUnreadableSource(err))
}

func TestRewriteReference(t *testing.T) {
	stmt := []byte(`require("./lib/a.js")`)
	loc := referencePattern.FindSubmatchIndex(stmt)
	require.NotNil(t, loc)

	assert.Equal(t, `require("lib/a.js")`, string(RewriteReference(stmt, loc, "lib/a.js")))
	assert.Equal(t, `require("")`, string(RewriteReference(stmt, loc, "")))
	assert.Equal(t, `require("./lib/a.js")`, string(stmt), "input must not be modified")

	// Invalid locations leave the statement untouched.
	assert.Equal(t, stmt, RewriteReference(stmt, nil, "x"))
	assert.Equal(t, stmt, RewriteReference(stmt, []int{0, 5, 9, 100}, "x"))
}

func TestBufferPool(t *testing.T) {
	pool := NewBufferPool(32)

	buf := pool.Get()
	assert.Len(t, *buf, 32)
	pool.Put(buf)

	// Foreign sizes are not pooled.
	other := make([]byte, 8)
	assert.NotPanics(t, func() { pool.Put(&other) })
	assert.NotPanics(t, func() { pool.Put(nil) })
}
