package testutils

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Fixtures are small module graphs shared by package tests. Each maps a
// slash-separated relative path to file content; every graph has an
// index.js entry.
var Fixtures = map[string]map[string]string{
	// basic: one entry referencing one leaf
	"basic": {
		"index.js": "const util = require(\"./util.js\");\nmodule.exports = util.greet(\"world\");\n",
		"util.js":  "exports.greet = function (name) { return \"hello \" + name; };\n",
	},
	// depth-2: two branches sharing a leaf two levels down
	"depth-2": {
		"index.js":      "const a = require(\"./a.js\");\nconst b = require(\"./b.js\");\nmodule.exports = a.value + b.value;\n",
		"a.js":          "const shared = require(\"./lib/shared.js\");\nexports.value = shared.count() + 1;\n",
		"b.js":          "const shared = require(\"./lib/shared.js\");\nexports.value = shared.count() + 10;\n",
		"lib/shared.js": "let calls = 0;\nexports.count = function () { calls += 1; return calls; };\n",
	},
	// cycles: a and b reference each other
	"cycles": {
		"index.js": "const a = require(\"./a.js\");\nmodule.exports = a.describe();\n",
		"a.js":     "exports.name = \"a\";\nconst b = require(\"./b.js\");\nexports.describe = function () { return exports.name + \"->\" + b.seen; };\n",
		"b.js":     "const a = require(\"./a.js\");\nexports.seen = a.name;\n",
	},
}

// CreateTempProject creates a temporary directory holding the named
// fixture and returns the directory.
func CreateTempProject(t *testing.T, fixture string) string {
	t.Helper()

	files, ok := Fixtures[fixture]
	require.True(t, ok, "unknown fixture %q", fixture)

	return WriteTree(t, t.TempDir(), files)
}

// WriteTree writes files below root, creating directories as needed, and
// returns root.
func WriteTree(t *testing.T, root string, files map[string]string) string {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		CreateTestModule(t, root, name, files[name])
	}

	return root
}

// CreateTestModule writes one source file and returns its path.
func CreateTestModule(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	return path
}

// AssertFilePermissions checks that files have the expected permissions
func AssertFilePermissions(t *testing.T, path string, expectedMode os.FileMode) {
	info, err := os.Stat(path)
	require.NoError(t, err)

	actualMode := info.Mode()
	require.Equal(t, expectedMode, actualMode&os.FileMode(0777),
		"File %s has incorrect permissions: got %o, want %o",
		path, actualMode&os.FileMode(0777), expectedMode)
}

// WaitForFileChange waits for a file to be modified (useful for testing file watchers)
func WaitForFileChange(
	t *testing.T,
	filePath string,
	originalModTime time.Time,
	timeout time.Duration,
) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		info, err := os.Stat(filePath)
		if err == nil && info.ModTime().After(originalModTime) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("File %s was not modified within %v", filePath, timeout)
}
