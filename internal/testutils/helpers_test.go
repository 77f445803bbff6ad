package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTempProject(t *testing.T) {
	for name, files := range Fixtures {
		t.Run(name, func(t *testing.T) {
			dir := CreateTempProject(t, name)

			require.Contains(t, files, "index.js")
			for rel, content := range files {
				data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
				require.NoError(t, err)
				assert.Equal(t, content, string(data))
			}
		})
	}
}

func TestWriteTreeCreatesDirectories(t *testing.T) {
	root := WriteTree(t, t.TempDir(), map[string]string{
		"deep/nested/mod.js": "exports.x = 1;",
	})

	info, err := os.Stat(filepath.Join(root, "deep", "nested"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	AssertFilePermissions(t, filepath.Join(root, "deep", "nested", "mod.js"), 0644)
}

func TestWaitForFileChange(t *testing.T) {
	path := CreateTestModule(t, t.TempDir(), "a.js", "exports.a = 1;")
	info, err := os.Stat(path)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		future := time.Now().Add(time.Second)
		_ = os.Chtimes(path, future, future)
	}()

	WaitForFileChange(t, path, info.ModTime(), time.Second)
}
