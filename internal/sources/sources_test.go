package sources

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisk_IncludeExcludeFilters(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "dep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.go"), []byte("package main"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.md"), []byte("# doc"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "dep", "index.js"), []byte("x"), 0o644))

	d := NewDisk(root, []string{"**/*.go", "**/*.md"}, []string{"**/node_modules/**"})
	entries, err := d.List()
	require.NoError(t, err)

	var paths []string
	for _, e := range entries {
		paths = append(paths, e.RelPath)
	}
	assert.ElementsMatch(t, []string{"src/main.go", "src/main.md"}, paths)
}

func TestDisk_NoIncludeMeansEverything(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("b"), 0o644))

	d := NewDisk(root, nil, nil)
	entries, err := d.List()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestArchive_ExtractsAndExcludesDefaults(t *testing.T) {
	data := buildZip(t, map[string]string{
		"README.md":                  "hello",
		"src/index.ts":               "export {}",
		"node_modules/pkg/index.js":  "x",
		"dist/bundle.min.js":         "y",
	})

	a := NewArchive(nil)
	entries, err := a.Extract(data)
	require.NoError(t, err)

	var paths []string
	for _, e := range entries {
		paths = append(paths, e.RelPath)
		assert.True(t, e.IsVirtual)
	}
	assert.ElementsMatch(t, []string{"README.md", "src/index.ts"}, paths)
}

func TestArchive_CustomExclude(t *testing.T) {
	data := buildZip(t, map[string]string{
		"keep.go":   "package main",
		"secret.go": "package main",
	})

	a := NewArchive([]string{"secret.go"})
	entries, err := a.Extract(data)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep.go", entries[0].RelPath)
}
