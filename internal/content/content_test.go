package content

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusgraph/ingestor/internal/domain"
	"github.com/corpusgraph/ingestor/internal/platform/graphstore"
)

func TestDisk_ReadWithHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n"), 0o644))

	disk := NewDisk(4)
	b, hash, err := disk.ReadWithHash(context.Background(), FileRef{UUID: "f1", AbsPath: path})
	require.NoError(t, err)
	assert.Equal(t, "package a\n", string(b))
	assert.Equal(t, HashBytes(b), hash)
}

func TestDisk_Read_NotFound(t *testing.T) {
	disk := NewDisk(4)
	_, err := disk.Read(context.Background(), FileRef{UUID: "f1", AbsPath: "/does/not/exist"})
	require.Error(t, err)
}

func TestDisk_ReadBatch_Parallel(t *testing.T) {
	dir := t.TempDir()
	var refs []FileRef
	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, "f.txt")
		_ = path
	}
	refs = nil
	for i := 0; i < 5; i++ {
		p := filepath.Join(dir, "file.txt")
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		refs = append(refs, FileRef{UUID: "f1", AbsPath: p})
	}
	disk := NewDisk(2)
	content, hashes, errs := disk.ReadBatch(context.Background(), refs)
	assert.Empty(t, errs)
	assert.Equal(t, []byte("x"), content["f1"])
	assert.NotEmpty(t, hashes["f1"])
}

func TestVirtual_ReadBatch(t *testing.T) {
	store := graphstore.NewMemoryStore()
	f := domain.NewFile("proj-1", "virtual/note.md", "", "note.md", ".md", "virtual", true, strPtr("hello"), HashBytes([]byte("hello")))
	require.NoError(t, store.UpsertNodes(context.Background(), "File", []map[string]any{f.Properties}, "uuid"))

	v := NewVirtual(store)
	refs := []FileRef{{UUID: f.UUID, IsVirtual: true}}
	content, hashes, errs := v.ReadBatch(context.Background(), refs)
	assert.Empty(t, errs)
	assert.Equal(t, []byte("hello"), content[f.UUID])
	assert.Equal(t, HashBytes([]byte("hello")), hashes[f.UUID])
}

func TestVirtual_Read_MissingNode(t *testing.T) {
	store := graphstore.NewMemoryStore()
	v := NewVirtual(store)
	_, err := v.Read(context.Background(), FileRef{UUID: "missing"})
	require.Error(t, err)
}

func TestHybrid_RoutesByIsVirtual(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("disk-bytes"), 0o644))

	store := graphstore.NewMemoryStore()
	f := domain.NewFile("proj-1", "virtual/note.md", "", "note.md", ".md", "virtual", true, strPtr("virtual-bytes"), HashBytes([]byte("virtual-bytes")))
	require.NoError(t, store.UpsertNodes(context.Background(), "File", []map[string]any{f.Properties}, "uuid"))

	h := NewHybrid(NewDisk(4), NewVirtual(store))
	refs := []FileRef{
		{UUID: "disk-1", AbsPath: p, IsVirtual: false},
		{UUID: f.UUID, IsVirtual: true},
	}
	content, _, errs := h.ReadBatch(context.Background(), refs)
	assert.Empty(t, errs)
	assert.Equal(t, []byte("disk-bytes"), content["disk-1"])
	assert.Equal(t, []byte("virtual-bytes"), content[f.UUID])
}

func strPtr(s string) *string { return &s }

func TestIsVirtual(t *testing.T) {
	assert.True(t, IsVirtual(true, "/abs/path", "virtual://"))
	assert.True(t, IsVirtual(false, "", "virtual://"))
	assert.True(t, IsVirtual(false, "virtual://foo", "virtual://"))
	assert.False(t, IsVirtual(false, "/abs/path", "virtual://"))
}
