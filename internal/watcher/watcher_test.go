package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusgraph/ingestor/internal/domain"
	"github.com/corpusgraph/ingestor/internal/filestate"
	"github.com/corpusgraph/ingestor/internal/platform/graphstore"
	"github.com/corpusgraph/ingestor/internal/platform/logger"
)

func newTestWatcher(t *testing.T, root string) (*Watcher, graphstore.Store) {
	t.Helper()
	log, err := logger.New("dev")
	require.NoError(t, err)
	store := graphstore.NewMemoryStore()
	fs := filestate.New(store, log)
	w := New(root, "proj-1", 30*time.Millisecond, nil, nil, fs, store, log)
	return w, store
}

func TestWatcher_AddedFileIsMarkedDiscovered(t *testing.T) {
	root := t.TempDir()
	w, store := newTestWatcher(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.txt"), []byte("hello"), 0o644))

	require.Eventually(t, func() bool {
		got, err := store.GetNodesByUUIDs(ctx, []string{domain.FileUUID("proj-1", "new.txt")})
		return err == nil && len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_PauseDropsEvents(t *testing.T) {
	root := t.TempDir()
	w, store := newTestWatcher(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	err := w.WithPause(func() error {
		return os.WriteFile(filepath.Join(root, "paused.txt"), []byte("hello"), 0o644)
	})
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)
	got, err := store.GetNodesByUUIDs(ctx, []string{domain.FileUUID("proj-1", "paused.txt")})
	require.NoError(t, err)
	assert.Len(t, got, 0)
}

func TestCascadeDelete_RemovesFileAndChildren(t *testing.T) {
	root := t.TempDir()
	w, store := newTestWatcher(t, root)
	ctx := context.Background()

	fileUUID := domain.FileUUID("proj-1", "doc.md")
	file := domain.NewFile("proj-1", "doc.md", filepath.Join(root, "doc.md"), "doc.md", ".md", "", false, nil, "h1")
	require.NoError(t, store.UpsertNodes(ctx, "File", []map[string]any{file.Properties}, "uuid"))

	child := domain.NewNode("child-1", "MarkdownSection")
	child.Set(domain.PropProjectID, "proj-1")
	require.NoError(t, store.UpsertNodes(ctx, "MarkdownSection", []map[string]any{child.Properties}, "uuid"))
	require.NoError(t, store.UpsertRelationships(ctx, domain.EdgeDefinedIn, []graphstore.RelRow{
		{FromUUID: "child-1", ToUUID: fileUUID},
	}))

	require.NoError(t, w.cascadeDelete(ctx, "doc.md"))

	got, err := store.GetNodesByUUIDs(ctx, []string{fileUUID, "child-1"})
	require.NoError(t, err)
	assert.Len(t, got, 0)
}
