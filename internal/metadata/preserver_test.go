package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusgraph/ingestor/internal/domain"
	"github.com/corpusgraph/ingestor/internal/platform/graphstore"
)

func TestSnapshotAndRestore_PreservesEmbeddingOnUnchangedReparse(t *testing.T) {
	store := graphstore.NewMemoryStore()
	p := New(store)

	scope := domain.NewScope(domain.ScopeSpec{ProjectID: "proj-1", FileUUID: "f1", Name: "Foo", Type: "function", SignatureHash: "sig"})
	scope.Set(domain.PropState, string(domain.NodeReady))
	scope.Set(domain.EmbeddingHashProp("content"), "hash-abc")
	scope.Set(domain.EmbeddingVectorProp("content"), []float32{0.1, 0.2, 0.3})
	scope.Set(domain.PropEmbeddingProvider, "openai")
	scope.Set(domain.PropEmbeddingModel, "text-embedding-3-small")
	require.NoError(t, store.UpsertNodes(context.Background(), "Scope", []map[string]any{scope.Properties}, "uuid"))

	snapshots, err := p.Snapshot(context.Background(), []string{scope.UUID})
	require.NoError(t, err)
	require.Contains(t, snapshots, scope.UUID)

	// A reparse of identical content produces a node with the same uuid,
	// starting from the discovered state.
	reparsed := domain.NewScope(domain.ScopeSpec{ProjectID: "proj-1", FileUUID: "f1", Name: "Foo", Type: "function", SignatureHash: "sig"})
	RestoreBatch([]*domain.Node{reparsed}, snapshots)

	assert.Equal(t, string(domain.NodeReady), reparsed.GetString(domain.PropState))
	assert.Equal(t, "hash-abc", reparsed.GetString(domain.EmbeddingHashProp("content")))
	assert.Equal(t, "openai", reparsed.GetString(domain.PropEmbeddingProvider))
}

func TestRestore_NoSnapshotLeavesFreshNode(t *testing.T) {
	fresh := domain.NewScope(domain.ScopeSpec{ProjectID: "proj-1", FileUUID: "f1", Name: "NewFunc", Type: "function", SignatureHash: "sig2"})
	RestoreBatch([]*domain.Node{fresh}, map[string]Snapshot{})
	assert.Equal(t, string(domain.NodeDiscovered), fresh.GetString(domain.PropState))
}
