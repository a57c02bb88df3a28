package relations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusgraph/ingestor/internal/domain"
	"github.com/corpusgraph/ingestor/internal/parser"
	"github.com/corpusgraph/ingestor/internal/platform/graphstore"
	"github.com/corpusgraph/ingestor/internal/platform/logger"
)

func testResolver(t *testing.T) (*Resolver, graphstore.Store) {
	t.Helper()
	log, err := logger.New("dev")
	require.NoError(t, err)
	store := graphstore.NewMemoryStore()
	return New(store, log), store
}

func TestResolve_EmitsPendingImportWhenTargetUnknown(t *testing.T) {
	r, _ := testResolver(t)
	rels := []parser.ParsedRelationship{
		{Type: domain.EdgeConsumes, From: "scope-a", TargetLabel: "Scope", TargetProps: map[string]any{domain.PropName: "foo"}},
	}
	byType, err := r.Resolve(context.Background(), "proj-1", "file-a", rels)
	require.NoError(t, err)
	require.Contains(t, byType, domain.EdgePendingImport)
	assert.Equal(t, "foo", byType[domain.EdgePendingImport][0].Properties[domain.PendingSymbolName])
}

func TestResolve_ResolvesAgainstSymbolIndex(t *testing.T) {
	r, store := testResolver(t)
	target := domain.NewScope(domain.ScopeSpec{ProjectID: "proj-1", FileUUID: "file-b", Name: "foo", Type: "function", SignatureHash: "sig"})
	require.NoError(t, store.UpsertNodes(context.Background(), "Scope", []map[string]any{target.Properties}, "uuid"))

	rels := []parser.ParsedRelationship{
		{Type: domain.EdgeConsumes, From: "scope-a", TargetLabel: "Scope", TargetProps: map[string]any{domain.PropName: "foo"}},
	}
	byType, err := r.Resolve(context.Background(), "proj-1", "file-a", rels)
	require.NoError(t, err)
	require.Contains(t, byType, domain.EdgeConsumes)
	assert.Equal(t, target.UUID, byType[domain.EdgeConsumes][0].ToUUID)
}

func TestSweep_ResolvesPendingImportAfterTargetAppears(t *testing.T) {
	r, store := testResolver(t)
	source := domain.NewScope(domain.ScopeSpec{ProjectID: "proj-1", FileUUID: "file-a", Name: "caller", Type: "function", SignatureHash: "sig-caller"})
	require.NoError(t, store.UpsertNodes(context.Background(), "Scope", []map[string]any{source.Properties}, "uuid"))

	require.NoError(t, store.UpsertRelationships(context.Background(), domain.EdgePendingImport, []graphstore.RelRow{
		{FromUUID: source.UUID, ToUUID: "", Properties: map[string]any{
			domain.PendingSymbolName: "foo", domain.PendingSourceModule: "Scope", domain.PendingFromUUID: source.UUID,
		}},
	}))

	target := domain.NewScope(domain.ScopeSpec{ProjectID: "proj-1", FileUUID: "file-b", Name: "foo", Type: "function", SignatureHash: "sig"})
	require.NoError(t, store.UpsertNodes(context.Background(), "Scope", []map[string]any{target.Properties}, "uuid"))

	result, err := r.Sweep(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Resolved)
	assert.Equal(t, 0, result.Remaining)

	remaining, err := store.GetPendingImports(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestTieBreak_PrefersSameFile(t *testing.T) {
	candidates := []candidate{
		{uuid: "u1", file: "other-file", ctype: "function"},
		{uuid: "u2", file: "this-file", ctype: "function"},
	}
	resolved, ok := tieBreak(candidates, "this-file", "Scope")
	require.True(t, ok)
	assert.Equal(t, "u2", resolved.uuid)
}

func TestTieBreak_PrefersValueCarryingOverTypeOnly(t *testing.T) {
	candidates := []candidate{
		{uuid: "u1", file: "f", ctype: "interface"},
		{uuid: "u2", file: "f", ctype: "function"},
	}
	resolved, ok := tieBreak(candidates, "", "Scope")
	require.True(t, ok)
	assert.Equal(t, "u2", resolved.uuid)
}

func TestTieBreak_AmbiguousLeavesUnresolved(t *testing.T) {
	candidates := []candidate{
		{uuid: "u1", file: "f1", ctype: "function"},
		{uuid: "u2", file: "f2", ctype: "function"},
	}
	_, ok := tieBreak(candidates, "", "Scope")
	assert.False(t, ok)
}

func TestConsumesCleanup_DeletesStaleEdges(t *testing.T) {
	_, store := testResolver(t)
	require.NoError(t, store.UpsertRelationships(context.Background(), domain.EdgeConsumes, []graphstore.RelRow{
		{FromUUID: "scope-a", ToUUID: "scope-old"},
		{FromUUID: "scope-a", ToUUID: "scope-keep"},
	}))

	err := ConsumesCleanup(context.Background(), store, "scope-a", map[string]bool{"scope-keep": true})
	require.NoError(t, err)

	remaining, err := store.GetOutboundRelationships(context.Background(), "scope-a", domain.EdgeConsumes)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "scope-keep", remaining[0].ToUUID)
}
