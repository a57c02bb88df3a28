package nodestate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusgraph/ingestor/internal/domain"
	pkgerrors "github.com/corpusgraph/ingestor/internal/pkg/errors"
	"github.com/corpusgraph/ingestor/internal/platform/graphstore"
	"github.com/corpusgraph/ingestor/internal/platform/logger"
)

func testMachine(t *testing.T) (*Machine, graphstore.Store) {
	t.Helper()
	log, err := logger.New("dev")
	require.NoError(t, err)
	store := graphstore.NewMemoryStore()
	return New(store, log), store
}

func TestTransition_AllowsLinkedToEmbeddingDirectSkip(t *testing.T) {
	m, store := testMachine(t)
	n := domain.NewScope(domain.ScopeSpec{ProjectID: "proj-1", FileUUID: "f1", Name: "Foo", Type: "function", SignatureHash: "sig"})
	n.Set(domain.PropState, string(domain.NodeLinked))
	require.NoError(t, store.UpsertNodes(context.Background(), "Scope", []map[string]any{n.Properties}, "uuid"))

	require.NoError(t, m.Transition(context.Background(), n.UUID, domain.NodeEmbedding))

	got, err := store.GetNodesByUUIDs(context.Background(), []string{n.UUID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, string(domain.NodeEmbedding), got[0].GetString(domain.PropState))
}

func TestTransition_RejectsSkippingDiscoveredToReady(t *testing.T) {
	m, store := testMachine(t)
	n := domain.NewScope(domain.ScopeSpec{ProjectID: "proj-1", FileUUID: "f1", Name: "Foo", Type: "function", SignatureHash: "sig"})
	require.NoError(t, store.UpsertNodes(context.Background(), "Scope", []map[string]any{n.Properties}, "uuid"))

	err := m.Transition(context.Background(), n.UUID, domain.NodeReady)
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.KindOf(pkgerrors.KindInvalidTransition))
}

func TestTransitionBatch_GroupsByLabel(t *testing.T) {
	m, store := testMachine(t)
	scope := domain.NewScope(domain.ScopeSpec{ProjectID: "proj-1", FileUUID: "f1", Name: "Foo", Type: "function", SignatureHash: "sig"})
	scope.Set(domain.PropState, string(domain.NodeLinked))
	doc := domain.NewDocument(domain.DocumentSpec{ProjectID: "proj-1", Label: "MarkdownSection", FileUUID: "f1", BusinessKey: "intro", Name: "Intro"})
	doc.Set(domain.PropState, string(domain.NodeLinked))

	require.NoError(t, store.UpsertNodes(context.Background(), "Scope", []map[string]any{scope.Properties}, "uuid"))
	require.NoError(t, store.UpsertNodes(context.Background(), "MarkdownSection", []map[string]any{doc.Properties}, "uuid"))

	require.NoError(t, m.TransitionBatch(context.Background(), []string{scope.UUID, doc.UUID}, domain.NodeEntities))

	nodes, err := store.GetNodesByUUIDs(context.Background(), []string{scope.UUID, doc.UUID})
	require.NoError(t, err)
	for _, n := range nodes {
		assert.Equal(t, string(domain.NodeEntities), n.GetString(domain.PropState))
	}
}
