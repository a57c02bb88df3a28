package filestate

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

func TestMarkDiscoveredBatch_CreatesNewFiles(t *testing.T) {
	m, _ := testMachine(t)
	result, err := m.MarkDiscoveredBatch(context.Background(), "proj-1", []DiscoverCandidate{
		{RelPath: "a.go", AbsPath: "/root/a.go", Name: "a.go", Extension: ".go", RawContentHash: "h1"},
	})
	require.NoError(t, err)
	assert.Len(t, result.Created, 1)
	assert.Empty(t, result.Skipped)
}

func TestMarkDiscoveredBatch_SkipsUnchangedHash(t *testing.T) {
	m, _ := testMachine(t)
	cand := DiscoverCandidate{RelPath: "a.go", AbsPath: "/root/a.go", Name: "a.go", Extension: ".go", RawContentHash: "h1"}
	_, err := m.MarkDiscoveredBatch(context.Background(), "proj-1", []DiscoverCandidate{cand})
	require.NoError(t, err)

	result, err := m.MarkDiscoveredBatch(context.Background(), "proj-1", []DiscoverCandidate{cand})
	require.NoError(t, err)
	assert.Len(t, result.Skipped, 1)
	assert.Empty(t, result.Created)
	assert.Empty(t, result.Reset)
}

func TestMarkDiscoveredBatch_ResetsOnHashChange(t *testing.T) {
	m, _ := testMachine(t)
	first := DiscoverCandidate{RelPath: "a.go", AbsPath: "/root/a.go", Name: "a.go", Extension: ".go", RawContentHash: "h1"}
	_, err := m.MarkDiscoveredBatch(context.Background(), "proj-1", []DiscoverCandidate{first})
	require.NoError(t, err)

	changed := first
	changed.RawContentHash = "h2"
	result, err := m.MarkDiscoveredBatch(context.Background(), "proj-1", []DiscoverCandidate{changed})
	require.NoError(t, err)
	assert.Len(t, result.Reset, 1)
}

func TestTransition_RejectsIllegalJump(t *testing.T) {
	m, _ := testMachine(t)
	_, err := m.MarkDiscoveredBatch(context.Background(), "proj-1", []DiscoverCandidate{
		{RelPath: "a.go", AbsPath: "/root/a.go", Name: "a.go", Extension: ".go", RawContentHash: "h1"},
	})
	require.NoError(t, err)

	fileUUID := domain.FileUUID("proj-1", "a.go")
	err = m.Transition(context.Background(), fileUUID, domain.FileEmbedded, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.KindOf(pkgerrors.KindInvalidTransition))
}

func TestTransition_AllowsForwardStep(t *testing.T) {
	m, _ := testMachine(t)
	_, err := m.MarkDiscoveredBatch(context.Background(), "proj-1", []DiscoverCandidate{
		{RelPath: "a.go", AbsPath: "/root/a.go", Name: "a.go", Extension: ".go", RawContentHash: "h1"},
	})
	require.NoError(t, err)

	fileUUID := domain.FileUUID("proj-1", "a.go")
	require.NoError(t, m.Transition(context.Background(), fileUUID, domain.FileParsing, nil))

	files, err := m.GetFilesInState(context.Background(), "proj-1", domain.FileParsing)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestTransition_ToErrorAlwaysAllowed(t *testing.T) {
	m, _ := testMachine(t)
	_, err := m.MarkDiscoveredBatch(context.Background(), "proj-1", []DiscoverCandidate{
		{RelPath: "a.go", AbsPath: "/root/a.go", Name: "a.go", Extension: ".go", RawContentHash: "h1"},
	})
	require.NoError(t, err)
	fileUUID := domain.FileUUID("proj-1", "a.go")
	require.NoError(t, m.Transition(context.Background(), fileUUID, domain.FileParsing, nil))
	require.NoError(t, m.Transition(context.Background(), fileUUID, domain.FileError, &TransitionOptions{
		ErrorType: domain.CauseParse, ErrorMessage: "boom",
	}))

	retryable, err := m.GetRetryableFiles(context.Background(), "proj-1", 3)
	require.NoError(t, err)
	require.Len(t, retryable, 1)
	assert.Equal(t, 1, retryable[0].GetInt(domain.PropRetryCount))
}

func TestIsProjectFullyProcessed(t *testing.T) {
	m, _ := testMachine(t)
	_, err := m.MarkDiscoveredBatch(context.Background(), "proj-1", []DiscoverCandidate{
		{RelPath: "a.go", AbsPath: "/root/a.go", Name: "a.go", Extension: ".go", RawContentHash: "h1"},
	})
	require.NoError(t, err)
	done, err := m.IsProjectFullyProcessed(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.False(t, done)
}
