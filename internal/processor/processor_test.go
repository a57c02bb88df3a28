package processor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusgraph/ingestor/internal/content"
	"github.com/corpusgraph/ingestor/internal/domain"
	"github.com/corpusgraph/ingestor/internal/embedding"
	"github.com/corpusgraph/ingestor/internal/entities"
	"github.com/corpusgraph/ingestor/internal/filestate"
	"github.com/corpusgraph/ingestor/internal/metadata"
	"github.com/corpusgraph/ingestor/internal/nodestate"
	"github.com/corpusgraph/ingestor/internal/parser"
	"github.com/corpusgraph/ingestor/internal/parser/generic"
	"github.com/corpusgraph/ingestor/internal/platform/graphstore"
	"github.com/corpusgraph/ingestor/internal/platform/logger"
	"github.com/corpusgraph/ingestor/internal/relations"
)

type fakeEmbedProvider struct{}

func (fakeEmbedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}
func (fakeEmbedProvider) Name() string    { return "fake" }
func (fakeEmbedProvider) Model() string   { return "fake-model" }
func (fakeEmbedProvider) Dimensions() int { return 2 }

func newEntityStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	return httptest.NewServer(mux)
}

func testProcessor(t *testing.T) (*Processor, graphstore.Store) {
	t.Helper()
	log, err := logger.New("dev")
	require.NoError(t, err)
	store := graphstore.NewMemoryStore()

	dispatcher := parser.NewDispatcher()
	dispatcher.Register(parser.KindGeneric, generic.New())

	server := newEntityStub(t)
	t.Cleanup(server.Close)
	entityClient := entities.NewClient(server.URL, 100, time.Second, 10*time.Millisecond)

	p := &Processor{
		Store:       store,
		Content:     content.NewVirtual(store),
		Dispatcher:  dispatcher,
		FileState:   filestate.New(store, log),
		NodeState:   nodestate.New(store, log),
		Preserver:   metadata.New(store),
		Resolver:    relations.New(store, log),
		Entities:    entities.NewCoordinator(store, entityClient, 2000, nil, 0.5, log),
		Embedding:   embedding.New(store, fakeEmbedProvider{}, 4, embedding.ChunkOptions{MaxChars: 1500, MaxLines: 120, LineOverlap: 3}, nil, log),
		Concurrency: 4,
		MaxRetries:  3,
		Log:         log,
	}
	return p, store
}

func TestIngestVirtualFiles_PromotesFileToEmbedded(t *testing.T) {
	p, store := testProcessor(t)
	ctx := context.Background()

	_, err := p.IngestVirtualFiles(ctx, "proj-1", []VirtualFile{
		{RelPath: "notes.txt", Name: "notes.txt", Extension: ".txt", RawContent: "hello world"},
	}, IngestOptions{})
	require.NoError(t, err)

	fileUUID := domain.FileUUID("proj-1", "notes.txt")
	got, err := store.GetNodesByUUIDs(ctx, []string{fileUUID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, string(domain.FileEmbedded), got[0].GetString(domain.PropState))
}

func TestRecover_ResetsIntermediateStates(t *testing.T) {
	p, store := testProcessor(t)
	ctx := context.Background()

	f := domain.NewFile("proj-1", "stuck.txt", "", "stuck.txt", ".txt", "", true, strPtr("x"), "h1")
	f.Set(domain.PropState, string(domain.FileParsing))
	require.NoError(t, store.UpsertNodes(ctx, "File", []map[string]any{f.Properties}, "uuid"))

	result, err := p.Recover(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesRecovered)

	got, err := store.GetNodesByUUIDs(ctx, []string{f.UUID})
	require.NoError(t, err)
	assert.Equal(t, string(domain.FileDiscovered), got[0].GetString(domain.PropState))
}

func TestRecover_ResetsRetryableErrors(t *testing.T) {
	p, store := testProcessor(t)
	ctx := context.Background()

	f := domain.NewFile("proj-1", "bad.txt", "", "bad.txt", ".txt", "", true, strPtr("x"), "h1")
	f.Set(domain.PropState, string(domain.FileError))
	f.Set(domain.PropRetryCount, 1)
	require.NoError(t, store.UpsertNodes(ctx, "File", []map[string]any{f.Properties}, "uuid"))

	result, err := p.Recover(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesRecovered)
	assert.Equal(t, 0, result.FilesInError)
}

// fakeConsumesParser always claims its one configured path and emits a
// single Scope node with a resolved CONSUMES edge to a fixed target, so
// processOneFile's resolve step lands the edge directly instead of going
// through symbolic lookup.
type fakeConsumesParser struct {
	path       string
	scopeUUID  string
	targetUUID string
}

func (p *fakeConsumesParser) CanParse(relPath string, content []byte) bool { return relPath == p.path }

func (p *fakeConsumesParser) Parse(ctx context.Context, content []byte, opts parser.Options) (parser.ParsedGraph, error) {
	return parser.ParsedGraph{
		Nodes: []parser.ParsedNode{{
			Labels:     []string{"Scope"},
			UUID:       p.scopeUUID,
			Properties: map[string]any{domain.PropUUID: p.scopeUUID, domain.PropName: "caller", domain.PropProjectID: opts.ProjectID, domain.PropFileUUID: opts.FileUUID, domain.PropState: string(domain.NodeDiscovered)},
		}},
		Relationships: []parser.ParsedRelationship{
			{Type: domain.EdgeDefinedIn, From: p.scopeUUID, To: opts.FileUUID},
			{Type: domain.EdgeConsumes, From: p.scopeUUID, To: p.targetUUID},
		},
	}, nil
}

func TestProcessOneFile_CleansStaleConsumesBeforeUpsert(t *testing.T) {
	p, store := testProcessor(t)
	ctx := context.Background()

	scopeUUID := "scope-caller"
	newTarget := domain.NewScope(domain.ScopeSpec{ProjectID: "proj-1", FileUUID: "file-b", Name: "newCallee", Type: "function", SignatureHash: "sig-new"})
	require.NoError(t, store.UpsertNodes(ctx, "Scope", []map[string]any{newTarget.Properties}, "uuid"))

	require.NoError(t, store.UpsertRelationships(ctx, domain.EdgeConsumes, []graphstore.RelRow{
		{FromUUID: scopeUUID, ToUUID: "scope-stale-callee"},
	}))

	dispatcher := parser.NewDispatcher()
	dispatcher.Register(parser.KindGeneric, &fakeConsumesParser{path: "caller.go", scopeUUID: scopeUUID, targetUUID: newTarget.UUID})
	p.Dispatcher = dispatcher

	_, err := p.IngestVirtualFiles(ctx, "proj-1", []VirtualFile{
		{RelPath: "caller.go", Name: "caller.go", Extension: ".go", RawContent: "package main"},
	}, IngestOptions{})
	require.NoError(t, err)

	remaining, err := store.GetOutboundRelationships(ctx, scopeUUID, domain.EdgeConsumes)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, newTarget.UUID, remaining[0].ToUUID)
}

func strPtr(s string) *string { return &s }
