package embedding

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/corpusgraph/ingestor/internal/domain"
	pkgerrors "github.com/corpusgraph/ingestor/internal/pkg/errors"
	"github.com/corpusgraph/ingestor/internal/platform/graphstore"
	"github.com/corpusgraph/ingestor/internal/platform/logger"
)

// candidateLabels is every label the view table names (embedding.LabelViews
// keys), used to fan the collect phase across every embeddable kind in one
// pass rather than one query per label.
func candidateLabels() []string {
	labels := make([]string, 0, len(LabelViews))
	for label := range LabelViews {
		labels = append(labels, label)
	}
	return labels
}

// task is one view's worth of work for one node: either inline (text short
// enough to embed directly) or chunked (text split into EmbeddingChunk
// children first).
type task struct {
	node    *domain.Node
	spec    ViewSpec
	text    string
	hash    string
	chunked bool
	chunks  []Chunk
}

// Service runs the four phases of §4.7 for every `linked`-state node
// against the configured provider: collect dirty views, clean up stale
// chunks, batch-embed, and persist vectors plus hashes.
type Service struct {
	Store       graphstore.Store
	Provider    Provider
	Concurrency int
	Chunking    ChunkOptions
	SkipTypes   map[string]bool
	Log         *logger.Logger
}

func New(store graphstore.Store, provider Provider, concurrency int, chunking ChunkOptions, skipTypes []string, log *logger.Logger) *Service {
	skip := make(map[string]bool, len(skipTypes))
	for _, t := range skipTypes {
		skip[t] = true
	}
	return &Service{Store: store, Provider: provider, Concurrency: concurrency, Chunking: chunking, SkipTypes: skip, Log: log.With("component", "embedding.Service")}
}

// RunStats summarizes one pass over a project's linked nodes.
type RunStats struct {
	NodesScanned    int
	ViewsEmbedded   int
	ChunksCreated   int
	NodesSkipped    int
	NodesErrored    int
}

// RunProject embeds every dirty view of every `linked` node across the
// configured labels, then advances every node untouched by a task (skipped
// entirely, or every view already current) straight to `ready`, since
// persistOne advances the nodes it actually writes.
func (s *Service) RunProject(ctx context.Context, projectID string) (RunStats, error) {
	stats := RunStats{}
	nodes, err := s.Store.GetNodesByLabelsAndState(ctx, projectID, candidateLabels(), string(domain.NodeLinked))
	if err != nil {
		return stats, pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
	}
	stats.NodesScanned = len(nodes)

	tasks, readyUUIDs, skipped := s.collect(ctx, nodes)
	stats.NodesSkipped += skipped

	if err := s.cleanupStaleChunks(ctx, tasks); err != nil {
		return stats, err
	}

	embedded, chunksCreated, errored, err := s.embedAndPersist(ctx, tasks)
	stats.ViewsEmbedded += embedded
	stats.ChunksCreated += chunksCreated
	stats.NodesErrored += errored
	if err != nil {
		return stats, err
	}

	if err := s.markReady(ctx, readyUUIDs); err != nil {
		return stats, err
	}
	return stats, nil
}

// collect implements Phase 1: for every applicable view of every candidate
// node, skip it if the Entity's type is configured to skip embedding,
// otherwise compare the view's text hash against its persisted hash and
// build a task only for views that changed. A hash match alone isn't
// enough: if the node's recorded provider or model differs from the one
// configured now, the view is stale regardless of hash (§4.7 "Idempotence
// and provider change"). Nodes that end up with no task at all (skipped,
// unsupported label, or every view already current under the active
// provider/model) are returned separately so the caller can advance them
// to `ready` directly.
func (s *Service) collect(ctx context.Context, nodes []*domain.Node) ([]task, []string, int) {
	var tasks []task
	var readyUUIDs []string
	skipped := 0
	for _, n := range nodes {
		if n.HasLabel("Entity") && s.SkipTypes[n.GetString(domain.PropEntityType)] {
			skipped++
			readyUUIDs = append(readyUUIDs, n.UUID)
			continue
		}
		specs := ViewSpecsForLabel(n.PrimaryLabel())
		if len(specs) == 0 {
			skipped++
			readyUUIDs = append(readyUUIDs, n.UUID)
			continue
		}
		nodeHasWork := false
		providerCurrent := n.GetString(domain.PropEmbeddingProvider) == s.Provider.Name() &&
			n.GetString(domain.PropEmbeddingModel) == s.Provider.Model()
		for _, spec := range specs {
			text := spec.Extract(n)
			if text == "" || len(text) < s.Chunking.MinCharsToEmbed {
				continue
			}
			hash := domain.HashText(text)
			if providerCurrent && n.GetString(spec.HashKey) == hash {
				continue
			}
			nodeHasWork = true
			t := task{node: n, spec: spec, text: text, hash: hash}
			if ShouldChunk(text, s.Chunking) {
				t.chunked = true
				t.chunks = ChunkText(text, n.GetInt(domain.PropStartLine), s.Chunking)
			}
			tasks = append(tasks, t)
		}
		if !nodeHasWork {
			readyUUIDs = append(readyUUIDs, n.UUID)
		}
	}
	return tasks, readyUUIDs, skipped
}

// markReady advances nodes that produced no embedding task to `ready`:
// nothing else in this pass will ever transition them, so leaving them at
// `linked` would strand them there permanently (§4.3, §4.7 Phase 4).
func (s *Service) markReady(ctx context.Context, nodeUUIDs []string) error {
	if len(nodeUUIDs) == 0 {
		return nil
	}
	nodes, err := s.Store.GetNodesByUUIDs(ctx, nodeUUIDs)
	if err != nil {
		return pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
	}
	now := time.Now()
	byLabel := map[string][]map[string]any{}
	for _, n := range nodes {
		byLabel[n.PrimaryLabel()] = append(byLabel[n.PrimaryLabel()], map[string]any{
			domain.PropUUID:          n.UUID,
			domain.PropState:         string(domain.NodeReady),
			domain.PropStateChangedAt: now,
		})
	}
	for label, rows := range byLabel {
		if err := s.Store.UpsertNodes(ctx, label, rows, "uuid"); err != nil {
			return pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
		}
	}
	return nil
}

// cleanupStaleChunks implements Phase 2: before writing fresh chunks for a
// view that chunks, delete whatever chunk children it had before, since
// chunk count and boundaries can shift between re-parses.
func (s *Service) cleanupStaleChunks(ctx context.Context, tasks []task) error {
	for _, t := range tasks {
		if !t.chunked {
			continue
		}
		existing, err := s.Store.GetChunkChildren(ctx, t.node.UUID)
		if err != nil {
			return pkgerrors.New(pkgerrors.KindGraphTransient, t.node.UUID, err)
		}
		if len(existing) == 0 {
			continue
		}
		uuids := make([]string, len(existing))
		for i, c := range existing {
			uuids[i] = c.UUID
		}
		if err := s.Store.DeleteNodes(ctx, "EmbeddingChunk", uuids); err != nil {
			return pkgerrors.New(pkgerrors.KindGraphTransient, t.node.UUID, err)
		}
	}
	return nil
}

// embedAndPersist implements Phases 3-4: each task is embedded with its own
// EmbedBatch call (one text for an inline view, all of the view's chunk
// texts for a chunked one); tasks are not grouped across views or nodes into
// provider-sized batches. Vectors/hashes (plus EmbeddingChunk nodes for
// chunked views) are written back in a worker pool bounded by Concurrency.
func (s *Service) embedAndPersist(ctx context.Context, tasks []task) (embedded, chunksCreated, errored int, err error) {
	if len(tasks) == 0 {
		return 0, 0, 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)

	type result struct {
		embedded, chunks, errored int
	}
	results := make(chan result, len(tasks))

	for _, t := range tasks {
		t := t
		g.Go(func() error {
			r, perr := s.persistOne(gctx, t)
			if perr != nil {
				s.Log.Warn("embedding task failed", "node", t.node.UUID, "view", t.spec.View, "error", perr)
				results <- result{errored: 1}
				return nil // per-node failures are contained, not fatal to the batch
			}
			results <- result{embedded: r.embedded, chunks: r.chunks}
			return nil
		})
	}
	if waitErr := g.Wait(); waitErr != nil {
		return embedded, chunksCreated, errored, pkgerrors.New(pkgerrors.KindGraphTransient, "", waitErr)
	}
	close(results)
	for r := range results {
		embedded += r.embedded
		chunksCreated += r.chunks
		errored += r.errored
	}
	return embedded, chunksCreated, errored, nil
}

func (s *Service) persistOne(ctx context.Context, t task) (struct{ embedded, chunks int }, error) {
	zero := struct{ embedded, chunks int }{}
	now := time.Now()

	if !t.chunked {
		vecs, err := s.Provider.EmbedBatch(ctx, []string{t.text})
		if err != nil {
			return zero, err
		}
		props := map[string]any{
			domain.PropUUID:              t.node.UUID,
			t.spec.VectorKey:             vecs[0],
			t.spec.HashKey:               t.hash,
			domain.PropEmbeddingProvider: s.Provider.Name(),
			domain.PropEmbeddingModel:    s.Provider.Model(),
			domain.PropEmbeddingGenAt:    now,
			domain.PropState:             string(domain.NodeReady),
			domain.PropStateChangedAt:    now,
		}
		if err := s.Store.UpsertNodes(ctx, t.node.PrimaryLabel(), []map[string]any{props}, "uuid"); err != nil {
			return zero, err
		}
		return struct{ embedded, chunks int }{1, 0}, nil
	}

	texts := make([]string, len(t.chunks))
	for i, c := range t.chunks {
		texts[i] = c.Content
	}
	vecs, err := s.Provider.EmbedBatch(ctx, texts)
	if err != nil {
		return zero, err
	}
	rows := make([]map[string]any, len(t.chunks))
	for i, c := range t.chunks {
		chunk := domain.NewEmbeddingChunk(domain.ChunkSpec{
			ProjectID:   t.node.GetString(domain.PropProjectID),
			ParentUUID:  t.node.UUID,
			ParentLabel: t.node.PrimaryLabel(),
			Index:       c.Index,
			Content:     c.Content,
			StartChar:   c.StartChar,
			EndChar:     c.EndChar,
			StartLine:   c.StartLine,
			EndLine:     c.EndLine,
		})
		chunk.Set(domain.EmbeddingVectorProp("content"), vecs[i])
		chunk.Set(domain.PropEmbeddingProvider, s.Provider.Name())
		chunk.Set(domain.PropEmbeddingModel, s.Provider.Model())
		chunk.Set(domain.PropEmbeddingGenAt, now)
		rows[i] = chunk.Properties
	}
	if err := s.Store.UpsertNodes(ctx, "EmbeddingChunk", rows, "uuid"); err != nil {
		return zero, err
	}

	parentProps := map[string]any{
		domain.PropUUID:              t.node.UUID,
		t.spec.HashKey:               t.hash,
		domain.PropUsesChunks:        true,
		domain.PropChunkCount:        len(t.chunks),
		domain.PropEmbeddingProvider: s.Provider.Name(),
		domain.PropEmbeddingModel:    s.Provider.Model(),
		domain.PropState:             string(domain.NodeReady),
		domain.PropStateChangedAt:    now,
	}
	if err := s.Store.UpsertNodes(ctx, t.node.PrimaryLabel(), []map[string]any{parentProps}, "uuid"); err != nil {
		return zero, err
	}
	return struct{ embedded, chunks int }{1, len(t.chunks)}, nil
}
