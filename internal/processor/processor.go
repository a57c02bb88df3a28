// Package processor implements the Unified Processor (C9, §4.9): the
// top-level orchestrator that drives every file through discover → parse →
// resolve → link → entities → embed, bounded by a configurable worker pool
// and backed entirely by properties on graph nodes rather than an external
// journal (§6.5).
package processor

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/corpusgraph/ingestor/internal/content"
	"github.com/corpusgraph/ingestor/internal/domain"
	"github.com/corpusgraph/ingestor/internal/embedding"
	"github.com/corpusgraph/ingestor/internal/entities"
	"github.com/corpusgraph/ingestor/internal/filestate"
	"github.com/corpusgraph/ingestor/internal/metadata"
	"github.com/corpusgraph/ingestor/internal/nodestate"
	"github.com/corpusgraph/ingestor/internal/parser"
	pkgerrors "github.com/corpusgraph/ingestor/internal/pkg/errors"
	"github.com/corpusgraph/ingestor/internal/platform/graphstore"
	"github.com/corpusgraph/ingestor/internal/platform/logger"
	"github.com/corpusgraph/ingestor/internal/relations"
)

// ActivityFunc is called periodically during long-running phases so an
// external watchdog can tell the process is alive (§4.9 "every long-running
// external call must yield periodic activity signals").
type ActivityFunc func(phase string, detail string)

// RunStats tallies one processor invocation, returned to the caller (a
// daemon loop, a CLI command, or a test) for logging/reporting.
type RunStats struct {
	FilesProcessed      int
	FilesSkipped        int
	FilesErrored        int
	EntitiesCreated     int
	RelationsCreated    int
	EmbeddingsGenerated int
	DurationMs          int64
}

// Processor wires every core component together. All fields are exported
// so cmd/ingestd can construct one by hand without a builder type.
type Processor struct {
	Store       graphstore.Store
	Content     content.Provider
	Dispatcher  *parser.Dispatcher
	FileState   *filestate.Machine
	NodeState   *nodestate.Machine
	Preserver   *metadata.Preserver
	Resolver    *relations.Resolver
	Entities    *entities.Coordinator
	Embedding   *embedding.Service
	Concurrency int
	MaxRetries  int
	Activity    ActivityFunc
	Log         *logger.Logger
}

func (p *Processor) signal(phase, detail string) {
	if p.Activity != nil {
		p.Activity(phase, detail)
	}
}

// withGraphRetry wraps a graph-store call with exponential backoff before
// treating a transient failure as fatal to the run (§7: "transient
// graph-store errors bubble up and abort the batch").
func withGraphRetry(ctx context.Context, fn func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn()
		if err == nil {
			return struct{}{}, nil
		}
		var typed *pkgerrors.Typed
		if errors.As(err, &typed) && typed.Kind != pkgerrors.KindGraphTransient {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithMaxTries(3), backoff.WithBackOff(backoff.NewExponentialBackOff()))
	return err
}

// ProcessDiscovered promotes every `discovered` file in a project to
// `linked`, running the full parse/resolve/link pipeline per file with
// bounded concurrency.
func (p *Processor) ProcessDiscovered(ctx context.Context, projectID string) (RunStats, error) {
	start := time.Now()
	stats := RunStats{}

	files, err := p.FileState.GetFilesInState(ctx, projectID, domain.FileDiscovered)
	if err != nil {
		return stats, err
	}
	if len(files) == 0 {
		stats.DurationMs = time.Since(start).Milliseconds()
		return stats, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Concurrency)

	type outcome struct {
		errored bool
	}
	results := make(chan outcome, len(files))

	for _, f := range files {
		f := f
		g.Go(func() error {
			p.signal("processDiscovered", f.GetString(domain.PropRelPath))
			if err := p.processOneFile(gctx, projectID, f); err != nil {
				p.Log.Warn("file processing failed", "file", f.UUID, "error", err)
				results <- outcome{errored: true}
				return nil
			}
			results <- outcome{errored: false}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	close(results)
	for r := range results {
		if r.errored {
			stats.FilesErrored++
		} else {
			stats.FilesProcessed++
		}
	}
	stats.DurationMs = time.Since(start).Milliseconds()
	return stats, nil
}

// processOneFile runs parse → resolve → link for a single File node,
// transitioning it through parsing/parsed/relations/linked, and falling
// back to `error` with a typed cause on failure (contained per §7).
func (p *Processor) processOneFile(ctx context.Context, projectID string, file *domain.Node) error {
	fileUUID := file.UUID
	if err := p.FileState.Transition(ctx, fileUUID, domain.FileParsing, nil); err != nil {
		return err
	}

	ref := content.FileRef{
		UUID:      fileUUID,
		AbsPath:   file.GetString(domain.PropAbsPath),
		IsVirtual: file.GetBool(domain.PropIsVirtual),
	}
	raw, _, err := p.Content.ReadWithHash(ctx, ref)
	if err != nil {
		return p.failFile(ctx, fileUUID, domain.CauseParse, err)
	}

	prior, err := p.priorNodeUUIDs(ctx, fileUUID)
	if err != nil {
		return p.failFile(ctx, fileUUID, domain.CauseParse, err)
	}
	snapshots, err := p.Preserver.Snapshot(ctx, prior)
	if err != nil {
		return p.failFile(ctx, fileUUID, domain.CauseParse, err)
	}

	graph, err := p.Dispatcher.Dispatch(ctx, file.GetString(domain.PropRelPath), raw, parser.Options{
		ProjectID: projectID, FileUUID: fileUUID,
		RelPath: file.GetString(domain.PropRelPath), AbsPath: file.GetString(domain.PropAbsPath),
	})
	if err != nil {
		return p.failFile(ctx, fileUUID, domain.CauseParse, err)
	}
	if err := p.FileState.Transition(ctx, fileUUID, domain.FileParsed, nil); err != nil {
		return err
	}

	freshNodes := stampContentHashes(graph.Nodes)
	metadata.RestoreBatch(toDomainNodes(freshNodes), snapshots)
	if err := p.persistNodes(ctx, freshNodes, fileUUID); err != nil {
		return p.failFile(ctx, fileUUID, domain.CauseParse, err)
	}

	byType, err := p.Resolver.Resolve(ctx, projectID, fileUUID, graph.Relationships)
	if err != nil {
		return p.failFile(ctx, fileUUID, domain.CauseRelations, err)
	}
	for relType, rows := range byType {
		if relType == domain.EdgeConsumes {
			if err := cleanupStaleConsumes(ctx, p.Store, rows); err != nil {
				return p.failFile(ctx, fileUUID, domain.CauseRelations, err)
			}
		}
		if err := withGraphRetry(ctx, func() error { return p.Store.UpsertRelationships(ctx, relType, rows) }); err != nil {
			return p.failFile(ctx, fileUUID, domain.CauseRelations, err)
		}
	}
	if _, err := p.Resolver.Sweep(ctx, projectID); err != nil {
		p.Log.Warn("pending import sweep failed", "error", err)
	}
	if err := p.FileState.Transition(ctx, fileUUID, domain.FileRelations, nil); err != nil {
		return err
	}

	nodeUUIDs := make([]string, len(freshNodes))
	for i, n := range freshNodes {
		nodeUUIDs[i] = n.UUID
	}
	if err := p.NodeState.TransitionBatch(ctx, nodeUUIDs, domain.NodeLinked); err != nil {
		p.Log.Warn("node link transition failed", "file", fileUUID, "error", err)
	}
	return p.FileState.Transition(ctx, fileUUID, domain.FileLinked, nil)
}

func (p *Processor) failFile(ctx context.Context, fileUUID string, cause domain.ErrorCause, cause2 error) error {
	_ = p.FileState.Transition(ctx, fileUUID, domain.FileError, &filestate.TransitionOptions{
		ErrorType: cause, ErrorMessage: cause2.Error(),
	})
	return cause2
}

func (p *Processor) priorNodeUUIDs(ctx context.Context, fileUUID string) ([]string, error) {
	rels, err := p.Store.GetInboundRelationships(ctx, fileUUID, domain.EdgeDefinedIn)
	if err != nil {
		return nil, err
	}
	uuids := make([]string, len(rels))
	for i, r := range rels {
		uuids[i] = r.FromUUID
	}
	return uuids, nil
}

// persistNodes upserts parsed nodes by label. DEFINED_IN edges (node → file)
// are emitted by the parsers themselves and flow through Resolver.Resolve,
// so they're not built here.
func (p *Processor) persistNodes(ctx context.Context, nodes []parser.ParsedNode, fileUUID string) error {
	byLabel := map[string][]map[string]any{}
	for _, n := range nodes {
		label := primaryLabel(n.Labels)
		byLabel[label] = append(byLabel[label], n.Properties)
	}
	for label, rows := range byLabel {
		if err := withGraphRetry(ctx, func() error { return p.Store.UpsertNodes(ctx, label, rows, "uuid") }); err != nil {
			return err
		}
	}
	return nil
}

func primaryLabel(labels []string) string {
	if len(labels) == 0 {
		return "DocumentFile"
	}
	return labels[0]
}

// stampContentHashes computes and sets each node's per-node _contentHash
// from its _content property, the per-node analogue of the File's
// _rawContentHash (§3: "contentHash: hash of normalized parse output").
func stampContentHashes(nodes []parser.ParsedNode) []parser.ParsedNode {
	for i := range nodes {
		text, _ := nodes[i].Properties[domain.PropContent].(string)
		nodes[i].Properties[domain.PropContentHash] = domain.HashText(text)
	}
	return nodes
}

func toDomainNodes(nodes []parser.ParsedNode) []*domain.Node {
	out := make([]*domain.Node, len(nodes))
	for i, n := range nodes {
		out[i] = &domain.Node{UUID: n.UUID, Labels: n.Labels, Properties: n.Properties}
	}
	return out
}

// ProcessLinked promotes `linked` files to `embedded`, running the entity
// phase then the embedding phase in that fixed order (§4.9, §5 ordering
// guarantees).
func (p *Processor) ProcessLinked(ctx context.Context, projectID string) (RunStats, error) {
	start := time.Now()
	stats := RunStats{}

	files, err := p.FileState.GetFilesInState(ctx, projectID, domain.FileLinked)
	if err != nil {
		return stats, err
	}
	if len(files) == 0 {
		stats.DurationMs = time.Since(start).Milliseconds()
		return stats, nil
	}

	fileUUIDs := make([]string, len(files))
	for i, f := range files {
		fileUUIDs[i] = f.UUID
	}
	if err := p.FileState.TransitionBatch(ctx, fileUUIDs, domain.FileEntities); err != nil {
		return stats, err
	}

	p.signal("processLinked:entities", projectID)
	entityStats, err := p.Entities.RunProject(ctx, projectID)
	if err != nil {
		return stats, err
	}
	stats.EntitiesCreated = entityStats.EntitiesWritten
	stats.RelationsCreated = entityStats.RelationsWritten

	if err := p.FileState.TransitionBatch(ctx, fileUUIDs, domain.FileEmbedding); err != nil {
		return stats, err
	}

	p.signal("processLinked:embedding", projectID)
	embeddingStats, err := p.Embedding.RunProject(ctx, projectID)
	if err != nil {
		return stats, err
	}
	stats.EmbeddingsGenerated = embeddingStats.ViewsEmbedded

	if err := p.FileState.TransitionBatch(ctx, fileUUIDs, domain.FileEmbedded); err != nil {
		return stats, err
	}
	stats.FilesProcessed = len(files)
	stats.DurationMs = time.Since(start).Milliseconds()
	return stats, nil
}

// ProcessLinkedNodes handles files already `embedded` whose children were
// re-linked independently (e.g. by a targeted reprocess): a no-file-
// transition variant of the embedding phase. Skip-embedding Entity types
// are pre-advanced straight to `ready` first so they never re-appear as
// "found but nothing to do" on the next pass (§4.9).
func (p *Processor) ProcessLinkedNodes(ctx context.Context, projectID string) (embedding.RunStats, error) {
	skipNodes, err := p.NodeState.GetNodesByLabelsAndState(ctx, projectID, []string{"Entity"}, domain.NodeLinked)
	if err != nil {
		return embedding.RunStats{}, err
	}
	var toAdvance []string
	for _, n := range skipNodes {
		if p.Embedding.SkipTypes[n.GetString(domain.PropEntityType)] {
			toAdvance = append(toAdvance, n.UUID)
		}
	}
	if len(toAdvance) > 0 {
		if err := p.NodeState.TransitionBatch(ctx, toAdvance, domain.NodeReady); err != nil {
			return embedding.RunStats{}, err
		}
	}
	return p.Embedding.RunProject(ctx, projectID)
}

// ProcessFile mirrors the full pipeline for one file, for ad-hoc
// reprocessing outside a full project pass.
func (p *Processor) ProcessFile(ctx context.Context, projectID string, fileUUID string) error {
	nodes, err := p.Store.GetNodesByUUIDs(ctx, []string{fileUUID})
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return pkgerrors.New(pkgerrors.KindNotFound, fileUUID, nil)
	}
	if err := p.processOneFile(ctx, projectID, nodes[0]); err != nil {
		return err
	}
	_, err = p.ProcessLinked(ctx, projectID)
	return err
}

// RecoverResult tallies a crash-recovery pass (§4.9).
type RecoverResult struct {
	FilesRecovered int
	FilesInError   int
	StatesReset    map[domain.FileState]int
}

// Recover resets every file stuck in an intermediate state back to
// `discovered`, and every error-state file within its retry budget, so the
// next processDiscovered naturally re-establishes the pipeline's
// invariants (§5 Recovery, §7 "recover() is the only mechanism that moves
// files out of error").
func (p *Processor) Recover(ctx context.Context, projectID string) (RecoverResult, error) {
	result := RecoverResult{StatesReset: map[domain.FileState]int{}}

	intermediate := []domain.FileState{domain.FileParsing, domain.FileRelations, domain.FileEntities, domain.FileEmbedding}
	for _, state := range intermediate {
		nodes, err := p.FileState.GetFilesInState(ctx, projectID, state)
		if err != nil {
			return result, err
		}
		if len(nodes) == 0 {
			continue
		}
		var uuids []string
		for _, n := range nodes {
			uuids = append(uuids, n.UUID)
		}
		if err := forceReset(ctx, p.Store, uuids); err != nil {
			return result, err
		}
		result.StatesReset[state] = len(uuids)
		result.FilesRecovered += len(uuids)
	}

	retryable, err := p.FileState.GetRetryableFiles(ctx, projectID, p.MaxRetries)
	if err != nil {
		return result, err
	}
	errored, err := p.FileState.GetFilesInState(ctx, projectID, domain.FileError)
	if err != nil {
		return result, err
	}
	result.FilesInError = len(errored) - len(retryable)
	if len(retryable) > 0 {
		var uuids []string
		for _, n := range retryable {
			uuids = append(uuids, n.UUID)
		}
		if err := forceReset(ctx, p.Store, uuids); err != nil {
			return result, err
		}
		result.FilesRecovered += len(uuids)
	}
	return result, nil
}

// forceReset moves files directly to `discovered` regardless of their
// current state, since recovery is the one path allowed to bypass the
// normal transition table (every intermediate/error state legally reaches
// `discovered` anyway per §4.2, but going through Transition one at a time
// here would mean one round trip per file).
func forceReset(ctx context.Context, store graphstore.Store, uuids []string) error {
	nodes, err := store.GetNodesByUUIDs(ctx, uuids)
	if err != nil {
		return err
	}
	rows := make([]map[string]any, len(nodes))
	for i, n := range nodes {
		n.Set(domain.PropState, string(domain.FileDiscovered))
		n.Set(domain.PropStateChangedAt, time.Now())
		rows[i] = n.Properties
	}
	return store.UpsertNodes(ctx, "File", rows, "uuid")
}

// IngestOptions carries the optional extras ingestVirtualFiles supports
// (§4.9).
type IngestOptions struct {
	AdditionalProperties map[string]any
}

// VirtualFile is one graph-resident file to ingest, carrying its bytes
// inline.
type VirtualFile struct {
	RelPath    string
	Name       string
	Extension  string
	Directory  string
	RawContent string
}

// IngestVirtualFiles upserts graph-resident File nodes with `_rawContent`
// and `_rawContentHash`, marks them discovered, then runs the full
// discover+link pipeline. Any AdditionalProperties are stamped onto every
// node with a DEFINED_IN edge to one of the ingested files; nodes reached
// only through other edges (sections, code blocks, embedding chunks) are
// not stamped.
func (p *Processor) IngestVirtualFiles(ctx context.Context, projectID string, files []VirtualFile, opts IngestOptions) (RunStats, error) {
	candidates := make([]filestate.DiscoverCandidate, len(files))
	for i, f := range files {
		hash := domain.HashText(f.RawContent)
		raw := f.RawContent
		candidates[i] = filestate.DiscoverCandidate{
			RelPath: f.RelPath, AbsPath: "", Name: f.Name, Extension: f.Extension,
			Directory: f.Directory, IsVirtual: true, RawContent: &raw, RawContentHash: hash,
		}
	}
	if _, err := p.FileState.MarkDiscoveredBatch(ctx, projectID, candidates); err != nil {
		return RunStats{}, err
	}

	discoveredStats, err := p.ProcessDiscovered(ctx, projectID)
	if err != nil {
		return discoveredStats, err
	}
	linkedStats, err := p.ProcessLinked(ctx, projectID)
	if err != nil {
		return linkedStats, err
	}

	if len(opts.AdditionalProperties) > 0 {
		if err := p.stampAdditionalProperties(ctx, projectID, files, opts.AdditionalProperties); err != nil {
			p.Log.Warn("failed to stamp additional properties", "error", err)
		}
	}

	linkedStats.FilesProcessed += discoveredStats.FilesProcessed
	linkedStats.FilesErrored += discoveredStats.FilesErrored
	return linkedStats, nil
}

func (p *Processor) stampAdditionalProperties(ctx context.Context, projectID string, files []VirtualFile, extra map[string]any) error {
	for _, f := range files {
		fileUUID := domain.FileUUID(projectID, f.RelPath)
		rels, err := p.Store.GetInboundRelationships(ctx, fileUUID, domain.EdgeDefinedIn)
		if err != nil {
			return err
		}
		byLabel := map[string][]map[string]any{}
		descendants, err := p.Store.GetNodesByUUIDs(ctx, toUUIDsFrom(rels))
		if err != nil {
			return err
		}
		for _, n := range descendants {
			row := map[string]any{domain.PropUUID: n.UUID}
			for k, v := range extra {
				row[k] = v
			}
			byLabel[n.PrimaryLabel()] = append(byLabel[n.PrimaryLabel()], row)
		}
		for label, rows := range byLabel {
			if err := p.Store.UpsertNodes(ctx, label, rows, "uuid"); err != nil {
				return err
			}
		}
	}
	return nil
}

func toUUIDsFrom(rels []*domain.Relationship) []string {
	out := make([]string, len(rels))
	for i, r := range rels {
		out[i] = r.FromUUID
	}
	return out
}

// cleanupStaleConsumes groups a file's fresh CONSUMES rows by source scope
// and deletes each scope's prior CONSUMES edges that aren't in its new
// target set, before the new rows land (mirrors the Entity MENTIONS
// stale-cleanup for resolved imports).
func cleanupStaleConsumes(ctx context.Context, store graphstore.Store, rows []graphstore.RelRow) error {
	byFrom := map[string]map[string]bool{}
	for _, row := range rows {
		targets := byFrom[row.FromUUID]
		if targets == nil {
			targets = map[string]bool{}
			byFrom[row.FromUUID] = targets
		}
		targets[row.ToUUID] = true
	}
	for fromUUID, targets := range byFrom {
		if err := relations.ConsumesCleanup(ctx, store, fromUUID, targets); err != nil {
			return err
		}
	}
	return nil
}
