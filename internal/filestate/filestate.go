// Package filestate implements the per-file lifecycle state machine (§4.2):
// atomic transitions guarded by an allowed-transition table, batch
// discovery upserts, and the aggregate queries the processor and watcher
// need to drive a run. State lives entirely as properties on the File
// node — there is no separate journal (§6.5).
package filestate

import (
	"context"
	"fmt"
	"time"

	"github.com/corpusgraph/ingestor/internal/domain"
	pkgerrors "github.com/corpusgraph/ingestor/internal/pkg/errors"
	"github.com/corpusgraph/ingestor/internal/platform/graphstore"
	"github.com/corpusgraph/ingestor/internal/platform/logger"
)

// Machine is the file-state-machine collaborator, parameterised over a
// graphstore.Store so it runs identically against Neo4jStore and the
// MemoryStore test fake.
type Machine struct {
	Store graphstore.Store
	Log   *logger.Logger
}

func New(store graphstore.Store, log *logger.Logger) *Machine {
	return &Machine{Store: store, Log: log.With("component", "filestate.Machine")}
}

// allowedTransitions encodes the table in §4.2. Transitions to `error` are
// always allowed regardless of current state and are handled separately in
// Transition.
var allowedTransitions = map[domain.FileState][]domain.FileState{
	domain.FileDiscovered: {domain.FileParsing},
	domain.FileParsing:    {domain.FileParsed, domain.FileDiscovered},
	domain.FileParsed:     {domain.FileRelations, domain.FileDiscovered},
	domain.FileRelations:  {domain.FileLinked, domain.FileDiscovered},
	domain.FileLinked:     {domain.FileEntities, domain.FileDiscovered},
	domain.FileEntities:   {domain.FileEmbedding, domain.FileDiscovered},
	domain.FileEmbedding:  {domain.FileEmbedded, domain.FileDiscovered},
	domain.FileEmbedded:   {domain.FileDiscovered},
	domain.FileError:      {domain.FileDiscovered},
}

func isAllowed(from, to domain.FileState) bool {
	if to == domain.FileError {
		return true
	}
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// DiscoverResult tallies markDiscoveredBatch's outcome per §4.2.
type DiscoverResult struct {
	Created []string
	Reset   []string
	Skipped []string
}

// DiscoverCandidate is one entry the caller wants marked discovered: a
// path plus the freshly computed raw-content hash for that path.
type DiscoverCandidate struct {
	RelPath        string
	AbsPath        string
	Name           string
	Extension      string
	Directory      string
	IsVirtual      bool
	RawContent     *string
	RawContentHash string
}

// MarkDiscoveredBatch is idempotent: an entry is a no-op ("skipped") unless
// it's new, its rawContentHash changed, or its prior state was error.
func (m *Machine) MarkDiscoveredBatch(ctx context.Context, projectID string, candidates []DiscoverCandidate) (DiscoverResult, error) {
	result := DiscoverResult{}
	if len(candidates) == 0 {
		return result, nil
	}

	uuids := make([]string, 0, len(candidates))
	byUUID := make(map[string]DiscoverCandidate, len(candidates))
	for _, c := range candidates {
		id := domain.FileUUID(projectID, c.RelPath)
		uuids = append(uuids, id)
		byUUID[id] = c
	}

	existing, err := m.Store.GetNodesByUUIDs(ctx, uuids)
	if err != nil {
		return result, pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
	}
	existingByUUID := make(map[string]*domain.Node, len(existing))
	for _, n := range existing {
		existingByUUID[n.UUID] = n
	}

	var toUpsert []map[string]any
	for id, c := range byUUID {
		prior, found := existingByUUID[id]
		if !found {
			n := domain.NewFile(projectID, c.RelPath, c.AbsPath, c.Name, c.Extension, c.Directory, c.IsVirtual, c.RawContent, c.RawContentHash)
			toUpsert = append(toUpsert, n.Properties)
			result.Created = append(result.Created, id)
			continue
		}

		priorHash := prior.GetString(domain.PropRawContentHash)
		priorState := domain.FileState(prior.GetString(domain.PropState))
		if priorHash == c.RawContentHash && priorState != domain.FileError {
			result.Skipped = append(result.Skipped, id)
			continue
		}

		prior.Set(domain.PropRawContentHash, c.RawContentHash)
		prior.Set(domain.PropState, string(domain.FileDiscovered))
		prior.Set(domain.PropStateChangedAt, time.Now())
		prior.Set(domain.PropAbsPath, c.AbsPath)
		if c.RawContent != nil {
			prior.Set(domain.PropRawContent, *c.RawContent)
		}
		toUpsert = append(toUpsert, prior.Properties)
		result.Reset = append(result.Reset, id)
	}

	if len(toUpsert) > 0 {
		if err := m.Store.UpsertNodes(ctx, "File", toUpsert, domain.PropUUID); err != nil {
			return result, pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
		}
	}
	return result, nil
}

// TransitionOptions carries the error cause attached to a transition into
// the error state (§4.2).
type TransitionOptions struct {
	ErrorType    domain.ErrorCause
	ErrorMessage string
}

// Transition atomically moves one file to targetState, rejecting illegal
// transitions with KindInvalidTransition.
func (m *Machine) Transition(ctx context.Context, fileUUID string, targetState domain.FileState, opts *TransitionOptions) error {
	nodes, err := m.Store.GetNodesByUUIDs(ctx, []string{fileUUID})
	if err != nil {
		return pkgerrors.New(pkgerrors.KindGraphTransient, fileUUID, err)
	}
	if len(nodes) == 0 {
		return pkgerrors.New(pkgerrors.KindNotFound, fileUUID, fmt.Errorf("filestate: file %s not found", fileUUID))
	}
	n := nodes[0]
	current := domain.FileState(n.GetString(domain.PropState))
	if !isAllowed(current, targetState) {
		return pkgerrors.New(pkgerrors.KindInvalidTransition, fileUUID, fmt.Errorf("filestate: %s -> %s not allowed", current, targetState))
	}

	n.Set(domain.PropState, string(targetState))
	n.Set(domain.PropStateChangedAt, time.Now())
	if targetState == domain.FileError && opts != nil {
		n.Set(domain.PropErrorType, string(opts.ErrorType))
		n.Set(domain.PropErrorMessage, opts.ErrorMessage)
		n.Set(domain.PropRetryCount, n.GetInt(domain.PropRetryCount)+1)
	}

	if err := m.Store.UpsertNodes(ctx, "File", []map[string]any{n.Properties}, domain.PropUUID); err != nil {
		return pkgerrors.New(pkgerrors.KindGraphTransient, fileUUID, err)
	}
	return nil
}

// TransitionBatch applies the same legal transition to many files at once,
// skipping (not failing) entries that are already past targetState or
// whose current state doesn't permit it — a batch promotion shouldn't abort
// because one sibling raced ahead.
func (m *Machine) TransitionBatch(ctx context.Context, fileUUIDs []string, targetState domain.FileState) error {
	if len(fileUUIDs) == 0 {
		return nil
	}
	nodes, err := m.Store.GetNodesByUUIDs(ctx, fileUUIDs)
	if err != nil {
		return pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
	}

	var toUpsert []map[string]any
	for _, n := range nodes {
		current := domain.FileState(n.GetString(domain.PropState))
		if !isAllowed(current, targetState) {
			m.Log.Debug("filestate: skipping illegal batch transition", "file_uuid", n.UUID, "from", current, "to", targetState)
			continue
		}
		n.Set(domain.PropState, string(targetState))
		n.Set(domain.PropStateChangedAt, time.Now())
		toUpsert = append(toUpsert, n.Properties)
	}
	if len(toUpsert) == 0 {
		return nil
	}
	if err := m.Store.UpsertNodes(ctx, "File", toUpsert, domain.PropUUID); err != nil {
		return pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
	}
	return nil
}

func (m *Machine) GetFilesInState(ctx context.Context, projectID string, state domain.FileState) ([]*domain.Node, error) {
	nodes, err := m.Store.GetNodesByState(ctx, projectID, "File", string(state))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
	}
	return nodes, nil
}

// GetRetryableFiles returns error-state files that haven't exhausted
// maxRetries (§4.2).
func (m *Machine) GetRetryableFiles(ctx context.Context, projectID string, maxRetries int) ([]*domain.Node, error) {
	errored, err := m.Store.GetNodesByState(ctx, projectID, "File", string(domain.FileError))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
	}
	var out []*domain.Node
	for _, n := range errored {
		if n.GetInt(domain.PropRetryCount) < maxRetries {
			out = append(out, n)
		}
	}
	return out, nil
}

var allFileStates = []domain.FileState{
	domain.FileDiscovered, domain.FileParsing, domain.FileParsed, domain.FileRelations,
	domain.FileLinked, domain.FileEntities, domain.FileEmbedding, domain.FileEmbedded, domain.FileError,
}

func (m *Machine) GetStateStats(ctx context.Context, projectID string) (map[domain.FileState]int, error) {
	stats := make(map[domain.FileState]int, len(allFileStates))
	for _, state := range allFileStates {
		nodes, err := m.Store.GetNodesByState(ctx, projectID, "File", string(state))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
		}
		stats[state] = len(nodes)
	}
	return stats, nil
}

type Progress struct {
	Processed  int
	Total      int
	Percentage float64
}

func (m *Machine) GetProgress(ctx context.Context, projectID string) (Progress, error) {
	stats, err := m.GetStateStats(ctx, projectID)
	if err != nil {
		return Progress{}, err
	}
	total := 0
	for _, c := range stats {
		total += c
	}
	processed := stats[domain.FileEmbedded] + stats[domain.FileError]
	pct := 0.0
	if total > 0 {
		pct = float64(processed) / float64(total) * 100
	}
	return Progress{Processed: processed, Total: total, Percentage: pct}, nil
}

func (m *Machine) IsProjectFullyProcessed(ctx context.Context, projectID string) (bool, error) {
	stats, err := m.GetStateStats(ctx, projectID)
	if err != nil {
		return false, err
	}
	for state, count := range stats {
		if state == domain.FileEmbedded || state == domain.FileError {
			continue
		}
		if count > 0 {
			return false, nil
		}
	}
	return true, nil
}
