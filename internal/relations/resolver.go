// Package relations implements the Relationship Resolver (§4.6): it turns
// a parsed file's symbolic relationships into concrete CONSUMES/
// INHERITS_FROM/IMPLEMENTS/DECORATED_BY edges against a project-wide
// symbol index, emitting PENDING_IMPORT when the target isn't known yet,
// and sweeps pending imports after every full discovery pass.
package relations

import (
	"context"
	"sort"

	"github.com/corpusgraph/ingestor/internal/domain"
	pkgerrors "github.com/corpusgraph/ingestor/internal/pkg/errors"
	"github.com/corpusgraph/ingestor/internal/parser"
	"github.com/corpusgraph/ingestor/internal/platform/graphstore"
	"github.com/corpusgraph/ingestor/internal/platform/logger"
)

// valueCarryingKinds are preferred over type-only kinds in the tie-break
// rule (§4.6: "value-carrying kinds (function, const, class, method) over
// type-only kinds (interface, type alias)").
var valueCarryingKinds = map[string]bool{
	"function": true, "const": true, "class": true, "method": true,
}

type candidate struct {
	uuid  string
	file  string
	ctype string
}

// SymbolIndex is the project-wide `name -> [{uuid, file, type}]` mapping
// §4.6 requires as input, backed by the graph store's name lookup.
type SymbolIndex struct {
	store graphstore.Store
}

func NewSymbolIndex(store graphstore.Store) *SymbolIndex {
	return &SymbolIndex{store: store}
}

func (idx *SymbolIndex) Lookup(ctx context.Context, projectID, name string) ([]candidate, error) {
	nodes, err := idx.store.FindNodesByName(ctx, projectID, name)
	if err != nil {
		return nil, err
	}
	out := make([]candidate, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, candidate{uuid: n.UUID, file: n.GetString(domain.PropFileUUID), ctype: n.GetString(domain.PropScopeType)})
	}
	return out, nil
}

// Resolver applies the symbol index to one file's parsed graph.
type Resolver struct {
	Store graphstore.Store
	Index *SymbolIndex
	Log   *logger.Logger
}

func New(store graphstore.Store, log *logger.Logger) *Resolver {
	return &Resolver{Store: store, Index: NewSymbolIndex(store), Log: log.With("component", "relations.Resolver")}
}

// Resolve turns a ParsedGraph's symbolic relationships into concrete edges
// or PENDING_IMPORT placeholders, grouped by type so the caller can issue
// one UNWIND upsert per type (§4.6, §6.3).
func (r *Resolver) Resolve(ctx context.Context, projectID, fromFileUUID string, rels []parser.ParsedRelationship) (map[string][]graphstore.RelRow, error) {
	byType := map[string][]graphstore.RelRow{}

	for _, rel := range rels {
		if rel.To != "" {
			byType[rel.Type] = append(byType[rel.Type], graphstore.RelRow{FromUUID: rel.From, ToUUID: rel.To, Properties: rel.Properties})
			continue
		}
		if rel.TargetLabel == "" {
			continue
		}
		name, _ := rel.TargetProps[domain.PropName].(string)
		if name == "" {
			continue
		}
		candidates, err := r.Index.Lookup(ctx, projectID, name)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.KindRelationFailure, fromFileUUID, err)
		}
		resolved, ok := tieBreak(candidates, fromFileUUID, rel.TargetLabel)
		if ok {
			byType[rel.Type] = append(byType[rel.Type], graphstore.RelRow{FromUUID: rel.From, ToUUID: resolved.uuid, Properties: rel.Properties})
			continue
		}

		props := map[string]any{
			domain.PendingSymbolName:   name,
			domain.PendingSourceModule: rel.TargetLabel,
			domain.PendingFromUUID:     rel.From,
		}
		byType[domain.EdgePendingImport] = append(byType[domain.EdgePendingImport], graphstore.RelRow{FromUUID: rel.From, ToUUID: "", Properties: props})
	}

	return byType, nil
}

// tieBreak implements §4.6's tie-break rule: prefer same-file, then
// value-carrying kinds over type-only kinds, otherwise leave unresolved.
func tieBreak(candidates []candidate, fromFileUUID, wantType string) (candidate, bool) {
	if len(candidates) == 0 {
		return candidate{}, false
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}

	var sameFile []candidate
	for _, c := range candidates {
		if c.file == fromFileUUID {
			sameFile = append(sameFile, c)
		}
	}
	if len(sameFile) == 1 {
		return sameFile[0], true
	}
	pool := candidates
	if len(sameFile) > 1 {
		pool = sameFile
	}

	var valueCarrying []candidate
	for _, c := range pool {
		if valueCarryingKinds[c.ctype] {
			valueCarrying = append(valueCarrying, c)
		}
	}
	if len(valueCarrying) == 1 {
		return valueCarrying[0], true
	}

	return candidate{}, false
}

// SweepResult tallies the post-pass pending-import sweep (§4.6).
type SweepResult struct {
	Resolved  int
	Remaining int
}

// Sweep runs after every full discovery pass: for every PENDING_IMPORT
// edge whose named target now resolves through tieBreak, write a CONSUMES
// edge to it; otherwise leave it for a later run. No same-file preference
// is applied (the pending edge does not record its file) and the target's
// type is not checked (tieBreak does not use its wantType argument).
func (r *Resolver) Sweep(ctx context.Context, projectID string) (SweepResult, error) {
	pending, err := r.Store.GetPendingImports(ctx, projectID)
	if err != nil {
		return SweepResult{}, pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
	}

	result := SweepResult{}
	byTargetType := map[string][]graphstore.RelRow{}
	var stillPending []string

	for _, rel := range pending {
		name, _ := rel.Properties[domain.PendingSymbolName].(string)
		targetLabel, _ := rel.Properties[domain.PendingSourceModule].(string)
		fromUUID, _ := rel.Properties[domain.PendingFromUUID].(string)
		if name == "" {
			continue
		}
		candidates, err := r.Index.Lookup(ctx, projectID, name)
		if err != nil {
			return result, pkgerrors.New(pkgerrors.KindRelationFailure, fromUUID, err)
		}
		resolved, ok := tieBreak(candidates, "", targetLabel)
		if !ok {
			stillPending = append(stillPending, fromUUID)
			result.Remaining++
			continue
		}
		relType := domain.EdgeConsumes
		byTargetType[relType] = append(byTargetType[relType], graphstore.RelRow{FromUUID: fromUUID, ToUUID: resolved.uuid})
		result.Resolved++
	}

	for relType, rows := range byTargetType {
		if err := r.Store.UpsertRelationships(ctx, relType, rows); err != nil {
			return result, pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
		}
	}
	if len(stillPending) > 0 {
		sort.Strings(stillPending)
		r.Log.Debug("pending imports unresolved this sweep", "count", len(stillPending), "fromUUIDs", stillPending)
	}
	// Resolved pending imports must be deleted once the concrete edge is
	// written so invariant 3 of §3.3 holds ("PENDING_IMPORT edges are
	// convertible but never durable").
	if result.Resolved > 0 {
		resolvedFrom := make([]string, 0, result.Resolved)
		for _, rows := range byTargetType {
			for _, row := range rows {
				resolvedFrom = append(resolvedFrom, row.FromUUID)
			}
		}
		if err := r.Store.DeleteRelationships(ctx, domain.EdgePendingImport, resolvedFrom, nil); err != nil {
			return result, pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
		}
	}
	return result, nil
}

// ConsumesCleanup implements the Open-Question decision to mirror the
// Entity MENTIONS stale-cleanup for CONSUMES edges: before writing a
// scope's new outbound CONSUMES set, remove edges for symbols the scope no
// longer references.
func ConsumesCleanup(ctx context.Context, store graphstore.Store, fromUUID string, newTargets map[string]bool) error {
	existing, err := store.GetOutboundRelationships(ctx, fromUUID, domain.EdgeConsumes)
	if err != nil {
		return pkgerrors.New(pkgerrors.KindGraphTransient, fromUUID, err)
	}
	var stale []string
	for _, rel := range existing {
		if !newTargets[rel.ToUUID] {
			stale = append(stale, rel.ToUUID)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	if err := store.DeleteRelationships(ctx, domain.EdgeConsumes, []string{fromUUID}, stale); err != nil {
		return pkgerrors.New(pkgerrors.KindGraphTransient, fromUUID, err)
	}
	return nil
}
