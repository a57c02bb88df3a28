// Package graphstore is the ingestion engine's one promoted "contract
// only" collaborator: a property-graph store exposing parameterised
// query execution, UNWIND-style batch upserts, and vector index
// management (spec.md §4.11, §6.3). Neo4jStore is the production
// implementation; MemoryStore is an in-process fake used by every other
// package's unit tests.
package graphstore

import (
	"context"

	"github.com/corpusgraph/ingestor/internal/domain"
)

// RelRow is one row of an UNWIND-style relationship batch upsert.
type RelRow struct {
	FromUUID   string
	ToUUID     string
	FromLabel  string
	ToLabel    string
	Properties map[string]any
}

// Store is the graph store contract every core component depends on.
// Implementations must treat UpsertNodes/UpsertRelationships as the unit of
// atomicity callers rely on: within one call, a node's vector, hash, and
// state transition land together (§5 ordering guarantees).
type Store interface {
	// Run executes an arbitrary parameterised query and returns each
	// result record as a property map. Used for the handful of queries
	// that don't fit the UNWIND-batch or by-uuid/by-state shapes below.
	Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)

	// UpsertNodes creates-or-merges nodes of a single label in one
	// UNWIND batch, keyed by keyProp (always "uuid" in this codebase).
	UpsertNodes(ctx context.Context, label string, rows []map[string]any, keyProp string) error

	// DeleteNodes removes nodes (and, per Neo4j semantics, their
	// incident relationships) by uuid.
	DeleteNodes(ctx context.Context, label string, uuids []string) error

	// UpsertRelationships creates-or-merges relationships of a single
	// type in one UNWIND batch.
	UpsertRelationships(ctx context.Context, relType string, rows []RelRow) error

	// DeleteRelationships removes edges of relType between the given
	// from/to uuid pairs. Either side may be left nil to match on the
	// other alone (e.g. "every CONSUMES edge from this file's scopes").
	DeleteRelationships(ctx context.Context, relType string, fromUUIDs []string, toUUIDs []string) error

	// EnsureVectorIndex provisions one vector index per (label,
	// property) pair, idempotently (§6.3).
	EnsureVectorIndex(ctx context.Context, label, property string, dimension int) error

	// EnsureUniqueConstraint provisions the (label, uuid) uniqueness key
	// (§6.3).
	EnsureUniqueConstraint(ctx context.Context, label, property string) error

	// GetNodesByUUIDs fetches nodes by id regardless of label, used by
	// the virtual content provider and metadata preserver.
	GetNodesByUUIDs(ctx context.Context, uuids []string) ([]*domain.Node, error)

	// GetNodesByState returns every node of a label belonging to a
	// project in a given lifecycle state.
	GetNodesByState(ctx context.Context, projectID string, label string, state string) ([]*domain.Node, error)

	// GetNodesByLabelsAndState is GetNodesByState generalized across
	// several labels in one round trip (§4.7 Phase 1 collect, §4.8 step
	// 3 candidate fetch).
	GetNodesByLabelsAndState(ctx context.Context, projectID string, labels []string, state string) ([]*domain.Node, error)

	// GetOutboundRelationships returns every relType edge leaving
	// fromUUID, used by the MENTIONS/CONSUMES stale-cleanup steps.
	GetOutboundRelationships(ctx context.Context, fromUUID string, relType string) ([]*domain.Relationship, error)

	// GetInboundRelationships returns every relType edge arriving at
	// toUUID, used to walk DEFINED_IN from a File to its parsed children
	// (the Metadata Preserver's prior-node lookup, the watcher's
	// cascading delete).
	GetInboundRelationships(ctx context.Context, toUUID string, relType string) ([]*domain.Relationship, error)

	// GetPendingImports returns every PENDING_IMPORT edge in a project,
	// for the relationship resolver's sweep (§4.6).
	GetPendingImports(ctx context.Context, projectID string) ([]*domain.Relationship, error)

	// FindNodesByName resolves a symbol name to its candidate
	// definitions across the project, for the symbol index (§4.6).
	FindNodesByName(ctx context.Context, projectID string, name string) ([]*domain.Node, error)

	// GetOrphanEntities returns Entity nodes with zero inbound MENTIONS
	// edges, for the cleanup in invariant 5 of §3.3.
	GetOrphanEntities(ctx context.Context, projectID string) ([]*domain.Node, error)

	// GetChunkChildren returns the EmbeddingChunk children of a parent
	// node, for chunk cleanup (§4.7 Phase 2) and invariant checks.
	GetChunkChildren(ctx context.Context, parentUUID string) ([]*domain.Node, error)

	Close(ctx context.Context) error
}
