// Package metadata implements the Metadata Preserver (§4.4): it snapshots
// the identity-stable fields of a file's existing nodes before a reparse,
// and restores them onto the freshly-parsed nodes afterward when a node's
// business identity (and therefore uuid, since uuids are pure functions of
// that identity per §3.3 invariant 6) is unchanged. This is what makes
// "content unchanged → no regenerated embeddings" true across reparses.
package metadata

import (
	"context"

	"github.com/corpusgraph/ingestor/internal/domain"
	pkgerrors "github.com/corpusgraph/ingestor/internal/pkg/errors"
	"github.com/corpusgraph/ingestor/internal/platform/graphstore"
)

// Snapshot carries the fields that must survive a reparse for a given node
// uuid, as long as the reparse produces a node with the same uuid.
type Snapshot struct {
	UUID               string
	State              string
	EntitiesContentHash string
	UsesChunks         bool
	ChunkCount         int
	EmbeddingHashes    map[string]string // view -> hash
	EmbeddingVectors   map[string][]float32
	EmbeddingProvider  string
	EmbeddingModel     string
}

type Preserver struct {
	Store graphstore.Store
}

func New(store graphstore.Store) *Preserver {
	return &Preserver{Store: store}
}

var preservedViews = []string{"name", "content", "description"}

// Snapshot reads every existing node reachable by uuid under fileUUID's
// prior parse and returns one Snapshot per node, keyed by uuid — the
// "business identity" key in practice is the uuid itself, since Scope/
// Document uuids are already pure functions of (file, name, type,
// signature) and therefore stable across a reparse that doesn't change
// those fields (§3.3 invariant 6).
func (p *Preserver) Snapshot(ctx context.Context, priorNodeUUIDs []string) (map[string]Snapshot, error) {
	if len(priorNodeUUIDs) == 0 {
		return map[string]Snapshot{}, nil
	}
	nodes, err := p.Store.GetNodesByUUIDs(ctx, priorNodeUUIDs)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
	}
	out := make(map[string]Snapshot, len(nodes))
	for _, n := range nodes {
		snap := Snapshot{
			UUID:                n.UUID,
			State:               n.GetString(domain.PropState),
			EntitiesContentHash: n.GetString(domain.PropEntitiesContentHash),
			UsesChunks:          n.GetBool(domain.PropUsesChunks),
			ChunkCount:          n.GetInt(domain.PropChunkCount),
			EmbeddingProvider:   n.GetString(domain.PropEmbeddingProvider),
			EmbeddingModel:      n.GetString(domain.PropEmbeddingModel),
			EmbeddingHashes:     map[string]string{},
			EmbeddingVectors:    map[string][]float32{},
		}
		for _, view := range preservedViews {
			if h := n.GetString(domain.EmbeddingHashProp(view)); h != "" {
				snap.EmbeddingHashes[view] = h
			}
			if v, ok := n.Properties[domain.EmbeddingVectorProp(view)]; ok {
				if vec, ok := toFloat32Slice(v); ok {
					snap.EmbeddingVectors[view] = vec
				}
			}
		}
		out[n.UUID] = snap
	}
	return out, nil
}

// Restore applies a prior snapshot onto a freshly-upserted node's property
// map in place, when the uuid matches (i.e. the reparse produced the same
// identity). Nodes with no matching snapshot are left as parsed — they're
// new or their identity changed, so there is nothing to carry forward.
func Restore(properties map[string]any, snap Snapshot) {
	if properties == nil {
		return
	}
	// Restoring _state is what lets an unchanged reparse skip straight past
	// the entity/embedding phases again instead of resetting to discovered
	// and repeating work the hash match says is unnecessary.
	if snap.State != "" {
		properties[domain.PropState] = snap.State
	}
	if snap.EntitiesContentHash != "" {
		properties[domain.PropEntitiesContentHash] = snap.EntitiesContentHash
	}
	if snap.UsesChunks {
		properties[domain.PropUsesChunks] = snap.UsesChunks
		properties[domain.PropChunkCount] = snap.ChunkCount
	}
	if snap.EmbeddingProvider != "" {
		properties[domain.PropEmbeddingProvider] = snap.EmbeddingProvider
	}
	if snap.EmbeddingModel != "" {
		properties[domain.PropEmbeddingModel] = snap.EmbeddingModel
	}
	for view, hash := range snap.EmbeddingHashes {
		properties[domain.EmbeddingHashProp(view)] = hash
	}
	for view, vec := range snap.EmbeddingVectors {
		properties[domain.EmbeddingVectorProp(view)] = vec
	}
}

// RestoreBatch restores every reparsed node in freshNodes whose uuid has a
// snapshot, mutating the nodes in place.
func RestoreBatch(freshNodes []*domain.Node, snapshots map[string]Snapshot) {
	for _, n := range freshNodes {
		if snap, ok := snapshots[n.UUID]; ok {
			Restore(n.Properties, snap)
		}
	}
}

func toFloat32Slice(v any) ([]float32, bool) {
	switch vv := v.(type) {
	case []float32:
		return vv, true
	case []float64:
		out := make([]float32, len(vv))
		for i, f := range vv {
			out[i] = float32(f)
		}
		return out, true
	case []any:
		out := make([]float32, 0, len(vv))
		for _, item := range vv {
			switch n := item.(type) {
			case float64:
				out = append(out, float32(n))
			case float32:
				out = append(out, n)
			default:
				return nil, false
			}
		}
		return out, true
	default:
		return nil, false
	}
}
