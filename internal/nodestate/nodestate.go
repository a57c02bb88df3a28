// Package nodestate implements the per-node lifecycle machine (§4.3): the
// same state vocabulary as filestate, applied to individual Scope/Document/
// Entity nodes rather than Files, and driven exclusively by C7 (embedding)
// and C8 (entities) rather than by file transitions.
package nodestate

import (
	"context"
	"fmt"
	"time"

	"github.com/corpusgraph/ingestor/internal/domain"
	pkgerrors "github.com/corpusgraph/ingestor/internal/pkg/errors"
	"github.com/corpusgraph/ingestor/internal/platform/graphstore"
	"github.com/corpusgraph/ingestor/internal/platform/logger"
)

type Machine struct {
	Store graphstore.Store
	Log   *logger.Logger
}

func New(store graphstore.Store, log *logger.Logger) *Machine {
	return &Machine{Store: store, Log: log.With("component", "nodestate.Machine")}
}

// allowedTransitions mirrors filestate's table minus the "relations" state,
// which doesn't apply at node granularity (§4.3).
var allowedTransitions = map[domain.NodeState][]domain.NodeState{
	domain.NodeDiscovered: {domain.NodeParsing},
	domain.NodeParsing:    {domain.NodeParsed, domain.NodeDiscovered},
	domain.NodeParsed:     {domain.NodeLinked, domain.NodeDiscovered},
	domain.NodeLinked:     {domain.NodeEntities, domain.NodeEmbedding, domain.NodeDiscovered},
	domain.NodeEntities:   {domain.NodeEmbedding, domain.NodeDiscovered},
	domain.NodeEmbedding:  {domain.NodeReady, domain.NodeDiscovered},
	domain.NodeReady:      {domain.NodeDiscovered},
	domain.NodeError:      {domain.NodeDiscovered},
}

func isAllowed(from, to domain.NodeState) bool {
	if to == domain.NodeError {
		return true
	}
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func (m *Machine) Transition(ctx context.Context, nodeUUID string, targetState domain.NodeState) error {
	nodes, err := m.Store.GetNodesByUUIDs(ctx, []string{nodeUUID})
	if err != nil {
		return pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
	}
	if len(nodes) == 0 {
		return pkgerrors.New(pkgerrors.KindNotFound, nodeUUID, fmt.Errorf("nodestate: node %s not found", nodeUUID))
	}
	n := nodes[0]
	current := domain.NodeState(n.GetString(domain.PropState))
	if !isAllowed(current, targetState) {
		return pkgerrors.New(pkgerrors.KindInvalidTransition, nodeUUID, fmt.Errorf("nodestate: %s -> %s not allowed", current, targetState))
	}
	n.Set(domain.PropState, string(targetState))
	n.Set(domain.PropStateChangedAt, time.Now())
	if err := m.Store.UpsertNodes(ctx, n.PrimaryLabel(), []map[string]any{n.Properties}, domain.PropUUID); err != nil {
		return pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
	}
	return nil
}

// TransitionBatch advances many nodes of possibly-different labels to the
// same target state in one pass, grouping upserts by label since UNWIND
// batches are per-label (§4.7 Phase 4, §4.8 step 8).
func (m *Machine) TransitionBatch(ctx context.Context, nodeUUIDs []string, targetState domain.NodeState) error {
	if len(nodeUUIDs) == 0 {
		return nil
	}
	nodes, err := m.Store.GetNodesByUUIDs(ctx, nodeUUIDs)
	if err != nil {
		return pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
	}

	byLabel := map[string][]map[string]any{}
	for _, n := range nodes {
		current := domain.NodeState(n.GetString(domain.PropState))
		if !isAllowed(current, targetState) {
			m.Log.Debug("nodestate: skipping illegal batch transition", "node_uuid", n.UUID, "from", current, "to", targetState)
			continue
		}
		n.Set(domain.PropState, string(targetState))
		n.Set(domain.PropStateChangedAt, time.Now())
		label := n.PrimaryLabel()
		byLabel[label] = append(byLabel[label], n.Properties)
	}

	for label, rows := range byLabel {
		if err := m.Store.UpsertNodes(ctx, label, rows, domain.PropUUID); err != nil {
			return pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
		}
	}
	return nil
}

func (m *Machine) GetNodesByLabelsAndState(ctx context.Context, projectID string, labels []string, state domain.NodeState) ([]*domain.Node, error) {
	nodes, err := m.Store.GetNodesByLabelsAndState(ctx, projectID, labels, string(state))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
	}
	return nodes, nil
}
