package graphstore

import (
	"context"
	"sync"

	"github.com/corpusgraph/ingestor/internal/domain"
)

// MemoryStore is an in-process fake of Store, grounded on the property-bag
// shape domain.Node already uses so tests can assert directly against it
// without a translation layer. Every package in this module is unit tested
// against MemoryStore rather than a live Neo4j instance.
type MemoryStore struct {
	mu    sync.Mutex
	nodes map[string]*domain.Node
	// relationships keyed by type, then keyed by "from|to"
	rels map[string]map[string]*domain.Relationship
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: map[string]*domain.Node{},
		rels:  map[string]map[string]*domain.Relationship{},
	}
}

func (s *MemoryStore) Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	// MemoryStore doesn't interpret Cypher; callers that need Run's
	// generality should assert against the typed methods below in tests.
	return nil, nil
}

func (s *MemoryStore) UpsertNodes(ctx context.Context, label string, rows []map[string]any, keyProp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		key, _ := row[keyProp].(string)
		if key == "" {
			continue
		}
		existing, ok := s.nodes[key]
		if !ok {
			existing = domain.NewNode(key, label)
			s.nodes[key] = existing
		} else if !existing.HasLabel(label) {
			existing.Labels = append(existing.Labels, label)
		}
		for k, v := range row {
			existing.Set(k, v)
		}
	}
	return nil
}

func (s *MemoryStore) DeleteNodes(ctx context.Context, label string, uuids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range uuids {
		delete(s.nodes, u)
		for _, byKey := range s.rels {
			for key, r := range byKey {
				if r.FromUUID == u || r.ToUUID == u {
					delete(byKey, key)
				}
			}
		}
	}
	return nil
}

func (s *MemoryStore) UpsertRelationships(ctx context.Context, relType string, rows []RelRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey, ok := s.rels[relType]
	if !ok {
		byKey = map[string]*domain.Relationship{}
		s.rels[relType] = byKey
	}
	for _, row := range rows {
		key := row.FromUUID + "|" + row.ToUUID
		r, ok := byKey[key]
		if !ok {
			r = domain.NewRelationship(relType, row.FromUUID, row.ToUUID)
			byKey[key] = r
		}
		for k, v := range row.Properties {
			r.Set(k, v)
		}
	}
	return nil
}

func (s *MemoryStore) DeleteRelationships(ctx context.Context, relType string, fromUUIDs, toUUIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey, ok := s.rels[relType]
	if !ok {
		return nil
	}
	fromSet := toSet(fromUUIDs)
	toSetMap := toSet(toUUIDs)
	for key, r := range byKey {
		matchFrom := len(fromSet) == 0 || fromSet[r.FromUUID]
		matchTo := len(toSetMap) == 0 || toSetMap[r.ToUUID]
		if len(fromSet) == 0 && len(toSetMap) == 0 {
			continue
		}
		if matchFrom && matchTo {
			delete(byKey, key)
		}
	}
	return nil
}

func toSet(items []string) map[string]bool {
	out := map[string]bool{}
	for _, i := range items {
		out[i] = true
	}
	return out
}

func (s *MemoryStore) EnsureVectorIndex(ctx context.Context, label, property string, dimension int) error {
	return nil
}

func (s *MemoryStore) EnsureUniqueConstraint(ctx context.Context, label, property string) error {
	return nil
}

func (s *MemoryStore) GetNodesByUUIDs(ctx context.Context, uuids []string) ([]*domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Node, 0, len(uuids))
	for _, u := range uuids {
		if n, ok := s.nodes[u]; ok {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) GetNodesByState(ctx context.Context, projectID, label, state string) ([]*domain.Node, error) {
	return s.GetNodesByLabelsAndState(ctx, projectID, []string{label}, state)
}

func (s *MemoryStore) GetNodesByLabelsAndState(ctx context.Context, projectID string, labels []string, state string) ([]*domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	labelSet := toSet(labels)
	var out []*domain.Node
	for _, n := range s.nodes {
		if projectID != "" && n.GetString(domain.PropProjectID) != projectID {
			continue
		}
		matches := false
		for _, l := range n.Labels {
			if labelSet[l] {
				matches = true
				break
			}
		}
		if !matches {
			continue
		}
		if n.GetString(domain.PropState) != state {
			continue
		}
		out = append(out, n.Clone())
	}
	return out, nil
}

func (s *MemoryStore) GetOutboundRelationships(ctx context.Context, fromUUID, relType string) ([]*domain.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey, ok := s.rels[relType]
	if !ok {
		return nil, nil
	}
	var out []*domain.Relationship
	for _, r := range byKey {
		if r.FromUUID == fromUUID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetInboundRelationships(ctx context.Context, toUUID, relType string) ([]*domain.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey, ok := s.rels[relType]
	if !ok {
		return nil, nil
	}
	var out []*domain.Relationship
	for _, r := range byKey {
		if r.ToUUID == toUUID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetPendingImports(ctx context.Context, projectID string) ([]*domain.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey, ok := s.rels[domain.EdgePendingImport]
	if !ok {
		return nil, nil
	}
	var out []*domain.Relationship
	for _, r := range byKey {
		fromNode, ok := s.nodes[r.FromUUID]
		if !ok || (projectID != "" && fromNode.GetString(domain.PropProjectID) != projectID) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *MemoryStore) FindNodesByName(ctx context.Context, projectID, name string) ([]*domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Node
	for _, n := range s.nodes {
		if projectID != "" && n.GetString(domain.PropProjectID) != projectID {
			continue
		}
		if n.GetString(domain.PropName) == name {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) GetOrphanEntities(ctx context.Context, projectID string) ([]*domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mentioned := map[string]bool{}
	if byKey, ok := s.rels[domain.EdgeMentions]; ok {
		for _, r := range byKey {
			mentioned[r.ToUUID] = true
		}
	}
	var out []*domain.Node
	for _, n := range s.nodes {
		if !n.HasLabel("Entity") {
			continue
		}
		if projectID != "" && n.GetString(domain.PropProjectID) != projectID {
			continue
		}
		if !mentioned[n.UUID] {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) GetChunkChildren(ctx context.Context, parentUUID string) ([]*domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Node
	for _, n := range s.nodes {
		if !n.HasLabel("EmbeddingChunk") {
			continue
		}
		if n.GetString(domain.PropChunkParentUUID) == parentUUID {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) Close(ctx context.Context) error { return nil }
