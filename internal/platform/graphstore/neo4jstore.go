package graphstore

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/corpusgraph/ingestor/internal/config"
	"github.com/corpusgraph/ingestor/internal/domain"
	pkgerrors "github.com/corpusgraph/ingestor/internal/pkg/errors"
	"github.com/corpusgraph/ingestor/internal/platform/logger"
)

// Neo4jStore is the production Store, grounded on the driver wiring of the
// teacher's internal/platform/neo4jdb/client.go: a pooled
// neo4j.DriverWithContext held as a process-wide singleton, constructed
// once at startup and verified with VerifyConnectivity.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	log      *logger.Logger
}

// NewNeo4jStore dials the configured Neo4j instance and verifies
// connectivity before returning, so callers fail fast at startup rather
// than on the first batch upsert.
func NewNeo4jStore(ctx context.Context, cfg config.GraphStore, log *logger.Logger) (*Neo4jStore, error) {
	if log == nil {
		return nil, fmt.Errorf("graphstore: logger required")
	}
	if cfg.URI == "" {
		return nil, fmt.Errorf("graphstore: GRAPH_URI not set")
	}
	auth := neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.MaxPoolSize
		c.SocketConnectTimeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: init driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graphstore: verify connectivity: %w", err)
	}

	return &Neo4jStore{
		driver:   driver,
		database: cfg.Database,
		log:      log.With("component", "Neo4jStore"),
	}, nil
}

func (s *Neo4jStore) sessionConfig() neo4j.SessionConfig {
	cfg := neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite}
	if s.database != "" {
		cfg.DatabaseName = s.database
	}
	return cfg
}

func (s *Neo4jStore) Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := s.driver.NewSession(ctx, s.sessionConfig())
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(records))
		for _, rec := range records {
			out = append(out, rec.AsMap())
		}
		return out, nil
	})
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
	}
	return result.([]map[string]any), nil
}

// UpsertNodes issues a single UNWIND MERGE per call, the shape every batch
// write in this codebase relies on (§4.7 Phase 4, §4.8 step 8).
func (s *Neo4jStore) UpsertNodes(ctx context.Context, label string, rows []map[string]any, keyProp string) error {
	if len(rows) == 0 {
		return nil
	}
	cypher := fmt.Sprintf(
		"UNWIND $rows AS row MERGE (n:%s {%s: row.%s}) SET n += row",
		sanitizeLabel(label), keyProp, keyProp,
	)
	_, err := s.Run(ctx, cypher, map[string]any{"rows": rows})
	return err
}

func (s *Neo4jStore) DeleteNodes(ctx context.Context, label string, uuids []string) error {
	if len(uuids) == 0 {
		return nil
	}
	cypher := fmt.Sprintf("UNWIND $uuids AS u MATCH (n:%s {uuid: u}) DETACH DELETE n", sanitizeLabel(label))
	_, err := s.Run(ctx, cypher, map[string]any{"uuids": uuids})
	return err
}

// UpsertRelationships issues one UNWIND MERGE per relationship type,
// matching endpoints by uuid regardless of label so callers don't need to
// know both endpoint labels up front — though supplying them lets the
// query use a label-scoped index.
func (s *Neo4jStore) UpsertRelationships(ctx context.Context, relType string, rows []RelRow) error {
	if len(rows) == 0 {
		return nil
	}
	plain := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		plain = append(plain, map[string]any{
			"from":  r.FromUUID,
			"to":    r.ToUUID,
			"props": r.Properties,
		})
	}
	cypher := fmt.Sprintf(
		`UNWIND $rows AS row
		 MATCH (a {uuid: row.from}), (b {uuid: row.to})
		 MERGE (a)-[r:%s]->(b)
		 SET r += row.props`,
		sanitizeRelType(relType),
	)
	_, err := s.Run(ctx, cypher, map[string]any{"rows": plain})
	return err
}

func (s *Neo4jStore) DeleteRelationships(ctx context.Context, relType string, fromUUIDs, toUUIDs []string) error {
	switch {
	case len(fromUUIDs) > 0 && len(toUUIDs) > 0:
		cypher := fmt.Sprintf(
			`MATCH (a)-[r:%s]->(b) WHERE a.uuid IN $from AND b.uuid IN $to DELETE r`,
			sanitizeRelType(relType),
		)
		_, err := s.Run(ctx, cypher, map[string]any{"from": fromUUIDs, "to": toUUIDs})
		return err
	case len(fromUUIDs) > 0:
		cypher := fmt.Sprintf(`MATCH (a)-[r:%s]->() WHERE a.uuid IN $from DELETE r`, sanitizeRelType(relType))
		_, err := s.Run(ctx, cypher, map[string]any{"from": fromUUIDs})
		return err
	case len(toUUIDs) > 0:
		cypher := fmt.Sprintf(`MATCH ()-[r:%s]->(b) WHERE b.uuid IN $to DELETE r`, sanitizeRelType(relType))
		_, err := s.Run(ctx, cypher, map[string]any{"to": toUUIDs})
		return err
	default:
		return nil
	}
}

// EnsureVectorIndex provisions a Neo4j 5 native vector index with cosine
// similarity, matching §6.3's {dimension, similarity: 'cosine'} contract.
func (s *Neo4jStore) EnsureVectorIndex(ctx context.Context, label, property string, dimension int) error {
	name := fmt.Sprintf("vec_%s_%s", sanitizeLabel(label), sanitizeLabel(property))
	cypher := fmt.Sprintf(
		`CREATE VECTOR INDEX %s IF NOT EXISTS
		 FOR (n:%s) ON (n.%s)
		 OPTIONS {indexConfig: {
		   `+"`vector.dimensions`"+`: $dim,
		   `+"`vector.similarity_function`"+`: 'cosine'
		 }}`,
		name, sanitizeLabel(label), sanitizeLabel(property),
	)
	_, err := s.Run(ctx, cypher, map[string]any{"dim": dimension})
	return err
}

func (s *Neo4jStore) EnsureUniqueConstraint(ctx context.Context, label, property string) error {
	name := fmt.Sprintf("uniq_%s_%s", sanitizeLabel(label), sanitizeLabel(property))
	cypher := fmt.Sprintf(
		`CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE`,
		name, sanitizeLabel(label), sanitizeLabel(property),
	)
	_, err := s.Run(ctx, cypher, nil)
	return err
}

func (s *Neo4jStore) GetNodesByUUIDs(ctx context.Context, uuids []string) ([]*domain.Node, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	records, err := s.Run(ctx, `UNWIND $uuids AS u MATCH (n {uuid: u}) RETURN n, labels(n) AS labels`, map[string]any{"uuids": uuids})
	if err != nil {
		return nil, err
	}
	return recordsToNodes(records)
}

func (s *Neo4jStore) GetNodesByState(ctx context.Context, projectID, label, state string) ([]*domain.Node, error) {
	return s.GetNodesByLabelsAndState(ctx, projectID, []string{label}, state)
}

func (s *Neo4jStore) GetNodesByLabelsAndState(ctx context.Context, projectID string, labels []string, state string) ([]*domain.Node, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	var all []*domain.Node
	for _, label := range labels {
		cypher := fmt.Sprintf(
			`MATCH (p:Project {uuid: $projectID})<-[:BELONGS_TO]-(n:%s {_state: $state}) RETURN n, labels(n) AS labels`,
			sanitizeLabel(label),
		)
		records, err := s.Run(ctx, cypher, map[string]any{"projectID": projectID, "state": state})
		if err != nil {
			return nil, err
		}
		nodes, err := recordsToNodes(records)
		if err != nil {
			return nil, err
		}
		all = append(all, nodes...)
	}
	return all, nil
}

func (s *Neo4jStore) GetOutboundRelationships(ctx context.Context, fromUUID, relType string) ([]*domain.Relationship, error) {
	cypher := fmt.Sprintf(
		`MATCH (a {uuid: $from})-[r:%s]->(b) RETURN a.uuid AS from, b.uuid AS to, properties(r) AS props`,
		sanitizeRelType(relType),
	)
	records, err := s.Run(ctx, cypher, map[string]any{"from": fromUUID})
	if err != nil {
		return nil, err
	}
	return recordsToRelationships(relType, records)
}

func (s *Neo4jStore) GetInboundRelationships(ctx context.Context, toUUID, relType string) ([]*domain.Relationship, error) {
	cypher := fmt.Sprintf(
		`MATCH (a)-[r:%s]->(b {uuid: $to}) RETURN a.uuid AS from, b.uuid AS to, properties(r) AS props`,
		sanitizeRelType(relType),
	)
	records, err := s.Run(ctx, cypher, map[string]any{"to": toUUID})
	if err != nil {
		return nil, err
	}
	return recordsToRelationships(relType, records)
}

func (s *Neo4jStore) GetPendingImports(ctx context.Context, projectID string) ([]*domain.Relationship, error) {
	cypher := `MATCH (p:Project {uuid: $projectID})<-[:BELONGS_TO]-(a)-[r:PENDING_IMPORT]->()
	           RETURN a.uuid AS from, '' AS to, properties(r) AS props`
	records, err := s.Run(ctx, cypher, map[string]any{"projectID": projectID})
	if err != nil {
		return nil, err
	}
	return recordsToRelationships(domain.EdgePendingImport, records)
}

func (s *Neo4jStore) FindNodesByName(ctx context.Context, projectID, name string) ([]*domain.Node, error) {
	cypher := `MATCH (p:Project {uuid: $projectID})<-[:BELONGS_TO]-(n {_name: $name}) RETURN n, labels(n) AS labels`
	records, err := s.Run(ctx, cypher, map[string]any{"projectID": projectID, "name": name})
	if err != nil {
		return nil, err
	}
	return recordsToNodes(records)
}

func (s *Neo4jStore) GetOrphanEntities(ctx context.Context, projectID string) ([]*domain.Node, error) {
	cypher := `MATCH (p:Project {uuid: $projectID})<-[:BELONGS_TO]-(e:Entity)
	           WHERE NOT ()-[:MENTIONS]->(e)
	           RETURN e AS n, labels(e) AS labels`
	records, err := s.Run(ctx, cypher, map[string]any{"projectID": projectID})
	if err != nil {
		return nil, err
	}
	return recordsToNodes(records)
}

func (s *Neo4jStore) GetChunkChildren(ctx context.Context, parentUUID string) ([]*domain.Node, error) {
	cypher := fmt.Sprintf(
		`MATCH (c:EmbeddingChunk {%s: $parent}) RETURN c AS n, labels(c) AS labels`,
		domain.PropChunkParentUUID,
	)
	records, err := s.Run(ctx, cypher, map[string]any{"parent": parentUUID})
	if err != nil {
		return nil, err
	}
	return recordsToNodes(records)
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

func recordsToNodes(records []map[string]any) ([]*domain.Node, error) {
	out := make([]*domain.Node, 0, len(records))
	for _, rec := range records {
		raw, ok := rec["n"]
		if !ok {
			continue
		}
		props := map[string]any{}
		var uuidVal string
		if neoNode, ok := raw.(neo4j.Node); ok {
			for k, v := range neoNode.Props {
				props[k] = v
			}
			if u, ok := props["uuid"].(string); ok {
				uuidVal = u
			}
		}
		var labels []string
		if l, ok := rec["labels"].([]any); ok {
			for _, item := range l {
				if s, ok := item.(string); ok {
					labels = append(labels, s)
				}
			}
		}
		out = append(out, &domain.Node{UUID: uuidVal, Labels: labels, Properties: props})
	}
	return out, nil
}

func recordsToRelationships(relType string, records []map[string]any) ([]*domain.Relationship, error) {
	out := make([]*domain.Relationship, 0, len(records))
	for _, rec := range records {
		from, _ := rec["from"].(string)
		to, _ := rec["to"].(string)
		props := map[string]any{}
		if p, ok := rec["props"].(map[string]any); ok {
			props = p
		}
		out = append(out, &domain.Relationship{Type: relType, FromUUID: from, ToUUID: to, Properties: props})
	}
	return out, nil
}

// sanitizeLabel/sanitizeRelType guard against label/type strings reaching a
// Cypher statement unescaped; both are always drawn from this codebase's
// own constants (domain package), never from file content, but we keep a
// defensive allow-list since they're interpolated rather than parameterised
// (Cypher doesn't allow parameterising label/type names).
func sanitizeLabel(label string) string   { return sanitizeIdentifier(label) }
func sanitizeRelType(relType string) string { return sanitizeIdentifier(relType) }

func sanitizeIdentifier(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			out = append(out, r)
		}
	}
	return string(out)
}
