package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/vmoffice/capgraph/internal/graph"
)

// Neo4jStore serves the capability graph from a Neo4j database.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
	db     string
	log    *zap.Logger
}

// NewNeo4jStore creates a store over the given connection. The driver is
// lazy; use Ping to verify connectivity.
func NewNeo4jStore(uri, username, password, db string, log *zap.Logger) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Neo4jStore{driver: driver, db: db, log: log}, nil
}

func (s *Neo4jStore) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	return nil
}

func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}

// run executes one query with all records buffered eagerly.
func (s *Neo4jStore) run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(
		ctx,
		s.driver,
		query,
		params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.db),
	)
	if err != nil {
		s.log.Debug("neo4j query failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	return result, nil
}

// FetchNode returns the node addressed by ref, or ErrNotFound.
func (s *Neo4jStore) FetchNode(ctx context.Context, ref NodeRef) (*graph.Entity, error) {
	query, params, err := lookupCypher(ref)
	if err != nil {
		return nil, fmt.Errorf("build lookup for %s: %w", ref, err)
	}
	result, err := s.run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	value, ok := result.Records[0].Get("n")
	if !ok {
		return nil, fmt.Errorf("lookup for %s returned no node column", ref)
	}
	node, ok := value.(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("lookup for %s returned %T, want node", ref, value)
	}
	return entityFromNode(node), nil
}

// Traverse fetches the root and expands up to req.Depth hops. A root with
// no matching edges yields a result with zero records.
func (s *Neo4jStore) Traverse(ctx context.Context, req TraversalRequest) (*graph.FlatResult, error) {
	root, err := s.FetchNode(ctx, req.Root)
	if err != nil {
		return nil, err
	}

	query, params := TraversalCypher(req)
	s.log.Debug("traversing",
		zap.String("root", req.Root.String()),
		zap.Int("depth", req.Depth),
		zap.Strings("rel_types", req.RelTypes))

	result, err := s.run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	flat := &graph.FlatResult{Root: root}
	for _, record := range result.Records {
		rec := graph.FlatRecord{}
		if v, ok := record.Get("nd"); ok {
			if node, ok := v.(neo4j.Node); ok {
				rec.Node = entityFromNode(node)
			}
		}
		if v, ok := record.Get("rel"); ok {
			if rel, ok := v.(neo4j.Relationship); ok {
				rec.Rel = relationshipFromNeo4j(rel)
				if from, ok := record.Get("from_name"); ok {
					rec.Rel.StartName, _ = from.(string)
				}
				if to, ok := record.Get("to_name"); ok {
					rec.Rel.EndName, _ = to.(string)
				}
			}
		}
		if v, ok := record.Get("depth"); ok {
			if d, ok := v.(int64); ok {
				rec.Depth = int(d)
			}
		}
		if rec.Node == nil && rec.Rel == nil {
			continue
		}
		flat.Records = append(flat.Records, rec)
	}
	return flat, nil
}

// RelationshipTypes introspects the relationship vocabulary.
func (s *Neo4jStore) RelationshipTypes(ctx context.Context) ([]string, error) {
	result, err := s.run(ctx, relTypesCypher, nil)
	if err != nil {
		return nil, err
	}
	var types []string
	for _, record := range result.Records {
		if v, ok := record.Get("relationshipType"); ok {
			if t, ok := v.(string); ok {
				types = append(types, t)
			}
		}
	}
	sort.Strings(types)
	return types, nil
}

// CatalogNames lists the resolvable entity names in sorted order.
func (s *Neo4jStore) CatalogNames(ctx context.Context) ([]string, error) {
	result, err := s.run(ctx, catalogCypher, nil)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, record := range result.Records {
		if v, ok := record.Get("name"); ok {
			if name, ok := v.(string); ok && name != "" {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

// Run executes a raw read query and returns generic rows.
func (s *Neo4jStore) Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	result, err := s.run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(result.Records))
	for _, record := range result.Records {
		rows = append(rows, record.AsMap())
	}
	return rows, nil
}

// Counts returns the node count per business label.
func (s *Neo4jStore) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(graph.BusinessLabels))
	for _, label := range graph.BusinessLabels {
		query := fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS c", label)
		result, err := s.run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		if len(result.Records) > 0 {
			if v, ok := result.Records[0].Get("c"); ok {
				if c, ok := v.(int64); ok {
					counts[string(label)] = int(c)
				}
			}
		}
	}
	return counts, nil
}

// ExportNodes streams every node for snapshot building.
func (s *Neo4jStore) ExportNodes(ctx context.Context) ([]*graph.Entity, error) {
	result, err := s.run(ctx, "MATCH (n) RETURN n", nil)
	if err != nil {
		return nil, err
	}
	nodes := make([]*graph.Entity, 0, len(result.Records))
	for _, record := range result.Records {
		if v, ok := record.Get("n"); ok {
			if node, ok := v.(neo4j.Node); ok {
				nodes = append(nodes, entityFromNode(node))
			}
		}
	}
	return nodes, nil
}

// ExportRelationships streams every relationship for snapshot building.
func (s *Neo4jStore) ExportRelationships(ctx context.Context) ([]*graph.Relationship, error) {
	result, err := s.run(ctx, "MATCH (a)-[r]->(b) RETURN r, a.name AS from_name, b.name AS to_name", nil)
	if err != nil {
		return nil, err
	}
	rels := make([]*graph.Relationship, 0, len(result.Records))
	for _, record := range result.Records {
		v, ok := record.Get("r")
		if !ok {
			continue
		}
		raw, ok := v.(neo4j.Relationship)
		if !ok {
			continue
		}
		rel := relationshipFromNeo4j(raw)
		if from, ok := record.Get("from_name"); ok {
			rel.StartName, _ = from.(string)
		}
		if to, ok := record.Get("to_name"); ok {
			rel.EndName, _ = to.(string)
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

// NodesByLabel returns every node carrying the given label.
func (s *Neo4jStore) NodesByLabel(ctx context.Context, label graph.NodeLabel) ([]*graph.Entity, error) {
	query := fmt.Sprintf("MATCH (n:%s) RETURN n ORDER BY n.name", label)
	result, err := s.run(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	nodes := make([]*graph.Entity, 0, len(result.Records))
	for _, record := range result.Records {
		if v, ok := record.Get("n"); ok {
			if node, ok := v.(neo4j.Node); ok {
				nodes = append(nodes, entityFromNode(node))
			}
		}
	}
	return nodes, nil
}

// EdgeEndpoints returns the internal ids appearing as start (outgoing) or
// end (incoming) of at least one edge of the given type. An empty relType
// matches every type; DirectionBoth collects both endpoints.
func (s *Neo4jStore) EdgeEndpoints(ctx context.Context, relType string, direction graph.Direction) (map[string]bool, error) {
	relPattern := "[r]"
	if relType != "" {
		relPattern = fmt.Sprintf("[r:%s]", relType)
	}

	endpoints := make(map[string]bool)
	collect := func(query string) error {
		result, err := s.run(ctx, query, nil)
		if err != nil {
			return err
		}
		for _, record := range result.Records {
			if v, ok := record.Get("id"); ok {
				if id, ok := v.(string); ok {
					endpoints[id] = true
				}
			}
		}
		return nil
	}

	if direction == graph.DirectionOutgoing || direction == graph.DirectionBoth {
		query := fmt.Sprintf("MATCH (a)-%s->() RETURN DISTINCT elementId(a) AS id", relPattern)
		if err := collect(query); err != nil {
			return nil, err
		}
	}
	if direction == graph.DirectionIncoming || direction == graph.DirectionBoth {
		query := fmt.Sprintf("MATCH ()-%s->(b) RETURN DISTINCT elementId(b) AS id", relPattern)
		if err := collect(query); err != nil {
			return nil, err
		}
	}
	return endpoints, nil
}

func entityFromNode(n neo4j.Node) *graph.Entity {
	e := &graph.Entity{
		InternalID: n.ElementId,
		Labels:     n.Labels,
		Properties: n.Props,
	}
	if name, ok := n.Props["name"].(string); ok {
		e.Name = name
	}
	if uid, ok := n.Props["uid"].(int64); ok {
		e.UID = uid
	}
	return e
}

func relationshipFromNeo4j(r neo4j.Relationship) *graph.Relationship {
	return &graph.Relationship{
		InternalID: r.ElementId,
		Type:       r.Type,
		StartID:    r.StartElementId,
		EndID:      r.EndElementId,
	}
}
