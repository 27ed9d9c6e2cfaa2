package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vmoffice/capgraph/internal/graph"
)

// MemoryStore is an in-memory GraphStore used by tests and as the staging
// area when building snapshots. Adjacency indexes mirror the snapshot
// layout so traversal behaves identically.
type MemoryStore struct {
	mu       sync.RWMutex
	nodes    map[string]*graph.Entity
	rels     map[string]*graph.Relationship
	outgoing map[string][]string // node id -> rel ids
	incoming map[string][]string

	// Error injection for fallback-path tests. When set, the matching
	// operation fails with the given error.
	PingErr       error
	TraverseErr   error
	IntrospectErr error
	CatalogErr    error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:    make(map[string]*graph.Entity),
		rels:     make(map[string]*graph.Relationship),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
}

// AddEntity inserts or replaces a node.
func (m *MemoryStore) AddEntity(e *graph.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[e.InternalID] = e
}

// AddRelationship inserts an edge and indexes both endpoints.
func (m *MemoryStore) AddRelationship(r *graph.Relationship) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rels[r.InternalID]; exists {
		return
	}
	m.rels[r.InternalID] = r
	m.outgoing[r.StartID] = append(m.outgoing[r.StartID], r.InternalID)
	m.incoming[r.EndID] = append(m.incoming[r.EndID], r.InternalID)
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) FetchNode(ctx context.Context, ref NodeRef) (*graph.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, node := range m.sortedNodes() {
		if ref.Label != "" && node.PrimaryLabel() != string(ref.Label) {
			continue
		}
		if ref.UID != nil {
			if node.UID == *ref.UID {
				return node, nil
			}
			continue
		}
		if node.Name == ref.Name {
			return node, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
}

func (m *MemoryStore) Traverse(ctx context.Context, req TraversalRequest) (*graph.FlatResult, error) {
	if m.TraverseErr != nil {
		return nil, m.TraverseErr
	}
	root, err := m.FetchNode(ctx, req.Root)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var allowed map[string]bool
	if len(req.RelTypes) > 0 {
		allowed = make(map[string]bool, len(req.RelTypes))
		for _, t := range req.RelTypes {
			allowed[t] = true
		}
	}

	flat := &graph.FlatResult{Root: root}
	visited := map[string]int{root.InternalID: 0}
	queue := []string{root.InternalID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		depth := visited[id]
		if depth >= req.Depth {
			continue
		}

		var relIDs []string
		switch req.Direction {
		case graph.DirectionIncoming:
			relIDs = m.incoming[id]
		case graph.DirectionBoth:
			relIDs = append(append([]string{}, m.outgoing[id]...), m.incoming[id]...)
		default:
			relIDs = m.outgoing[id]
		}

		for _, relID := range relIDs {
			rel := m.rels[relID]
			if rel == nil || (allowed != nil && !allowed[rel.Type]) {
				continue
			}
			neighborID := rel.EndID
			if neighborID == id {
				neighborID = rel.StartID
			}
			neighbor := m.nodes[neighborID]
			if neighbor == nil {
				continue
			}
			flat.Records = append(flat.Records, graph.FlatRecord{
				Node:  neighbor,
				Rel:   rel,
				Depth: depth + 1,
			})
			if _, seen := visited[neighborID]; !seen {
				visited[neighborID] = depth + 1
				queue = append(queue, neighborID)
			}
		}
	}
	return flat, nil
}

func (m *MemoryStore) RelationshipTypes(ctx context.Context) ([]string, error) {
	if m.IntrospectErr != nil {
		return nil, m.IntrospectErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var types []string
	for _, rel := range m.rels {
		if !seen[rel.Type] {
			seen[rel.Type] = true
			types = append(types, rel.Type)
		}
	}
	sort.Strings(types)
	return types, nil
}

func (m *MemoryStore) CatalogNames(ctx context.Context) ([]string, error) {
	if m.CatalogErr != nil {
		return nil, m.CatalogErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	anchor := make(map[string]bool, len(graph.AnchorLabels))
	for _, l := range graph.AnchorLabels {
		anchor[string(l)] = true
	}
	var names []string
	for _, node := range m.nodes {
		if anchor[node.PrimaryLabel()] && node.Name != "" {
			names = append(names, node.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return nil, fmt.Errorf("%w: raw queries require the Neo4j store", ErrUnsupported)
}

func (m *MemoryStore) Counts(ctx context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, node := range m.nodes {
		counts[node.PrimaryLabel()]++
	}
	return counts, nil
}

func (m *MemoryStore) NodesByLabel(ctx context.Context, label graph.NodeLabel) ([]*graph.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var nodes []*graph.Entity
	for _, node := range m.sortedNodes() {
		if node.PrimaryLabel() == string(label) {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

func (m *MemoryStore) EdgeEndpoints(ctx context.Context, relType string, direction graph.Direction) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	endpoints := make(map[string]bool)
	for _, rel := range m.rels {
		if relType != "" && rel.Type != relType {
			continue
		}
		switch direction {
		case graph.DirectionOutgoing:
			endpoints[rel.StartID] = true
		case graph.DirectionIncoming:
			endpoints[rel.EndID] = true
		default:
			endpoints[rel.StartID] = true
			endpoints[rel.EndID] = true
		}
	}
	return endpoints, nil
}

// ExportNodes returns every node in internal-id order.
func (m *MemoryStore) ExportNodes(ctx context.Context) ([]*graph.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedNodes(), nil
}

// ExportRelationships returns every edge in internal-id order.
func (m *MemoryStore) ExportRelationships(ctx context.Context) ([]*graph.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rels))
	for id := range m.rels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rels := make([]*graph.Relationship, 0, len(ids))
	for _, id := range ids {
		rels = append(rels, m.rels[id])
	}
	return rels, nil
}

// sortedNodes returns nodes in internal-id order for deterministic
// iteration. Caller must hold the lock.
func (m *MemoryStore) sortedNodes() []*graph.Entity {
	ids := make([]string, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	nodes := make([]*graph.Entity, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, m.nodes[id])
	}
	return nodes
}
