package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/vmoffice/capgraph/internal/graph"
)

// Key prefixes for the snapshot layout. Neo4j element ids contain colons,
// so composite index keys join their parts with NUL bytes instead.
const (
	prefixNode     = "n:"      // node data by internal id
	prefixRel      = "r:"      // relationship data by internal id
	prefixOutgoing = "i:out:"  // node -> type -> rel id
	prefixIncoming = "i:in:"   // node -> type -> rel id
	prefixNameIdx  = "m:name:" // name -> label -> node id
	prefixUIDIdx   = "m:uid:"  // uid -> label -> node id
	prefixRelType  = "t:"      // relationship type marker
)

const sep = "\x00"

// LocalStore serves the capability graph from a Badger snapshot pulled
// from Neo4j. It supports everything GraphStore requires except raw
// Cypher.
type LocalStore struct {
	db  *badger.DB
	mu  sync.RWMutex
	log *zap.Logger
}

// OpenLocal opens or creates the snapshot database at path.
func OpenLocal(path string, readOnly bool, log *zap.Logger) (*LocalStore, error) {
	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR)
	if readOnly {
		opts = opts.WithReadOnly(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot at %s: %w", path, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalStore{db: db, log: log}, nil
}

func (s *LocalStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil || s.db.IsClosed() {
		return fmt.Errorf("%w: snapshot closed", ErrUnavailable)
	}
	return nil
}

func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Import replaces the snapshot contents with the given nodes and
// relationships, rebuilding every index.
func (s *LocalStore) Import(ctx context.Context, nodes []*graph.Entity, rels []*graph.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, node := range nodes {
		data, err := json.Marshal(node)
		if err != nil {
			return fmt.Errorf("marshaling node %s: %w", node.InternalID, err)
		}
		if err := wb.Set([]byte(prefixNode+node.InternalID), data); err != nil {
			return fmt.Errorf("writing node: %w", err)
		}
		label := node.PrimaryLabel()
		if node.Name != "" {
			key := prefixNameIdx + node.Name + sep + label
			if err := wb.Set([]byte(key), []byte(node.InternalID)); err != nil {
				return fmt.Errorf("writing name index: %w", err)
			}
		}
		if node.UID != 0 {
			key := prefixUIDIdx + strconv.FormatInt(node.UID, 10) + sep + label
			if err := wb.Set([]byte(key), []byte(node.InternalID)); err != nil {
				return fmt.Errorf("writing uid index: %w", err)
			}
		}
	}

	for _, rel := range rels {
		data, err := json.Marshal(rel)
		if err != nil {
			return fmt.Errorf("marshaling relationship %s: %w", rel.InternalID, err)
		}
		if err := wb.Set([]byte(prefixRel+rel.InternalID), data); err != nil {
			return fmt.Errorf("writing relationship: %w", err)
		}
		outKey := prefixOutgoing + rel.StartID + sep + rel.Type + sep + rel.InternalID
		if err := wb.Set([]byte(outKey), []byte(rel.InternalID)); err != nil {
			return fmt.Errorf("writing outgoing index: %w", err)
		}
		inKey := prefixIncoming + rel.EndID + sep + rel.Type + sep + rel.InternalID
		if err := wb.Set([]byte(inKey), []byte(rel.InternalID)); err != nil {
			return fmt.Errorf("writing incoming index: %w", err)
		}
		if err := wb.Set([]byte(prefixRelType+rel.Type), nil); err != nil {
			return fmt.Errorf("writing type marker: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flushing snapshot: %w", err)
	}
	s.log.Info("snapshot imported",
		zap.Int("nodes", len(nodes)),
		zap.Int("relationships", len(rels)))
	return nil
}

// FetchNode resolves ref through the uid or name index.
func (s *LocalStore) FetchNode(ctx context.Context, ref NodeRef) (*graph.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	id, err := s.resolveRef(txn, ref)
	if err != nil {
		return nil, err
	}
	node, err := s.getEntity(txn, id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return node, nil
}

// resolveRef finds the internal id behind a NodeRef. With a label the
// index key is exact; without one the first label match wins.
func (s *LocalStore) resolveRef(txn *badger.Txn, ref NodeRef) (string, error) {
	var prefix string
	if ref.UID != nil {
		prefix = prefixUIDIdx + strconv.FormatInt(*ref.UID, 10) + sep
	} else {
		prefix = prefixNameIdx + ref.Name + sep
	}

	if ref.Label != "" {
		item, err := txn.Get([]byte(prefix + string(ref.Label)))
		if err == badger.ErrKeyNotFound {
			return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		if err != nil {
			return "", fmt.Errorf("reading index: %w", err)
		}
		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return "", err
		}
		return id, nil
	}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		var id string
		if err := it.Item().Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return "", err
		}
		return id, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
}

// Traverse runs a breadth-first expansion from the root. BFS visits nodes
// in hop order, so the emitted depths are already minimal; edges between
// already visited nodes are still emitted so the reconstruction sees every
// distinct parent/child pair.
func (s *LocalStore) Traverse(ctx context.Context, req TraversalRequest) (*graph.FlatResult, error) {
	root, err := s.FetchNode(ctx, req.Root)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

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
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := queue[0]
		queue = queue[1:]
		depth := visited[id]
		if depth >= req.Depth {
			continue
		}

		for _, hop := range s.neighbors(txn, id, req.Direction) {
			if allowed != nil && !allowed[hop.rel.Type] {
				continue
			}
			node, err := s.getEntity(txn, hop.neighborID)
			if err != nil || node == nil {
				continue
			}
			flat.Records = append(flat.Records, graph.FlatRecord{
				Node:  node,
				Rel:   hop.rel,
				Depth: depth + 1,
			})
			if _, seen := visited[hop.neighborID]; !seen {
				visited[hop.neighborID] = depth + 1
				queue = append(queue, hop.neighborID)
			}
		}
	}
	return flat, nil
}

type hop struct {
	rel        *graph.Relationship
	neighborID string
}

// neighbors reads the adjacency indexes for one node in the requested
// direction.
func (s *LocalStore) neighbors(txn *badger.Txn, id string, direction graph.Direction) []hop {
	var hops []hop
	scan := func(prefix string, incoming bool) {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix + id + sep)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var relID string
			if err := it.Item().Value(func(val []byte) error {
				relID = string(val)
				return nil
			}); err != nil {
				continue
			}
			rel := s.getRelationship(txn, relID)
			if rel == nil {
				continue
			}
			neighbor := rel.EndID
			if incoming {
				neighbor = rel.StartID
			}
			hops = append(hops, hop{rel: rel, neighborID: neighbor})
		}
	}

	switch direction {
	case graph.DirectionIncoming:
		scan(prefixIncoming, true)
	case graph.DirectionBoth:
		scan(prefixOutgoing, false)
		scan(prefixIncoming, true)
	default:
		scan(prefixOutgoing, false)
	}
	return hops
}

// RelationshipTypes lists the types seen at import time.
func (s *LocalStore) RelationshipTypes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	var types []string
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixRelType)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		types = append(types, strings.TrimPrefix(string(it.Item().Key()), prefixRelType))
	}
	sort.Strings(types)
	return types, nil
}

// CatalogNames lists names of anchor-label nodes from the name index.
func (s *LocalStore) CatalogNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	anchor := make(map[string]bool, len(graph.AnchorLabels))
	for _, l := range graph.AnchorLabels {
		anchor[string(l)] = true
	}

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	seen := make(map[string]bool)
	var names []string
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixNameIdx)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		rest := strings.TrimPrefix(string(it.Item().Key()), prefixNameIdx)
		parts := strings.SplitN(rest, sep, 2)
		if len(parts) != 2 || !anchor[parts[1]] {
			continue
		}
		if !seen[parts[0]] {
			seen[parts[0]] = true
			names = append(names, parts[0])
		}
	}
	sort.Strings(names)
	return names, nil
}

// Run is unsupported: the snapshot has no query language.
func (s *LocalStore) Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return nil, fmt.Errorf("%w: raw queries require the Neo4j store", ErrUnsupported)
}

// Counts tallies nodes per business label.
func (s *LocalStore) Counts(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixNode)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		var node graph.Entity
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &node)
		}); err != nil {
			continue
		}
		counts[node.PrimaryLabel()]++
	}
	return counts, nil
}

// NodesByLabel returns every node carrying the given label.
func (s *LocalStore) NodesByLabel(ctx context.Context, label graph.NodeLabel) ([]*graph.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	var nodes []*graph.Entity
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixNode)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		var node graph.Entity
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &node)
		}); err != nil {
			continue
		}
		if node.PrimaryLabel() == string(label) {
			n := node
			nodes = append(nodes, &n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

// EdgeEndpoints returns the internal ids appearing as start (outgoing) or
// end (incoming) of at least one edge of the given type. An empty relType
// matches every type; DirectionBoth collects both endpoints.
func (s *LocalStore) EdgeEndpoints(ctx context.Context, relType string, direction graph.Direction) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	endpoints := make(map[string]bool)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixRel)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		var rel graph.Relationship
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &rel)
		}); err != nil {
			continue
		}
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

func (s *LocalStore) getEntity(txn *badger.Txn, id string) (*graph.Entity, error) {
	item, err := txn.Get([]byte(prefixNode + id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var node graph.Entity
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &node)
	}); err != nil {
		return nil, err
	}
	return &node, nil
}

func (s *LocalStore) getRelationship(txn *badger.Txn, id string) *graph.Relationship {
	item, err := txn.Get([]byte(prefixRel + id))
	if err != nil {
		return nil
	}
	var rel graph.Relationship
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rel)
	}); err != nil {
		return nil
	}
	return &rel
}
