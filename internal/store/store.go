// Package store provides access to the capability graph through a common
// GraphStore boundary.
//
// Two implementations exist: Neo4jStore talks to the primary Neo4j
// database, LocalStore serves a Badger snapshot for offline use. Both
// return the same flat traversal records; reconstruction and serialization
// never know which store produced them.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmoffice/capgraph/internal/graph"
)

var (
	// ErrNotFound is returned when a node lookup matches nothing.
	ErrNotFound = errors.New("node not found")

	// ErrUnavailable wraps connectivity failures. Callers degrade rather
	// than abort: an unavailable store yields empty traversal results and
	// cached catalogs.
	ErrUnavailable = errors.New("store unavailable")

	// ErrUnsupported is returned for operations a store cannot serve,
	// such as raw Cypher against the local snapshot.
	ErrUnsupported = errors.New("operation not supported by this store")
)

// NodeRef addresses one node by label and either uid or name. A zero Label
// matches any label; exactly one of UID and Name should be set.
type NodeRef struct {
	Label graph.NodeLabel
	UID   *int64
	Name  string
}

func (r NodeRef) String() string {
	if r.UID != nil {
		return fmt.Sprintf("%s uid=%d", r.Label, *r.UID)
	}
	return fmt.Sprintf("%s name=%q", r.Label, r.Name)
}

// TraversalRequest describes one bounded traversal from a single root.
type TraversalRequest struct {
	// Root addresses the traversal root.
	Root NodeRef

	// Depth is the maximum hop count, already validated and clamped.
	Depth int

	// Direction selects which edges to follow relative to the root.
	Direction graph.Direction

	// RelTypes constrains the traversal to these relationship types.
	// Empty means unconstrained.
	RelTypes []string
}

// NewTraversalRequest validates and builds a traversal request. Depth must
// be positive; values above maxDepth are clamped, never rejected.
func NewTraversalRequest(root NodeRef, depth int, direction graph.Direction, relTypes []string, maxDepth int) (TraversalRequest, error) {
	if depth <= 0 {
		return TraversalRequest{}, fmt.Errorf("malformed traversal: depth must be positive, got %d", depth)
	}
	switch direction {
	case graph.DirectionOutgoing, graph.DirectionIncoming, graph.DirectionBoth:
	default:
		return TraversalRequest{}, fmt.Errorf("malformed traversal: invalid direction %q: must be one of outgoing, incoming, both", direction)
	}
	if maxDepth > 0 && depth > maxDepth {
		depth = maxDepth
	}
	return TraversalRequest{Root: root, Depth: depth, Direction: direction, RelTypes: relTypes}, nil
}

// GraphStore is the read boundary over the capability graph.
type GraphStore interface {
	// Lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Node operations
	FetchNode(ctx context.Context, ref NodeRef) (*graph.Entity, error)
	Counts(ctx context.Context) (map[string]int, error)

	// Traversal. The root is fetched independently of the expansion, so
	// an isolated root still produces a result with zero records.
	Traverse(ctx context.Context, req TraversalRequest) (*graph.FlatResult, error)

	// Introspection
	RelationshipTypes(ctx context.Context) ([]string, error)
	CatalogNames(ctx context.Context) ([]string, error)

	// Raw read access. Stores without a query language return
	// ErrUnsupported.
	Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}
