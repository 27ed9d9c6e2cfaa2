package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Direction selects which edges a traversal follows relative to the root.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// NormalizeDirection accepts the long and short spellings ("outgoing"/"out",
// "incoming"/"in", "both") case-insensitively. An empty string defaults to
// outgoing. Anything else is rejected with the accepted values named.
func NormalizeDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "outgoing", "out":
		return DirectionOutgoing, nil
	case "incoming", "in":
		return DirectionIncoming, nil
	case "both":
		return DirectionBoth, nil
	}
	return "", fmt.Errorf("invalid direction %q: must be one of outgoing, incoming, both (or out, in)", s)
}

// TreeNode is one node of a reconstructed subtree. Relationships groups the
// node's children by relationship type and is omitted entirely for leaves.
// A node participating in a cycle is truncated with BackRef set instead of
// being expanded again.
type TreeNode struct {
	InternalID    string                 `json:"internal_id"`
	Labels        []string               `json:"labels"`
	Properties    map[string]any         `json:"properties"`
	Relationships map[string][]*TreeNode `json:"relationships,omitempty"`
	BackRef       bool                   `json:"back_ref,omitempty"`
}

// RelDescriptor is a deduplicated name-level view of one edge, used by
// serialization.
type RelDescriptor struct {
	Type string `json:"type"`
	From string `json:"from_node"`
	To   string `json:"to_node"`
}

// Reconstruction is the result of turning a flat traversal into a tree.
type Reconstruction struct {
	// Root is the nested tree. Present even when the root has no edges.
	Root *TreeNode `json:"root"`

	// RootEntity is the root as the store returned it.
	RootEntity *Entity `json:"-"`

	// Related lists every reached entity except the root, ordered by
	// minimum depth and then name.
	Related []*Entity `json:"-"`

	// Relationships lists the distinct (type, from, to) edges in first-seen
	// order.
	Relationships []RelDescriptor `json:"relationships"`

	// NodeDepths maps internal node identity to the minimum hop distance
	// from the root. The root maps to 0.
	NodeDepths map[string]int `json:"node_depths"`

	// MaxDepth is the largest value in NodeDepths.
	MaxDepth int `json:"max_depth"`
}

var errNilRoot = errors.New("reconstruct: root entity is required")

// Reconstruct turns the flat (node, relationship, depth) records of a
// traversal into a nested tree rooted at root.
//
// Nodes are collapsed by internal identity and keep the minimum depth they
// were observed at; relationships are collapsed by internal identity. The
// children index groups edges by (parent, type), flipping parent and child
// under DirectionIncoming so the tree always grows away from the root. The
// recursive materialization re-expands a node's subtree under every parent
// edge that reaches it, so shared nodes appear once per path. A node whose
// expansion is already on the current ancestor chain is emitted as a
// back-reference marker instead of recursing.
//
// Index construction is linear in nodes plus edges; only the final
// materialization duplicates shared subtrees.
func Reconstruct(root *Entity, records []FlatRecord, direction Direction) (*Reconstruction, error) {
	if root == nil {
		return nil, errNilRoot
	}

	nodes := map[string]*Entity{root.InternalID: root}
	depths := map[string]int{root.InternalID: 0}

	seenRels := make(map[string]bool)
	orderedRels := make([]*Relationship, 0, len(records))

	for _, rec := range records {
		if rec.Node != nil && rec.Node.InternalID != "" {
			id := rec.Node.InternalID
			if _, ok := nodes[id]; !ok {
				nodes[id] = rec.Node
				depths[id] = rec.Depth
			} else if rec.Depth < depths[id] {
				depths[id] = rec.Depth
			}
		}
		if rec.Rel != nil && rec.Rel.InternalID != "" && !seenRels[rec.Rel.InternalID] {
			seenRels[rec.Rel.InternalID] = true
			orderedRels = append(orderedRels, rec.Rel)
		}
	}

	// Children index: parent -> relationship type -> child ids, in
	// first-seen order. Incoming traversals flip the edge so children
	// still hang below their parent.
	childTypes := make(map[string][]string)
	children := make(map[string]map[string][]string)
	for _, rel := range orderedRels {
		parent, child := rel.StartID, rel.EndID
		if direction == DirectionIncoming {
			parent, child = child, parent
		}
		if _, ok := nodes[parent]; !ok {
			continue
		}
		if _, ok := nodes[child]; !ok {
			continue
		}
		byType, ok := children[parent]
		if !ok {
			byType = make(map[string][]string)
			children[parent] = byType
		}
		if _, ok := byType[rel.Type]; !ok {
			childTypes[parent] = append(childTypes[parent], rel.Type)
		}
		byType[rel.Type] = append(byType[rel.Type], child)
	}

	expanding := make(map[string]bool)
	var build func(id string) *TreeNode
	build = func(id string) *TreeNode {
		ent := nodes[id]
		node := &TreeNode{
			InternalID: id,
			Labels:     ent.Labels,
			Properties: ent.Properties,
		}
		byType := children[id]
		if len(byType) == 0 {
			return node
		}
		expanding[id] = true
		node.Relationships = make(map[string][]*TreeNode, len(byType))
		for _, relType := range childTypes[id] {
			for _, childID := range byType[relType] {
				if expanding[childID] {
					child := nodes[childID]
					node.Relationships[relType] = append(node.Relationships[relType], &TreeNode{
						InternalID: childID,
						Labels:     child.Labels,
						Properties: map[string]any{"name": child.Name},
						BackRef:    true,
					})
					continue
				}
				node.Relationships[relType] = append(node.Relationships[relType], build(childID))
			}
		}
		delete(expanding, id)
		return node
	}

	rec := &Reconstruction{
		Root:       build(root.InternalID),
		RootEntity: root,
		NodeDepths: depths,
	}

	for id, d := range depths {
		if d > rec.MaxDepth {
			rec.MaxDepth = d
		}
		if id != root.InternalID {
			rec.Related = append(rec.Related, nodes[id])
		}
	}
	sort.Slice(rec.Related, func(i, j int) bool {
		di, dj := depths[rec.Related[i].InternalID], depths[rec.Related[j].InternalID]
		if di != dj {
			return di < dj
		}
		return rec.Related[i].Name < rec.Related[j].Name
	})

	seenDesc := make(map[RelDescriptor]bool)
	for _, rel := range orderedRels {
		desc := RelDescriptor{Type: rel.Type, From: rel.StartName, To: rel.EndName}
		if !seenDesc[desc] {
			seenDesc[desc] = true
			rec.Relationships = append(rec.Relationships, desc)
		}
	}

	return rec, nil
}
