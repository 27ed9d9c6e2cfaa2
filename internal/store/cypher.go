package store

import (
	"fmt"
	"strings"

	"github.com/saulfrancisco-ruizacevedo/gocypher"

	"github.com/vmoffice/capgraph/internal/graph"
	"github.com/vmoffice/capgraph/internal/planner"
)

// Candidate relationship types per intent. The lists deliberately include
// types richer models use (ENABLED_BY, ACCOUNTABLE_FOR, SUPPORTS);
// intersecting with the store's introspected vocabulary drops whatever the
// connected graph does not carry.
var intentRelCandidates = map[planner.Intent][]string{
	planner.IntentStrategic:   {"ENABLED_BY", "ACCOUNTABLE_FOR", "REALIZED_BY"},
	planner.IntentOperational: {"DECOMPOSES", "SUPPORTS", "REALIZED_BY"},
}

// defaultRelCandidates covers the decomposition spine used by every other
// intent.
var defaultRelCandidates = []string{"REALIZED_BY", "USES_DATA", "DECOMPOSES", "HAS_ELEMENT"}

// CandidateRelTypes returns the relationship types worth following for an
// intent, before intersection with the store vocabulary.
func CandidateRelTypes(intent planner.Intent) []string {
	if c, ok := intentRelCandidates[intent]; ok {
		return c
	}
	return defaultRelCandidates
}

// FilterRelTypes intersects candidates with the types the store actually
// holds, keeping candidate order. An empty available list (introspection
// failed or returned nothing) or an empty intersection returns nil, which
// traversals interpret as "no constraint".
func FilterRelTypes(candidates, available []string) []string {
	if len(available) == 0 {
		return nil
	}
	have := make(map[string]bool, len(available))
	for _, t := range available {
		have[t] = true
	}
	var out []string
	for _, c := range candidates {
		if have[c] {
			out = append(out, c)
		}
	}
	return out
}

// TraversalCypher renders the flat traversal query for one request.
//
// The query matches the root, optionally expands every path up to the
// requested depth, then unwinds the collected paths into one row per
// (node, relationship, path length). Node depths are recovered later by
// min-reduction: the expansion enumerates a path terminating at every
// reachable node, so each node's true hop distance appears among its rows.
func TraversalCypher(req TraversalRequest) (string, map[string]any) {
	prop, value := "name", any(req.Root.Name)
	if req.Root.UID != nil {
		prop, value = "uid", any(*req.Root.UID)
	}

	rootPattern := fmt.Sprintf("(root {%s: $value})", prop)
	if req.Root.Label != "" {
		rootPattern = fmt.Sprintf("(root:%s {%s: $value})", req.Root.Label, prop)
	}

	relFilter := ""
	if len(req.RelTypes) > 0 {
		relFilter = ":" + strings.Join(req.RelTypes, "|")
	}
	relPattern := fmt.Sprintf("[%s*1..%d]", relFilter, req.Depth)

	var expand string
	switch req.Direction {
	case graph.DirectionIncoming:
		expand = fmt.Sprintf("(root)<-%s-(related)", relPattern)
	case graph.DirectionBoth:
		expand = fmt.Sprintf("(root)-%s-(related)", relPattern)
	default:
		expand = fmt.Sprintf("(root)-%s->(related)", relPattern)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MATCH %s\n", rootPattern)
	fmt.Fprintf(&b, "OPTIONAL MATCH path = %s\n", expand)
	b.WriteString("WITH collect(path) AS paths\n")
	b.WriteString("UNWIND paths AS p\n")
	b.WriteString("UNWIND nodes(p) AS nd\n")
	b.WriteString("UNWIND relationships(p) AS rel\n")
	b.WriteString("RETURN DISTINCT nd, rel, startNode(rel).name AS from_name, endNode(rel).name AS to_name, length(p) AS depth")

	return b.String(), map[string]any{"value": value}
}

// lookupCypher builds the point query behind FetchNode.
func lookupCypher(ref NodeRef) (string, map[string]any, error) {
	props := map[string]any{}
	if ref.UID != nil {
		props["uid"] = *ref.UID
	} else {
		props["name"] = ref.Name
	}
	return gocypher.NewQueryBuilder().
		Match(gocypher.N("n", string(ref.Label)).WithProperties(props)).
		Return("n").
		Build()
}

// catalogCypher lists every resolvable entity name.
const catalogCypher = `MATCH (n) WHERE n:Capability OR n:Process OR n:Subprocess RETURN DISTINCT n.name AS name ORDER BY name`

// relTypesCypher introspects the relationship vocabulary.
const relTypesCypher = `CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType`
