package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vmoffice/capgraph/internal/graph"
)

// Markdown renders a reconstruction as an overview block followed by the
// indented subtree, one `- [Label] Name (depth: N)` line per node.
func Markdown(rec *graph.Reconstruction) string {
	var b strings.Builder
	root := rec.RootEntity

	fmt.Fprintf(&b, "**Name:** %s\n", root.Name)
	fmt.Fprintf(&b, "**UID:** %d\n", root.UID)

	counts := make(map[string]int)
	for _, ent := range rec.Related {
		counts[ent.PrimaryLabel()]++
	}
	for _, label := range graph.BusinessLabels {
		if n := counts[string(label)]; n > 0 {
			fmt.Fprintf(&b, "**%s Nodes:** %d\n", label, n)
		}
	}
	fmt.Fprintf(&b, "**Maximum Depth Reached:** %d\n\n", rec.MaxDepth)

	writeTree(&b, rec.Root, rec.NodeDepths, 0)
	return b.String()
}

func writeTree(b *strings.Builder, node *graph.TreeNode, depths map[string]int, level int) {
	indent := strings.Repeat("  ", level)
	label := "Node"
	if len(node.Labels) > 0 {
		label = node.Labels[0]
	}

	if node.BackRef {
		fmt.Fprintf(b, "%s- [%s] %s (back-reference)\n", indent, label, treeNodeName(node))
		return
	}
	fmt.Fprintf(b, "%s- [%s] %s (depth: %d)\n", indent, label, treeNodeName(node), depths[node.InternalID])

	// Map iteration order is random; sort types so output is stable.
	types := make([]string, 0, len(node.Relationships))
	for t := range node.Relationships {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		for _, child := range node.Relationships[t] {
			writeTree(b, child, depths, level+1)
		}
	}
}

func treeNodeName(node *graph.TreeNode) string {
	if v, ok := node.Properties["name"]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return node.InternalID
}
