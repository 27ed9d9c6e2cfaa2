// Package render turns reconstructed subtrees into the bounded text blocks
// handed to answer generation, and into markdown for direct export.
package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vmoffice/capgraph/internal/catalog"
	"github.com/vmoffice/capgraph/internal/graph"
	"github.com/vmoffice/capgraph/internal/planner"
)

const (
	// managerDescLimit bounds per-node descriptions for the Manager tier.
	managerDescLimit = 100

	// Relationship line caps per tier keep the context inside prompt limits.
	managerRelCap = 10
	analystRelCap = 50

	defaultBudget = 100_000
)

// AnchorContext is one anchor's retrieval outcome. Tree is nil when the
// anchor resolved but the graph held no node for it.
type AnchorContext struct {
	Anchor string
	Tree   *graph.Reconstruction
}

// Serializer renders anchor contexts into persona-tiered text.
type Serializer struct {
	hydration *catalog.Hydration
	budget    int
}

// NewSerializer creates a serializer. hydration may be nil; a non-positive
// budget falls back to the default.
func NewSerializer(hydration *catalog.Hydration, budget int) *Serializer {
	if budget <= 0 {
		budget = defaultBudget
	}
	return &Serializer{hydration: hydration, budget: budget}
}

// Serialize renders the anchor blocks for the given persona tier.
//
// Each found anchor becomes a heading with its related entities beneath it,
// one line per entity. Executive lines carry names and labels only; Manager
// adds a bounded description; Analyst adds full descriptions plus the
// application and API a subprocess is hydrated with. Relationship lines are
// included for Manager and Analyst up to the tier's cap. Anchors without
// graph data render a single not-found line. The whole output is hard-cut
// at the character budget. Never fails; missing metadata degrades the line,
// not the call.
func (s *Serializer) Serialize(blocks []AnchorContext, persona planner.Persona) string {
	var b strings.Builder

	for _, blk := range blocks {
		if blk.Tree == nil || blk.Tree.RootEntity == nil {
			fmt.Fprintf(&b, "- %s: No data found in graph\n", blk.Anchor)
			continue
		}

		root := blk.Tree.RootEntity
		fmt.Fprintf(&b, "\n### %s (%s)\n", root.Name, strings.Join(root.Labels, ", "))

		for _, node := range blk.Tree.Related {
			s.writeNode(&b, node, persona)
		}

		if persona != planner.PersonaExecutive && len(blk.Tree.Relationships) > 0 {
			relCap := managerRelCap
			if persona == planner.PersonaAnalyst {
				relCap = analystRelCap
			}
			b.WriteString("\n  Relationships:\n")
			for i, rel := range blk.Tree.Relationships {
				if i >= relCap {
					break
				}
				fmt.Fprintf(&b, "    - %s --[%s]--> %s\n", rel.From, rel.Type, rel.To)
			}
		}
	}

	return truncate(b.String(), s.budget)
}

func (s *Serializer) writeNode(b *strings.Builder, node *graph.Entity, persona planner.Persona) {
	labels := strings.Join(node.Labels, ", ")

	switch persona {
	case planner.PersonaExecutive:
		fmt.Fprintf(b, "  - %s (%s)\n", node.Name, labels)

	case planner.PersonaManager:
		desc := clipRunes(s.describe(node), managerDescLimit)
		if desc == "" {
			fmt.Fprintf(b, "  - %s\n", node.Name)
		} else {
			fmt.Fprintf(b, "  - %s: %s\n", node.Name, desc)
		}

	default:
		if desc := s.describe(node); desc == "" {
			fmt.Fprintf(b, "  - [%s] %s\n", labels, node.Name)
		} else {
			fmt.Fprintf(b, "  - [%s] %s: %s\n", labels, node.Name, desc)
		}
		if node.PrimaryLabel() == string(graph.LabelSubprocess) {
			s.writeSubprocessDetail(b, node.Name)
		}
	}
}

// writeSubprocessDetail appends the application and API a subprocess is
// hydrated with, for the Analyst tier only.
func (s *Serializer) writeSubprocessDetail(b *strings.Builder, name string) {
	if s.hydration == nil {
		return
	}
	row, ok := s.hydration.Lookup(name)
	if !ok {
		return
	}
	if row.Application != "" {
		fmt.Fprintf(b, "      Application: %s\n", row.Application)
	}
	if row.API != "" {
		fmt.Fprintf(b, "      API: %s\n", row.API)
	}
}

// describe resolves a node's description: graph properties first, then the
// hydration table, then empty so callers render the name alone.
func (s *Serializer) describe(node *graph.Entity) string {
	if d := node.Description(); d != "" {
		return d
	}
	if s.hydration != nil {
		if row, ok := s.hydration.Lookup(node.Name); ok {
			return row.Description
		}
	}
	return ""
}

// clipRunes cuts a string to at most limit runes.
func clipRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// truncate hard-cuts a string to at most budget bytes without splitting a
// rune.
func truncate(s string, budget int) string {
	if len(s) <= budget {
		return s
	}
	cut := budget
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
