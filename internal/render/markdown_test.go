package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vmoffice/capgraph/internal/graph"
)

func TestMarkdownTree(t *testing.T) {
	t.Parallel()

	root := &graph.Entity{
		InternalID: "1",
		UID:        101,
		Name:       "Fund Accounting",
		Labels:     []string{"Capability"},
		Properties: map[string]any{"name": "Fund Accounting"},
	}
	rec := &graph.Reconstruction{
		RootEntity: root,
		Root: &graph.TreeNode{
			InternalID: "1",
			Labels:     []string{"Capability"},
			Properties: map[string]any{"name": "Fund Accounting"},
			Relationships: map[string][]*graph.TreeNode{
				"REALIZED_BY": {
					{
						InternalID: "2",
						Labels:     []string{"Process"},
						Properties: map[string]any{"name": "NAV Calculation"},
						Relationships: map[string][]*graph.TreeNode{
							"DECOMPOSES": {
								{
									InternalID: "3",
									Labels:     []string{"Subprocess"},
									Properties: map[string]any{"name": "Price Validation"},
								},
							},
						},
					},
				},
			},
		},
		Related: []*graph.Entity{
			{InternalID: "2", Name: "NAV Calculation", Labels: []string{"Process"}},
			{InternalID: "3", Name: "Price Validation", Labels: []string{"Subprocess"}},
		},
		NodeDepths: map[string]int{"1": 0, "2": 1, "3": 2},
		MaxDepth:   2,
	}

	out := Markdown(rec)

	expected := "**Name:** Fund Accounting\n" +
		"**UID:** 101\n" +
		"**Process Nodes:** 1\n" +
		"**Subprocess Nodes:** 1\n" +
		"**Maximum Depth Reached:** 2\n" +
		"\n" +
		"- [Capability] Fund Accounting (depth: 0)\n" +
		"  - [Process] NAV Calculation (depth: 1)\n" +
		"    - [Subprocess] Price Validation (depth: 2)\n"

	assert.Equal(t, expected, out)
}

func TestMarkdownBackRef(t *testing.T) {
	t.Parallel()

	rec := &graph.Reconstruction{
		RootEntity: &graph.Entity{InternalID: "1", UID: 7, Name: "Loop", Labels: []string{"Process"}},
		Root: &graph.TreeNode{
			InternalID: "1",
			Labels:     []string{"Process"},
			Properties: map[string]any{"name": "Loop"},
			Relationships: map[string][]*graph.TreeNode{
				"DECOMPOSES": {
					{
						InternalID: "1",
						Labels:     []string{"Process"},
						Properties: map[string]any{"name": "Loop"},
						BackRef:    true,
					},
				},
			},
		},
		NodeDepths: map[string]int{"1": 0},
	}

	out := Markdown(rec)

	assert.Contains(t, out, "- [Process] Loop (depth: 0)\n")
	assert.Contains(t, out, "  - [Process] Loop (back-reference)\n")
}
