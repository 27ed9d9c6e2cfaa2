package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmoffice/capgraph/internal/catalog"
	"github.com/vmoffice/capgraph/internal/graph"
	"github.com/vmoffice/capgraph/internal/planner"
)

func testHydration(t *testing.T, content string) *catalog.Hydration {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	h := catalog.NewHydration(path, nil)
	require.NoError(t, h.Reload())
	return h
}

func renderEntity(id, name, label, desc string) *graph.Entity {
	props := map[string]any{"name": name}
	if desc != "" {
		props["description"] = desc
	}
	return &graph.Entity{
		InternalID: id,
		Name:       name,
		Labels:     []string{label},
		Properties: props,
	}
}

func singleAnchor(root *graph.Entity, related []*graph.Entity, rels []graph.RelDescriptor) []AnchorContext {
	return []AnchorContext{{
		Anchor: root.Name,
		Tree: &graph.Reconstruction{
			RootEntity:    root,
			Related:       related,
			Relationships: rels,
		},
	}}
}

func TestSerializeNotFound(t *testing.T) {
	t.Parallel()

	s := NewSerializer(nil, 0)
	out := s.Serialize([]AnchorContext{{Anchor: "Fund Accounting"}}, planner.PersonaManager)

	assert.Equal(t, "- Fund Accounting: No data found in graph\n", out)
}

func TestSerializeExecutive(t *testing.T) {
	t.Parallel()

	root := renderEntity("1", "Fund Accounting", "Capability", "Keeps the books")
	related := []*graph.Entity{
		renderEntity("2", "NAV Calculation", "Process", "Computes NAV"),
	}
	rels := []graph.RelDescriptor{
		{Type: "REALIZED_BY", From: "Fund Accounting", To: "NAV Calculation"},
	}

	s := NewSerializer(nil, 0)
	out := s.Serialize(singleAnchor(root, related, rels), planner.PersonaExecutive)

	assert.Contains(t, out, "### Fund Accounting (Capability)")
	assert.Contains(t, out, "  - NAV Calculation (Process)\n")
	assert.NotContains(t, out, "Computes NAV")
	assert.NotContains(t, out, "Relationships:")
}

func TestSerializeManager(t *testing.T) {
	t.Parallel()

	longDesc := strings.Repeat("x", 150)
	root := renderEntity("1", "Fund Accounting", "Capability", "")
	related := []*graph.Entity{
		renderEntity("2", "NAV Calculation", "Process", longDesc),
		renderEntity("3", "Rebalancing", "Process", ""),
	}

	var rels []graph.RelDescriptor
	for i := 0; i < 12; i++ {
		rels = append(rels, graph.RelDescriptor{
			Type: "DECOMPOSES",
			From: "NAV Calculation",
			To:   fmt.Sprintf("Step %d", i),
		})
	}

	s := NewSerializer(nil, 0)
	out := s.Serialize(singleAnchor(root, related, rels), planner.PersonaManager)

	t.Run("DescriptionClippedTo100", func(t *testing.T) {
		assert.Contains(t, out, "  - NAV Calculation: "+strings.Repeat("x", 100)+"\n")
		assert.NotContains(t, out, strings.Repeat("x", 101))
	})

	t.Run("NameOnlyWhenNoDescription", func(t *testing.T) {
		assert.Contains(t, out, "  - Rebalancing\n")
	})

	t.Run("RelationshipLinesCappedAtTen", func(t *testing.T) {
		assert.Contains(t, out, "  Relationships:\n")
		assert.Equal(t, 10, strings.Count(out, "--[DECOMPOSES]-->"))
		assert.Contains(t, out, "    - NAV Calculation --[DECOMPOSES]--> Step 0\n")
		assert.NotContains(t, out, "Step 10")
	})
}

func TestSerializeAnalyst(t *testing.T) {
	t.Parallel()

	h := testHydration(t, `{
		"Price Validation": {
			"application": "PriceMaster",
			"api": "/prices/validate"
		}
	}`)

	root := renderEntity("1", "Fund Accounting", "Capability", "")
	related := []*graph.Entity{
		renderEntity("2", "Price Validation", "Subprocess", "Checks vendor prices"),
		renderEntity("3", "Rebalancing", "Process", ""),
	}
	rels := []graph.RelDescriptor{
		{Type: "DECOMPOSES", From: "NAV Calculation", To: "Price Validation"},
	}

	s := NewSerializer(h, 0)
	out := s.Serialize(singleAnchor(root, related, rels), planner.PersonaAnalyst)

	t.Run("FullLineWithLabels", func(t *testing.T) {
		assert.Contains(t, out, "  - [Subprocess] Price Validation: Checks vendor prices\n")
	})

	t.Run("SubprocessApplicationAndAPI", func(t *testing.T) {
		assert.Contains(t, out, "      Application: PriceMaster\n")
		assert.Contains(t, out, "      API: /prices/validate\n")
	})

	t.Run("NameOnlyWhenNothingHydrates", func(t *testing.T) {
		assert.Contains(t, out, "  - [Process] Rebalancing\n")
	})

	t.Run("RelationshipsIncluded", func(t *testing.T) {
		assert.Contains(t, out, "    - NAV Calculation --[DECOMPOSES]--> Price Validation\n")
	})
}

func TestSerializeVerbosityOrdering(t *testing.T) {
	t.Parallel()

	root := renderEntity("1", "Fund Accounting", "Capability", "Keeps the books")
	related := []*graph.Entity{
		renderEntity("2", "NAV Calculation", "Process", "Computes daily NAV"),
		renderEntity("3", "Price Validation", "Subprocess", "Checks vendor prices"),
	}
	rels := []graph.RelDescriptor{
		{Type: "REALIZED_BY", From: "Fund Accounting", To: "NAV Calculation"},
		{Type: "DECOMPOSES", From: "NAV Calculation", To: "Price Validation"},
	}

	s := NewSerializer(nil, 0)
	executive := s.Serialize(singleAnchor(root, related, rels), planner.PersonaExecutive)
	manager := s.Serialize(singleAnchor(root, related, rels), planner.PersonaManager)
	analyst := s.Serialize(singleAnchor(root, related, rels), planner.PersonaAnalyst)

	assert.GreaterOrEqual(t, len(analyst), len(manager))
	assert.Greater(t, len(manager), len(executive))
}

func TestSerializeHydratedDescription(t *testing.T) {
	t.Parallel()

	h := testHydration(t, `{
		"NAV Calculation": {"description": "Daily net asset value run"}
	}`)

	root := renderEntity("1", "Fund Accounting", "Capability", "")
	related := []*graph.Entity{
		renderEntity("2", "NAV Calculation", "Process", ""),
	}

	s := NewSerializer(h, 0)
	out := s.Serialize(singleAnchor(root, related, nil), planner.PersonaManager)

	assert.Contains(t, out, "  - NAV Calculation: Daily net asset value run\n")
}

func TestSerializeBudgetTruncation(t *testing.T) {
	t.Parallel()

	s := NewSerializer(nil, 10)
	out := s.Serialize([]AnchorContext{{Anchor: "Fund Accounting"}}, planner.PersonaManager)

	assert.Equal(t, "- Fund Acc", out)
}
