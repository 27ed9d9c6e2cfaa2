package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmoffice/capgraph/internal/config"
	"github.com/vmoffice/capgraph/internal/graph"
	"github.com/vmoffice/capgraph/internal/planner"
	"github.com/vmoffice/capgraph/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Vertical:         "Investment Management",
		Home:             t.TempDir(),
		MetadataPath:     filepath.Join(t.TempDir(), "metadata.json"),
		FuzzyThreshold:   config.DefaultFuzzyThreshold,
		NgramThreshold:   config.DefaultNgramThreshold,
		SuggestThreshold: config.DefaultSuggestThreshold,
		MaxDepth:         config.DefaultMaxDepth,
		ContextBudget:    config.DefaultContextBudget,
	}
}

func engineEntity(id string, uid int64, name, label, descKey, desc string) *graph.Entity {
	props := map[string]any{"uid": uid, "name": name}
	if desc != "" {
		props[descKey] = desc
	}
	return &graph.Entity{
		InternalID: id,
		UID:        uid,
		Name:       name,
		Labels:     []string{label},
		Properties: props,
	}
}

// seedEngineStore builds the decomposition chain
// Fund Accounting -> NAV Calculation -> Price Validation -> Position ->
// ISIN, plus Portfolio Management -> Rebalancing.
func seedEngineStore() *store.MemoryStore {
	m := store.NewMemoryStore()

	m.AddEntity(engineEntity("n1", 1, "Fund Accounting", "Capability", "description", "Maintains fund books and records"))
	m.AddEntity(engineEntity("n2", 10, "NAV Calculation", "Process", "description", "Computes daily net asset value"))
	m.AddEntity(engineEntity("n3", 20, "Price Validation", "Subprocess", "description", "Checks vendor prices"))
	m.AddEntity(engineEntity("n4", 30, "Position", "DataEntity", "data_entity_description", "Holdings per fund"))
	m.AddEntity(engineEntity("n5", 40, "ISIN", "DataElements", "data_element_description", "Security identifier"))
	m.AddEntity(engineEntity("n6", 2, "Portfolio Management", "Capability", "description", "Allocates assets"))
	m.AddEntity(engineEntity("n7", 11, "Rebalancing", "Process", "description", "Restores target weights"))

	m.AddRelationship(&graph.Relationship{InternalID: "r1", Type: "REALIZED_BY", StartID: "n1", EndID: "n2", StartName: "Fund Accounting", EndName: "NAV Calculation"})
	m.AddRelationship(&graph.Relationship{InternalID: "r2", Type: "DECOMPOSES", StartID: "n2", EndID: "n3", StartName: "NAV Calculation", EndName: "Price Validation"})
	m.AddRelationship(&graph.Relationship{InternalID: "r3", Type: "USES_DATA", StartID: "n3", EndID: "n4", StartName: "Price Validation", EndName: "Position"})
	m.AddRelationship(&graph.Relationship{InternalID: "r4", Type: "HAS_ELEMENT", StartID: "n4", EndID: "n5", StartName: "Position", EndName: "ISIN"})
	m.AddRelationship(&graph.Relationship{InternalID: "r5", Type: "REALIZED_BY", StartID: "n6", EndID: "n7", StartName: "Portfolio Management", EndName: "Rebalancing"})

	return m
}

func newTestEngine(t *testing.T, st store.GraphStore) *Engine {
	t.Helper()
	return New(context.Background(), st, "memory", testConfig(t), nil)
}

func TestAskSuccess(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, seedEngineStore())
	res, err := e.Ask(context.Background(), "How does Fund Accounting support Portfolio Management reporting?", "", nil)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, res.Status)

	t.Run("PlanEchoedVerbatim", func(t *testing.T) {
		require.NotNil(t, res.Plan)
		assert.Equal(t, []string{"Portfolio Management", "Fund Accounting"}, res.Plan.PrimaryAnchors)
		assert.Equal(t, planner.IntentInformational, res.Plan.Intent)
		assert.Equal(t, planner.PersonaManager, res.Plan.Persona)
		assert.Equal(t, 2, res.Plan.DepthScope)
		assert.True(t, res.Plan.IsComparison)
	})

	t.Run("ContextHasBothAnchorBlocks", func(t *testing.T) {
		assert.Contains(t, res.GraphContext, "### Portfolio Management (Capability)")
		assert.Contains(t, res.GraphContext, "### Fund Accounting (Capability)")
		assert.Contains(t, res.GraphContext, "  - NAV Calculation: Computes daily net asset value\n")
		assert.Contains(t, res.GraphContext, "    - Fund Accounting --[REALIZED_BY]--> NAV Calculation\n")
	})

	t.Run("PromptCarriesAnchorsAndContext", func(t *testing.T) {
		assert.Contains(t, res.Prompt, "[Target Entity: Portfolio Management, Fund Accounting]")
		assert.Contains(t, res.Prompt, "side-by-side comparison")
		assert.Contains(t, res.Prompt, res.GraphContext)
	})
}

func TestAskDepthOverride(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, seedEngineStore())

	t.Run("ShallowerThanPlan", func(t *testing.T) {
		depth := 1
		res, err := e.Ask(context.Background(), "Tell me about Fund Accounting", "", &depth)
		require.NoError(t, err)
		require.Equal(t, StatusSuccess, res.Status)
		assert.Equal(t, 1, res.Plan.DepthScope)
		assert.Contains(t, res.GraphContext, "NAV Calculation")
		assert.NotContains(t, res.GraphContext, "Price Validation")
	})

	t.Run("ClampedToHardCap", func(t *testing.T) {
		depth := 50
		res, err := e.Ask(context.Background(), "Tell me about Fund Accounting", "", &depth)
		require.NoError(t, err)
		assert.Equal(t, config.DefaultMaxDepth, res.Plan.DepthScope)
	})

	t.Run("NonPositiveIgnored", func(t *testing.T) {
		depth := 0
		res, err := e.Ask(context.Background(), "Tell me about Fund Accounting", "", &depth)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Plan.DepthScope)
	})
}

func TestAskNoMatch(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, seedEngineStore())

	t.Run("NothingResolvesNothingSuggested", func(t *testing.T) {
		res, err := e.Ask(context.Background(), "zzz qqq vvv", "", nil)
		require.NoError(t, err)
		assert.Equal(t, StatusNoMatch, res.Status)
		assert.Equal(t, "Could not identify any entities in your query", res.Message)
		assert.Empty(t, res.Suggestions)
		assert.Len(t, res.CatalogSample, 5)
		assert.Nil(t, res.Plan)
	})

	t.Run("NearMissBecomesSuggestion", func(t *testing.T) {
		res, err := e.Ask(context.Background(), "tell me about fund accnting please", "", nil)
		require.NoError(t, err)
		assert.Equal(t, StatusNoMatch, res.Status)
		assert.Equal(t, []string{"Fund Accounting"}, res.Suggestions)
	})
}

func TestAskEmptyCatalog(t *testing.T) {
	t.Parallel()

	st := store.NewMemoryStore()
	st.CatalogErr = errors.New("connection refused")

	e := newTestEngine(t, st)
	res, err := e.Ask(context.Background(), "How does Fund Accounting work?", "", nil)
	require.NoError(t, err)

	assert.Equal(t, StatusNoMatch, res.Status)
	assert.Empty(t, res.Suggestions)
	assert.Empty(t, res.CatalogSample)
}

func TestAskTraversalFailureDegrades(t *testing.T) {
	t.Parallel()

	st := seedEngineStore()
	st.TraverseErr = errors.New("deadline exceeded")

	e := newTestEngine(t, st)
	res, err := e.Ask(context.Background(), "Fund Accounting overview", "", nil)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Contains(t, res.GraphContext, "- Fund Accounting: No data found in graph")
	assert.Contains(t, res.Prompt, "No data found in graph")
}

func TestAskIntrospectionFailureWidensTraversal(t *testing.T) {
	t.Parallel()

	st := seedEngineStore()
	st.IntrospectErr = errors.New("introspection not permitted")

	e := newTestEngine(t, st)
	res, err := e.Ask(context.Background(), "Tell me about Fund Accounting", "", nil)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Contains(t, res.GraphContext, "NAV Calculation")
}

func TestSubtree(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, seedEngineStore())

	t.Run("DefaultDepthIsHardCap", func(t *testing.T) {
		rec, err := e.Subtree(context.Background(), "capability", "Fund Accounting", nil, nil, "")
		require.NoError(t, err)
		assert.Equal(t, 4, rec.MaxDepth)
		assert.Len(t, rec.Related, 4)
		assert.Contains(t, rec.Root.Relationships, "REALIZED_BY")
	})

	t.Run("ExplicitDepthBounds", func(t *testing.T) {
		depth := 1
		rec, err := e.Subtree(context.Background(), "capability", "Fund Accounting", nil, &depth, "outgoing")
		require.NoError(t, err)
		assert.Len(t, rec.Related, 1)
		assert.Equal(t, "NAV Calculation", rec.Related[0].Name)
	})

	t.Run("OversizedDepthClamps", func(t *testing.T) {
		depth := 50
		rec, err := e.Subtree(context.Background(), "capability", "Fund Accounting", nil, &depth, "outgoing")
		require.NoError(t, err)
		assert.Equal(t, 4, rec.MaxDepth)
	})

	t.Run("ZeroDepthRejected", func(t *testing.T) {
		depth := 0
		_, err := e.Subtree(context.Background(), "capability", "Fund Accounting", nil, &depth, "outgoing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "depth must be positive")
	})

	t.Run("ByUID", func(t *testing.T) {
		uid := int64(1)
		rec, err := e.Subtree(context.Background(), "capability", "", &uid, nil, "outgoing")
		require.NoError(t, err)
		assert.Equal(t, "Fund Accounting", rec.RootEntity.Name)
	})

	t.Run("UnknownEntityType", func(t *testing.T) {
		_, err := e.Subtree(context.Background(), "widget", "Fund Accounting", nil, nil, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown entity type")
	})

	t.Run("UnknownDirection", func(t *testing.T) {
		_, err := e.Subtree(context.Background(), "capability", "Fund Accounting", nil, nil, "sideways")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid direction")
	})

	t.Run("MissingRoot", func(t *testing.T) {
		_, err := e.Subtree(context.Background(), "capability", "Nonexistent", nil, nil, "")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestNodeProperties(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, seedEngineStore())

	props, err := e.NodeProperties(context.Background(), "dataentity", "Position", nil)
	require.NoError(t, err)
	assert.Equal(t, "Holdings per fund", props["data_entity_description"])

	_, err = e.NodeProperties(context.Background(), "capability", "Nonexistent", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = e.NodeProperties(context.Background(), "widget", "Position", nil)
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, seedEngineStore())
	matches := e.Resolve("Fund Acounting")

	require.NotEmpty(t, matches)
	assert.Equal(t, "Fund Accounting", matches[0].Name)
	assert.Equal(t, 93, matches[0].Score)
	assert.LessOrEqual(t, len(matches), 5)
}

func TestGaps(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, seedEngineStore())
	report, err := e.Gaps(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Total)
	require.Len(t, report.ByLabel["Process"], 1)
	assert.Equal(t, "Rebalancing", report.ByLabel["Process"][0].Name)
	assert.Equal(t, "not decomposed into subprocesses", report.ByLabel["Process"][0].Reason)
}

func TestCypherUnsupported(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, seedEngineStore())
	_, err := e.Cypher(context.Background(), "MATCH (n) RETURN n", nil)
	assert.ErrorIs(t, err, store.ErrUnsupported)
}

func TestCatalogReload(t *testing.T) {
	t.Parallel()

	st := seedEngineStore()
	e := newTestEngine(t, st)
	require.Len(t, e.CatalogNames(), 5)

	st.AddEntity(engineEntity("n8", 3, "Client Reporting", "Capability", "description", "Produces client statements"))
	require.NoError(t, e.ReloadCatalog(context.Background()))
	assert.Len(t, e.CatalogNames(), 6)
}
