package store

import (
	"github.com/vmoffice/capgraph/internal/graph"
)

func testEntity(id string, uid int64, name string, label graph.NodeLabel, desc string) *graph.Entity {
	props := map[string]any{"uid": uid, "name": name}
	if desc != "" {
		switch label {
		case graph.LabelDataEntity:
			props["data_entity_description"] = desc
		case graph.LabelDataElement:
			props["data_element_description"] = desc
		default:
			props["description"] = desc
		}
	}
	return &graph.Entity{
		InternalID: id,
		UID:        uid,
		Name:       name,
		Labels:     []string{string(label)},
		Properties: props,
	}
}

func testEdge(id, relType, startID, endID, startName, endName string) *graph.Relationship {
	return &graph.Relationship{
		InternalID: id,
		Type:       relType,
		StartID:    startID,
		EndID:      endID,
		StartName:  startName,
		EndName:    endName,
	}
}

// fixtureNodes and fixtureRels describe a small two-capability graph:
//
//	Fund Accounting -REALIZED_BY-> NAV Calculation -DECOMPOSES-> Price Validation
//	Price Validation -USES_DATA-> Position -HAS_ELEMENT-> ISIN
//	Portfolio Management -REALIZED_BY-> Rebalancing
func fixtureNodes() []*graph.Entity {
	return []*graph.Entity{
		testEntity("n1", 1, "Fund Accounting", graph.LabelCapability, "Accounting for investment funds"),
		testEntity("n2", 2, "NAV Calculation", graph.LabelProcess, "Daily net asset value calculation"),
		testEntity("n3", 3, "Price Validation", graph.LabelSubprocess, "Validates vendor prices"),
		testEntity("n4", 4, "Position", graph.LabelDataEntity, "Holdings per fund"),
		testEntity("n5", 5, "ISIN", graph.LabelDataElement, "Instrument identifier"),
		testEntity("n6", 6, "Portfolio Management", graph.LabelCapability, "Managing portfolios"),
		testEntity("n7", 7, "Rebalancing", graph.LabelProcess, "Periodic rebalancing"),
	}
}

func fixtureRels() []*graph.Relationship {
	return []*graph.Relationship{
		testEdge("r1", "REALIZED_BY", "n1", "n2", "Fund Accounting", "NAV Calculation"),
		testEdge("r2", "DECOMPOSES", "n2", "n3", "NAV Calculation", "Price Validation"),
		testEdge("r3", "USES_DATA", "n3", "n4", "Price Validation", "Position"),
		testEdge("r4", "HAS_ELEMENT", "n4", "n5", "Position", "ISIN"),
		testEdge("r5", "REALIZED_BY", "n6", "n7", "Portfolio Management", "Rebalancing"),
	}
}

func seedMemory() *MemoryStore {
	m := NewMemoryStore()
	for _, n := range fixtureNodes() {
		m.AddEntity(n)
	}
	for _, r := range fixtureRels() {
		m.AddRelationship(r)
	}
	return m
}
