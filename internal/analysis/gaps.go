// Package analysis scans the graph for structural modeling gaps, label by
// label.
package analysis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vmoffice/capgraph/internal/graph"
)

// Scanner is the slice of store access the gap scan needs.
type Scanner interface {
	NodesByLabel(ctx context.Context, label graph.NodeLabel) ([]*graph.Entity, error)
	EdgeEndpoints(ctx context.Context, relType string, direction graph.Direction) (map[string]bool, error)
}

// Gap is one disconnected entity and the check it failed.
type Gap struct {
	Label  string `json:"label"`
	Name   string `json:"name"`
	UID    int64  `json:"uid"`
	Reason string `json:"reason"`
}

// Report groups the found gaps by label.
type Report struct {
	Total   int              `json:"total"`
	ByLabel map[string][]Gap `json:"by_label"`
}

// FindGaps checks every business label for entities the model leaves
// structurally disconnected: capabilities no process realizes, processes
// outside the capability decomposition, subprocesses that touch no data,
// data entities without elements or readers, and leaf entities with no
// edges at all. Edge endpoint sets are fetched once per check, not per
// node.
func FindGaps(ctx context.Context, sc Scanner, log *zap.Logger) (*Report, error) {
	if log == nil {
		log = zap.NewNop()
	}

	endpoints := func(relType graph.RelType, dir graph.Direction) (map[string]bool, error) {
		set, err := sc.EdgeEndpoints(ctx, string(relType), dir)
		if err != nil {
			return nil, fmt.Errorf("scan %s edges: %w", relType, err)
		}
		return set, nil
	}

	realizedOut, err := endpoints(graph.RelRealizedBy, graph.DirectionOutgoing)
	if err != nil {
		return nil, err
	}
	realizedIn, err := endpoints(graph.RelRealizedBy, graph.DirectionIncoming)
	if err != nil {
		return nil, err
	}
	decomposesOut, err := endpoints(graph.RelDecomposes, graph.DirectionOutgoing)
	if err != nil {
		return nil, err
	}
	usesOut, err := endpoints(graph.RelUsesData, graph.DirectionOutgoing)
	if err != nil {
		return nil, err
	}
	usesIn, err := endpoints(graph.RelUsesData, graph.DirectionIncoming)
	if err != nil {
		return nil, err
	}
	hasElementOut, err := endpoints(graph.RelHasElement, graph.DirectionOutgoing)
	if err != nil {
		return nil, err
	}
	anyEdge, err := sc.EdgeEndpoints(ctx, "", graph.DirectionBoth)
	if err != nil {
		return nil, fmt.Errorf("scan edges: %w", err)
	}

	checks := []struct {
		label     graph.NodeLabel
		connected map[string]bool
		reason    string
	}{
		{graph.LabelCapability, realizedOut, "not realized by any process"},
		{graph.LabelProcess, realizedIn, "does not realize any capability"},
		{graph.LabelProcess, decomposesOut, "not decomposed into subprocesses"},
		{graph.LabelSubprocess, usesOut, "uses no data entity"},
		{graph.LabelDataEntity, hasElementOut, "has no data elements"},
		{graph.LabelDataEntity, usesIn, "not used by any subprocess"},
		{graph.LabelDataElement, anyEdge, "no relationships at all"},
		{graph.LabelOrgUnit, anyEdge, "no relationships at all"},
		{graph.LabelApplication, anyEdge, "no relationships at all"},
	}

	nodesByLabel := make(map[graph.NodeLabel][]*graph.Entity)
	fetch := func(label graph.NodeLabel) ([]*graph.Entity, error) {
		if nodes, ok := nodesByLabel[label]; ok {
			return nodes, nil
		}
		nodes, err := sc.NodesByLabel(ctx, label)
		if err != nil {
			return nil, fmt.Errorf("scan %s nodes: %w", label, err)
		}
		nodesByLabel[label] = nodes
		return nodes, nil
	}

	report := &Report{ByLabel: make(map[string][]Gap)}
	for _, c := range checks {
		nodes, err := fetch(c.label)
		if err != nil {
			return nil, err
		}
		for _, node := range nodes {
			if c.connected[node.InternalID] {
				continue
			}
			report.ByLabel[string(c.label)] = append(report.ByLabel[string(c.label)], Gap{
				Label:  string(c.label),
				Name:   node.Name,
				UID:    node.UID,
				Reason: c.reason,
			})
			report.Total++
		}
	}

	log.Info("gap scan complete", zap.Int("gaps", report.Total))
	return report, nil
}
