// Package graph provides the data model for the business capability
// knowledge graph.
//
// It defines the node and relationship types that represent enterprise
// entities (capabilities, processes, sub-processes, data entities and
// elements, organization units, applications) and the typed edges between
// them, plus the flat traversal records stores return and the subtree
// reconstruction that turns those records into nested trees.
package graph

import (
	"fmt"
	"strings"
)

// NodeLabel represents the type of a graph node.
type NodeLabel string

const (
	LabelCapability  NodeLabel = "Capability"
	LabelProcess     NodeLabel = "Process"
	LabelSubprocess  NodeLabel = "Subprocess"
	LabelDataEntity  NodeLabel = "DataEntity"
	LabelDataElement NodeLabel = "DataElements"
	LabelOrgUnit     NodeLabel = "OrganizationUnit"
	LabelApplication NodeLabel = "ApplicationCatalog"
)

// BusinessLabels lists every label the model knows, decomposition order first.
var BusinessLabels = []NodeLabel{
	LabelCapability,
	LabelProcess,
	LabelSubprocess,
	LabelDataEntity,
	LabelDataElement,
	LabelOrgUnit,
	LabelApplication,
}

// AnchorLabels are the labels whose names make up the resolvable catalog.
var AnchorLabels = []NodeLabel{LabelCapability, LabelProcess, LabelSubprocess}

// RelType represents the type of relationship between graph nodes.
type RelType string

const (
	RelRealizedBy  RelType = "REALIZED_BY"  // Capability -> Process
	RelDecomposes  RelType = "DECOMPOSES"   // Process -> Subprocess
	RelUsesData    RelType = "USES_DATA"    // Subprocess -> DataEntity
	RelHasElement  RelType = "HAS_ELEMENT"  // DataEntity -> DataElements
	RelAccountable RelType = "ACCOUNTABLE"  // Capability -> OrganizationUnit
	RelSupportedBy RelType = "SUPPORTED_BY" // Subprocess -> ApplicationCatalog
)

// labelAliases maps CLI/tool entity-type spellings to node labels.
var labelAliases = map[string]NodeLabel{
	"capability":         LabelCapability,
	"process":            LabelProcess,
	"subprocess":         LabelSubprocess,
	"dataentity":         LabelDataEntity,
	"dataelement":        LabelDataElement,
	"dataelements":       LabelDataElement,
	"orgunit":            LabelOrgUnit,
	"orgunits":           LabelOrgUnit,
	"organizationunit":   LabelOrgUnit,
	"application":        LabelApplication,
	"applicationcatalog": LabelApplication,
}

// LabelForAlias resolves an entity-type alias (case-insensitive) to its
// node label. The error lists the accepted spellings.
func LabelForAlias(alias string) (NodeLabel, error) {
	if label, ok := labelAliases[strings.ToLower(strings.TrimSpace(alias))]; ok {
		return label, nil
	}
	return "", fmt.Errorf("unknown entity type %q (expected one of: capability, process, subprocess, dataentity, dataelement, orgunit, application)", alias)
}

// Entity represents a node in the knowledge graph as returned by a store.
type Entity struct {
	// InternalID is the store identity of the node (Neo4j element id or
	// local snapshot key). Node maps are keyed by it.
	InternalID string

	// UID is the stable business identifier, unique per label.
	UID int64

	// Name is the human-facing key. Unique per label; anchors resolve to it.
	Name string

	// Labels holds the node's labels. Business nodes carry exactly one.
	Labels []string

	// Properties holds the full property map, including uid and name.
	Properties map[string]any
}

// PrimaryLabel returns the first label, or an empty string for a bare node.
func (e *Entity) PrimaryLabel() string {
	if len(e.Labels) == 0 {
		return ""
	}
	return e.Labels[0]
}

// Description returns the label-appropriate description property, or an
// empty string when the node carries none.
func (e *Entity) Description() string {
	for _, key := range []string{"description", "data_entity_description", "data_element_description"} {
		if v, ok := e.Properties[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// Relationship represents a directed typed edge between two entities.
type Relationship struct {
	// InternalID is the store identity of the edge; duplicates across
	// overlapping paths are collapsed by it.
	InternalID string

	// Type is the relationship type, e.g. REALIZED_BY.
	Type string

	// StartID and EndID reference the endpoint nodes by internal identity.
	StartID string
	EndID   string

	// StartName and EndName carry the endpoint names for serialization.
	StartName string
	EndName   string
}

// FlatRecord is one row of a traversal result: a node observed at the given
// path length, optionally together with one relationship from the same path.
type FlatRecord struct {
	Node  *Entity
	Rel   *Relationship
	Depth int
}

// FlatResult is everything a store returns for one traversal. Root is
// fetched independently of the traversal and is always present, even when
// no related records exist.
type FlatResult struct {
	Root    *Entity
	Records []FlatRecord
}
