// Package mcp provides the MCP (Model Context Protocol) server for capgraph.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vmoffice/capgraph/internal/analysis"
	"github.com/vmoffice/capgraph/internal/engine"
	"github.com/vmoffice/capgraph/internal/graph"
	"github.com/vmoffice/capgraph/internal/planner"
	"github.com/vmoffice/capgraph/internal/render"
	"github.com/vmoffice/capgraph/internal/store"
)

// Server represents the MCP server.
type Server struct {
	engine QueryEngine
	server *mcp.Server
}

// QueryEngine defines the query surface the MCP server exposes.
type QueryEngine interface {
	Ask(ctx context.Context, query, role string, depth *int) (*engine.AskResult, error)
	Subtree(ctx context.Context, entityType, name string, uid *int64, depth *int, direction string) (*graph.Reconstruction, error)
	NodeProperties(ctx context.Context, entityType, name string, uid *int64) (map[string]any, error)
	Resolve(name string) []planner.Suggestion
	Gaps(ctx context.Context) (*analysis.Report, error)
	Cypher(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	CatalogNames() []string
	RelationshipTypes(ctx context.Context) ([]string, error)
	Counts(ctx context.Context) (map[string]int, error)
	StoreKind() string
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server over a query engine.
func NewServer(eng QueryEngine) *Server {
	s := &Server{
		engine: eng,
	}

	// Create MCP server
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "capgraph",
		Version: "0.1.0",
	}, nil)

	// Register tools
	s.registerTools()

	// Register resources
	s.registerResources()

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "capgraph_ask",
			Description: "Answer a natural-language question about the enterprise model. Resolves entity anchors, plans a traversal and returns the grounded graph context.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {Type: "string", Description: "Natural-language question"},
					"role":  {Type: "string", Description: "Audience persona override: Executive, Manager or Analyst"},
					"depth": {Type: "integer", Description: "Traversal depth override"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "capgraph_subtree",
			Description: "Expand one entity into its full decomposition tree, rendered as markdown with per-label counts.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"entity_type": {Type: "string", Description: "Entity type: capability, process, subprocess, dataentity, dataelement, orgunit or application"},
					"name":        {Type: "string", Description: "Exact entity name"},
					"uid":         {Type: "integer", Description: "Stable entity uid; takes precedence over name"},
					"depth":       {Type: "integer", Description: "Maximum traversal depth"},
					"direction":   {Type: "string", Description: "Traversal direction: outgoing, incoming or both"},
				},
				Required: []string{"entity_type"},
			},
		},
		{
			Name:        "capgraph_node",
			Description: "Fetch the raw property map of a single entity.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"entity_type": {Type: "string", Description: "Entity type: capability, process, subprocess, dataentity, dataelement, orgunit or application"},
					"name":        {Type: "string", Description: "Exact entity name"},
					"uid":         {Type: "integer", Description: "Stable entity uid; takes precedence over name"},
				},
				Required: []string{"entity_type"},
			},
		},
		{
			Name:        "capgraph_resolve",
			Description: "Fuzzy-match an approximate name against the entity catalog and return the best-scoring candidates.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"name": {Type: "string", Description: "Approximate entity name"},
				},
				Required: []string{"name"},
			},
		},
		{
			Name:        "capgraph_catalog",
			Description: "List every entity name known to anchor resolution.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "capgraph_gaps",
			Description: "Audit the model for structurally disconnected entities: unrealized capabilities, undecomposed processes, unused data.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "capgraph_cypher",
			Description: "Execute a raw Cypher query against the graph (Neo4j-backed stores only).",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {Type: "string", Description: "Cypher query string"},
				},
				Required: []string{"query"},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "capgraph://overview",
			Name:        "Graph Overview",
			Description: "Node counts per label and the relationship vocabulary of the connected store",
			MimeType:    "text/plain",
		},
		{
			URI:         "capgraph://catalog",
			Name:        "Entity Catalog",
			Description: "Every entity name anchor resolution can match against",
			MimeType:    "text/plain",
		},
		{
			URI:         "capgraph://schema",
			Name:        "Graph Schema",
			Description: "Node labels and relationship types of the enterprise meta-model",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "capgraph_ask":
		query, _ := args["query"].(string)
		role, _ := args["role"].(string)
		return handleAsk(ctx, s.engine, query, role, optionalInt(args, "depth"))
	case "capgraph_subtree":
		entityType, _ := args["entity_type"].(string)
		entityName, _ := args["name"].(string)
		direction, _ := args["direction"].(string)
		return handleSubtree(ctx, s.engine, entityType, entityName, optionalInt64(args, "uid"), optionalInt(args, "depth"), direction)
	case "capgraph_node":
		entityType, _ := args["entity_type"].(string)
		entityName, _ := args["name"].(string)
		return handleNode(ctx, s.engine, entityType, entityName, optionalInt64(args, "uid"))
	case "capgraph_resolve":
		target, _ := args["name"].(string)
		return handleResolve(s.engine, target)
	case "capgraph_catalog":
		return handleCatalog(s.engine)
	case "capgraph_gaps":
		return handleGaps(ctx, s.engine)
	case "capgraph_cypher":
		query, _ := args["query"].(string)
		return handleCypher(ctx, s.engine, query)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "capgraph://overview":
		return getOverview(ctx, s.engine), nil
	case "capgraph://catalog":
		return getCatalogList(s.engine), nil
	case "capgraph://schema":
		return getSchema(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// Note: Do NOT use SetIndent - MCP protocol requires compact JSON (one line per message)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		// Parse JSON-RPC request
		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		// Handle request
		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    "capgraph",
				"version": "0.1.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// Tool Handlers

func handleAsk(ctx context.Context, eng QueryEngine, query, role string, depth *int) (string, error) {
	if query == "" {
		return "No query provided", nil
	}

	res, err := eng.Ask(ctx, query, role, depth)
	if err != nil {
		return "", err
	}

	if res.Status == engine.StatusNoMatch {
		return formatNoMatch(res), nil
	}
	return formatAskResult(res), nil
}

// formatAskResult formats a successful ask outcome as markdown. The
// serialized context is passed through verbatim; the plan fields are
// surfaced so the caller can see what was resolved and why.
func formatAskResult(res *engine.AskResult) string {
	var sb strings.Builder
	plan := res.Plan

	sb.WriteString("## Query Plan\n\n")
	sb.WriteString(fmt.Sprintf("**Anchors:** %s\n", strings.Join(plan.PrimaryAnchors, ", ")))
	sb.WriteString(fmt.Sprintf("**Intent:** %s\n", plan.Intent))
	sb.WriteString(fmt.Sprintf("**Persona:** %s\n", plan.Persona))
	sb.WriteString(fmt.Sprintf("**Depth:** %d\n", plan.DepthScope))
	if plan.IsComparison {
		sb.WriteString("**Comparison:** yes\n")
	}

	sb.WriteString("\n## Graph Context\n")
	sb.WriteString(res.GraphContext)

	sb.WriteString("\nNext: Use `capgraph_subtree` on an anchor for its full decomposition tree.")

	return sb.String()
}

// formatNoMatch formats the zero-anchor outcome with its disambiguation
// material.
func formatNoMatch(res *engine.AskResult) string {
	var sb strings.Builder
	sb.WriteString("## No Entities Matched\n\n")
	sb.WriteString(res.Message + "\n")

	if len(res.Suggestions) > 0 {
		sb.WriteString("\n**Did you mean:**\n")
		for _, name := range res.Suggestions {
			sb.WriteString(fmt.Sprintf("- %s\n", name))
		}
	}

	if len(res.CatalogSample) > 0 {
		sb.WriteString("\n**Catalog sample:**\n")
		for _, name := range res.CatalogSample {
			sb.WriteString(fmt.Sprintf("- %s\n", name))
		}
	}

	sb.WriteString("\nNext: Use `capgraph_resolve` to score a specific name against the catalog.")

	return sb.String()
}

func handleSubtree(ctx context.Context, eng QueryEngine, entityType, name string, uid *int64, depth *int, direction string) (string, error) {
	if entityType == "" {
		return "No entity type provided", nil
	}
	if name == "" && uid == nil {
		return "Provide a name or uid to identify the root entity", nil
	}

	rec, err := eng.Subtree(ctx, entityType, name, uid, depth, direction)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("No %s found in the graph", refString(entityType, name, uid)), nil
		}
		return "", err
	}

	return render.Markdown(rec), nil
}

func handleNode(ctx context.Context, eng QueryEngine, entityType, name string, uid *int64) (string, error) {
	if entityType == "" {
		return "No entity type provided", nil
	}
	if name == "" && uid == nil {
		return "Provide a name or uid to identify the entity", nil
	}

	props, err := eng.NodeProperties(ctx, entityType, name, uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("No %s found in the graph", refString(entityType, name, uid)), nil
		}
		return "", err
	}

	return formatProperties(props), nil
}

// formatProperties renders a property map with sorted keys so the output
// is stable across calls.
func formatProperties(props map[string]any) string {
	var sb strings.Builder

	title, _ := props["name"].(string)
	if title == "" {
		title = "Node"
	}
	sb.WriteString(fmt.Sprintf("## %s\n\n", title))

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("- **%s:** %v\n", k, props[k]))
	}

	return sb.String()
}

func handleResolve(eng QueryEngine, name string) (string, error) {
	if name == "" {
		return "No name provided", nil
	}

	matches := eng.Resolve(name)
	if len(matches) == 0 {
		return "The catalog is empty; nothing to match against. Is the store reachable?", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Top matches for '%s':\n\n", name))
	for i, m := range matches {
		sb.WriteString(fmt.Sprintf("%d. **%s** (score %d)\n", i+1, m.Name, m.Score))
	}
	sb.WriteString("\nNext: Use `capgraph_subtree` with an exact name to expand an entity.")

	return sb.String(), nil
}

func handleCatalog(eng QueryEngine) (string, error) {
	return getCatalogList(eng), nil
}

func handleGaps(ctx context.Context, eng QueryEngine) (string, error) {
	report, err := eng.Gaps(ctx)
	if err != nil {
		return "Gap scan failed: " + err.Error(), nil
	}

	var sb strings.Builder
	sb.WriteString("## Gap Report\n\n")

	if report.Total == 0 {
		sb.WriteString("✅ **No structural gaps detected.**\n\n")
		sb.WriteString("Every capability is realized, every process decomposes, and every data entity is both populated and read.\n")
		return sb.String(), nil
	}

	sb.WriteString(fmt.Sprintf("⚠️ **Found %d structural gaps**\n\n", report.Total))

	for _, label := range graph.BusinessLabels {
		gaps := report.ByLabel[string(label)]
		if len(gaps) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("### %s (%d)\n", label, len(gaps)))
		for _, g := range gaps {
			sb.WriteString(fmt.Sprintf("- **%s** (uid %d): %s\n", g.Name, g.UID, g.Reason))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("**Next:** Review each gap with the model owners; disconnected entities are invisible to queries that walk the decomposition chain.")

	return sb.String(), nil
}

func handleCypher(ctx context.Context, eng QueryEngine, query string) (string, error) {
	if query == "" {
		return "No query provided", nil
	}

	rows, err := eng.Cypher(ctx, query, nil)
	if err != nil {
		if errors.Is(err, store.ErrUnsupported) {
			return "Raw Cypher needs a Neo4j-backed store; the local snapshot cannot run it. Reconnect with store mode 'neo4j'.", nil
		}
		return "Cypher query failed: " + err.Error(), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Cypher Result (%d rows)\n\n", len(rows)))
	sb.WriteString(fmt.Sprintf("Query: `%s`\n\n", query))

	for i, row := range rows {
		encoded, err := json.Marshal(row)
		if err != nil {
			sb.WriteString(fmt.Sprintf("%d. <unencodable row: %v>\n", i+1, err))
			continue
		}
		sb.WriteString(fmt.Sprintf("%d. `%s`\n", i+1, encoded))
	}

	return sb.String(), nil
}

// Resource Handlers

func getOverview(ctx context.Context, eng QueryEngine) string {
	var sb strings.Builder
	sb.WriteString("# Capability Graph Overview\n\n")
	sb.WriteString(fmt.Sprintf("**Store:** %s\n", eng.StoreKind()))
	sb.WriteString(fmt.Sprintf("**Catalog names:** %d\n", len(eng.CatalogNames())))

	counts, err := eng.Counts(ctx)
	if err == nil {
		sb.WriteString("\n## Nodes\n\n")
		for _, label := range graph.BusinessLabels {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", label, counts[string(label)]))
		}
	}

	relTypes, err := eng.RelationshipTypes(ctx)
	if err == nil && len(relTypes) > 0 {
		sb.WriteString("\n## Relationship Types\n\n")
		for _, rt := range relTypes {
			sb.WriteString(fmt.Sprintf("- %s\n", rt))
		}
	}

	return sb.String()
}

func getCatalogList(eng QueryEngine) string {
	names := eng.CatalogNames()
	if len(names) == 0 {
		return "The catalog is empty. Connect to a reachable store or rebuild the local snapshot."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Entity Catalog (%d names)\n\n", len(names)))
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("- %s\n", name))
	}
	sb.WriteString("\nNext: Any of these names resolves exactly in `capgraph_ask` and `capgraph_subtree`.")

	return sb.String()
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# Enterprise Model Schema\n\n")
	sb.WriteString("## Node Labels\n\n")
	sb.WriteString("| Label | Description | Key Properties |\n")
	sb.WriteString("|-------|-------------|----------------|\n")
	sb.WriteString("| `Capability` | Business capability | uid, name, description |\n")
	sb.WriteString("| `Process` | Process realizing a capability | uid, name, description |\n")
	sb.WriteString("| `Subprocess` | Operational step within a process | uid, name, description |\n")
	sb.WriteString("| `DataEntity` | Logical data entity | uid, name, data_entity_description |\n")
	sb.WriteString("| `DataElements` | Attribute of a data entity | uid, name, data_element_description |\n")
	sb.WriteString("| `OrganizationUnit` | Accountable organization unit | uid, name |\n")
	sb.WriteString("| `ApplicationCatalog` | Supporting application | uid, name |\n")
	sb.WriteString("\n## Relationship Types\n\n")
	sb.WriteString("| Type | Source → Target |\n")
	sb.WriteString("|------|------------------|\n")
	sb.WriteString("| `REALIZED_BY` | Capability → Process |\n")
	sb.WriteString("| `DECOMPOSES` | Process → Subprocess |\n")
	sb.WriteString("| `USES_DATA` | Subprocess → DataEntity |\n")
	sb.WriteString("| `HAS_ELEMENT` | DataEntity → DataElements |\n")
	sb.WriteString("| `ACCOUNTABLE` | Capability → OrganizationUnit |\n")
	sb.WriteString("| `SUPPORTED_BY` | Subprocess → ApplicationCatalog |\n")

	return sb.String()
}

// Helper functions

// refString names an entity the way the caller addressed it, for
// not-found messages.
func refString(entityType, name string, uid *int64) string {
	if uid != nil {
		return fmt.Sprintf("%s with uid %d", entityType, *uid)
	}
	return fmt.Sprintf("%s named '%s'", entityType, name)
}

// optionalInt reads an integer argument, nil when absent. JSON numbers
// arrive as float64.
func optionalInt(args map[string]any, key string) *int {
	v, ok := args[key].(float64)
	if !ok {
		return nil
	}
	n := int(v)
	return &n
}

func optionalInt64(args map[string]any, key string) *int64 {
	v, ok := args[key].(float64)
	if !ok {
		return nil
	}
	n := int64(v)
	return &n
}

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

// registerTools registers tools with the MCP server.
func (s *Server) registerTools() {
	// Tools are handled via ListTools and CallTool
}

// registerResources registers resources with the MCP server.
func (s *Server) registerResources() {
	// Resources are handled via ListResources and ReadResource
}
