// Package cmd provides CLI command implementations for capgraph.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/vmoffice/capgraph/internal/answer"
	"github.com/vmoffice/capgraph/internal/catalog"
	"github.com/vmoffice/capgraph/internal/config"
	"github.com/vmoffice/capgraph/internal/engine"
	"github.com/vmoffice/capgraph/internal/graph"
	"github.com/vmoffice/capgraph/internal/render"
	"github.com/vmoffice/capgraph/internal/store"
	"github.com/vmoffice/capgraph/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Runtime carries the dependencies every command shares: parsed
// configuration, the requested store mode and the logger.
type Runtime struct {
	Config *config.Config
	Store  string
	Log    *zap.Logger
}

// openEngine selects a store per the requested mode and builds the query
// engine over it.
func (r *Runtime) openEngine(ctx context.Context) (*engine.Engine, error) {
	st, kind, err := engine.SelectStore(ctx, r.Store, r.Config, r.Log)
	if err != nil {
		return nil, err
	}
	return engine.New(ctx, st, kind, r.Config, r.Log), nil
}

// AskCmd answers a natural-language question about the enterprise model.
type AskCmd struct {
	Query    string `arg:"" help:"Natural-language question"`
	Role     string `short:"r" help:"Audience persona: Executive, Manager or Analyst"`
	Vertical string `help:"Business vertical named in the generated prompt"`
	Answer   bool   `help:"Generate an answer with OpenAI (requires OPENAI_API_KEY)"`
	Depth    int    `short:"d" help:"Override the persona-derived traversal depth"`
}

// Run executes the ask command.
func (c *AskCmd) Run(rt *Runtime) error {
	ctx := context.Background()

	if c.Vertical != "" {
		rt.Config.Vertical = c.Vertical
	}

	eng, err := rt.openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	var depth *int
	if c.Depth > 0 {
		depth = &c.Depth
	}

	res, err := eng.Ask(ctx, c.Query, c.Role, depth)
	if err != nil {
		return err
	}

	if res.Status == engine.StatusNoMatch {
		fmt.Println(res.Message)
		if len(res.Suggestions) > 0 {
			fmt.Println("\nDid you mean:")
			for _, name := range res.Suggestions {
				fmt.Printf("  - %s\n", name)
			}
		}
		if len(res.CatalogSample) > 0 {
			fmt.Println("\nCatalog sample:")
			for _, name := range res.CatalogSample {
				fmt.Printf("  - %s\n", name)
			}
		}
		return nil
	}

	plan := res.Plan
	color.Green("Resolved %d anchor(s): %s", len(plan.PrimaryAnchors), strings.Join(plan.PrimaryAnchors, ", "))
	fmt.Printf("  Intent:   %s\n", plan.Intent)
	fmt.Printf("  Persona:  %s\n", plan.Persona)
	fmt.Printf("  Depth:    %d\n", plan.DepthScope)
	fmt.Println(res.GraphContext)

	if !c.Answer {
		return nil
	}

	client, err := answer.NewClient(rt.Config.OpenAIKey, rt.Config.OpenAIModel, rt.Log)
	if err != nil {
		return err
	}

	text, err := client.Generate(ctx, res.Prompt, c.Query)
	if err != nil {
		return fmt.Errorf("generating answer: %w", err)
	}

	fmt.Println("## Answer")
	fmt.Println()
	fmt.Println(text)
	return nil
}

// SubtreeCmd expands one entity into its decomposition tree.
type SubtreeCmd struct {
	EntityType string `arg:"" help:"Entity type: capability, process, subprocess, dataentity, dataelement, orgunit or application"`
	UID        int64  `help:"Stable entity uid"`
	Name       string `help:"Exact entity name"`
	Depth      int    `short:"d" help:"Traversal depth (defaults to the hard cap)"`
	Direction  string `help:"Traversal direction" enum:"outgoing,incoming,both" default:"both"`
	Markdown   string `help:"Write the tree to this markdown file" type:"path"`
}

// Run executes the subtree command.
func (c *SubtreeCmd) Run(rt *Runtime) error {
	if c.Name == "" && c.UID == 0 {
		return fmt.Errorf("provide --uid or --name. Usage: capgraph subtree <entity-type> --name <name>")
	}

	ctx := context.Background()
	eng, err := rt.openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	var uid *int64
	if c.UID != 0 {
		uid = &c.UID
	}
	var depth *int
	if c.Depth > 0 {
		depth = &c.Depth
	}

	rec, err := eng.Subtree(ctx, c.EntityType, c.Name, uid, depth, c.Direction)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Printf("No %s found in the graph.\n", describeRef(c.EntityType, c.Name, c.UID))
			return nil
		}
		return err
	}

	md := render.Markdown(rec)

	if c.Markdown != "" {
		if err := os.WriteFile(c.Markdown, []byte(md), 0o644); err != nil {
			return fmt.Errorf("writing markdown: %w", err)
		}
		color.Green("✓ Wrote %s", c.Markdown)
		return nil
	}

	fmt.Print(md)
	return nil
}

// NodeCmd shows the raw properties of one entity.
type NodeCmd struct {
	EntityType string `arg:"" help:"Entity type: capability, process, subprocess, dataentity, dataelement, orgunit or application"`
	UID        int64  `help:"Stable entity uid"`
	Name       string `help:"Exact entity name"`
}

// Run executes the node command.
func (c *NodeCmd) Run(rt *Runtime) error {
	if c.Name == "" && c.UID == 0 {
		return fmt.Errorf("provide --uid or --name. Usage: capgraph node <entity-type> --name <name>")
	}

	ctx := context.Background()
	eng, err := rt.openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	var uid *int64
	if c.UID != 0 {
		uid = &c.UID
	}

	props, err := eng.NodeProperties(ctx, c.EntityType, c.Name, uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Printf("No %s found in the graph.\n", describeRef(c.EntityType, c.Name, c.UID))
			return nil
		}
		return err
	}

	fmt.Printf("## %v (%s)\n\n", props["name"], c.EntityType)

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("- %s: %v\n", k, props[k])
	}

	return nil
}

// ResolveCmd fuzzy-matches a name against the entity catalog.
type ResolveCmd struct {
	Name string `arg:"" help:"Approximate entity name"`
}

// Run executes the resolve command.
func (c *ResolveCmd) Run(rt *Runtime) error {
	ctx := context.Background()
	eng, err := rt.openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	matches := eng.Resolve(c.Name)
	if len(matches) == 0 {
		fmt.Println("The catalog is empty; nothing to match against.")
		return nil
	}

	fmt.Printf("Top matches for '%s':\n", c.Name)
	for i, m := range matches {
		fmt.Printf("  %d. %s (score %d)\n", i+1, m.Name, m.Score)
	}

	return nil
}

// CatalogCmd lists every resolvable entity name.
type CatalogCmd struct {
	Reload bool `help:"Refetch the catalog from the store before listing"`
}

// Run executes the catalog command.
func (c *CatalogCmd) Run(rt *Runtime) error {
	ctx := context.Background()
	eng, err := rt.openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if c.Reload {
		if err := eng.ReloadCatalog(ctx); err != nil {
			return fmt.Errorf("reloading catalog: %w", err)
		}
	}

	names := eng.CatalogNames()
	if len(names) == 0 {
		fmt.Println("The catalog is empty. Is the store reachable?")
		return nil
	}

	color.Green("%d entities", len(names))
	for _, name := range names {
		fmt.Printf("  - %s\n", name)
	}

	return nil
}

// SnapshotCmd exports Neo4j into the local offline snapshot.
type SnapshotCmd struct{}

// Run executes the snapshot command.
func (c *SnapshotCmd) Run(rt *Runtime) error {
	ctx := context.Background()
	cfg := rt.Config

	neo, err := store.NewNeo4jStore(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase, rt.Log)
	if err != nil {
		return fmt.Errorf("connecting to neo4j: %w", err)
	}
	defer func() { _ = neo.Close() }()

	if err := neo.Ping(ctx); err != nil {
		return fmt.Errorf("neo4j unreachable at %s: %w", cfg.Neo4jURI, err)
	}

	if err := os.MkdirAll(cfg.Home, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("Exporting %s into %s\n", cfg.Neo4jURI, cfg.SnapshotDir())

	meta, err := engine.WriteSnapshot(ctx, neo, cfg, rt.Log)
	if err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	color.Green("\n✓ Snapshot complete")
	fmt.Printf("  Nodes:          %d\n", meta.Nodes)
	fmt.Printf("  Relationships:  %d\n", meta.Relationships)
	fmt.Printf("  Location:       %s\n", cfg.SnapshotDir())

	return nil
}

// GapsCmd audits the model for structurally disconnected entities.
type GapsCmd struct{}

// Run executes the gaps command.
func (c *GapsCmd) Run(rt *Runtime) error {
	ctx := context.Background()
	eng, err := rt.openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	report, err := eng.Gaps(ctx)
	if err != nil {
		return fmt.Errorf("scanning for gaps: %w", err)
	}

	fmt.Println("## Gap Report")
	fmt.Println()

	if report.Total == 0 {
		fmt.Println("✅ No structural gaps detected!")
		fmt.Println()
		fmt.Println("Every capability is realized, every process decomposes, and every data entity is both populated and read.")
		return nil
	}

	fmt.Printf("⚠️ Found %d structural gaps\n\n", report.Total)

	for _, label := range graph.BusinessLabels {
		gaps := report.ByLabel[string(label)]
		if len(gaps) == 0 {
			continue
		}
		fmt.Printf("### %s (%d)\n", label, len(gaps))
		for _, g := range gaps {
			fmt.Printf("  - %s (uid %d): %s\n", g.Name, g.UID, g.Reason)
		}
		fmt.Println()
	}

	fmt.Println("Next: Review each gap with the model owners; disconnected entities are invisible to decomposition queries.")

	return nil
}

// CypherCmd executes raw Cypher queries.
type CypherCmd struct {
	Query string `arg:"" help:"Cypher query"`
}

// Run executes the cypher command.
func (c *CypherCmd) Run(rt *Runtime) error {
	ctx := context.Background()
	eng, err := rt.openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	rows, err := eng.Cypher(ctx, c.Query, nil)
	if err != nil {
		if errors.Is(err, store.ErrUnsupported) {
			fmt.Println("Raw Cypher needs a Neo4j-backed store; the local snapshot cannot run it.")
			fmt.Println("Reconnect with --store neo4j and retry.")
			return nil
		}
		return fmt.Errorf("running query: %w", err)
	}

	color.Green("%d rows", len(rows))
	for i, row := range rows {
		encoded, err := json.Marshal(row)
		if err != nil {
			fmt.Printf("  %d. <unencodable row: %v>\n", i+1, err)
			continue
		}
		fmt.Printf("  %d. %s\n", i+1, encoded)
	}

	return nil
}

// ServeCmd starts the MCP server with optional metadata watching.
type ServeCmd struct {
	Watch bool `short:"w" help:"Watch the hydration metadata file and reload on change"`
}

// Run executes the serve command.
func (c *ServeCmd) Run(rt *Runtime) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := rt.openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	server := mcp.NewServer(eng)

	go func() {
		<-osSignalChannel()
		cancel()
	}()

	if c.Watch {
		fmt.Fprintln(os.Stderr, "Starting MCP server with metadata watching...")

		go func() {
			err := catalog.Watch(ctx, eng.HydrationPath(), rt.Log, eng.ReloadHydration, func() error {
				return eng.ReloadCatalog(ctx)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
			}
		}()
	} else {
		fmt.Fprintln(os.Stderr, "Starting MCP server...")
	}

	if err := server.Run(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct{}

// Run executes the mcp command.
func (c *MCPCmd) Run(rt *Runtime) error {
	ctx := context.Background()
	eng, err := rt.openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	server := mcp.NewServer(eng)

	// Note: No output to stderr - MCP server uses stdio for JSON-RPC only
	return server.Run(ctx, os.Stdin, os.Stdout)
}

// SetupCmd prints or writes a starter .env configuration.
type SetupCmd struct {
	Write string `help:"Write the template to this file instead of stdout" type:"path"`
}

// Run executes the setup command.
func (c *SetupCmd) Run(rt *Runtime) error {
	if c.Write == "" {
		fmt.Print(envTemplate())
		fmt.Println()
		fmt.Println("# MCP client configuration:")
		snippet, _ := json.MarshalIndent(mcpClientConfig(), "", "  ")
		fmt.Println(string(snippet))
		return nil
	}

	if _, err := os.Stat(c.Write); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", c.Write)
	}

	if err := os.MkdirAll(filepath.Dir(c.Write), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(c.Write, []byte(envTemplate()), 0o644); err != nil {
		return fmt.Errorf("writing template: %w", err)
	}

	color.Green("✓ Wrote %s", c.Write)
	return nil
}

func envTemplate() string {
	var sb strings.Builder
	sb.WriteString("# capgraph configuration\n")
	sb.WriteString("NEO4J_URI=neo4j://localhost:7687\n")
	sb.WriteString("NEO4J_USERNAME=neo4j\n")
	sb.WriteString("NEO4J_PASSWORD=\n")
	sb.WriteString("NEO4J_DATABASE=neo4j\n")
	sb.WriteString("\n")
	sb.WriteString("# Answer generation, used only by `capgraph ask --answer`\n")
	sb.WriteString("OPENAI_API_KEY=\n")
	sb.WriteString("OPENAI_MODEL=gpt-4o-mini\n")
	sb.WriteString("\n")
	sb.WriteString("# Data locations and tuning\n")
	sb.WriteString("#CAPGRAPH_HOME=\n")
	sb.WriteString("#CAPGRAPH_METADATA=\n")
	sb.WriteString("#CAPGRAPH_VERTICAL=Investment Management\n")
	sb.WriteString("#CAPGRAPH_MAX_DEPTH=5\n")
	sb.WriteString("#CAPGRAPH_CONTEXT_BUDGET=100000\n")
	return sb.String()
}

func mcpClientConfig() map[string]any {
	return map[string]any{
		"mcpServers": map[string]any{
			"capgraph": map[string]any{
				"command": "capgraph",
				"args":    []string{"serve", "--watch"},
			},
		},
	}
}

// StatusCmd shows store reachability and snapshot state.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run(rt *Runtime) error {
	st := engine.ProbeStatus(context.Background(), rt.Config, rt.Log)

	fmt.Println("capgraph status")

	reach := "unreachable"
	if st.Neo4jUp {
		reach = "reachable"
	}
	fmt.Printf("  Neo4j:      %s (%s)\n", st.Neo4jURI, reach)

	if st.Snapshot != nil {
		fmt.Printf("  Snapshot:   %d nodes, %d relationships, written %s\n",
			st.Snapshot.Nodes, st.Snapshot.Relationships, st.Snapshot.CreatedAt.Format(time.RFC3339))
	} else {
		fmt.Println("  Snapshot:   none. Run 'capgraph snapshot' to create one")
	}

	fmt.Printf("  Hydration:  %s (%d rows)\n", st.HydrationPath, st.HydrationRows)

	return nil
}

// CleanCmd deletes the local snapshot and metadata.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run(rt *Runtime) error {
	home := rt.Config.Home
	if _, err := os.Stat(home); os.IsNotExist(err) {
		return fmt.Errorf("no data found at %s. Nothing to clean", home)
	}

	if !c.Force {
		fmt.Printf("Delete snapshot and metadata at %s? [y/N] ", home)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(home); err != nil {
		return fmt.Errorf("deleting %s: %w", home, err)
	}

	color.Green("Deleted %s", home)
	return nil
}

// Helper functions

// describeRef names an entity the way the caller addressed it, for
// not-found messages.
func describeRef(entityType, name string, uid int64) string {
	if name != "" {
		return fmt.Sprintf("%s named '%s'", entityType, name)
	}
	return fmt.Sprintf("%s with uid %d", entityType, uid)
}

// osSignalChannel returns a channel that receives OS signals for graceful shutdown.
func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Store   string           `help:"Graph store to use" enum:"auto,neo4j,local" default:"auto"`

	// Commands
	Ask      AskCmd      `cmd:"" help:"Ask a natural-language question about the enterprise model"`
	Subtree  SubtreeCmd  `cmd:"" help:"Expand one entity into its decomposition tree"`
	Node     NodeCmd     `cmd:"" help:"Show the raw properties of one entity"`
	Resolve  ResolveCmd  `cmd:"" help:"Fuzzy-match a name against the entity catalog"`
	Catalog  CatalogCmd  `cmd:"" help:"List every resolvable entity name"`
	Snapshot SnapshotCmd `cmd:"" help:"Export Neo4j into the local offline snapshot"`
	Gaps     GapsCmd     `cmd:"" help:"Audit the model for disconnected entities"`
	Cypher   CypherCmd   `cmd:"" help:"Execute a raw Cypher query"`
	Serve    ServeCmd    `cmd:"" help:"Start the MCP server with optional metadata watching"`
	MCP      MCPCmd      `cmd:"" help:"Start the MCP server (stdio transport)"`
	Setup    SetupCmd    `cmd:"" help:"Print or write a starter .env configuration"`
	Status   StatusCmd   `cmd:"" help:"Show store reachability and snapshot state"`
	Clean    CleanCmd    `cmd:"" help:"Delete the local snapshot and metadata"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	kongCtx := kong.Parse(c,
		kong.Name("capgraph"),
		kong.Description("Graph-grounded assistant for enterprise capability models"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)

	log := zap.NewNop()
	if c.Verbose {
		if dev, err := zap.NewDevelopment(); err == nil {
			log = dev
		}
	}

	return kongCtx.Run(&Runtime{
		Config: config.Load(),
		Store:  c.Store,
		Log:    log,
	})
}
