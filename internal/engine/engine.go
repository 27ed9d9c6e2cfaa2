// Package engine orchestrates the query pipeline: anchor resolution,
// planning, traversal, reconstruction and serialization over a selected
// graph store. It owns the catalog and hydration caches.
package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vmoffice/capgraph/internal/analysis"
	"github.com/vmoffice/capgraph/internal/answer"
	"github.com/vmoffice/capgraph/internal/catalog"
	"github.com/vmoffice/capgraph/internal/config"
	"github.com/vmoffice/capgraph/internal/graph"
	"github.com/vmoffice/capgraph/internal/planner"
	"github.com/vmoffice/capgraph/internal/render"
	"github.com/vmoffice/capgraph/internal/store"
)

// Ask outcome statuses.
const (
	StatusSuccess = "success"
	StatusNoMatch = "no_match"
)

// resolveLimit caps the scored candidates an explicit resolve returns.
const resolveLimit = 5

// AskResult is the outcome of one natural-language query. On no_match it
// carries disambiguation material instead of a plan.
type AskResult struct {
	Status        string             `json:"status"`
	Plan          *planner.QueryPlan `json:"query_plan,omitempty"`
	GraphContext  string             `json:"graph_context,omitempty"`
	Prompt        string             `json:"vmo_prompt,omitempty"`
	Message       string             `json:"message,omitempty"`
	Suggestions   []string           `json:"suggestions,omitempty"`
	CatalogSample []string           `json:"catalog_sample,omitempty"`
}

// Engine wires the pipeline components over one store.
type Engine struct {
	store     store.GraphStore
	storeKind string
	catalog   *catalog.Cache
	hydration *catalog.Hydration
	planner   *planner.Planner
	render    *render.Serializer
	cfg       *config.Config
	log       *zap.Logger
}

// New builds the engine over the given store and loads the caches. A
// failed catalog load leaves it empty, so queries return the no-anchor
// outcome until a reload succeeds; a failed hydration load only loses
// the side-table enrichment. Neither failure is fatal.
func New(ctx context.Context, st store.GraphStore, storeKind string, cfg *config.Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}

	cat := catalog.NewCache(st, log)
	if err := cat.Reload(ctx); err != nil {
		log.Warn("catalog load failed, anchor resolution starts empty", zap.Error(err))
	}

	hyd := catalog.NewHydration(cfg.MetadataPath, log)
	if err := hyd.Reload(); err != nil {
		log.Warn("hydration load failed, serialization stays un-hydrated", zap.Error(err))
	}

	resolver := planner.NewResolver(cfg.FuzzyThreshold, cfg.NgramThreshold)

	return &Engine{
		store:     st,
		storeKind: storeKind,
		catalog:   cat,
		hydration: hyd,
		planner:   planner.New(resolver, cfg.MaxDepth),
		render:    render.NewSerializer(hyd, cfg.ContextBudget),
		cfg:       cfg,
		log:       log,
	}
}

// Ask runs the full pipeline for a free-text query. Zero resolved anchors
// is a valid no_match outcome carrying fuzzy suggestions and a catalog
// sample, not an error. Per-anchor store failures degrade that anchor to
// a not-found block; the call itself only fails on a cancelled context. A
// positive depth overrides the persona-derived scope, clamped to the
// hard cap like any other depth.
func (e *Engine) Ask(ctx context.Context, query, role string, depth *int) (*AskResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := e.catalog.Names()
	plan := e.planner.Plan(query, role, names)
	if depth != nil && *depth > 0 {
		plan.DepthScope = *depth
		if plan.DepthScope > e.cfg.MaxDepth {
			plan.DepthScope = e.cfg.MaxDepth
		}
	}

	if len(plan.PrimaryAnchors) == 0 {
		scored := e.planner.Resolver().Suggest(query, names, e.cfg.SuggestThreshold, config.SuggestionLimit)
		suggestions := make([]string, 0, len(scored))
		for _, s := range scored {
			suggestions = append(suggestions, s.Name)
		}
		sample := names
		if len(sample) > config.CatalogSample {
			sample = sample[:config.CatalogSample]
		}
		e.log.Info("no anchors resolved", zap.String("query", query), zap.Strings("suggestions", suggestions))
		return &AskResult{
			Status:        StatusNoMatch,
			Message:       "Could not identify any entities in your query",
			Suggestions:   suggestions,
			CatalogSample: sample,
		}, nil
	}

	relTypes := e.relTypesFor(ctx, plan.Intent)

	blocks := make([]render.AnchorContext, 0, len(plan.PrimaryAnchors))
	for _, anchor := range plan.PrimaryAnchors {
		blocks = append(blocks, e.anchorContext(ctx, anchor, plan.DepthScope, relTypes))
	}

	graphContext := e.render.Serialize(blocks, plan.Persona)
	prompt := answer.BuildPrompt(query, plan, graphContext, e.cfg.Vertical)

	e.log.Info("query planned",
		zap.Strings("anchors", plan.PrimaryAnchors),
		zap.String("intent", string(plan.Intent)),
		zap.String("persona", string(plan.Persona)),
		zap.Int("depth", plan.DepthScope))

	return &AskResult{
		Status:       StatusSuccess,
		Plan:         plan,
		GraphContext: graphContext,
		Prompt:       prompt,
	}, nil
}

// relTypesFor intersects the intent's candidate relationship types with
// the store's introspected vocabulary. Introspection failure or an empty
// intersection widens to an unfiltered traversal.
func (e *Engine) relTypesFor(ctx context.Context, intent planner.Intent) []string {
	available, err := e.store.RelationshipTypes(ctx)
	if err != nil {
		e.log.Warn("relationship introspection failed, traversing unfiltered", zap.Error(err))
		return nil
	}
	return store.FilterRelTypes(store.CandidateRelTypes(intent), available)
}

// anchorContext traverses one anchor. A missing root, a store failure or
// a failed reconstruction all degrade to an empty block.
func (e *Engine) anchorContext(ctx context.Context, anchor string, depth int, relTypes []string) render.AnchorContext {
	blk := render.AnchorContext{Anchor: anchor}

	req, err := store.NewTraversalRequest(store.NodeRef{Name: anchor}, depth, graph.DirectionBoth, relTypes, e.cfg.MaxDepth)
	if err != nil {
		e.log.Warn("traversal request rejected", zap.String("anchor", anchor), zap.Error(err))
		return blk
	}

	res, err := e.store.Traverse(ctx, req)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.log.Warn("traversal failed", zap.String("anchor", anchor), zap.Error(err))
		}
		return blk
	}

	rec, err := graph.Reconstruct(res.Root, res.Records, graph.DirectionBoth)
	if err != nil {
		e.log.Warn("reconstruction failed", zap.String("anchor", anchor), zap.Error(err))
		return blk
	}

	blk.Tree = rec
	return blk
}

// Subtree traverses from one directly addressed node and reconstructs the
// result. A nil depth means the configured hard cap. Unknown entity types
// and directions are rejected with the accepted values named; a missing
// root surfaces store.ErrNotFound.
func (e *Engine) Subtree(ctx context.Context, entityType, name string, uid *int64, depth *int, direction string) (*graph.Reconstruction, error) {
	label, err := graph.LabelForAlias(entityType)
	if err != nil {
		return nil, err
	}
	dir, err := graph.NormalizeDirection(direction)
	if err != nil {
		return nil, err
	}

	d := e.cfg.MaxDepth
	if depth != nil {
		d = *depth
	}
	req, err := store.NewTraversalRequest(store.NodeRef{Label: label, UID: uid, Name: name}, d, dir, nil, e.cfg.MaxDepth)
	if err != nil {
		return nil, err
	}

	res, err := e.store.Traverse(ctx, req)
	if err != nil {
		return nil, err
	}
	return graph.Reconstruct(res.Root, res.Records, dir)
}

// NodeProperties returns the property map of one directly addressed node.
func (e *Engine) NodeProperties(ctx context.Context, entityType, name string, uid *int64) (map[string]any, error) {
	label, err := graph.LabelForAlias(entityType)
	if err != nil {
		return nil, err
	}
	ent, err := e.store.FetchNode(ctx, store.NodeRef{Label: label, UID: uid, Name: name})
	if err != nil {
		return nil, err
	}
	return ent.Properties, nil
}

// Resolve fuzzy-matches a name against the catalog, best score first.
func (e *Engine) Resolve(name string) []planner.Suggestion {
	return e.planner.Resolver().Suggest(name, e.catalog.Names(), 0, resolveLimit)
}

// Gaps runs the structural audit against the current store.
func (e *Engine) Gaps(ctx context.Context) (*analysis.Report, error) {
	sc, ok := e.store.(analysis.Scanner)
	if !ok {
		return nil, fmt.Errorf("store %T does not support gap scans", e.store)
	}
	return analysis.FindGaps(ctx, sc, e.log)
}

// Cypher runs a raw read query. The local snapshot reports
// store.ErrUnsupported.
func (e *Engine) Cypher(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return e.store.Run(ctx, query, params)
}

// CatalogNames returns the cached catalog.
func (e *Engine) CatalogNames() []string {
	return e.catalog.Names()
}

// ReloadCatalog refetches the catalog from the store.
func (e *Engine) ReloadCatalog(ctx context.Context) error {
	return e.catalog.Reload(ctx)
}

// ReloadHydration re-reads the hydration side table.
func (e *Engine) ReloadHydration() error {
	return e.hydration.Reload()
}

// HydrationPath returns the side-table file the engine watches in serve
// mode.
func (e *Engine) HydrationPath() string {
	return e.hydration.Path()
}

// RelationshipTypes returns the store's introspected relationship
// vocabulary.
func (e *Engine) RelationshipTypes(ctx context.Context) ([]string, error) {
	return e.store.RelationshipTypes(ctx)
}

// Counts tallies nodes per label.
func (e *Engine) Counts(ctx context.Context) (map[string]int, error) {
	return e.store.Counts(ctx)
}

// StoreKind names the store the engine runs on ("neo4j" or "local").
func (e *Engine) StoreKind() string {
	return e.storeKind
}

// Close releases the store.
func (e *Engine) Close() error {
	return e.store.Close()
}
