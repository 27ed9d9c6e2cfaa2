package planner

// QueryPlan is the parsed form of one question: which entities it is about,
// what kind of answer it wants, and who is asking. Built once per request
// and never mutated afterwards.
type QueryPlan struct {
	// Query is the original free-text question, kept for auditability.
	Query string `json:"query"`

	// PrimaryAnchors are the resolved catalog names in deterministic
	// first-match order.
	PrimaryAnchors []string `json:"primary_anchors"`

	// Intent is the question category driving relationship selection.
	Intent Intent `json:"intent"`

	// Persona is the audience tier driving verbosity and depth.
	Persona Persona `json:"persona_tone"`

	// DepthScope is the traversal depth, already clamped to the hard cap.
	DepthScope int `json:"depth_scope"`

	// IsComparison is true when more than one anchor resolved.
	IsComparison bool `json:"is_comparison"`
}

// Planner composes anchor resolution and classification into query plans.
type Planner struct {
	resolver *Resolver
	maxDepth int
}

// New returns a planner. maxDepth is the traversal hard cap applied to
// every plan.
func New(resolver *Resolver, maxDepth int) *Planner {
	return &Planner{resolver: resolver, maxDepth: maxDepth}
}

// Resolver exposes the planner's anchor resolver for suggestion building.
func (p *Planner) Resolver() *Resolver {
	return p.resolver
}

// Plan builds the query plan for one question. role may be empty. The
// catalog is the current resolvable-name universe; an empty catalog
// produces a plan with no anchors.
func (p *Planner) Plan(query, role string, catalog []string) *QueryPlan {
	anchors := p.resolver.Resolve(query, catalog)
	intent := ClassifyIntent(query)
	persona, depth := ClassifyPersona(query, role, intent)
	if depth > p.maxDepth {
		depth = p.maxDepth
	}
	return &QueryPlan{
		Query:          query,
		PrimaryAnchors: anchors,
		Intent:         intent,
		Persona:        persona,
		DepthScope:     depth,
		IsComparison:   len(anchors) > 1,
	}
}
