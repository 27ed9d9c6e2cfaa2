// Package answer builds the grounded consultant prompt and optionally
// calls a chat completion API with it.
package answer

import (
	"fmt"
	"strings"

	"github.com/vmoffice/capgraph/internal/planner"
)

// NotAvailablePhrase is what the model must state when the retrieved
// context lacks the requested information.
const NotAvailablePhrase = "This information is not available in the current enterprise model."

// BuildPrompt renders the enterprise-architecture consultant prompt from
// the query plan and the serialized graph context. The prompt pins the
// model to the retrieved context and shapes the response for the plan's
// persona tier.
func BuildPrompt(query string, plan *planner.QueryPlan, graphContext, vertical string) string {
	anchors := strings.Join(plan.PrimaryAnchors, ", ")

	var b strings.Builder
	fmt.Fprintf(&b, `### ROLE
You are an expert Enterprise Architecture Consultant for the %s domain. You are the engine of the Virtual Model Office, specialized in synthesizing complex graph data into actionable insights.

### INPUT DATA
The following data has been retrieved from the Enterprise Knowledge Graph:
- USER QUERY: %s
- TARGET PERSONA: %s (Executive | Manager | Analyst)
- PRIMARY ANCHOR(S): %s
- INTENT CATEGORY: %s (Strategic | Operational | Informational | Impact | Technical)
- RETRIEVED GRAPH CONTEXT:
%s

### RESPONSE GUIDELINES BY PERSONA
- EXECUTIVE: Focus on "Bottom Line Up Front" (BLUF). Emphasize business value, goals, and high-level capabilities. Avoid technical IDs or deep process nesting.
- MANAGER: Focus on the "How." Detail the relationship between processes and applications. Highlight workflow dependencies and ownership.
- ANALYST: Provide maximum fidelity. Cite specific Data Entities, API names, and technical attributes. Be exhaustive in mapping the lineage.

### OPERATIONAL RULES
1. GROUNDING: Use ONLY the provided "RETRIEVED GRAPH CONTEXT". If information is missing, explicitly state: "%s"
2. NO FABRICATION: Do not invent processes, applications, or data links that are not present in the context.
3. CITATION: Cite specific entities (e.g., "per the Process-Catalog...") to maintain model integrity.

### STRUCTURE OF RESPONSE
1. TARGET ENTITY: Display "[Target Entity: %s]" at the very top.
2. ANALYSIS: Provide the response tailored to the Persona.
`, vertical, query, plan.Persona, anchors, plan.Intent, graphContext, NotAvailablePhrase, anchors)

	if plan.IsComparison || plan.Persona == planner.PersonaAnalyst {
		b.WriteString("\n### SYNTHESIS INSTRUCTION\n")
		n := 1
		if plan.IsComparison {
			fmt.Fprintf(&b, "%d. The RETRIEVED GRAPH CONTEXT contains multiple anchors: perform a side-by-side comparison.\n", n)
			n++
		}
		if plan.Persona == planner.PersonaAnalyst {
			fmt.Fprintf(&b, "%d. Incorporate specific Data Element definitions into your narrative.\n", n)
		}
	}

	return b.String()
}
