package planner

import "strings"

// Intent categorizes what a question is after.
type Intent string

const (
	IntentStrategic     Intent = "Strategic"
	IntentOperational   Intent = "Operational"
	IntentInformational Intent = "Informational"
	IntentImpact        Intent = "Impact"
	IntentTechnical     Intent = "Technical"
)

// Persona is the audience tier an answer is shaped for. Lower depth means
// broader, shorter answers.
type Persona string

const (
	PersonaExecutive Persona = "Executive"
	PersonaManager   Persona = "Manager"
	PersonaAnalyst   Persona = "Analyst"
)

// Depth of traversal per persona. Executives see the immediate
// neighborhood, analysts three levels of decomposition.
const (
	depthExecutive = 1
	depthManager   = 2
	depthAnalyst   = 3
)

// intentKeywords is checked in order; the first category with any keyword
// contained in the query wins.
var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentStrategic, []string{"strategy", "goal", "objective", "plan", "vision"}},
	{IntentOperational, []string{"process", "steps", "workflow", "procedure", "operation"}},
	{IntentInformational, []string{"what", "how", "describe", "information", "details", "differences"}},
	{IntentImpact, []string{"impact", "effect", "influence", "consequence"}},
	{IntentTechnical, []string{"api", "data entity", "technical", "attribute", "lineage", "id"}},
}

// Role and query vocabularies for persona classification. Matching is
// substring containment on the lower-cased input, same as the intent table.
var (
	analystRoleWords   = []string{"specialist", "analyst", "architect", "engineer", "developer"}
	executiveRoleWords = []string{"executive", "ceo", "cfo"}

	executiveQueryWords = []string{"executive", "ceo", "cfo", "director", "vp", "leader", "strategy", "vision"}
	analystQueryWords   = []string{"specialist", "analyst", "engineer", "developer", "architect", "technical", "schema", "attribute", "lineage"}
	managerQueryWords   = []string{"manager", "supervisor", "team lead", "head"}
)

// ClassifyIntent assigns one of the five intent categories to a query.
// Queries matching nothing default to Informational.
func ClassifyIntent(query string) Intent {
	q := strings.ToLower(query)
	for _, entry := range intentKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(q, kw) {
				return entry.intent
			}
		}
	}
	return IntentInformational
}

// ClassifyPersona picks the persona tier and its traversal depth.
//
// An explicit role wins: analyst-like roles map to Analyst, executive-like
// to Executive, everything else (including unrecognized roles) to Manager.
// Without a role the query's own vocabulary is consulted, and failing
// that the intent decides: Technical reads as Analyst, Strategic as
// Executive, the rest as Manager.
func ClassifyPersona(query, role string, intent Intent) (Persona, int) {
	if role != "" {
		r := strings.ToLower(role)
		if containsAny(r, analystRoleWords) {
			return PersonaAnalyst, depthAnalyst
		}
		if containsAny(r, executiveRoleWords) {
			return PersonaExecutive, depthExecutive
		}
		return PersonaManager, depthManager
	}

	q := strings.ToLower(query)
	if containsAny(q, executiveQueryWords) {
		return PersonaExecutive, depthExecutive
	}
	if containsAny(q, analystQueryWords) {
		return PersonaAnalyst, depthAnalyst
	}
	if containsAny(q, managerQueryWords) {
		return PersonaManager, depthManager
	}

	switch intent {
	case IntentTechnical:
		return PersonaAnalyst, depthAnalyst
	case IntentStrategic:
		return PersonaExecutive, depthExecutive
	default:
		return PersonaManager, depthManager
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
