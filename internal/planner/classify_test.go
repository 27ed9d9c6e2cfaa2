package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyIntent(t *testing.T) {
	t.Parallel()

	t.Run("Categories", func(t *testing.T) {
		t.Parallel()
		cases := map[string]Intent{
			"Outline our strategy for settlements":    IntentStrategic,
			"Describe the workflow for trade capture": IntentOperational,
			"Tell me about reconciliation details":    IntentInformational,
			"Assess the consequence for reporting":    IntentImpact,
			"Which attributes flow through the api":   IntentTechnical,
		}
		for query, want := range cases {
			assert.Equal(t, want, ClassifyIntent(query), "query: %s", query)
		}
	})

	t.Run("PriorityOrder", func(t *testing.T) {
		t.Parallel()
		// Strategic is checked before Impact, Operational before
		// Informational.
		assert.Equal(t, IntentStrategic, ClassifyIntent("the strategy and its impact"))
		assert.Equal(t, IntentOperational, ClassifyIntent("describe the workflow"))
	})

	t.Run("DefaultInformational", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, IntentInformational, ClassifyIntent("Tell me about trading"))
		assert.Equal(t, IntentInformational, ClassifyIntent(""))
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, IntentStrategic, ClassifyIntent("OUR STRATEGY"))
	})
}

func TestClassifyPersona(t *testing.T) {
	t.Parallel()

	t.Run("ExplicitRoleWins", func(t *testing.T) {
		t.Parallel()
		cases := []struct {
			role  string
			want  Persona
			depth int
		}{
			{"Specialist", PersonaAnalyst, 3},
			{"Data Analyst", PersonaAnalyst, 3},
			{"Solution Architect", PersonaAnalyst, 3},
			{"CEO", PersonaExecutive, 1},
			{"Chief Executive", PersonaExecutive, 1},
			{"CFO", PersonaExecutive, 1},
			{"Operations Manager", PersonaManager, 2},
			{"Intern", PersonaManager, 2},
		}
		for _, tc := range cases {
			persona, depth := ClassifyPersona("irrelevant", tc.role, IntentInformational)
			assert.Equal(t, tc.want, persona, "role: %s", tc.role)
			assert.Equal(t, tc.depth, depth, "role: %s", tc.role)
		}
	})

	t.Run("QueryVocabulary", func(t *testing.T) {
		t.Parallel()
		persona, depth := ClassifyPersona("summary for the ceo", "", IntentInformational)
		assert.Equal(t, PersonaExecutive, persona)
		assert.Equal(t, 1, depth)

		persona, depth = ClassifyPersona("show the schema and lineage", "", IntentInformational)
		assert.Equal(t, PersonaAnalyst, persona)
		assert.Equal(t, 3, depth)

		persona, depth = ClassifyPersona("brief the supervisor", "", IntentInformational)
		assert.Equal(t, PersonaManager, persona)
		assert.Equal(t, 2, depth)
	})

	t.Run("IntentFallback", func(t *testing.T) {
		t.Parallel()
		persona, depth := ClassifyPersona("no role words here", "", IntentTechnical)
		assert.Equal(t, PersonaAnalyst, persona)
		assert.Equal(t, 3, depth)

		persona, depth = ClassifyPersona("no role words here", "", IntentStrategic)
		assert.Equal(t, PersonaExecutive, persona)
		assert.Equal(t, 1, depth)

		persona, depth = ClassifyPersona("no role words here", "", IntentImpact)
		assert.Equal(t, PersonaManager, persona)
		assert.Equal(t, 2, depth)

		persona, depth = ClassifyPersona("no role words here", "", IntentInformational)
		assert.Equal(t, PersonaManager, persona)
		assert.Equal(t, 2, depth)
	})
}
