package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/triage/internal/agents"
	"github.com/clinicflow/triage/internal/guardrail"
	"github.com/clinicflow/triage/internal/state"
	"github.com/clinicflow/triage/internal/supervisor"
)

func newTestEngine(t *testing.T, registry agents.Registry) *Engine {
	sup := supervisor.New(nil, 0)
	gm := guardrail.NewManager(guardrail.NewSimple(0))
	e, err := New(sup, registry, gm)
	require.NoError(t, err)
	return e
}

func TestEngine_FAQIntentRoutesThroughConversationThenTerminates(t *testing.T) {
	registry := agents.Registry{
		supervisor.AgentConversation: agents.AgentFunc(func(ctx context.Context, turn *state.Turn) error {
			turn.FinalResponse = "Our clinic is open 9 to 5."
			return nil
		}),
	}
	e := newTestEngine(t, registry)
	turn := &state.Turn{SessionID: "s1", UserInput: "what are your hours", Intent: state.IntentFAQ}

	e.Run(context.Background(), turn)
	assert.Equal(t, "Our clinic is open 9 to 5.", turn.FinalResponse)
}

func TestEngine_EmergencyInputIsRedirectedByGuardrailBeforeAnyAgentRuns(t *testing.T) {
	called := false
	registry := agents.Registry{
		supervisor.AgentSymptomExtractor: agents.AgentFunc(func(ctx context.Context, turn *state.Turn) error {
			called = true
			return nil
		}),
	}
	e := newTestEngine(t, registry)
	turn := &state.Turn{SessionID: "s2", UserInput: "I am having a heart attack and can't breathe"}

	e.Run(context.Background(), turn)
	assert.False(t, called, "guardrail should short-circuit before the graph runs")
	assert.Equal(t, state.IntentEmergency, turn.Intent)
	assert.NotEmpty(t, turn.FinalResponse)
}

func TestEngine_PersistsHistoryAcrossTurnsInTheSameSession(t *testing.T) {
	registry := agents.Registry{
		supervisor.AgentConversation: agents.AgentFunc(func(ctx context.Context, turn *state.Turn) error {
			turn.FinalResponse = "answer " + turn.UserInput
			return nil
		}),
	}
	e := newTestEngine(t, registry)

	first := &state.Turn{SessionID: "s3", UserInput: "first question", Intent: state.IntentFAQ}
	e.Run(context.Background(), first)

	second := &state.Turn{SessionID: "s3", UserInput: "second question", Intent: state.IntentFAQ}
	e.Run(context.Background(), second)

	assert.Len(t, second.History, 2)
	assert.Equal(t, "first question", second.History[0].Text)
}

func TestEngine_ForceRecommendationUsesGatheredStateInsteadOfGenericFallback(t *testing.T) {
	registry := agents.Registry{
		supervisor.AgentRecommender: agents.AgentFunc(func(ctx context.Context, turn *state.Turn) error {
			turn.FinalResponse = "recommendation for " + turn.Diagnosis[0].Name
			return nil
		}),
	}
	e := newTestEngine(t, registry)
	turn := &state.Turn{
		SessionID: "s5",
		UserInput: "ongoing cough",
		Diagnosis: []state.Hypothesis{{Name: "Bronchitis", Probability: 0.5}},
	}

	e.forceRecommendation(context.Background(), turn)
	assert.Equal(t, "recommendation for Bronchitis", turn.FinalResponse)
}

func TestEngine_DegradesToFallbackResponseWhenNoAgentProducesOne(t *testing.T) {
	registry := agents.Registry{
		supervisor.AgentRecommender: agents.AgentFunc(func(ctx context.Context, turn *state.Turn) error {
			return nil
		}),
	}
	e := newTestEngine(t, registry)
	turn := &state.Turn{SessionID: "s4", UserInput: "vague complaint with no structure"}

	e.Run(context.Background(), turn)
	assert.NotEmpty(t, turn.FinalResponse)
}
