package supervisor

import (
	"context"
	"testing"

	"github.com/clinicflow/triage/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide_EmergencyPreemptsDiagnosis(t *testing.T) {
	s := New(nil, 0)
	turn := &state.Turn{Intent: state.IntentEmergency}

	d := s.Decide(context.Background(), turn)

	assert.Equal(t, TERMINATE, d.NextAgent)
}

func TestDecide_FAQRoutesToConversationThenTerminates(t *testing.T) {
	s := New(nil, 0)
	turn := &state.Turn{Intent: state.IntentFAQ}

	d := s.Decide(context.Background(), turn)
	require.Equal(t, AgentConversation, d.NextAgent)

	turn.SetPlanCurrent(AgentConversation, "ran")
	for i := range turn.Plan {
		turn.Plan[i].Status = state.PlanDone
	}
	d = s.Decide(context.Background(), turn)
	assert.Equal(t, TERMINATE, d.NextAgent)
}

func TestDecide_ImageBeforeDiagnosis(t *testing.T) {
	s := New(nil, 0)
	turn := &state.Turn{
		Intent: state.IntentImage,
		Image:  &state.Image{BlobRef: "blob://1", MIME: "image/png"},
	}

	d := s.Decide(context.Background(), turn)
	assert.Equal(t, AgentImageAnalyzer, d.NextAgent)
}

func TestDecide_NoSymptomsOrImageClarifiesInsteadOfDiagnosing(t *testing.T) {
	s := New(nil, 0)
	turn := &state.Turn{Intent: state.IntentSymptoms}

	d := s.Decide(context.Background(), turn)
	assert.Equal(t, AgentRecommender, d.NextAgent)
}

func TestDecide_SkipsInvestigationWhenConfident(t *testing.T) {
	s := New(nil, 0.7)
	turn := &state.Turn{
		Intent:   state.IntentSymptoms,
		Symptoms: []state.Symptom{{Name: "fever"}},
		Diagnosis: []state.Hypothesis{
			{Name: "flu", Probability: 0.9},
		},
	}

	d := s.Decide(context.Background(), turn)
	assert.Equal(t, AgentDocumentRetrieve, d.NextAgent)
}

func TestDecide_InvestigatesWhenUnconfident(t *testing.T) {
	s := New(nil, 0.7)
	turn := &state.Turn{
		Intent:   state.IntentSymptoms,
		Symptoms: []state.Symptom{{Name: "fever"}},
		Diagnosis: []state.Hypothesis{
			{Name: "flu", Probability: 0.4},
		},
	}

	d := s.Decide(context.Background(), turn)
	assert.Equal(t, AgentInvestigation, d.NextAgent)
}

func TestDecide_RecommenderAlwaysLast(t *testing.T) {
	s := New(nil, 0.7)
	turn := &state.Turn{
		Intent:         state.IntentSymptoms,
		Symptoms:       []state.Symptom{{Name: "fever"}},
		Diagnosis:      []state.Hypothesis{{Name: "flu", Probability: 0.9}},
		Investigations: []state.Investigation{{Question: "how long?"}},
		Evidence:       []state.EvidencePassage{{Passage: "p", SourceID: "s", Relevance: 0.5}},
	}

	d := s.Decide(context.Background(), turn)
	assert.Equal(t, AgentRecommender, d.NextAgent)
}

func TestHeuristicClassify_BilingualEmergency(t *testing.T) {
	assert.Equal(t, state.IntentEmergency, HeuristicClassify("severe chest pain radiating to left arm", false, nil))
	assert.Equal(t, state.IntentEmergency, HeuristicClassify("Đau ngực dữ dội lan ra cánh tay trái, khó thở", false, nil))
}
