package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/triage/internal/state"
)

type fakeProvider struct {
	response string
	err      error
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}
func (f *fakeProvider) GenerateStructured(ctx context.Context, system, user, schema string) (string, error) {
	return f.response, f.err
}
func (f *fakeProvider) GenerateMultimodal(ctx context.Context, system, user string, image *state.Image, schema string) (string, error) {
	return f.response, f.err
}

func TestDiagnosisEngine_SortsByProbabilityThenAlphabetically(t *testing.T) {
	provider := &fakeProvider{response: `{"hypotheses": [
		{"name": "Bronchitis", "rationale": "cough", "probability": 0.4, "red_flag": false},
		{"name": "Asthma", "rationale": "wheeze", "probability": 0.4, "red_flag": false}
	]}`}
	engine := NewDiagnosisEngine(provider)
	turn := &state.Turn{Symptoms: []state.Symptom{{Name: "cough"}}}

	err := engine.Run(context.Background(), turn)
	require.NoError(t, err)
	require.Len(t, turn.Diagnosis, 2)
	assert.Equal(t, "Asthma", turn.Diagnosis[0].Name)
	assert.Equal(t, "Bronchitis", turn.Diagnosis[1].Name)
}

func TestDiagnosisEngine_SetsEmergencyIntentOnRedFlag(t *testing.T) {
	provider := &fakeProvider{response: `{"hypotheses": [
		{"name": "Acute coronary syndrome", "rationale": "chest pain radiating to arm", "probability": 0.6, "red_flag": true}
	]}`}
	engine := NewDiagnosisEngine(provider)
	turn := &state.Turn{Symptoms: []state.Symptom{{Name: "chest pain"}}}

	err := engine.Run(context.Background(), turn)
	require.NoError(t, err)
	assert.Equal(t, state.IntentEmergency, turn.Intent)
	assert.True(t, turn.Terminal())
	assert.Contains(t, turn.FinalResponse, "emergency")
}

func TestDiagnosisEngine_RedFlagBelowMaxHypothesesCutoffStillEscalates(t *testing.T) {
	provider := &fakeProvider{response: `{"hypotheses": [
		{"name": "Tension headache", "rationale": "stress", "probability": 0.9, "red_flag": false},
		{"name": "Migraine", "rationale": "photophobia", "probability": 0.85, "red_flag": false},
		{"name": "Sinusitis", "rationale": "congestion", "probability": 0.8, "red_flag": false},
		{"name": "Dehydration", "rationale": "low fluid intake", "probability": 0.75, "red_flag": false},
		{"name": "Eye strain", "rationale": "screen time", "probability": 0.7, "red_flag": false},
		{"name": "Possible stroke", "rationale": "face drooping", "probability": 0.1, "red_flag": true}
	]}`}
	engine := NewDiagnosisEngine(provider)
	turn := &state.Turn{Symptoms: []state.Symptom{{Name: "headache"}}}

	err := engine.Run(context.Background(), turn)
	require.NoError(t, err)
	require.Len(t, turn.Diagnosis, MaxHypotheses)
	assert.Equal(t, state.IntentEmergency, turn.Intent)
	assert.Contains(t, turn.FinalResponse, "emergency")
}

func TestDiagnosisEngine_DegradesToHeuristicOnMalformedResponse(t *testing.T) {
	provider := &fakeProvider{response: "not json at all"}
	engine := NewDiagnosisEngine(provider)
	turn := &state.Turn{Symptoms: []state.Symptom{{Name: "rash"}}}

	err := engine.Run(context.Background(), turn)
	require.NoError(t, err)
	require.Len(t, turn.Diagnosis, 1)
	assert.Contains(t, turn.Diagnosis[0].Name, "rash")
}
