package guardrail

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/triage/internal/state"
)

func TestSimple_CheckInput_RedirectsOnEmergencyKeyword(t *testing.T) {
	s := NewSimple(0)
	turn := &state.Turn{UserInput: "I have crushing chest pain and can't breathe"}

	action, err := s.CheckInput(context.Background(), turn)
	require.NoError(t, err)
	assert.Equal(t, state.ActionRedirect, action)
	assert.Equal(t, state.IntentEmergency, turn.Intent)
	assert.True(t, turn.Terminal())
	assert.Contains(t, turn.FinalResponse, "emergency")
}

func TestSimple_CheckInput_RedirectsOnVietnameseEmergencyKeyword(t *testing.T) {
	s := NewSimple(0)
	turn := &state.Turn{UserInput: "Tôi bị đau ngực dữ dội"}

	action, _ := s.CheckInput(context.Background(), turn)
	assert.Equal(t, state.ActionRedirect, action)
}

func TestSimple_CheckInput_BlocksOverlongInput(t *testing.T) {
	s := NewSimple(10)
	turn := &state.Turn{UserInput: strings.Repeat("a", 20)}

	action, _ := s.CheckInput(context.Background(), turn)
	assert.Equal(t, state.ActionBlock, action)
	assert.True(t, turn.Terminal())
}

func TestSimple_CheckInput_AllowsOrdinarySymptomDescription(t *testing.T) {
	s := NewSimple(0)
	turn := &state.Turn{UserInput: "I've had a mild headache for two days"}

	action, _ := s.CheckInput(context.Background(), turn)
	assert.Equal(t, state.ActionAllow, action)
}

func TestSimple_CheckOutput_HedgesUnhedgedDiagnosis(t *testing.T) {
	s := NewSimple(0)
	turn := &state.Turn{FinalResponse: "You have migraine."}

	_, err := s.CheckOutput(context.Background(), turn)
	require.NoError(t, err)
	assert.Contains(t, turn.FinalResponse, "only a clinician can confirm")
}
