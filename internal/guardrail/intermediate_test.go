package guardrail

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/triage/internal/state"
)

type scriptedProvider struct {
	responses []string
	calls     int
}

func (f *scriptedProvider) next() string {
	if f.calls >= len(f.responses) {
		return f.responses[len(f.responses)-1]
	}
	r := f.responses[f.calls]
	f.calls++
	return r
}

func (f *scriptedProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return f.next(), nil
}
func (f *scriptedProvider) GenerateStructured(ctx context.Context, system, user, schema string) (string, error) {
	return f.next(), nil
}
func (f *scriptedProvider) GenerateMultimodal(ctx context.Context, system, user string, image *state.Image, schema string) (string, error) {
	return f.next(), nil
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestIntermediate_CheckInput_RateLimitsAfterThreshold(t *testing.T) {
	rdb := newTestRedis(t)
	t2 := NewIntermediate(rdb, nil, RateLimitConfig{MaxMessages: 1, Window: time.Minute}, 3)

	first := &state.Turn{SessionID: "s1", UserInput: "hello"}
	_, err := t2.CheckInput(context.Background(), first)
	require.NoError(t, err)
	assert.False(t, first.Terminal())

	second := &state.Turn{SessionID: "s1", UserInput: "hello again"}
	action, err := t2.CheckInput(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, state.ActionBlock, action)
}

func TestIntermediate_CheckInput_ClassifiesEmergencyViaLLM(t *testing.T) {
	rdb := newTestRedis(t)
	provider := &scriptedProvider{responses: []string{`{"intent": "emergency", "is_out_of_scope": false, "is_suspicious": false}`}}
	t2 := NewIntermediate(rdb, provider, DefaultRateLimitConfig(), 3)

	turn := &state.Turn{SessionID: "s2", UserInput: "something ambiguous"}
	action, err := t2.CheckInput(context.Background(), turn)
	require.NoError(t, err)
	assert.Equal(t, state.ActionRedirect, action)
	assert.Equal(t, state.IntentEmergency, turn.Intent)
}

func TestIntermediate_CheckOutput_HedgesAssertedDosage(t *testing.T) {
	rdb := newTestRedis(t)
	provider := &scriptedProvider{responses: []string{`{"asserts_diagnosis": false, "asserts_dosage": true}`}}
	t2 := NewIntermediate(rdb, provider, DefaultRateLimitConfig(), 3)

	turn := &state.Turn{GuardrailAction: state.ActionAllow, FinalResponse: "Take 500mg every 4 hours."}
	_, err := t2.CheckOutput(context.Background(), turn)
	require.NoError(t, err)
	assert.Contains(t, turn.FinalResponse, "only a clinician can confirm")
}
