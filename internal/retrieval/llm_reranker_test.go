package retrieval

import (
	"context"
	"testing"

	"github.com/clinicflow/triage/internal/llmclient"
	"github.com/clinicflow/triage/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

var _ llmclient.Provider = (*fakeProvider)(nil)

func TestRerank_CombinesScoresAndTrimsToK(t *testing.T) {
	p := &fakeProvider{response: "[0.9, 0.1]"}
	r := NewLLMReranker(p, LLMRerankerConfig{TopK: 1})

	passages := []Passage{
		{Content: "dermatology passage about rashes", SourceID: "a", Score: 0.5},
		{Content: "unrelated passage", SourceID: "b", Score: 0.8},
	}

	results, err := r.Rerank(context.Background(), "itchy red rash", passages, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].SourceID)
}

func TestRerank_DegradesToOriginalScoresOnProviderFailure(t *testing.T) {
	p := &fakeProvider{err: assert.AnError}
	r := NewLLMReranker(p, DefaultLLMRerankerConfig())

	passages := []Passage{{Content: "x", SourceID: "a", Score: 0.7}}
	results, err := r.Rerank(context.Background(), "q", passages, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestExtractNumbers_FallsBackWhenUnparseable(t *testing.T) {
	scores, err := parseScores("I cannot compute this.", 2)
	require.NoError(t, err)
	assert.Len(t, scores, 2)
}
