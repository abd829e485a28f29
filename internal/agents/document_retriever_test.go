package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/triage/internal/apperr"
	"github.com/clinicflow/triage/internal/retrieval"
	"github.com/clinicflow/triage/internal/state"
)

type fakeVectorIndex struct {
	passages []retrieval.Passage
	err      error
}

func (f *fakeVectorIndex) Search(ctx context.Context, query string, k int) ([]retrieval.Passage, error) {
	return f.passages, f.err
}
func (f *fakeVectorIndex) Add(ctx context.Context, passages []retrieval.Passage) error { return nil }

type fakeReranker struct {
	err error
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, passages []retrieval.Passage, k int) ([]retrieval.Passage, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(passages) > k {
		passages = passages[:k]
	}
	return passages, nil
}

func candidatePassages(n int) []retrieval.Passage {
	out := make([]retrieval.Passage, n)
	for i := range out {
		out[i] = retrieval.Passage{Content: "passage", SourceID: "doc"}
	}
	return out
}

func TestDocumentRetriever_RerankSuccessTruncatesToEvidenceK(t *testing.T) {
	index := &fakeVectorIndex{passages: candidatePassages(CandidateK)}
	r := NewDocumentRetriever(index, &fakeReranker{})
	turn := &state.Turn{Diagnosis: []state.Hypothesis{{Name: "Migraine"}}}

	err := r.Run(context.Background(), turn)
	require.NoError(t, err)
	assert.Len(t, turn.Evidence, EvidenceK)
}

func TestDocumentRetriever_RerankFailureStillTruncatesToEvidenceK(t *testing.T) {
	index := &fakeVectorIndex{passages: candidatePassages(CandidateK)}
	r := NewDocumentRetriever(index, &fakeReranker{err: apperr.New(apperr.CodeTimeout, "rerank timed out")})
	turn := &state.Turn{Diagnosis: []state.Hypothesis{{Name: "Migraine"}}}

	err := r.Run(context.Background(), turn)
	require.NoError(t, err)
	assert.Len(t, turn.Evidence, EvidenceK)
}

func TestDocumentRetriever_NoReranker_TruncatesToEvidenceK(t *testing.T) {
	index := &fakeVectorIndex{passages: candidatePassages(CandidateK)}
	r := NewDocumentRetriever(index, nil)
	turn := &state.Turn{Diagnosis: []state.Hypothesis{{Name: "Migraine"}}}

	err := r.Run(context.Background(), turn)
	require.NoError(t, err)
	assert.Len(t, turn.Evidence, EvidenceK)
}
