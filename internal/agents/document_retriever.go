package agents

import (
	"context"
	"strconv"
	"strings"

	"github.com/clinicflow/triage/internal/retrieval"
	"github.com/clinicflow/triage/internal/state"
)

// CandidateK is the initial vector-search width (spec.md §4.7, "k1 ~ 20").
const CandidateK = 20

// EvidenceK is the reranked result width (spec.md §4.7, "default 5").
const EvidenceK = 5

// DocumentRetriever implements spec.md §4.7: VectorIndex search then
// Reranker, degrading to empty evidence (never erroring) if the index
// is unavailable.
type DocumentRetriever struct {
	Index    retrieval.VectorIndex
	Reranker retrieval.Reranker
}

func NewDocumentRetriever(index retrieval.VectorIndex, reranker retrieval.Reranker) *DocumentRetriever {
	return &DocumentRetriever{Index: index, Reranker: reranker}
}

func (r *DocumentRetriever) Run(ctx context.Context, t *state.Turn) error {
	query := buildRetrievalQuery(t)
	if r.Index == nil {
		t.AppendMessage("document_retriever", query, "", "vector store unavailable, evidence left empty")
		return nil
	}

	candidates, err := r.Index.Search(ctx, query, CandidateK)
	if err != nil || len(candidates) == 0 {
		warning := "no candidate passages found"
		if err != nil {
			warning = "vector search failed: " + err.Error()
		}
		t.AppendMessage("document_retriever", query, "", warning)
		return nil
	}

	ranked := candidates
	if r.Reranker != nil {
		if reranked, rerr := r.Reranker.Rerank(ctx, query, candidates, EvidenceK); rerr == nil {
			ranked = reranked
		} else {
			t.AppendMessage("document_retriever", query, "", "rerank failed, truncating unranked candidates: "+rerr.Error())
		}
	}
	if len(ranked) > EvidenceK {
		ranked = ranked[:EvidenceK]
	}

	for _, p := range ranked {
		t.Evidence = append(t.Evidence, state.EvidencePassage{
			Passage:   p.Content,
			SourceID:  p.SourceID,
			Relevance: p.Score,
		})
	}
	t.AppendMessage("document_retriever", query, strconv.Itoa(len(t.Evidence))+" evidence passages retrieved", "")
	return nil
}

// buildRetrievalQuery combines the top hypotheses with salient symptom
// terms (spec.md §4.7, "top hypotheses plus salient symptom terms").
func buildRetrievalQuery(t *state.Turn) string {
	var parts []string
	for i, h := range t.Diagnosis {
		if i >= 3 {
			break
		}
		parts = append(parts, h.Name)
	}
	for _, s := range t.Symptoms {
		parts = append(parts, s.Name)
	}
	return strings.Join(parts, " ")
}
