// Package retrieval provides the VectorIndex and Reranker capability
// interfaces DocumentRetriever depends on (spec.md §2, §4.7, §6), plus
// default implementations grounded on the teacher's rag package:
// chromem-go for the vector index (rag/store/chromem.go) and an
// LLM-scored reranker (rag/retriever/llm_reranker.go).
package retrieval

import "context"

// Passage is one candidate or retrieved document.
type Passage struct {
	Content  string
	SourceID string
	Score    float64
	Metadata map[string]any
}

// VectorIndex is the approximate-nearest-neighbor search capability
// (spec.md §2, "VectorIndex"). Embedding is the index's concern, not the
// caller's — DocumentRetriever only ever deals in query text.
type VectorIndex interface {
	Search(ctx context.Context, query string, k int) ([]Passage, error)
	Add(ctx context.Context, passages []Passage) error
}

// Reranker reorders a candidate passage list against a query, returning
// the top k (spec.md §2, "Reranker").
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []Passage, k int) ([]Passage, error)
}
