package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/clinicflow/triage/internal/llmclient"
)

// LLMRerankerConfig configures LLMReranker.
type LLMRerankerConfig struct {
	TopK           int
	ScoreThreshold float64
	BatchSize      int
}

// DefaultLLMRerankerConfig matches spec.md §4.7's default k2 of 5.
func DefaultLLMRerankerConfig() LLMRerankerConfig {
	return LLMRerankerConfig{TopK: 5, BatchSize: 5}
}

// LLMReranker scores query-passage pairs with an LLM and combines that
// score with the original retrieval score, grounded directly on
// rag/retriever/llm_reranker.go's batch-scoring/weighted-combination
// design (kept here near-verbatim in algorithm, retargeted from
// rag.DocumentSearchResult to retrieval.Passage).
type LLMReranker struct {
	provider llmclient.Provider
	cfg      LLMRerankerConfig
}

// NewLLMReranker builds a reranker over provider.
func NewLLMReranker(provider llmclient.Provider, cfg LLMRerankerConfig) *LLMReranker {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	return &LLMReranker{provider: provider, cfg: cfg}
}

const rerankSystemPrompt = "You are a relevance scoring assistant. Rate how well each passage answers " +
	"the query on a scale of 0.0 to 1.0, where 1.0 is perfectly relevant and 0.0 is not relevant."

// Rerank implements Reranker.
func (r *LLMReranker) Rerank(ctx context.Context, query string, passages []Passage, k int) ([]Passage, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = r.cfg.TopK
	}

	scores := make([]float64, len(passages))
	for i := 0; i < len(passages); i += r.cfg.BatchSize {
		end := min(i+r.cfg.BatchSize, len(passages))
		batch := passages[i:end]

		batchScores, err := r.scoreBatch(ctx, query, batch)
		if err != nil {
			for j := i; j < end; j++ {
				scores[j] = passages[j].Score
			}
			continue
		}
		copy(scores[i:end], batchScores)
	}

	type scored struct {
		passage Passage
		score   float64
	}
	combined := make([]scored, len(passages))
	for i, p := range passages {
		const llmWeight, originalWeight = 0.7, 0.3
		final := llmWeight*scores[i] + originalWeight*p.Score
		combined[i] = scored{passage: Passage{
			Content:  p.Content,
			SourceID: p.SourceID,
			Score:    final,
			Metadata: p.Metadata,
		}, score: final}
	}

	sort.Slice(combined, func(i, j int) bool { return combined[i].score > combined[j].score })

	var filtered []scored
	if r.cfg.ScoreThreshold > 0 {
		for _, c := range combined {
			if c.score >= r.cfg.ScoreThreshold {
				filtered = append(filtered, c)
			}
		}
	} else {
		filtered = combined
	}

	if len(filtered) > k {
		filtered = filtered[:k]
	}

	results := make([]Passage, len(filtered))
	for i, f := range filtered {
		results[i] = f.passage
	}
	return results, nil
}

func (r *LLMReranker) scoreBatch(ctx context.Context, query string, passages []Passage) ([]float64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nPassages:\n", query)
	for i, p := range passages {
		content := p.Content
		const maxLen = 500
		if len(content) > maxLen {
			content = content[:maxLen] + "..."
		}
		fmt.Fprintf(&b, "[%d] %s\n", i+1, content)
	}

	raw, err := r.provider.Generate(ctx, b.String()+"\nReturn scores as a JSON array [s1, s2, ...] of floats 0.0-1.0, one per passage, in order.")
	if err != nil {
		return nil, fmt.Errorf("retrieval: rerank generation: %w", err)
	}

	return parseScores(raw, len(passages))
}

// parseScores mirrors the teacher's JSON-array-then-number-extraction
// fallback exactly (rag/retriever/llm_reranker.go: parseScores/extractNumbers).
func parseScores(response string, expectedCount int) ([]float64, error) {
	response = strings.TrimSpace(llmclient.ExtractJSON(response))

	if strings.HasPrefix(response, "[") {
		var raw []float64
		if err := json.Unmarshal([]byte(response), &raw); err == nil && len(raw) == expectedCount {
			return raw, nil
		}
	}
	return extractNumbers(response, expectedCount), nil
}

func extractNumbers(text string, expectedCount int) []float64 {
	scores := make([]float64, 0, expectedCount)
	for _, s := range strings.Fields(strings.NewReplacer("[", " ", "]", " ", ",", " ").Replace(text)) {
		var num float64
		if _, err := fmt.Sscanf(s, "%f", &num); err == nil && num >= 0 && num <= 1 {
			scores = append(scores, num)
			if len(scores) == expectedCount {
				break
			}
		}
	}
	if len(scores) < expectedCount {
		defaults := make([]float64, expectedCount)
		for i := range defaults {
			defaults[i] = 0.5
		}
		copy(defaults, scores)
		return defaults
	}
	return scores
}
