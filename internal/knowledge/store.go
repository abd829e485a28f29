// Package knowledge implements the read-only FAQ + clinic profile lookup
// ConversationAgent uses: exact match, a light semantic fallback, and a
// bounded LRU cache over query results (spec.md §3, "KnowledgeStore").
package knowledge

import (
	"context"
	"strings"
	"sync"
)

// Entry is one FAQ record.
type Entry struct {
	Question string
	Answer   string
	Tags     []string
}

// SearchResult pairs an Entry with how well it matched a query.
type SearchResult struct {
	Question string
	Answer   string
	Score    float64
}

// Store is an in-memory FAQ/clinic-profile knowledge base. It is
// read-mostly (spec.md §5): entries are loaded once at startup and never
// mutated by a turn.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	cache   *lru
}

// New builds a Store over entries with a cache of the given capacity (0
// defaults to 100, per spec.md §5).
func New(entries []Entry, cacheCapacity int) *Store {
	return &Store{
		entries: entries,
		cache:   newLRU(cacheCapacity),
	}
}

// Search returns up to limit matches for query, preferring an exact
// (case-insensitive) question match, then falling back to a token-overlap
// semantic score. Results for an identical query are served from cache
// within the cache's lifetime (spec.md §8, P7 — idempotence within a
// cache window).
func (s *Store) Search(ctx context.Context, query string, limit int) []SearchResult {
	key := strings.ToLower(strings.TrimSpace(query))

	s.mu.Lock()
	if cached, ok := s.cache.get(key); ok {
		s.mu.Unlock()
		return limitResults(cached, limit)
	}
	s.mu.Unlock()

	results := s.search(key)

	s.mu.Lock()
	s.cache.put(key, results)
	s.mu.Unlock()

	return limitResults(results, limit)
}

func (s *Store) search(key string) []SearchResult {
	var exact []SearchResult
	var semantic []SearchResult

	queryTokens := tokenize(key)

	for _, e := range s.entries {
		if strings.EqualFold(strings.TrimSpace(e.Question), strings.TrimSpace(key)) {
			exact = append(exact, SearchResult{Question: e.Question, Answer: e.Answer, Score: 1.0})
			continue
		}

		score := overlapScore(queryTokens, tokenize(e.Question), tokenize(strings.Join(e.Tags, " ")))
		if score > 0 {
			semantic = append(semantic, SearchResult{Question: e.Question, Answer: e.Answer, Score: score})
		}
	}

	if len(exact) > 0 {
		return append(exact, sortByScore(semantic)...)
	}
	return sortByScore(semantic)
}

// Threshold below which ConversationAgent should treat a search as "no
// match" and refine intent to unknown (spec.md §4.9).
const MatchConfidenceThreshold = 0.2

func tokenize(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		out[strings.Trim(f, ".,?!;:")] = true
	}
	return out
}

func overlapScore(query, candidate, tags map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for t := range query {
		if candidate[t] || tags[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

func sortByScore(results []SearchResult) []SearchResult {
	sorted := make([]SearchResult, len(results))
	copy(sorted, results)
	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].Score > sorted[i].Score {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	return sorted
}

func limitResults(results []SearchResult, limit int) []SearchResult {
	if limit <= 0 || len(results) <= limit {
		return results
	}
	return results[:limit]
}
