package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleStore() *Store {
	return New([]Entry{
		{Question: "What are your hours?", Answer: "Weekdays 8am-6pm, weekends 9am-1pm.", Tags: []string{"hours", "schedule"}},
		{Question: "Do you accept insurance?", Answer: "Yes, most major providers.", Tags: []string{"insurance", "billing"}},
	}, 10)
}

func TestSearch_ExactMatch(t *testing.T) {
	s := sampleStore()
	results := s.Search(context.Background(), "What are your hours?", 5)
	assert.NotEmpty(t, results)
	assert.Equal(t, 1.0, results[0].Score)
	assert.Contains(t, results[0].Answer, "Weekdays")
}

func TestSearch_SemanticFallback(t *testing.T) {
	s := sampleStore()
	results := s.Search(context.Background(), "what hours are you open", 5)
	assert.NotEmpty(t, results)
	assert.Contains(t, results[0].Answer, "Weekdays")
}

func TestSearch_CacheIsIdempotent(t *testing.T) {
	s := sampleStore()
	first := s.Search(context.Background(), "What are your hours?", 5)
	second := s.Search(context.Background(), "What are your hours?", 5)
	assert.Equal(t, first, second)
}

func TestSearch_NoMatchBelowThreshold(t *testing.T) {
	s := sampleStore()
	results := s.Search(context.Background(), "xyz completely unrelated gibberish", 5)
	for _, r := range results {
		assert.Less(t, r.Score, MatchConfidenceThreshold)
	}
}
