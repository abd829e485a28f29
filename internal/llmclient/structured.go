package llmclient

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/clinicflow/triage/internal/state"
)

// fencedJSON matches a ```json ... ``` or bare ``` ... ``` code fence,
// tolerating the common case where a model wraps its JSON answer in
// markdown even when asked not to (grounded on the teacher's
// fenced/bracket-scanning tolerance in rag/retriever/llm_reranker.go's
// parseScores).
var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ExtractJSON pulls a JSON object or array out of raw model output,
// tolerating a surrounding code fence or leading/trailing prose.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}

	start := -1
	for i, r := range raw {
		if r == '{' || r == '[' {
			start = i
			break
		}
	}
	if start == -1 {
		return raw
	}

	open, close := byte('{'), byte('}')
	if raw[start] == '[' {
		open, close = '[', ']'
	}
	depth := 0
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return raw[start:]
}

// Extractor runs the full structured-output contract every agent uses:
// prompt -> raw text -> fenced-code-tolerant JSON extraction -> schema
// validation (via json.Unmarshal into target) -> one stricter retry ->
// heuristic fallback supplied by the caller (spec.md §9, "LLM structured
// output").
type Extractor struct {
	Provider Provider
}

// NewExtractor wraps a Provider with the structured-output contract.
func NewExtractor(p Provider) *Extractor {
	return &Extractor{Provider: p}
}

// Generate calls the provider, extracts JSON, and unmarshals into out.
// On a parse failure it retries once with a stricter system prompt; if
// that also fails it invokes fallback (which must populate out itself)
// and returns fallback's error, if any.
func (e *Extractor) Generate(ctx context.Context, systemPrompt, userPrompt, schemaHint string, out any, fallback func() error) error {
	raw, err := e.Provider.GenerateStructured(ctx, systemPrompt, userPrompt, schemaHint)
	if err == nil {
		if perr := json.Unmarshal([]byte(ExtractJSON(raw)), out); perr == nil {
			return nil
		}
	}

	strictSystem := systemPrompt + "\nReturn ONLY valid JSON matching the requested shape. No prose, no markdown fences."
	raw, err = e.Provider.GenerateStructured(ctx, strictSystem, userPrompt, schemaHint)
	if err == nil {
		if perr := json.Unmarshal([]byte(ExtractJSON(raw)), out); perr == nil {
			return nil
		}
	}

	if fallback != nil {
		return fallback()
	}
	return err
}

// GenerateMultimodal is Generate's counterpart for the single batched
// call ImageAnalyzer makes: same fence-tolerant-parse-then-retry
// contract, routed through the image-aware provider method.
func (e *Extractor) GenerateMultimodal(ctx context.Context, systemPrompt, userPrompt string, image *state.Image, schemaHint string, out any, fallback func() error) error {
	raw, err := e.Provider.GenerateMultimodal(ctx, systemPrompt, userPrompt, image, schemaHint)
	if err == nil {
		if perr := json.Unmarshal([]byte(ExtractJSON(raw)), out); perr == nil {
			return nil
		}
	}

	strictSystem := systemPrompt + "\nReturn ONLY valid JSON matching the requested shape. No prose, no markdown fences."
	raw, err = e.Provider.GenerateMultimodal(ctx, strictSystem, userPrompt, image, schemaHint)
	if err == nil {
		if perr := json.Unmarshal([]byte(ExtractJSON(raw)), out); perr == nil {
			return nil
		}
	}

	if fallback != nil {
		return fallback()
	}
	return err
}
