package supervisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/clinicflow/triage/internal/llmclient"
	"github.com/clinicflow/triage/internal/state"
)

// LLMClassifier classifies intent with a model, falling back to the
// deterministic heuristic on any parse failure — it never surfaces an
// error to the Supervisor (spec.md §4.1).
type LLMClassifier struct {
	Extractor *llmclient.Extractor
}

// NewLLMClassifier wraps a Provider for intent classification.
func NewLLMClassifier(provider llmclient.Provider) *LLMClassifier {
	return &LLMClassifier{Extractor: llmclient.NewExtractor(provider)}
}

type classifyResult struct {
	Intent string `json:"intent"`
}

const classifySystemPrompt = `You classify a single patient message for a clinic triage system.
Respond with the single best intent from: faq, appointment, symptoms, image_analysis, emergency, out_of_scope, unknown.
Choose emergency whenever the message describes a potential medical emergency, in any language.`

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, userInput string, hasImage bool, recentHistory []state.HistoryEntry) (state.Intent, error) {
	var history strings.Builder
	for _, h := range recentHistory {
		fmt.Fprintf(&history, "%s: %s\n", h.Role, h.Text)
	}

	userPrompt := fmt.Sprintf("Recent history:\n%s\nHas image: %v\nMessage: %s", history.String(), hasImage, userInput)

	var result classifyResult
	err := c.Extractor.Generate(ctx, classifySystemPrompt, userPrompt, `{"intent":"one of faq|appointment|symptoms|image_analysis|emergency|out_of_scope|unknown"}`, &result, func() error {
		result.Intent = string(HeuristicClassify(userInput, hasImage, recentHistory))
		return nil
	})
	if err != nil {
		return HeuristicClassify(userInput, hasImage, recentHistory), err
	}

	switch state.Intent(result.Intent) {
	case state.IntentFAQ, state.IntentAppointment, state.IntentSymptoms, state.IntentImage,
		state.IntentEmergency, state.IntentOutOfScope, state.IntentUnknown:
		return state.Intent(result.Intent), nil
	default:
		return HeuristicClassify(userInput, hasImage, recentHistory), nil
	}
}
