package agents

import (
	"context"
	"strings"

	"github.com/clinicflow/triage/internal/llmclient"
	"github.com/clinicflow/triage/internal/state"
)

const recommenderSystemPrompt = "You write the final patient-facing message for a medical triage " +
	"assistant. Structure: (1) acknowledge the complaint, (2) a hedged summary of the leading " +
	"possibilities without presenting probabilities as authoritative, (3) recommended next " +
	"questions/tests, (4) a short disclaimer to seek professional care, (5) optional source citations. " +
	"Never prescribe a specific medication or dosage; general drug classes may be mentioned as " +
	"information only. Mirror the language (English or Vietnamese) the patient used."

// Recommender implements spec.md §4.8.
type Recommender struct {
	Extractor *llmclient.Extractor
}

func NewRecommender(provider llmclient.Provider) *Recommender {
	return &Recommender{Extractor: llmclient.NewExtractor(provider)}
}

type recommendationResult struct {
	Response string `json:"response"`
}

func (r *Recommender) Run(ctx context.Context, t *state.Turn) error {
	if len(t.Symptoms) == 0 && t.ImageAnalysis == nil {
		t.FinalResponse = clarificationPrompt()
		t.AppendMessage("recommender", t.UserInput, t.FinalResponse, "")
		return nil
	}

	prompt := buildRecommendationPrompt(t)
	var result recommendationResult
	err := r.Extractor.Generate(ctx, recommenderSystemPrompt, prompt,
		`{"response": string}`,
		&result,
		func() error {
			result.Response = heuristicRecommendation(t)
			return nil
		})
	if err != nil || result.Response == "" {
		result.Response = heuristicRecommendation(t)
	}

	t.FinalResponse = result.Response
	t.AppendMessage("recommender", prompt, result.Response, "")
	return nil
}

func buildRecommendationPrompt(t *state.Turn) string {
	var b strings.Builder
	b.WriteString("Patient said: " + t.UserInput + "\n")
	b.WriteString(describeSymptomsForPrompt(t))
	if len(t.Diagnosis) > 0 {
		b.WriteString("Leading hypotheses:\n")
		for _, h := range t.Diagnosis {
			b.WriteString("- " + h.Name + "\n")
		}
	}
	if len(t.Investigations) > 0 {
		b.WriteString("Suggested follow-ups:\n")
		for _, inv := range t.Investigations {
			if inv.Question != "" {
				b.WriteString("- " + inv.Question + "\n")
			} else {
				b.WriteString("- " + inv.Test + "\n")
			}
		}
	}
	if len(t.Evidence) > 0 {
		b.WriteString("Supporting sources: ")
		for _, e := range t.Evidence {
			b.WriteString(e.SourceID + " ")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// heuristicRecommendation is the deterministic fallback used when the
// model degrades twice (spec.md §9 structured-output contract).
func heuristicRecommendation(t *state.Turn) string {
	var b strings.Builder
	b.WriteString("Thanks for sharing that. ")
	if len(t.Diagnosis) > 0 {
		b.WriteString("Based on what you've described, this could be consistent with " + t.Diagnosis[0].Name + ", among other possibilities, but this is not a diagnosis. ")
	}
	if len(t.Investigations) > 0 {
		b.WriteString("It would help to know: ")
		for _, inv := range t.Investigations {
			if inv.Question != "" {
				b.WriteString(inv.Question + " ")
			}
		}
	}
	b.WriteString("Please consult a licensed clinician for an accurate assessment, especially if symptoms worsen.")
	return b.String()
}

func clarificationPrompt() string {
	return "Could you tell me more about what you're experiencing — for example, what symptom, " +
		"how long it's lasted, and how severe it feels? / Bạn có thể mô tả thêm triệu chứng, " +
		"thời gian kéo dài và mức độ nghiêm trọng không?"
}
