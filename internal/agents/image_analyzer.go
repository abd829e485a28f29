package agents

import (
	"context"
	"strings"

	"github.com/clinicflow/triage/internal/llmclient"
	"github.com/clinicflow/triage/internal/state"
)

const imageAnalyzerSystemPrompt = "You are a clinical image triage assistant. Given an image and the " +
	"patient's description, produce a plain-language description of what the image shows and answer a " +
	"bounded set of focused follow-up questions, in one response. Never issue a diagnosis from the image " +
	"alone."

// ImageAnalyzer implements spec.md §4.3: a single batched model call
// producing description, visual_qa, and confidence together — it must
// never issue one call per question.
type ImageAnalyzer struct {
	Extractor *llmclient.Extractor
}

// NewImageAnalyzer builds an ImageAnalyzer over provider.
func NewImageAnalyzer(provider llmclient.Provider) *ImageAnalyzer {
	return &ImageAnalyzer{Extractor: llmclient.NewExtractor(provider)}
}

type imageAnalysisResult struct {
	Description string            `json:"description"`
	VisualQA    map[string]string `json:"visual_qa"`
	Confidence  float64           `json:"confidence"`
}

func (a *ImageAnalyzer) Run(ctx context.Context, t *state.Turn) error {
	if t.Image == nil {
		return nil
	}

	questions := focusQuestions(t.UserInput)
	var qb strings.Builder
	for i, q := range questions {
		qb.WriteString(q)
		if i < len(questions)-1 {
			qb.WriteString("; ")
		}
	}

	userPrompt := "Patient description: " + t.UserInput + "\nAnswer these focused questions about the " +
		"image: " + qb.String()
	schemaHint := `{"description": string, "visual_qa": {"<question>": "<answer>"}, "confidence": float}`

	var result imageAnalysisResult
	err := a.Extractor.GenerateMultimodal(ctx, imageAnalyzerSystemPrompt, userPrompt, t.Image, schemaHint, &result,
		func() error {
			t.AppendMessage("image_analyzer", t.UserInput, "", "image analysis degraded to null after two malformed responses")
			return nil
		})
	if err != nil {
		t.AppendMessage("image_analyzer", t.UserInput, "", "image analysis failed: "+err.Error())
		return nil
	}
	if result.Description == "" {
		// The fallback path populated nothing; leave ImageAnalysis nil per
		// spec.md §4.3 ("a second failure sets image_analysis = null").
		return nil
	}

	result.Confidence = clamp01(result.Confidence)
	t.ImageAnalysis = &state.ImageAnalysis{
		Description: result.Description,
		VisualQA:    result.VisualQA,
		Confidence:  result.Confidence,
	}
	t.AppendMessage("image_analyzer", t.UserInput, result.Description, "")
	return nil
}

// focusQuestions derives a bounded set of questions from the user's
// free-text symptom description rather than asking the model one
// question per candidate symptom (which would defeat the single-call
// contract).
func focusQuestions(userInput string) []string {
	base := []string{
		"What visible abnormality, if any, is present?",
		"What color and texture does the affected area show?",
		"Is there visible swelling, discharge, or bleeding?",
	}
	if strings.TrimSpace(userInput) == "" {
		return base
	}
	return append(base, "How does this relate to the patient's description: \""+userInput+"\"?")
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
