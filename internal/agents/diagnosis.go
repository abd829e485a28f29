package agents

import (
	"context"
	"sort"
	"strings"

	"github.com/clinicflow/triage/internal/guardrail"
	"github.com/clinicflow/triage/internal/llmclient"
	"github.com/clinicflow/triage/internal/state"
)

const diagnosisSystemPrompt = "You are a clinical differential-diagnosis assistant. Given structured " +
	"symptoms and optional image findings, produce a ranked list of up to 5 hypotheses with " +
	"probabilities summing to at most 1.0 (the residual is implicit 'other/insufficient information'). " +
	"Flag red_flag=true on any hypothesis matching an emergency pattern: acute chest pain with radiating " +
	"features, stroke signs, anaphylaxis, severe uncontrolled bleeding, or similar."

// MaxHypotheses bounds DiagnosisEngine's differential (spec.md §4.5,
// "default 5").
const MaxHypotheses = 5

// redFlagPatterns backs red-flag detection for every hypothesis, both
// the model's and the heuristic fallback's when the LLM degrades.
var redFlagPatterns = []string{
	"chest pain", "radiating pain", "stroke", "face droop", "slurred speech",
	"anaphylaxis", "severe bleeding", "đau ngực", "đột quỵ",
}

// DiagnosisEngine implements spec.md §4.5.
type DiagnosisEngine struct {
	Extractor *llmclient.Extractor
}

func NewDiagnosisEngine(provider llmclient.Provider) *DiagnosisEngine {
	return &DiagnosisEngine{Extractor: llmclient.NewExtractor(provider)}
}

type hypothesisResult struct {
	Name        string  `json:"name"`
	Rationale   string  `json:"rationale"`
	Probability float64 `json:"probability"`
	RedFlag     bool    `json:"red_flag"`
}

type diagnosisResponse struct {
	Hypotheses []hypothesisResult `json:"hypotheses"`
}

func (d *DiagnosisEngine) Run(ctx context.Context, t *state.Turn) error {
	prompt := describeSymptomsForPrompt(t)

	var result diagnosisResponse
	err := d.Extractor.Generate(ctx, diagnosisSystemPrompt, prompt,
		`{"hypotheses": [{"name": string, "rationale": string, "probability": float, "red_flag": bool}]}`,
		&result,
		func() error {
			result.Hypotheses = heuristicDifferential(t)
			return nil
		})
	if err != nil {
		t.AppendMessage("diagnosis", prompt, "", "diagnosis degraded: "+err.Error())
		return nil
	}

	hyps := make([]state.Hypothesis, 0, len(result.Hypotheses))
	for _, h := range result.Hypotheses {
		hyps = append(hyps, state.Hypothesis{
			Name:        h.Name,
			Rationale:   h.Rationale,
			Probability: clamp01(h.Probability),
			RedFlag:     h.RedFlag || containsAnyRedFlag(h.Name+" "+h.Rationale),
		})
	}
	sortHypotheses(hyps)

	// Check the full differential for a red flag before truncating to
	// MaxHypotheses — a dangerous hypothesis ranked below the cutoff must
	// still trigger the emergency escalation.
	hasRedFlag := false
	for _, h := range hyps {
		if h.RedFlag {
			hasRedFlag = true
			break
		}
	}

	if len(hyps) > MaxHypotheses {
		hyps = hyps[:MaxHypotheses]
	}
	t.Diagnosis = hyps

	if hasRedFlag {
		t.Intent = state.IntentEmergency
		t.GuardrailAction = state.ActionRedirect
		t.FinalResponse = guardrail.EmergencyFallback
	}

	t.AppendMessage("diagnosis", prompt, summarizeDiagnosis(hyps), "")
	return nil
}

// sortHypotheses ranks by probability descending; ties break
// alphabetically by name (spec.md §4.5, "deterministic ... alphabetical
// by hypothesis name").
func sortHypotheses(hyps []state.Hypothesis) {
	sort.SliceStable(hyps, func(i, j int) bool {
		if hyps[i].Probability != hyps[j].Probability {
			return hyps[i].Probability > hyps[j].Probability
		}
		return hyps[i].Name < hyps[j].Name
	})
}

func containsAnyRedFlag(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range redFlagPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func heuristicDifferential(t *state.Turn) []hypothesisResult {
	if len(t.Symptoms) == 0 {
		return nil
	}
	lead := t.Symptoms[0]
	redFlag := containsAnyRedFlag(lead.Name)
	return []hypothesisResult{{
		Name:        "Undifferentiated " + lead.Name,
		Rationale:   "Heuristic fallback: insufficient structured data for a confident differential.",
		Probability: 0.3,
		RedFlag:     redFlag,
	}}
}

func describeSymptomsForPrompt(t *state.Turn) string {
	var b strings.Builder
	b.WriteString("Symptoms:\n")
	for _, s := range t.Symptoms {
		b.WriteString("- " + s.Name)
		if s.Duration != "" {
			b.WriteString(" (duration: " + s.Duration + ")")
		}
		if s.Severity != "" {
			b.WriteString(" severity=" + string(s.Severity))
		}
		b.WriteString("\n")
	}
	if t.ImageAnalysis != nil {
		b.WriteString("Image findings: " + t.ImageAnalysis.Description + "\n")
	}
	return b.String()
}

func summarizeDiagnosis(hyps []state.Hypothesis) string {
	if len(hyps) == 0 {
		return "no differential produced"
	}
	return hyps[0].Name
}
