package agents

import (
	"context"

	"github.com/clinicflow/triage/internal/llmclient"
	"github.com/clinicflow/triage/internal/state"
)

const symptomExtractorSystemPrompt = "You extract structured symptoms from bilingual (English/Vietnamese) " +
	"patient text. Unknown fields are left empty. If nothing resembling a symptom is present, return an " +
	"empty list — that is a valid outcome."

// SymptomExtractor implements spec.md §4.4.
type SymptomExtractor struct {
	Extractor *llmclient.Extractor
}

func NewSymptomExtractor(provider llmclient.Provider) *SymptomExtractor {
	return &SymptomExtractor{Extractor: llmclient.NewExtractor(provider)}
}

type symptomResult struct {
	Name      string   `json:"name"`
	Duration  string   `json:"duration"`
	Severity  string   `json:"severity"`
	Site      string   `json:"site"`
	Modifiers []string `json:"modifiers"`
}

type symptomsResponse struct {
	Symptoms []symptomResult `json:"symptoms"`
}

func (s *SymptomExtractor) Run(ctx context.Context, t *state.Turn) error {
	text := t.UserInput
	if t.ImageAnalysis != nil {
		text += "\n" + t.ImageAnalysis.Description
	}

	var result symptomsResponse
	err := s.Extractor.Generate(ctx, symptomExtractorSystemPrompt, text,
		`{"symptoms": [{"name": string, "duration": string, "severity": "mild|moderate|severe", "site": string, "modifiers": [string]}]}`,
		&result,
		func() error {
			result.Symptoms = heuristicSymptoms(text)
			return nil
		})
	if err != nil {
		t.AppendMessage("symptom_extractor", text, "", "symptom extraction degraded: "+err.Error())
		return nil
	}

	for _, sym := range result.Symptoms {
		sev := state.Severity(sym.Severity)
		switch sev {
		case state.SeverityMild, state.SeverityModerate, state.SeveritySevere:
		default:
			sev = ""
		}
		t.Symptoms = append(t.Symptoms, state.Symptom{
			Name:      sym.Name,
			Duration:  sym.Duration,
			Severity:  sev,
			Site:      sym.Site,
			Modifiers: sym.Modifiers,
		})
	}
	t.AppendMessage("symptom_extractor", text, symptomSummary(t.Symptoms), "")
	return nil
}

// heuristicSymptoms is the deterministic fallback when structured
// extraction fails twice: a single catch-all entry carrying the raw
// text as its name, so downstream agents at least see something.
func heuristicSymptoms(text string) []symptomResult {
	if len(text) == 0 {
		return nil
	}
	return []symptomResult{{Name: text}}
}

func symptomSummary(symptoms []state.Symptom) string {
	if len(symptoms) == 0 {
		return "no symptoms identified"
	}
	names := make([]string, len(symptoms))
	for i, s := range symptoms {
		names[i] = s.Name
	}
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}
