package agents

import (
	"context"
	"strconv"
	"strings"

	"github.com/clinicflow/triage/internal/llmclient"
	"github.com/clinicflow/triage/internal/state"
)

const investigationSystemPrompt = "Given a ranked differential diagnosis, propose up to 6 follow-up " +
	"questions or tests that best discriminate among the leading hypotheses. Do not ask about facts the " +
	"patient has already stated."

// MaxInvestigations bounds InvestigationGenerator's output (spec.md
// §4.6, "a short list (<= 6)").
const MaxInvestigations = 6

// InvestigationGenerator implements spec.md §4.6.
type InvestigationGenerator struct {
	Extractor *llmclient.Extractor
}

func NewInvestigationGenerator(provider llmclient.Provider) *InvestigationGenerator {
	return &InvestigationGenerator{Extractor: llmclient.NewExtractor(provider)}
}

type investigationResult struct {
	Question string   `json:"question"`
	Test     string   `json:"test"`
	Reason   string   `json:"reason"`
	Targets  []string `json:"targets"`
}

type investigationResponse struct {
	Investigations []investigationResult `json:"investigations"`
}

func (g *InvestigationGenerator) Run(ctx context.Context, t *state.Turn) error {
	prompt := describeSymptomsForPrompt(t) + "\nDifferential:\n"
	for _, h := range t.Diagnosis {
		prompt += "- " + h.Name + " (" + formatProbability(h.Probability) + "): " + h.Rationale + "\n"
	}
	alreadyStated := alreadyStatedFacts(t)
	prompt += "Already known (do not re-ask): " + alreadyStated + "\n"

	var result investigationResponse
	err := g.Extractor.Generate(ctx, investigationSystemPrompt, prompt,
		`{"investigations": [{"question": string, "test": string, "reason": string, "targets": [string]}]}`,
		&result,
		func() error { return nil })
	if err != nil {
		t.AppendMessage("investigation", prompt, "", "investigation generation degraded: "+err.Error())
		return nil
	}

	for _, inv := range result.Investigations {
		if len(t.Investigations) >= MaxInvestigations {
			break
		}
		if inv.Question != "" && alreadyKnown(inv.Question, alreadyStated) {
			continue
		}
		t.Investigations = append(t.Investigations, state.Investigation{
			Question: inv.Question,
			Test:     inv.Test,
			Reason:   inv.Reason,
			Targets:  inv.Targets,
		})
	}
	t.AppendMessage("investigation", prompt, formatProbability(float64(len(t.Investigations))), "")
	return nil
}

func alreadyStatedFacts(t *state.Turn) string {
	parts := make([]string, 0, len(t.Symptoms))
	for _, s := range t.Symptoms {
		parts = append(parts, s.Name)
	}
	return strings.Join(parts, ", ")
}

func alreadyKnown(question, facts string) bool {
	lowerQ := strings.ToLower(question)
	for _, f := range strings.Split(facts, ",") {
		f = strings.TrimSpace(strings.ToLower(f))
		if f != "" && strings.Contains(lowerQ, f) {
			return true
		}
	}
	return false
}

func formatProbability(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
