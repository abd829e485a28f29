package guardrail

import (
	"context"
	"strings"

	"github.com/clinicflow/triage/internal/state"
)

// Simple is Tier 1: curated keyword sets and length bounds only, no
// external calls (spec.md §4.11, target latency < 2ms).
type Simple struct {
	MaxInputLen int
}

// NewSimple builds a Tier 1 check. maxInputLen <= 0 defaults to 4000.
func NewSimple(maxInputLen int) *Simple {
	if maxInputLen <= 0 {
		maxInputLen = 4000
	}
	return &Simple{MaxInputLen: maxInputLen}
}

var profanityKeywords = []string{
	"fuck", "shit", "asshole", "bitch",
	"đồ ngu", "đụ má", "địt",
}

var outOfScopeKeywords = []string{
	"stock price", "crypto", "lottery numbers", "write me code",
	"giá cổ phiếu", "xổ số",
}

func (s *Simple) CheckInput(ctx context.Context, t *state.Turn) (state.GuardrailAction, error) {
	if len(t.UserInput) > s.MaxInputLen {
		return blockWith(t, genericBlockFallback), nil
	}

	lower := strings.ToLower(t.UserInput)
	if containsAnyKeyword(lower, emergencyGuardrailKeywords) {
		return redirectToEmergency(t), nil
	}
	if containsAnyKeyword(lower, profanityKeywords) {
		t.GuardrailAction = state.ActionWarn
		return state.ActionWarn, nil
	}
	if containsAnyKeyword(lower, outOfScopeKeywords) {
		t.Intent = state.IntentOutOfScope
		t.GuardrailAction = state.ActionAllow
		return state.ActionAllow, nil
	}

	t.GuardrailAction = state.ActionAllow
	return state.ActionAllow, nil
}

// CheckOutput applies only the cheap check Tier 1 can do without a
// model: it hedges an unhedged "you have X" diagnosis assertion. It does
// not check the response for PII leakage.
func (s *Simple) CheckOutput(ctx context.Context, t *state.Turn) (state.GuardrailAction, error) {
	if t.GuardrailAction == state.ActionBlock {
		return state.ActionBlock, nil
	}
	if looksLikeUnhedgedDiagnosis(t.FinalResponse) {
		t.FinalResponse = hedge(t.FinalResponse)
		return state.ActionWarn, nil
	}
	return state.ActionAllow, nil
}

func containsAnyKeyword(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

var unhedgedDiagnosisPhrases = []string{
	"you have ", "you are suffering from ", "this is definitely ", "bạn bị ", "bạn chắc chắn bị ",
}

func looksLikeUnhedgedDiagnosis(text string) bool {
	lower := strings.ToLower(text)
	return containsAnyKeyword(lower, unhedgedDiagnosisPhrases)
}

func hedge(text string) string {
	return "Based on what you've described, this may be consistent with the following, " +
		"but only a clinician can confirm a diagnosis: " + text
}
