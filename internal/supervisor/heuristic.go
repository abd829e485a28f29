package supervisor

import (
	"strings"

	"github.com/clinicflow/triage/internal/state"
)

// emergencyKeywords are curated, bilingual (English/Vietnamese) terms
// strongly associated with a medical emergency (spec.md §8, P4/P8; S2).
// This is deliberately small and literal — the same pattern the Tier 1
// guardrail keyword scan uses — rather than attempting to be exhaustive;
// DiagnosisEngine's own red-flag patterns are the deeper backstop.
var emergencyKeywords = []string{
	"chest pain", "crushing pain", "can't breathe", "cannot breathe",
	"difficulty breathing", "stroke", "can't speak", "face drooping",
	"anaphylaxis", "severe bleeding", "unconscious", "suicidal", "overdose",
	"đau ngực", "khó thở", "không thở được", "đột quỵ", "bất tỉnh",
	"chảy máu nhiều", "ngất xỉu", "tự tử",
}

var appointmentKeywords = []string{
	"book", "appointment", "schedule", "reschedule", "cancel my", "đặt lịch", "hẹn khám",
}

var faqKeywords = []string{
	"hours", "open", "location", "address", "price", "cost", "insurance",
	"giờ làm việc", "địa chỉ", "giá", "bảo hiểm",
}

// HeuristicClassify is the deterministic fallback used whenever LLM-based
// classification is unavailable or unparseable (spec.md §4.1, "Failure
// semantics"). It never returns an error and never blocks.
func HeuristicClassify(userInput string, hasImage bool, recentHistory []state.HistoryEntry) state.Intent {
	lower := strings.ToLower(userInput)

	if containsAny(lower, emergencyKeywords) {
		return state.IntentEmergency
	}
	if containsAny(lower, appointmentKeywords) {
		return state.IntentAppointment
	}
	if containsAny(lower, faqKeywords) {
		return state.IntentFAQ
	}
	if hasImage {
		return state.IntentImage
	}
	if nonTrivial(userInput) {
		return state.IntentSymptoms
	}
	return state.IntentUnknown
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
