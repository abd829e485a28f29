// Package supervisor implements the stateless policy function that
// decides which agent runs next (spec.md §4.1). It is split, per the
// teacher's own design-notes critique (spec.md §9, "Supervisor as policy,
// not orchestration glue"), into three pieces that were tangled together
// in the source: a pure Decide function, an LLM-backed intent
// classifier used only on first inspection, and a deterministic
// heuristic fallback for when structured classification fails.
package supervisor

import (
	"context"

	"github.com/clinicflow/triage/internal/state"
)

// Decision is what the Supervisor hands back to the turn loop.
type Decision struct {
	NextAgent string // one of the registered agent names, or TERMINATE
	Reasoning string
}

// TERMINATE is the sentinel NextAgent value meaning the turn is done.
const TERMINATE = "TERMINATE"

// Agent names, shared with internal/agents' registry keys.
const (
	AgentConversation     = "conversation"
	AgentAppointment      = "appointment"
	AgentImageAnalyzer    = "image_analyzer"
	AgentSymptomExtractor = "symptom_extractor"
	AgentDiagnosis        = "diagnosis"
	AgentInvestigation    = "investigation"
	AgentDocumentRetrieve = "document_retriever"
	AgentRecommender      = "recommender"
)

// Classifier produces an Intent from a turn's input (spec.md §4.1, step 1
// — "classify from user_input, image presence, history[-3:]"). It must
// never error past the Supervisor: classify below always falls back to
// the heuristic.
type Classifier interface {
	Classify(ctx context.Context, userInput string, hasImage bool, recentHistory []state.HistoryEntry) (state.Intent, error)
}

// Supervisor holds the tunables Decide needs beyond the Turn itself.
// It has no other mutable state — every Decide call is a pure function of
// its inputs, matching spec.md's "stateless policy function" framing.
type Supervisor struct {
	Classifier                 Classifier
	InvestigationSkipThreshold float64 // spec.md §9 open question; default 0.7
}

// New builds a Supervisor. threshold <= 0 defaults to 0.7.
func New(classifier Classifier, threshold float64) *Supervisor {
	if threshold <= 0 {
		threshold = 0.7
	}
	return &Supervisor{Classifier: classifier, InvestigationSkipThreshold: threshold}
}

// Decide applies the priority-ordered rule list from spec.md §4.1. First
// match wins.
func (s *Supervisor) Decide(ctx context.Context, t *state.Turn) Decision {
	// 1. Classify intent on first inspection.
	if t.Intent == state.IntentUnset {
		intent, err := s.classify(ctx, t)
		t.Intent = intent
		t.SetPlanCurrent("supervisor", "classified intent")
		if err != nil {
			t.AppendMessage("supervisor", t.UserInput, string(intent), "intent classification degraded: "+err.Error())
		}
	}

	// 2. Emergency preempts everything else.
	if t.Intent == state.IntentEmergency {
		return s.decide(t, TERMINATE, "emergency intent: terminate for guardrail redirect")
	}

	// 3. FAQ with no unresolved diagnostic context.
	if t.Intent == state.IntentFAQ && len(t.Diagnosis) == 0 && len(t.Symptoms) == 0 {
		if !agentDone(t, AgentConversation) {
			return s.decide(t, AgentConversation, "faq intent routes to ConversationAgent")
		}
		return s.decide(t, TERMINATE, "ConversationAgent already ran")
	}

	// 4. Appointment intent.
	if t.Intent == state.IntentAppointment {
		if !agentDone(t, AgentAppointment) {
			return s.decide(t, AgentAppointment, "appointment intent routes to AppointmentAgent")
		}
		return s.decide(t, TERMINATE, "AppointmentAgent already ran")
	}

	// 5. Image present and unanalyzed.
	if t.Image != nil && t.ImageAnalysis == nil {
		return s.decide(t, AgentImageAnalyzer, "image present, not yet analyzed")
	}

	// 6. Extract symptoms when there's something to extract from.
	if len(t.Symptoms) == 0 && (nonTrivial(t.UserInput) || t.ImageAnalysis != nil) && !agentDone(t, AgentSymptomExtractor) {
		return s.decide(t, AgentSymptomExtractor, "free text or image description present, symptoms not yet extracted")
	}

	// 7. No diagnosis yet.
	if len(t.Diagnosis) == 0 {
		if len(t.Symptoms) == 0 && t.ImageAnalysis == nil {
			// Invariant I2: diagnosis may be non-empty only if symptoms
			// or image_analysis is non-empty. Nothing to diagnose from;
			// go straight to a clarifying Recommender response.
			return s.decide(t, AgentRecommender, "no symptoms or image analysis; ask for clarification")
		}
		return s.decide(t, AgentDiagnosis, "no differential yet")
	}

	// 8. Investigation, unless top hypothesis is already confident.
	if len(t.Investigations) == 0 && t.TopHypothesisProbability() < s.InvestigationSkipThreshold && !agentDone(t, AgentInvestigation) {
		return s.decide(t, AgentInvestigation, "top hypothesis below confidence threshold")
	}

	// 9. Evidence retrieval.
	if len(t.Evidence) == 0 && !agentDone(t, AgentDocumentRetrieve) {
		return s.decide(t, AgentDocumentRetrieve, "no evidence retrieved yet")
	}

	// 10. Final response.
	if t.FinalResponse == "" {
		return s.decide(t, AgentRecommender, "ready to synthesize final response")
	}

	// 11. Otherwise, terminate.
	return s.decide(t, TERMINATE, "final response already set")
}

func (s *Supervisor) decide(t *state.Turn, next, reasoning string) Decision {
	if next != TERMINATE {
		t.SetPlanCurrent(next, reasoning)
	}
	return Decision{NextAgent: next, Reasoning: reasoning}
}

func (s *Supervisor) classify(ctx context.Context, t *state.Turn) (state.Intent, error) {
	recent := state.RecentHistory(t.History, 3)
	if s.Classifier == nil {
		return HeuristicClassify(t.UserInput, t.Image != nil, recent), nil
	}
	intent, err := s.Classifier.Classify(ctx, t.UserInput, t.Image != nil, recent)
	if err != nil || intent == state.IntentUnset {
		return HeuristicClassify(t.UserInput, t.Image != nil, recent), err
	}
	return intent, nil
}

// agentDone reports whether agent already has a Done or Current plan
// entry this turn, preventing the Supervisor from re-dispatching an agent
// whose output simply didn't change the routing-relevant state (e.g. a
// degraded ConversationAgent that left FinalResponse empty).
func agentDone(t *state.Turn, agent string) bool {
	for _, p := range t.Plan {
		if p.Agent == agent && (p.Status == state.PlanDone || p.Status == state.PlanCurrent) {
			return true
		}
	}
	return false
}

func nonTrivial(s string) bool {
	trimmed := 0
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' {
			trimmed++
		}
	}
	return trimmed >= 3
}
