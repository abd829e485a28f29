// Package state defines the per-turn mutable record the orchestration
// graph and its agents read and write, plus the durable records
// (appointments, risk profiles) that outlive a single turn.
package state

import "time"

// Role identifies the speaker of a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Intent classifies what a turn is about. Set once by the Supervisor on
// first inspection of a Turn, occasionally refined by an agent
// (ConversationAgent may refine faq -> unknown; DiagnosisEngine may
// escalate any intent to emergency).
type Intent string

const (
	IntentUnset       Intent = ""
	IntentFAQ         Intent = "faq"
	IntentAppointment Intent = "appointment"
	IntentSymptoms    Intent = "symptoms"
	IntentImage       Intent = "image_analysis"
	IntentEmergency   Intent = "emergency"
	IntentOutOfScope  Intent = "out_of_scope"
	IntentUnknown     Intent = "unknown"
)

// Severity is the self-reported or inferred severity of a symptom.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// PlanStatus tracks a single plan entry through the Supervisor's own
// working memory. Transitions are monotonic: Pending -> Current ->
// Done|Skipped (invariant I6).
type PlanStatus string

const (
	PlanPending PlanStatus = "pending"
	PlanCurrent PlanStatus = "current"
	PlanDone    PlanStatus = "done"
	PlanSkipped PlanStatus = "skipped"
)

// GuardrailAction is the first-class control-flow outcome a guardrail
// pass may set. It is not an error.
type GuardrailAction string

const (
	ActionNone     GuardrailAction = ""
	ActionAllow    GuardrailAction = "allow"
	ActionWarn     GuardrailAction = "warn"
	ActionRedirect GuardrailAction = "redirect"
	ActionBlock    GuardrailAction = "block"
)

// HistoryEntry is one message (user or assistant) of prior conversation.
type HistoryEntry struct {
	Role Role
	Text string
}

// Image is an opaque reference to an uploaded image; the bytes themselves
// live outside the core (out of scope per spec.md §1).
type Image struct {
	BlobRef string
	MIME    string
}

// Symptom is one normalized entry in a patient's structured complaint.
type Symptom struct {
	Name      string
	Duration  string
	Severity  Severity
	Site      string
	Modifiers []string
}

// ImageAnalysis is ImageAnalyzer's output: a description plus answers to a
// bounded set of focused questions, produced by a single model call.
type ImageAnalysis struct {
	Description string
	VisualQA    map[string]string
	Confidence  float64
}

// Hypothesis is one entry in DiagnosisEngine's ranked differential.
type Hypothesis struct {
	Name        string
	Rationale   string
	Probability float64
	RedFlag     bool
}

// Investigation is a follow-up question or test proposed to disambiguate
// the leading hypotheses.
type Investigation struct {
	Question string // empty when this entry is a Test
	Test     string // empty when this entry is a Question
	Reason   string
	Targets  []string // subset of Hypothesis.Name this discriminates
}

// EvidencePassage is one retrieved-and-reranked passage supporting the
// Recommender's output.
type EvidencePassage struct {
	Passage   string
	SourceID  string
	Relevance float64
}

// PlanEntry is one step of the Supervisor's own sequencing memory.
type PlanEntry struct {
	Agent  string
	Status PlanStatus
	Note   string
}

// Message is one entry in the turn's append-only transition log.
type Message struct {
	At        time.Time
	Agent     string
	Input     string // truncated
	Output    string // truncated
	Warning   string
}

// Turn is the single per-turn mutable record. Only the active agent may
// write it (invariant I1: serial cooperative execution — enforced by the
// engine never invoking two agents concurrently for the same Turn, not by
// locking inside Turn itself).
type Turn struct {
	SessionID string
	UserInput string
	Image     *Image
	History   []HistoryEntry

	Intent Intent

	Symptoms      []Symptom
	ImageAnalysis *ImageAnalysis

	Diagnosis      []Hypothesis
	Investigations []Investigation
	Evidence       []EvidencePassage

	Plan     []PlanEntry
	Messages []Message

	FinalResponse   string
	GuardrailAction GuardrailAction

	TraceID   string
	StartedAt time.Time
	Deadline  time.Time
	Cancelled bool
}

// Terminal reports whether the turn has produced its response and the
// loop should stop (invariant I5: FinalResponse non-empty at termination).
func (t *Turn) Terminal() bool {
	return t.FinalResponse != ""
}

// AppendMessage records one agent transition, truncating input/output so
// the log stays bounded regardless of payload size.
func (t *Turn) AppendMessage(agent, input, output, warning string) {
	const maxLen = 500
	t.Messages = append(t.Messages, Message{
		At:      time.Now(),
		Agent:   agent,
		Input:   truncate(input, maxLen),
		Output:  truncate(output, maxLen),
		Warning: warning,
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// SetPlanCurrent marks agent's entry current, appending one if absent.
// Any previously-current entry is marked done, preserving the monotonic
// pending -> current -> done|skipped transitions of invariant I6.
func (t *Turn) SetPlanCurrent(agent, note string) {
	for i := range t.Plan {
		if t.Plan[i].Status == PlanCurrent {
			t.Plan[i].Status = PlanDone
		}
		if t.Plan[i].Agent == agent {
			t.Plan[i].Status = PlanCurrent
			t.Plan[i].Note = note
			return
		}
	}
	t.Plan = append(t.Plan, PlanEntry{Agent: agent, Status: PlanCurrent, Note: note})
}

// TopHypothesisProbability returns the probability of the highest-ranked
// diagnosis, or 0 if none exists yet.
func (t *Turn) TopHypothesisProbability() float64 {
	if len(t.Diagnosis) == 0 {
		return 0
	}
	top := t.Diagnosis[0].Probability
	for _, h := range t.Diagnosis[1:] {
		if h.Probability > top {
			top = h.Probability
		}
	}
	return top
}

// HasRedFlag reports whether any hypothesis in the differential is
// tagged as a medical emergency.
func (t *Turn) HasRedFlag() bool {
	for _, h := range t.Diagnosis {
		if h.RedFlag {
			return true
		}
	}
	return false
}

// RecentHistory returns at most k trailing history entries, bounding how
// much context agents see (spec.md §5, "Bounded memory").
func RecentHistory(h []HistoryEntry, k int) []HistoryEntry {
	if k <= 0 || len(h) <= k {
		return h
	}
	return h[len(h)-k:]
}
