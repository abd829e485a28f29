// Package guardrail implements the tiered input/output safety checks
// spec.md §4.11 requires, modeled as a chain-of-responsibility over a
// common Check interface (spec.md §9, "Guardrail composition") so the
// turn loop calls a GuardrailManager, never a concrete tier.
package guardrail

import (
	"context"

	"github.com/clinicflow/triage/internal/state"
)

// Check is the shared pair every tier implements.
type Check interface {
	// CheckInput may set Intent=emergency, write FinalResponse and mark
	// the turn terminal (block), or leave the turn untouched (allow).
	CheckInput(ctx context.Context, t *state.Turn) (state.GuardrailAction, error)

	// CheckOutput may rewrite FinalResponse (redact, replace) but must
	// never clear a block set by CheckInput.
	CheckOutput(ctx context.Context, t *state.Turn) (state.GuardrailAction, error)
}

// Manager selects one configured tier and is the only thing the turn
// loop talks to (spec.md §4.11: "the loop calls the manager, not the
// concrete implementation").
type Manager struct {
	tier Check
}

// NewManager builds a Manager around tier.
func NewManager(tier Check) *Manager {
	return &Manager{tier: tier}
}

func (m *Manager) CheckInput(ctx context.Context, t *state.Turn) (state.GuardrailAction, error) {
	return m.tier.CheckInput(ctx, t)
}

func (m *Manager) CheckOutput(ctx context.Context, t *state.Turn) (state.GuardrailAction, error) {
	return m.tier.CheckOutput(ctx, t)
}

// blockWith marks t terminal with a safe fallback response, the shared
// mechanics behind every tier's "block" outcome.
func blockWith(t *state.Turn, message string) state.GuardrailAction {
	t.FinalResponse = message
	t.GuardrailAction = state.ActionBlock
	return state.ActionBlock
}

// redirectToEmergency marks intent=emergency per the shared policy
// (spec.md §4.11: "check_input may set intent = emergency (redirect)")
// and, like blockWith, terminates the turn with the tier's own
// emergency-redirect response rather than leaving FinalResponse for
// the engine's generic fallback to fill in.
func redirectToEmergency(t *state.Turn) state.GuardrailAction {
	t.Intent = state.IntentEmergency
	t.GuardrailAction = state.ActionRedirect
	t.FinalResponse = EmergencyFallback
	return state.ActionRedirect
}

// EmergencyFallback is the emergency-redirect response content shared by
// every guardrail tier's redirectToEmergency and by DiagnosisEngine's own
// red-flag escalation (spec.md §4.5/§4.11), so both paths produce the
// same S2 wording regardless of which component detects the emergency.
const EmergencyFallback = "This may be a medical emergency. Please call your local emergency number " +
	"or go to the nearest emergency room right away. / Đây có thể là trường hợp cấp cứu. " +
	"Vui lòng gọi cấp cứu hoặc đến cơ sở y tế gần nhất ngay lập tức."

const genericBlockFallback = "I'm not able to help with that request. If this is a medical emergency, " +
	"please contact emergency services immediately."
