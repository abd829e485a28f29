// Package agents implements the one component per spec.md §4.3-§4.10:
// ImageAnalyzer, SymptomExtractor, DiagnosisEngine, InvestigationGenerator,
// DocumentRetriever, Recommender, ConversationAgent, AppointmentAgent.
// Each registers in the orchestration graph by name (spec.md §9, "Cyclic
// references" design note: string-keyed registry, not direct struct
// references), grounded on prebuilt/tool_node.go's name-keyed node
// registration.
package agents

import (
	"context"

	"github.com/clinicflow/triage/internal/state"
)

// Agent is the common contract every component implements.
type Agent interface {
	Run(ctx context.Context, t *state.Turn) error
}

// AgentFunc adapts a plain function to Agent.
type AgentFunc func(ctx context.Context, t *state.Turn) error

func (f AgentFunc) Run(ctx context.Context, t *state.Turn) error { return f(ctx, t) }

// Registry is the string-keyed lookup the Supervisor's Decision.NextAgent
// indexes into.
type Registry map[string]Agent
