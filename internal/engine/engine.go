// Package engine implements the turn loop pseudocode of spec.md §4.2 on
// top of internal/orchgraph: a supervisor dispatch node with a
// conditional edge out to the chosen agent and a static edge back to it
// from every agent, built once at process start and reused across turns
// (spec.md §5).
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/triage/internal/agents"
	"github.com/clinicflow/triage/internal/guardrail"
	"github.com/clinicflow/triage/internal/orchgraph"
	"github.com/clinicflow/triage/internal/state"
	"github.com/clinicflow/triage/internal/supervisor"
)

const supervisorNode = "__supervisor__"

// MaxSteps is spec.md §4.2's MAX_STEPS, counted in turn-loop iterations
// (one Supervisor decision plus one agent run). Because orchgraph counts
// the supervisor dispatch node itself as a step, the graph is run with
// twice this bound.
const MaxSteps = 12

// PerCallTimeout bounds any single external call an agent makes (spec.md
// §5, "each external call has a per-call timeout").
const PerCallTimeout = 15 * time.Second

// TurnBudget bounds total wall time for one turn (spec.md §5, "the
// whole-turn budget").
const TurnBudget = 60 * time.Second

// Engine ties the Supervisor, the agent registry, and the guardrail
// manager into the runnable graph, and owns the conversation history it
// persists across turns within a session.
type Engine struct {
	graph       *orchgraph.Runnable
	supervisor  *supervisor.Supervisor
	guardrail   *guardrail.Manager
	recommender agents.Agent

	mu      sync.Mutex
	history map[string][]state.HistoryEntry
}

// New builds the graph once and returns a ready Engine.
func New(sup *supervisor.Supervisor, registry agents.Registry, gm *guardrail.Manager) (*Engine, error) {
	g := orchgraph.New()
	g.AddNode(supervisorNode, func(ctx context.Context, s any) error { return nil })
	g.SetEntryPoint(supervisorNode)

	for name, agent := range registry {
		a := agent
		g.AddNode(name, func(ctx context.Context, s any) error {
			t := s.(*state.Turn)
			callCtx, cancel := context.WithTimeout(ctx, PerCallTimeout)
			defer cancel()
			if err := a.Run(callCtx, t); err != nil {
				t.AppendMessage(name, t.UserInput, "", "agent error degraded: "+err.Error())
			}
			return nil
		})
		g.AddEdge(name, supervisorNode)
	}

	g.AddConditionalEdge(supervisorNode, func(ctx context.Context, s any) string {
		t := s.(*state.Turn)
		if t.Terminal() {
			return orchgraph.END
		}
		decision := sup.Decide(ctx, t)
		if decision.NextAgent == supervisor.TERMINATE {
			return orchgraph.END
		}
		return decision.NextAgent
	})

	runnable, err := g.Compile()
	if err != nil {
		return nil, err
	}
	return &Engine{
		graph:       runnable,
		supervisor:  sup,
		guardrail:   gm,
		recommender: registry[supervisor.AgentRecommender],
		history:     make(map[string][]state.HistoryEntry),
	}, nil
}

// Run executes one full turn: guardrail input check, the supervisor/agent
// loop, guardrail output check, then persists history. It never returns
// an error for a degraded turn — every failure mode resolves to a
// FinalResponse (spec.md §7, "the user always receives a response").
func (e *Engine) Run(ctx context.Context, t *state.Turn) *state.Turn {
	t.TraceID = uuid.NewString()
	t.StartedAt = time.Now()
	t.Deadline = t.StartedAt.Add(TurnBudget)
	t.History = e.historyFor(t.SessionID)

	ctx, cancel := context.WithDeadline(ctx, t.Deadline)
	defer cancel()

	if e.guardrail != nil {
		if _, err := e.guardrail.CheckInput(ctx, t); err != nil {
			t.AppendMessage("guardrail", t.UserInput, "", "input check degraded: "+err.Error())
		}
	}

	if !t.Terminal() {
		_, err := e.graph.Run(ctx, t, orchgraph.RunOptions{
			MaxSteps:    2 * MaxSteps,
			IsCancelled: func() bool { return t.Cancelled || ctx.Err() != nil },
		})
		if err != nil {
			t.AppendMessage("engine", t.UserInput, "", "graph run error: "+err.Error())
		}
	}

	if !t.Terminal() {
		if t.Cancelled || ctx.Err() != nil {
			t.FinalResponse = "This request was cancelled or timed out before a full answer could be prepared."
		} else {
			e.forceRecommendation(ctx, t)
		}
	}

	if !t.Terminal() {
		t.FinalResponse = safeFallback()
	}

	if e.guardrail != nil {
		if _, err := e.guardrail.CheckOutput(ctx, t); err != nil {
			t.AppendMessage("guardrail", t.UserInput, "", "output check degraded: "+err.Error())
		}
	}

	e.persistHistory(t)
	return t
}

// forceRecommendation is the MAX_STEPS-exhausted path spec.md §4.2/§7
// require: rather than dropping whatever diagnosis/investigations/evidence
// the turn already accumulated, the Recommender is invoked directly
// against the current Turn, one last time, outside the graph's step
// budget. Errors degrade to AppendMessage, same as every other agent call
// — safeFallback is only reached if the Recommender itself leaves the
// turn non-terminal.
func (e *Engine) forceRecommendation(ctx context.Context, t *state.Turn) {
	if e.recommender == nil {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, PerCallTimeout)
	defer cancel()
	if err := e.recommender.Run(callCtx, t); err != nil {
		t.AppendMessage(supervisor.AgentRecommender, t.UserInput, "", "recommender degraded: "+err.Error())
	}
}

func safeFallback() string {
	return "I'm not able to finish preparing a detailed answer right now. If this is a medical " +
		"emergency, please contact emergency services immediately; otherwise, please try again shortly."
}

// historyK bounds how much history is fed to agents (spec.md §5,
// "history is truncated to the last K entries").
const historyK = 20

func (e *Engine) historyFor(sessionID string) []state.HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return state.RecentHistory(e.history[sessionID], historyK)
}

func (e *Engine) persistHistory(t *state.Turn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.history[t.SessionID]
	h = append(h, state.HistoryEntry{Role: state.RoleUser, Text: t.UserInput})
	h = append(h, state.HistoryEntry{Role: state.RoleAssistant, Text: t.FinalResponse})
	e.history[t.SessionID] = state.RecentHistory(h, historyK)
}
