package engine

import (
	"context"

	"github.com/clinicflow/triage/internal/state"
)

// ChatRequest is the public surface of spec.md §6:
// chat(session_id, user_input, image?, history) -> {response, updated_history, trace_id}.
type ChatRequest struct {
	SessionID string
	UserInput string
	Image     *state.Image
}

// ChatResponse carries the turn's outcome plus the session's updated
// history, so a caller holding its own copy of history can stay in sync.
type ChatResponse struct {
	Response       string
	UpdatedHistory []HistoryEntry
	TraceID        string
}

// HistoryEntry mirrors state.HistoryEntry in the public surface, so
// callers outside internal/ never need to import internal/state.
type HistoryEntry struct {
	Role string
	Text string
}

// Chat runs one turn for a session and returns the response alongside
// the session's updated history.
func (e *Engine) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	t := &state.Turn{
		SessionID: req.SessionID,
		UserInput: req.UserInput,
		Image:     req.Image,
	}

	e.Run(ctx, t)

	e.mu.Lock()
	h := e.history[req.SessionID]
	e.mu.Unlock()

	return ChatResponse{
		Response:       t.FinalResponse,
		UpdatedHistory: toPublicHistory(h),
		TraceID:        t.TraceID,
	}, nil
}

func toPublicHistory(h []state.HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, len(h))
	for i, e := range h {
		out[i] = HistoryEntry{Role: string(e.Role), Text: e.Text}
	}
	return out
}
