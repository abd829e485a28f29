package agents

import (
	"context"

	"github.com/clinicflow/triage/internal/knowledge"
	"github.com/clinicflow/triage/internal/state"
)

// ConversationAgent implements spec.md §4.9.
type ConversationAgent struct {
	Store *knowledge.Store
}

func NewConversationAgent(store *knowledge.Store) *ConversationAgent {
	return &ConversationAgent{Store: store}
}

func (c *ConversationAgent) Run(ctx context.Context, t *state.Turn) error {
	results := c.Store.Search(ctx, t.UserInput, 1)
	if len(results) == 0 || results[0].Score < knowledge.MatchConfidenceThreshold {
		t.Intent = state.IntentUnknown
		t.AppendMessage("conversation", t.UserInput, "", "no FAQ match above confidence threshold")
		return nil
	}

	t.FinalResponse = results[0].Answer
	t.AppendMessage("conversation", t.UserInput, results[0].Answer, "")
	return nil
}
