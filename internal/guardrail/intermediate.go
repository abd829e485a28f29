package guardrail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinicflow/triage/internal/llmclient"
	"github.com/clinicflow/triage/internal/state"
)

// RateLimitConfig bounds per-session message volume (spec.md §4.11,
// "≤ R messages per W seconds").
type RateLimitConfig struct {
	MaxMessages int
	Window      time.Duration
}

// DefaultRateLimitConfig matches spec.md's illustrative R/W.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{MaxMessages: 20, Window: time.Minute}
}

// Intermediate is Tier 2: LLM-backed intent classification over
// history[-K]+input, a per-session fixed-window rate limit, and an
// LLM yes/no pass over outputs for diagnosis/prescription claims.
type Intermediate struct {
	rdb       *redis.Client
	extractor *llmclient.Extractor
	rateLimit RateLimitConfig
	fallback  *Simple
	historyK  int
}

// NewIntermediate builds a Tier 2 check. provider may be nil, in which
// case intent/output classification degrades to fallback's Tier 1
// checks per spec.md §4.11's failure semantics ("degrades to the next
// lower tier's check for that message").
func NewIntermediate(rdb *redis.Client, provider llmclient.Provider, rateLimit RateLimitConfig, historyK int) *Intermediate {
	if historyK <= 0 {
		historyK = 3
	}
	var extractor *llmclient.Extractor
	if provider != nil {
		extractor = llmclient.NewExtractor(provider)
	}
	return &Intermediate{
		rdb:       rdb,
		extractor: extractor,
		rateLimit: rateLimit,
		fallback:  NewSimple(0),
		historyK:  historyK,
	}
}

func (t2 *Intermediate) CheckInput(ctx context.Context, t *state.Turn) (state.GuardrailAction, error) {
	if action, err := t2.fallback.CheckInput(ctx, t); err != nil || t.Terminal() || action == state.ActionRedirect {
		return action, err
	}

	if t2.rdb != nil {
		blocked, err := t2.rateLimited(ctx, t.SessionID)
		if err == nil && blocked {
			return blockWith(t, "You're sending messages too quickly. Please wait a moment before trying again."), nil
		}
		// A rate-limiter failure degrades silently to Tier 1's result
		// already computed above (spec.md §4.11 failure semantics).
	}

	if t2.extractor == nil {
		return t.GuardrailAction, nil
	}

	history := state.RecentHistory(t.History, t2.historyK)
	var hb strings.Builder
	for _, h := range history {
		fmt.Fprintf(&hb, "%s: %s\n", h.Role, h.Text)
	}

	var result struct {
		Intent       string `json:"intent"`
		IsOutOfScope bool   `json:"is_out_of_scope"`
		IsSuspicious bool   `json:"is_suspicious"`
	}
	err := t2.extractor.Generate(ctx,
		"You are a medical-triage content-safety classifier. Classify the user's message.",
		fmt.Sprintf("Conversation so far:\n%s\nLatest message: %s", hb.String(), t.UserInput),
		`{"intent": "faq|appointment|symptoms|out_of_scope|emergency|unknown", "is_out_of_scope": bool, "is_suspicious": bool}`,
		&result,
		func() error { return fmt.Errorf("guardrail: classification degraded") },
	)
	if err != nil {
		return t.GuardrailAction, nil
	}
	if result.Intent == string(state.IntentEmergency) {
		return redirectToEmergency(t), nil
	}
	if result.IsOutOfScope {
		t.Intent = state.IntentOutOfScope
	}
	if result.IsSuspicious {
		t.GuardrailAction = state.ActionWarn
		return state.ActionWarn, nil
	}
	return t.GuardrailAction, nil
}

func (t2 *Intermediate) CheckOutput(ctx context.Context, t *state.Turn) (state.GuardrailAction, error) {
	if t.GuardrailAction == state.ActionBlock {
		return state.ActionBlock, nil
	}
	action, err := t2.fallback.CheckOutput(ctx, t)
	if err != nil {
		return action, err
	}

	if t2.extractor == nil {
		return action, nil
	}

	var verdict struct {
		AssertsDiagnosis bool `json:"asserts_diagnosis"`
		AssertsDosage    bool `json:"asserts_dosage"`
	}
	err = t2.extractor.Generate(ctx,
		"You answer strictly yes/no questions about text safety.",
		fmt.Sprintf("Does this response assert a specific diagnosis or medication dosage without hedging?\n\n%s", t.FinalResponse),
		`{"asserts_diagnosis": bool, "asserts_dosage": bool}`,
		&verdict,
		func() error { return nil },
	)
	if err == nil && (verdict.AssertsDiagnosis || verdict.AssertsDosage) {
		t.FinalResponse = hedge(t.FinalResponse)
		return state.ActionWarn, nil
	}
	return action, nil
}

// rateLimited counts a session's messages in a single Redis key (INCR),
// setting the key's TTL to Window when the first message creates it, the
// same counter-with-TTL idiom the pack's queue/consumer code uses for
// stream-group bookkeeping. The window is fixed and opens at the
// session's first counted message; it does not slide, so up to
// 2×MaxMessages can pass across a window boundary.
func (t2 *Intermediate) rateLimited(ctx context.Context, sessionID string) (bool, error) {
	key := fmt.Sprintf("triage:ratelimit:%s", sessionID)
	n, err := t2.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		t2.rdb.Expire(ctx, key, t2.rateLimit.Window)
	}
	return n > int64(t2.rateLimit.MaxMessages), nil
}
